package credits

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veilscope/veilscope/internal/config"
	"github.com/veilscope/veilscope/internal/logger"
)

// InsufficientCreditsError means the workspace balance cannot cover the
// requested amount. Balance and Required are surfaced to the caller so it
// can present an actionable message.
type InsufficientCreditsError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("insufficient credits: balance %d, required %d", e.Balance, e.Required)
}

// Ledger meters computation per workspace. Deduct is a single atomic
// check-then-deduct: two concurrent deductions against the same workspace
// can never both pass a balance check only one can afford. Both Deduct and
// Refund return the authoritative post-operation balance.
type Ledger interface {
	Balance(ctx context.Context, workspaceID string) (int64, error)
	Deduct(ctx context.Context, workspaceID string, amount int64, description string) (int64, error)
	Refund(ctx context.Context, workspaceID string, amount int64, description string) (int64, error)
}

// Granter is the provisioning side of a ledger backend. Separate from
// Ledger because the correlation path must never be able to mint credits.
type Granter interface {
	Grant(ctx context.Context, workspaceID string, amount int64) (int64, error)
}

// deductScript checks and deducts in one Redis-side step. Returns
// {1, newBalance} on success, {0, currentBalance} when the balance is
// short.
var deductScript = redis.NewScript(`
local balance = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
if balance < amount then
	return {0, balance}
end
local remaining = redis.call('DECRBY', KEYS[1], amount)
return {1, remaining}
`)

// RedisLedger is the production Ledger backed by a shared Redis store, so
// the metering contract holds across horizontally scaled instances.
type RedisLedger struct {
	client *redis.Client
	prefix string
	logger *logger.Logger
}

func NewRedisLedger(cfg config.RedisConfig, creditsCfg config.CreditsConfig, log *logger.Logger) *RedisLedger {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	return &RedisLedger{
		client: client,
		prefix: creditsCfg.LedgerPrefix,
		logger: log.WithComponent("credits"),
	}
}

func (l *RedisLedger) balanceKey(workspaceID string) string {
	return fmt.Sprintf("%s:%s:balance", l.prefix, workspaceID)
}

func (l *RedisLedger) journalKey(workspaceID string) string {
	return fmt.Sprintf("%s:%s:journal", l.prefix, workspaceID)
}

func (l *RedisLedger) Balance(ctx context.Context, workspaceID string) (int64, error) {
	balance, err := l.client.Get(ctx, l.balanceKey(workspaceID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance for workspace %s: %w", workspaceID, err)
	}
	return balance, nil
}

func (l *RedisLedger) Deduct(ctx context.Context, workspaceID string, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	result, err := deductScript.Run(ctx, l.client, []string{l.balanceKey(workspaceID)}, amount).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("ledger deduct failed for workspace %s: %w", workspaceID, err)
	}
	if len(result) != 2 {
		return 0, fmt.Errorf("unexpected ledger reply shape: %v", result)
	}

	ok, balance := result[0] == 1, result[1]
	if !ok {
		l.logger.WithWorkspaceID(workspaceID).Warnw("Deduction refused",
			"balance", balance,
			"required", amount,
		)
		return balance, &InsufficientCreditsError{Balance: balance, Required: amount}
	}

	l.journal(ctx, workspaceID, -amount, description)
	l.logger.WithWorkspaceID(workspaceID).Infow("Credits deducted",
		"amount", amount,
		"remaining", balance,
		"description", description,
	)
	return balance, nil
}

func (l *RedisLedger) Refund(ctx context.Context, workspaceID string, amount int64, description string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("refund amount must be positive, got %d", amount)
	}

	balance, err := l.client.IncrBy(ctx, l.balanceKey(workspaceID), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("ledger refund failed for workspace %s: %w", workspaceID, err)
	}

	l.journal(ctx, workspaceID, amount, description)
	l.logger.WithWorkspaceID(workspaceID).Infow("Credits refunded",
		"amount", amount,
		"balance", balance,
		"description", description,
	)
	return balance, nil
}

// Grant tops up a workspace. Used by provisioning and local development,
// never by the correlation path.
func (l *RedisLedger) Grant(ctx context.Context, workspaceID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}
	balance, err := l.client.IncrBy(ctx, l.balanceKey(workspaceID), amount).Result()
	if err != nil {
		return 0, fmt.Errorf("ledger grant failed for workspace %s: %w", workspaceID, err)
	}
	l.journal(ctx, workspaceID, amount, "grant")
	return balance, nil
}

// journal appends an audit entry. Journal failures are logged but never
// fail the operation that produced them.
func (l *RedisLedger) journal(ctx context.Context, workspaceID string, delta int64, description string) {
	entry := fmt.Sprintf("%d|%d|%s", time.Now().UTC().Unix(), delta, description)
	if err := l.client.RPush(ctx, l.journalKey(workspaceID), entry).Err(); err != nil {
		l.logger.WithWorkspaceID(workspaceID).Warnw("Failed to append ledger journal entry",
			"error", err,
		)
	}
}

func (l *RedisLedger) Close() error {
	return l.client.Close()
}
