package credits

import (
	"context"
	"fmt"
	"sync"
)

// MemoryLedger is an in-process Ledger with the same atomicity contract as
// the Redis implementation, scoped to a single instance. Intended for
// local development and tests; horizontal deployments need the shared
// store.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]int64)}
}

func (l *MemoryLedger) Balance(_ context.Context, workspaceID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[workspaceID], nil
}

func (l *MemoryLedger) Deduct(_ context.Context, workspaceID string, amount int64, _ string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[workspaceID]
	if balance < amount {
		return balance, &InsufficientCreditsError{Balance: balance, Required: amount}
	}
	l.balances[workspaceID] = balance - amount
	return l.balances[workspaceID], nil
}

func (l *MemoryLedger) Refund(_ context.Context, workspaceID string, amount int64, _ string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("refund amount must be positive, got %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[workspaceID] += amount
	return l.balances[workspaceID], nil
}

// Grant tops up a workspace balance.
func (l *MemoryLedger) Grant(_ context.Context, workspaceID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[workspaceID] += amount
	return l.balances[workspaceID], nil
}
