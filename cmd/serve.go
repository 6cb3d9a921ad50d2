package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veilscope/veilscope/internal/api"
	"github.com/veilscope/veilscope/internal/auth"
	"github.com/veilscope/veilscope/internal/credits"
	"github.com/veilscope/veilscope/internal/database"
	"github.com/veilscope/veilscope/internal/logger"
	"github.com/veilscope/veilscope/internal/ratelimit"
	"github.com/veilscope/veilscope/internal/telemetry"
	"github.com/veilscope/veilscope/pkg/correlation"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the correlation HTTP API",
	Long: `Start the HTTP API server.

Endpoints:
  POST /api/v1/scans/:id/correlate   run correlation against a scan
  GET  /api/v1/credits/balance       current workspace credit balance
  GET  /health                       liveness and database reachability

Example:
  veilscope serve
  VEILSCOPE_SERVER_ADDR=:9090 veilscope serve --config prod.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Warnw("Telemetry shutdown incomplete", "error", err)
		}
	}()

	store, err := database.New(cfg.Database, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}

	ledger, closeLedger := buildLedger(log)
	defer closeLedger()

	engine := correlation.NewEngine(store, ledger, auth.NewTierGate(), cfg.Credits.CorrelationCost, log)

	server := api.New(api.Options{
		Config:    cfg,
		Engine:    engine,
		Validator: store,
		Ledger:    ledger,
		Limiter:   ratelimit.NewKeyedLimiter(cfg.Security.RateLimit),
		Health:    store,
		Logger:    log,
	})

	log.Infow("Starting veilscope",
		"addr", cfg.Server.Addr,
		"correlation_cost", cfg.Credits.CorrelationCost,
		"telemetry", cfg.Telemetry.Enabled,
	)
	return server.Run(ctx)
}

// buildLedger picks the ledger backend: the shared Redis ledger in
// production, the in-process one when no Redis address is configured
// (single-instance development only).
func buildLedger(log *logger.Logger) (credits.Ledger, func()) {
	if cfg.Redis.Addr == "" {
		log.Warnw("No redis address configured, using in-memory credit ledger")
		return credits.NewMemoryLedger(), func() {}
	}

	ledger := credits.NewRedisLedger(cfg.Redis, cfg.Credits, log)
	return ledger, func() {
		if err := ledger.Close(); err != nil {
			log.Warnw("Failed to close ledger connection", "error", err)
		}
	}
}
