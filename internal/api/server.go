package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veilscope/veilscope/internal/auth"
	"github.com/veilscope/veilscope/internal/config"
	"github.com/veilscope/veilscope/internal/credits"
	"github.com/veilscope/veilscope/internal/logger"
	"github.com/veilscope/veilscope/internal/ratelimit"
	"github.com/veilscope/veilscope/pkg/correlation"
)

// Pinger reports backend reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options carries the server's collaborators. Everything is injected;
// the server owns no global state.
type Options struct {
	Config    *config.Config
	Engine    *correlation.Engine
	Validator auth.TokenValidator
	Ledger    credits.Ledger
	Limiter   *ratelimit.KeyedLimiter
	Health    Pinger
	Logger    *logger.Logger
}

type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	engine  *correlation.Engine
	ledger  credits.Ledger
	limiter *ratelimit.KeyedLimiter
	health  Pinger
	http    *http.Server
}

func New(opts Options) *Server {
	s := &Server{
		cfg:     opts.Config,
		log:     opts.Logger.WithComponent("api"),
		engine:  opts.Engine,
		ledger:  opts.Ledger,
		limiter: opts.Limiter,
		health:  opts.Health,
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(s.log),
		corsMiddleware(),
		requestTimeout(opts.Config.Server.RequestTimeout),
	)

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	v1.Use(
		authMiddleware(opts.Validator, s.log),
		rateLimitMiddleware(opts.Limiter),
	)
	v1.POST("/scans/:id/correlate", s.handleCorrelate)
	v1.GET("/credits/balance", s.handleBalance)

	s.http = &http.Server{
		Addr:              opts.Config.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests. A
// background ticker sweeps idle rate-limit buckets for the lifetime of the
// server.
func (s *Server) Run(ctx context.Context) error {
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.Sweep()
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("Server listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.log.Infow("Shutting down, draining in-flight requests")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown incomplete: %w", err)
	}
	<-sweepDone
	return nil
}
