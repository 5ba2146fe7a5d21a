package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/settleup/internal/config"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/money"
	"github.com/mmynk/settleup/internal/service"
	"github.com/mmynk/settleup/pkg/logging"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.New()

	settlementService := service.NewSettlementService(service.Options{
		// Validate bounds CurrencyPlaces to 0..8.
		CurrencyPlaces:    int32(cfg.CurrencyPlaces),
		MaxMembers:        cfg.MaxMembers,
		MaxExpenses:       cfg.MaxExpenses,
		ResidualTolerance: money.Amount(cfg.ResidualTolerance),
		Observer:          m,
	})

	interceptors := connect.WithInterceptors(middleware.LoggingInterceptor())

	mux := http.NewServeMux()
	path, handler := service.NewSettlementServiceHandler(settlementService, interceptors)
	mux.Handle(path, handler)
	mux.HandleFunc("GET /healthz", service.Health)
	mux.Handle("GET /metrics", m.Handler())

	root := middleware.CORS(middleware.RequestID(middleware.Logging(m)(mux)))

	srv := &http.Server{
		Addr: cfg.Addr(),
		// Wrap with h2c for HTTP/2 without TLS
		Handler:        h2c.NewHandler(root, &http2.Server{}),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server starting",
			"address", srv.Addr,
			"url", fmt.Sprintf("http://localhost%s", srv.Addr),
			"currency_places", cfg.CurrencyPlaces,
			"max_members", cfg.MaxMembers,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	})

	return g.Wait()
}
