package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"bankteller/internal/cli"
	"bankteller/internal/config"
	"bankteller/internal/registry"
	"bankteller/internal/repository"
	"bankteller/internal/repository/memory"
	"bankteller/internal/repository/postgres"
	"bankteller/internal/service"
	"bankteller/pkg/metrics"
)

const appName = "bankteller"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	logger := setupLogger()
	logger.Info("Starting application", slog.String("name", appName))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, db, err := setupStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("store initialization failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	collector := metrics.NewCollector(logger)
	metricsServer := collector.StartMetricsServer(cfg.MetricsAddress)

	accountRegistry := registry.New(store)
	svc := service.NewAccountService(store, accountRegistry, collector, logger)
	menu := cli.NewMenu(svc, os.Stdin, os.Stdout, logger, cfg.OpTimeout)

	done := make(chan struct{})
	go func() {
		defer close(done)
		menu.Run(ctx)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("Database close failed", slog.String("error", err.Error()))
		}
	}

	logger.Info("Application shutdown complete")
}

func setupLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

// setupStore opens Postgres when DATABASE_URI is set; otherwise the session
// runs on the in-memory store, matching the original demo's embedded
// in-memory database.
func setupStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.Store, *sql.DB, error) {
	if cfg.DatabaseURI == "" {
		logger.Info("no database configured, using in-memory store")
		return memory.NewStore(), nil, nil
	}

	db, err := sql.Open("pgx", cfg.DatabaseURI)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening database: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database after ping failure", slog.String("error", closeErr.Error()))
		}
		return nil, nil, fmt.Errorf("error pinging database: %w", err)
	}

	pg := postgres.New(db, logger)
	if err = pg.EnsureSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database after schema failure", slog.String("error", closeErr.Error()))
		}
		return nil, nil, err
	}

	return pg, db, nil
}
