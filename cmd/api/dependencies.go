package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/handler"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/repository"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/service"
	"github.com/FACorreiaa/statement-ingest/pkg/config"
	"github.com/FACorreiaa/statement-ingest/pkg/cron"
	"github.com/FACorreiaa/statement-ingest/pkg/db"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	Config *config.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool

	IngestRepo    repository.IngestRepository
	FileStorage   storage.Storage
	IngestService *service.IngestService
	IngestHandler *handler.IngestHandler
	Scheduler     *cron.Scheduler

	Registry *prometheus.Registry
}

// InitDependencies initializes all application dependencies.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	if err := db.Migrate(cfg.Database.DSN()); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	pool, err := db.New(ctx, db.Config{
		DSN:             cfg.Database.DSN(),
		MaxConns:        25,
		MinConns:        5,
		MaxConnLifetime: 5 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	deps.Pool = pool

	deps.IngestRepo = repository.NewPostgresIngestRepository(pool)

	deps.FileStorage, err = storage.NewLocalStorage(cfg.Storage.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to init storage: %w", err)
	}

	metrics := service.NewMetrics(deps.Registry)
	deps.IngestService = service.NewIngestService(deps.IngestRepo, deps.FileStorage, logger, metrics)

	deps.IngestHandler = handler.NewIngestHandler(deps.IngestService, handler.Defaults{
		SourceSystem:         cfg.Ingest.SourceSystem,
		DefaultCurrency:      cfg.Ingest.DefaultCurrency,
		NormalizationVersion: cfg.Ingest.NormalizationVersion,
	}, logger)

	deps.Scheduler = cron.NewScheduler(logger)
	threshold := time.Duration(cfg.Ingest.StuckRunThresholdMin) * time.Minute
	if err := deps.Scheduler.RegisterRunSweeper(deps.IngestRepo, threshold); err != nil {
		return nil, fmt.Errorf("failed to register run sweeper: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// Close releases held resources.
func (d *Dependencies) Close() {
	if d.Scheduler != nil {
		d.Scheduler.Stop()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
