// Package cron runs background maintenance for the ingestion service.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/repository"
)

// Scheduler owns periodic maintenance jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

// NewScheduler creates an empty scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
}

// RegisterRunSweeper schedules a job that fails ingestion runs stuck in
// running state longer than threshold. Runs every 10 minutes.
func (s *Scheduler) RegisterRunSweeper(repo repository.IngestRepository, threshold time.Duration) error {
	_, err := s.cron.AddFunc("@every 10m", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		swept, err := repo.SweepStuckRuns(ctx, threshold)
		if err != nil {
			s.logger.Warn("run sweep failed", "error", err)
			return
		}
		if swept > 0 {
			s.logger.Info("swept stuck ingestion runs", "count", swept)
		}
	})
	return err
}

// Start launches the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
