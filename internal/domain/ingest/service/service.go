// Package service orchestrates document ingestion: blob storage, extraction,
// canonicalization/hashing, conflict-ignoring persistence, and derivation,
// wrapped in a run lifecycle record.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/canonical"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/deriver"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/extractor"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/repository"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

const insertBatchSize = 500

// IngestInput describes one document to ingest.
type IngestInput struct {
	Data     []byte
	MIMEType string
	FileName string

	// SourceSystem scopes dedup; rows with identical canonical content under
	// the same source system hash to the same identity.
	SourceSystem string

	// DefaultCurrency applies when a row carries no recognizable currency.
	DefaultCurrency string

	// NormalizationVersion tags derived candidates; empty means the deriver
	// default.
	NormalizationVersion string
}

// IngestService runs the ingestion pipeline. The pipeline stages themselves
// are pure; this service owns the only side effects (storage and database).
type IngestService struct {
	repo    repository.IngestRepository
	blobs   storage.Storage
	logger  *slog.Logger
	metrics *Metrics
}

// NewIngestService creates an ingest service.
func NewIngestService(repo repository.IngestRepository, blobs storage.Storage, logger *slog.Logger, metrics *Metrics) *IngestService {
	return &IngestService{repo: repo, blobs: blobs, logger: logger, metrics: metrics}
}

// Ingest processes one document end to end and returns the finished run.
// Unsupported formats fail the run; data-quality issues degrade to skips and
// partial stats instead of failing.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*repository.IngestionRun, error) {
	run := &repository.IngestionRun{
		SourceSystem: input.SourceSystem,
		FileName:     input.FileName,
		MIMEType:     input.MIMEType,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := s.repo.StartRun(ctx, run.ID); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}

	if s.blobs != nil {
		key := objectKey(input.SourceSystem, run.ID, input.FileName)
		if _, err := s.blobs.Put(ctx, key, input.MIMEType, bytes.NewReader(input.Data)); err != nil {
			// The pipeline can still run from the in-memory buffer; losing
			// the archived original is not fatal.
			s.logger.Warn("failed to archive upload", "run_id", run.ID, "error", err)
		} else {
			run.ObjectKey = &key
		}
	}

	var stats repository.RunStats

	parseStart := time.Now()
	extracted, err := extractor.Extract(input.Data, input.MIMEType, input.FileName)
	if err != nil {
		return s.failRun(ctx, run, stats, err)
	}
	hashed := canonical.CanonicalizeAndHash(extracted)
	stats.ParseDurationMS = time.Since(parseStart).Milliseconds()
	stats.TotalRecords = len(hashed.Records)
	s.metrics.observeParse(time.Since(parseStart), len(hashed.Records))

	inserted, err := s.insertRawRecords(ctx, input.SourceSystem, hashed.Records)
	if err != nil {
		return s.failRun(ctx, run, stats, err)
	}
	stats.InsertedRecords = inserted
	stats.DuplicateRecords = stats.TotalRecords - inserted
	s.metrics.countRows(inserted, stats.DuplicateRecords)

	outcomes := deriver.DeriveAll(hashed.Records, deriver.Options{
		NormalizationVersion: input.NormalizationVersion,
		DefaultCurrency:      input.DefaultCurrency,
	})
	candidates := make([]deriver.TransactionCandidate, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Candidate != nil {
			candidates = append(candidates, *outcome.Candidate)
			continue
		}
		s.metrics.countSkip(string(outcome.Skipped))
		s.logger.Debug("row skipped during derivation",
			"run_id", run.ID, "row_index", outcome.RowIndex, "reason", outcome.Skipped)
	}
	stats.NormalizedCandidateRecords = len(candidates)

	insertedTx, err := s.insertTransactions(ctx, input.SourceSystem, candidates)
	if err != nil {
		return s.failRun(ctx, run, stats, err)
	}
	stats.NormalizedInsertedRecords = insertedTx
	s.metrics.countCandidates(insertedTx)

	status := repository.RunSucceeded
	if stats.TotalRecords > 0 && stats.NormalizedCandidateRecords < stats.TotalRecords {
		status = repository.RunPartial
	}
	if err := s.repo.FinishRun(ctx, run.ID, status, stats, nil); err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}

	run.Status = status
	run.Stats = stats
	s.logger.Info("ingestion run finished",
		"run_id", run.ID,
		"status", status,
		"total", stats.TotalRecords,
		"inserted", stats.InsertedRecords,
		"duplicates", stats.DuplicateRecords,
		"candidates", stats.NormalizedCandidateRecords,
		"parse_ms", stats.ParseDurationMS)
	return run, nil
}

func (s *IngestService) failRun(ctx context.Context, run *repository.IngestionRun, stats repository.RunStats, cause error) (*repository.IngestionRun, error) {
	msg := cause.Error()
	if err := s.repo.FinishRun(ctx, run.ID, repository.RunFailed, stats, &msg); err != nil {
		s.logger.Warn("failed to mark run failed", "run_id", run.ID, "error", err)
	}
	run.Status = repository.RunFailed
	run.Stats = stats
	run.Error = &msg
	if errors.Is(cause, extractor.ErrUnsupportedFormat) {
		return run, cause
	}
	return nil, cause
}

func (s *IngestService) insertRawRecords(ctx context.Context, sourceSystem string, records []canonical.NormalizedRecord) (int, error) {
	inserted := 0
	for start := 0; start < len(records); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(records) {
			end = len(records)
		}
		n, err := s.repo.BulkInsertRawRecords(ctx, sourceSystem, records[start:end])
		if err != nil {
			return inserted, fmt.Errorf("insert raw records: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

func (s *IngestService) insertTransactions(ctx context.Context, sourceSystem string, candidates []deriver.TransactionCandidate) (int, error) {
	inserted := 0
	for start := 0; start < len(candidates); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		n, err := s.repo.BulkInsertTransactions(ctx, sourceSystem, candidates[start:end])
		if err != nil {
			return inserted, fmt.Errorf("insert transactions: %w", err)
		}
		inserted += n
	}
	return inserted, nil
}

// GetRun fetches a run by ID.
func (s *IngestService) GetRun(ctx context.Context, id uuid.UUID) (*repository.IngestionRun, error) {
	return s.repo.GetRun(ctx, id)
}

// ListTransactions lists persisted candidates for a source system.
func (s *IngestService) ListTransactions(ctx context.Context, sourceSystem string, limit, offset int) ([]*repository.StoredTransaction, error) {
	return s.repo.ListTransactions(ctx, sourceSystem, limit, offset)
}

func objectKey(sourceSystem string, runID uuid.UUID, fileName string) string {
	return fmt.Sprintf("%s/%s_%s", sourceSystem, runID, storage.SanitizeObjectName(fileName))
}
