// Package repository provides durable storage for ingestion runs, canonical
// raw rows, and derived transactions. Uniqueness is hash-keyed: the database
// enforces (source_system, row_sha256) for raw rows and (source_system,
// row_sha256, normalization_version) for transactions, and batch inserts are
// conflict-ignoring so repeated or concurrent runs over the same document
// never duplicate data.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/canonical"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/deriver"
)

// RunStatus is the lifecycle state of an ingestion run.
type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunPartial   RunStatus = "partial"
)

// RunStats captures pipeline outcome counts and timing for one run.
type RunStats struct {
	TotalRecords               int   `json:"total_records"`
	InsertedRecords            int   `json:"inserted_records"`
	DuplicateRecords           int   `json:"duplicate_records"`
	NormalizedCandidateRecords int   `json:"normalized_candidate_records"`
	NormalizedInsertedRecords  int   `json:"normalized_inserted_records"`
	ParseDurationMS            int64 `json:"parse_duration_ms"`
}

// IngestionRun is the lifecycle record for one document ingestion.
type IngestionRun struct {
	ID           uuid.UUID  `json:"id"`
	SourceSystem string     `json:"source_system"`
	FileName     string     `json:"file_name"`
	MIMEType     string     `json:"mime_type"`
	ObjectKey    *string    `json:"object_key"`
	Status       RunStatus  `json:"status"`
	Stats        RunStats   `json:"stats"`
	Error        *string    `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// StoredTransaction is a persisted normalized transaction candidate.
type StoredTransaction struct {
	ID                   uuid.UUID `json:"id"`
	SourceSystem         string    `json:"source_system"`
	RowSHA256            string    `json:"row_sha256"`
	OccurredAt           *string   `json:"occurred_at"`
	Amount               string    `json:"amount"`
	Currency             string    `json:"currency"`
	Description          string    `json:"description"`
	Merchant             *string   `json:"merchant"`
	AccountID            *string   `json:"account_id"`
	Category             *string   `json:"category"`
	NormalizationVersion string    `json:"normalization_version"`
	CreatedAt            time.Time `json:"created_at"`
}

// IngestRepository defines data access for the ingestion pipeline.
type IngestRepository interface {
	CreateRun(ctx context.Context, run *IngestionRun) error
	StartRun(ctx context.Context, id uuid.UUID) error
	FinishRun(ctx context.Context, id uuid.UUID, status RunStatus, stats RunStats, errMsg *string) error
	GetRun(ctx context.Context, id uuid.UUID) (*IngestionRun, error)

	// BulkInsertRawRecords inserts hashed rows with conflict-ignore
	// semantics and returns how many were actually inserted; the remainder
	// were duplicates under (source_system, row_sha256).
	BulkInsertRawRecords(ctx context.Context, sourceSystem string, records []canonical.NormalizedRecord) (int, error)

	// BulkInsertTransactions inserts candidates with conflict-ignore
	// semantics keyed by (source_system, row_sha256, normalization_version)
	// and returns the inserted count.
	BulkInsertTransactions(ctx context.Context, sourceSystem string, candidates []deriver.TransactionCandidate) (int, error)

	ListTransactions(ctx context.Context, sourceSystem string, limit, offset int) ([]*StoredTransaction, error)

	// SweepStuckRuns fails runs left in running state longer than olderThan.
	SweepStuckRuns(ctx context.Context, olderThan time.Duration) (int64, error)
}
