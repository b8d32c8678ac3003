package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/canonical"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/deriver"
)

// DB is the subset of pgxpool.Pool the repository needs. Narrowed so tests
// can substitute pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresIngestRepository implements IngestRepository on PostgreSQL.
type PostgresIngestRepository struct {
	db DB
}

// NewPostgresIngestRepository creates a PostgreSQL-backed ingest repository.
func NewPostgresIngestRepository(db DB) *PostgresIngestRepository {
	return &PostgresIngestRepository{db: db}
}

// CreateRun inserts a queued run record.
func (r *PostgresIngestRepository) CreateRun(ctx context.Context, run *IngestionRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = RunQueued
	}

	query := `
		INSERT INTO ingestion_runs (id, source_system, file_name, mime_type, object_key, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		run.ID, run.SourceSystem, run.FileName, run.MIMEType, run.ObjectKey, run.Status,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingestion run: %w", err)
	}
	return nil
}

// StartRun moves a run to running and stamps started_at.
func (r *PostgresIngestRepository) StartRun(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE ingestion_runs SET status = $2, started_at = NOW() WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id, RunRunning); err != nil {
		return fmt.Errorf("failed to start ingestion run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status and stats for a run.
func (r *PostgresIngestRepository) FinishRun(ctx context.Context, id uuid.UUID, status RunStatus, stats RunStats, errMsg *string) error {
	query := `
		UPDATE ingestion_runs SET
			status = $2,
			total_records = $3,
			inserted_records = $4,
			duplicate_records = $5,
			normalized_candidate_records = $6,
			normalized_inserted_records = $7,
			parse_duration_ms = $8,
			error = $9,
			finished_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, status,
		stats.TotalRecords, stats.InsertedRecords, stats.DuplicateRecords,
		stats.NormalizedCandidateRecords, stats.NormalizedInsertedRecords,
		stats.ParseDurationMS, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to finish ingestion run: %w", err)
	}
	return nil
}

// GetRun fetches a run by ID; nil when not found.
func (r *PostgresIngestRepository) GetRun(ctx context.Context, id uuid.UUID) (*IngestionRun, error) {
	query := `
		SELECT id, source_system, file_name, mime_type, object_key, status,
			total_records, inserted_records, duplicate_records,
			normalized_candidate_records, normalized_inserted_records,
			parse_duration_ms, error, created_at, started_at, finished_at
		FROM ingestion_runs WHERE id = $1
	`
	var run IngestionRun
	err := r.db.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.SourceSystem, &run.FileName, &run.MIMEType, &run.ObjectKey, &run.Status,
		&run.Stats.TotalRecords, &run.Stats.InsertedRecords, &run.Stats.DuplicateRecords,
		&run.Stats.NormalizedCandidateRecords, &run.Stats.NormalizedInsertedRecords,
		&run.Stats.ParseDurationMS, &run.Error, &run.CreatedAt, &run.StartedAt, &run.FinishedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ingestion run: %w", err)
	}
	return &run, nil
}

// BulkInsertRawRecords batch-inserts hashed rows, ignoring conflicts on
// (source_system, row_sha256). Returns the number actually inserted.
func (r *PostgresIngestRepository) BulkInsertRawRecords(ctx context.Context, sourceSystem string, records []canonical.NormalizedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO raw_records (source_system, row_sha256, row_index, raw_json)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_system, row_sha256) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, rec := range records {
		rawJSON, err := json.Marshal(rec.RawJSON)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal raw row %d: %w", rec.RowIndex, err)
		}
		batch.Queue(query, sourceSystem, rec.RowSHA256, rec.RowIndex, rawJSON)
	}

	return r.execCountingBatch(ctx, batch, "raw records")
}

// BulkInsertTransactions batch-inserts candidates, ignoring conflicts on
// (source_system, row_sha256, normalization_version).
func (r *PostgresIngestRepository) BulkInsertTransactions(ctx context.Context, sourceSystem string, candidates []deriver.TransactionCandidate) (int, error) {
	if len(candidates) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO normalized_transactions (
			source_system, row_sha256, occurred_at, amount, currency,
			description, merchant, account_id, category, normalization_version
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source_system, row_sha256, normalization_version) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, c := range candidates {
		batch.Queue(query, sourceSystem, c.RowSHA256, c.OccurredAt, c.Amount, c.Currency,
			c.Description, c.Merchant, c.AccountID, c.Category, c.NormalizationVersion)
	}

	return r.execCountingBatch(ctx, batch, "normalized transactions")
}

func (r *PostgresIngestRepository) execCountingBatch(ctx context.Context, batch *pgx.Batch, what string) (int, error) {
	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("failed to insert %s: %w", what, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListTransactions returns persisted candidates for a source system, newest
// first.
func (r *PostgresIngestRepository) ListTransactions(ctx context.Context, sourceSystem string, limit, offset int) ([]*StoredTransaction, error) {
	query := `
		SELECT id, source_system, row_sha256, occurred_at, amount, currency,
			description, merchant, account_id, category, normalization_version, created_at
		FROM normalized_transactions
		WHERE source_system = $1
		ORDER BY created_at DESC, row_sha256
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, sourceSystem, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []*StoredTransaction
	for rows.Next() {
		var tx StoredTransaction
		if err := rows.Scan(
			&tx.ID, &tx.SourceSystem, &tx.RowSHA256, &tx.OccurredAt, &tx.Amount, &tx.Currency,
			&tx.Description, &tx.Merchant, &tx.AccountID, &tx.Category,
			&tx.NormalizationVersion, &tx.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, &tx)
	}
	return txs, rows.Err()
}

// SweepStuckRuns fails runs that have been running longer than olderThan.
func (r *PostgresIngestRepository) SweepStuckRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE ingestion_runs
		SET status = $1, error = 'run exceeded maximum duration', finished_at = NOW()
		WHERE status = $2 AND started_at < NOW() - $3::interval
	`
	interval := fmt.Sprintf("%d seconds", int64(olderThan.Seconds()))
	tag, err := r.db.Exec(ctx, query, RunFailed, RunRunning, interval)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stuck runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
