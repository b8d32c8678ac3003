// Package handler exposes the ingestion pipeline over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Rhymond/go-money"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/extractor"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/repository"
	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest/service"
)

// maxUploadBytes caps multipart uploads (32 MiB).
const maxUploadBytes = 32 << 20

// IngestService is the slice of the service the handler needs.
type IngestService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*repository.IngestionRun, error)
	GetRun(ctx context.Context, id uuid.UUID) (*repository.IngestionRun, error)
	ListTransactions(ctx context.Context, sourceSystem string, limit, offset int) ([]*repository.StoredTransaction, error)
}

// Defaults supply request-level fallbacks from configuration.
type Defaults struct {
	SourceSystem         string
	DefaultCurrency      string
	NormalizationVersion string
}

// IngestHandler handles ingestion HTTP requests.
type IngestHandler struct {
	svc      IngestService
	defaults Defaults
	logger   *slog.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(svc IngestService, defaults Defaults, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{svc: svc, defaults: defaults, logger: logger}
}

// Upload accepts a multipart document and runs the pipeline inline.
// Form fields: file (required), source_system, default_currency,
// normalization_version.
func (h *IngestHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	input := service.IngestInput{
		Data:                 data,
		MIMEType:             header.Header.Get("Content-Type"),
		FileName:             header.Filename,
		SourceSystem:         formOrDefault(r, "source_system", h.defaults.SourceSystem),
		DefaultCurrency:      formOrDefault(r, "default_currency", h.defaults.DefaultCurrency),
		NormalizationVersion: formOrDefault(r, "normalization_version", h.defaults.NormalizationVersion),
	}

	run, err := h.svc.Ingest(r.Context(), input)
	if err != nil {
		if errors.Is(err, extractor.ErrUnsupportedFormat) {
			writeJSON(w, http.StatusUnsupportedMediaType, run)
			return
		}
		h.logger.Error("ingestion failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

// GetRun returns one ingestion run with its stats.
func (h *IngestHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get run", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// transactionView decorates a stored transaction with a display amount.
type transactionView struct {
	*repository.StoredTransaction
	DisplayAmount string `json:"display_amount,omitempty"`
}

// ListTransactions returns persisted candidates for a source system.
func (h *IngestHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	sourceSystem := r.URL.Query().Get("source_system")
	if sourceSystem == "" {
		sourceSystem = h.defaults.SourceSystem
	}
	limit := queryInt(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}
	offset := queryInt(r, "offset", 0)

	txs, err := h.svc.ListTransactions(r.Context(), sourceSystem, limit, offset)
	if err != nil {
		h.logger.Error("failed to list transactions", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, transactionView{
			StoredTransaction: tx,
			DisplayAmount:     displayAmount(tx.Amount, tx.Currency),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": views})
}

// Health is a liveness probe.
func (h *IngestHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// displayAmount renders a fixed-scale decimal amount in its currency's usual
// notation; empty when the currency is not ISO-4217.
func displayAmount(amount, currencyCode string) string {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		return ""
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return ""
	}
	minor := d.Shift(int32(currency.Fraction)).Round(0).IntPart()
	return money.New(minor, currencyCode).Display()
}

func formOrDefault(r *http.Request, field, fallback string) string {
	if v := r.FormValue(field); v != "" {
		return v
	}
	return fallback
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
