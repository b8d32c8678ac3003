package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's prometheus instruments. A nil *Metrics is a
// no-op so tests and tooling can skip registration.
type Metrics struct {
	rowsInserted       prometheus.Counter
	rowsDuplicate      prometheus.Counter
	candidatesInserted prometheus.Counter
	rowsSkipped        *prometheus.CounterVec
	parseDuration      prometheus.Histogram
	documentRows       prometheus.Histogram
}

// NewMetrics creates and registers the ingestion metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_rows_inserted_total",
			Help: "Canonical raw rows inserted (deduplicated by content hash).",
		}),
		rowsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_rows_duplicate_total",
			Help: "Rows whose content hash already existed for the source system.",
		}),
		candidatesInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_transactions_inserted_total",
			Help: "Normalized transaction candidates inserted.",
		}),
		rowsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_rows_skipped_total",
			Help: "Rows that produced no transaction candidate.",
		}, []string{"reason"}),
		parseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_parse_duration_seconds",
			Help:    "Time spent extracting and hashing one document.",
			Buckets: prometheus.DefBuckets,
		}),
		documentRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ingest_document_rows",
			Help:    "Raw rows extracted per document.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	reg.MustRegister(m.rowsInserted, m.rowsDuplicate, m.candidatesInserted,
		m.rowsSkipped, m.parseDuration, m.documentRows)
	return m
}

func (m *Metrics) observeParse(d time.Duration, rows int) {
	if m == nil {
		return
	}
	m.parseDuration.Observe(d.Seconds())
	m.documentRows.Observe(float64(rows))
}

func (m *Metrics) countRows(inserted, duplicate int) {
	if m == nil {
		return
	}
	m.rowsInserted.Add(float64(inserted))
	m.rowsDuplicate.Add(float64(duplicate))
}

func (m *Metrics) countCandidates(inserted int) {
	if m == nil {
		return
	}
	m.candidatesInserted.Add(float64(inserted))
}

func (m *Metrics) countSkip(reason string) {
	if m == nil {
		return
	}
	m.rowsSkipped.WithLabelValues(reason).Inc()
}
