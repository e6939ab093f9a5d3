// Package metrics holds per-run pipeline counters. A nil *Metrics is valid
// and records nothing.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics provides observability for one pipeline run.
type Metrics struct {
	registry *prometheus.Registry

	PagesFetched     prometheus.Counter
	PagesSkipped     prometheus.Counter
	RecordsSkipped   *prometheus.CounterVec
	RowsWritten      *prometheus.CounterVec
	BatchesFailed    prometheus.Counter
	KeyRotations     prometheus.Counter
	StageDuration    *prometheus.HistogramVec
	LastRunTimestamp prometheus.Gauge
}

// New creates a Metrics instance on its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PagesFetched: f.NewCounter(prometheus.CounterOpts{
			Name: "roi_ingest_catalog_pages_fetched_total",
			Help: "Catalog pages fetched successfully",
		}),
		PagesSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "roi_ingest_catalog_pages_skipped_total",
			Help: "Catalog pages skipped after exhausting retries",
		}),
		RecordsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roi_ingest_records_skipped_total",
			Help: "Records skipped, by stage and reason",
		}, []string{"stage", "reason"}),
		RowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roi_ingest_rows_written_total",
			Help: "Rows written, by table and outcome",
		}, []string{"table", "outcome"}),
		BatchesFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "roi_ingest_wage_batches_failed_total",
			Help: "Wage batches that failed and were skipped",
		}),
		KeyRotations: f.NewCounter(prometheus.CounterOpts{
			Name: "roi_ingest_wage_key_rotations_total",
			Help: "Credential rotations caused by quota exhaustion",
		}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roi_ingest_stage_duration_seconds",
			Help:    "Duration of pipeline stages",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"stage"}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "roi_ingest_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry exposes the underlying registry for tests and pushing.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// PageFetched records a fetched catalog page.
func (m *Metrics) PageFetched() {
	if m != nil {
		m.PagesFetched.Inc()
	}
}

// PageSkipped records a skipped catalog page.
func (m *Metrics) PageSkipped() {
	if m != nil {
		m.PagesSkipped.Inc()
	}
}

// RecordSkipped records a record dropped by a stage.
func (m *Metrics) RecordSkipped(stage, reason string) {
	if m != nil {
		m.RecordsSkipped.WithLabelValues(stage, reason).Inc()
	}
}

// RowWritten adds n rows with an outcome (inserted, updated, existing) to a table.
func (m *Metrics) RowWritten(table, outcome string, n int) {
	if m != nil && n > 0 {
		m.RowsWritten.WithLabelValues(table, outcome).Add(float64(n))
	}
}

// BatchFailed records a skipped wage batch.
func (m *Metrics) BatchFailed() {
	if m != nil {
		m.BatchesFailed.Inc()
	}
}

// KeyRotated records a credential rotation.
func (m *Metrics) KeyRotated() {
	if m != nil {
		m.KeyRotations.Inc()
	}
}

// ObserveStage records the duration of a stage.
// Call with time.Now() at the start of the stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m != nil {
		m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// Push sends every metric to a Pushgateway under job, grouped by run id.
// An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job, runID string) error {
	if m == nil || url == "" {
		return nil
	}
	m.LastRunTimestamp.SetToCurrentTime()
	return push.New(url, job).
		Gatherer(m.registry).
		Grouping("run_id", runID).
		PushContext(ctx)
}
