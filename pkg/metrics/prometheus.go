// Package metrics provides Prometheus instrumentation for a union run.
// Each run owns a registry so repeated runs in one process do not collide.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for FilesScanned.
const (
	FileScanned = "scanned"
	FileSkipped = "skipped"
)

// Label values for Tables.
const (
	TableCreated = "created"
	TableEmpty   = "empty"
	TableSkipped = "skipped"
	TableFailed  = "failed"
)

// Metrics holds the collectors of one run.
type Metrics struct {
	Registry *prometheus.Registry

	// FilesScanned counts input files by outcome.
	FilesScanned *prometheus.CounterVec

	// Tables counts unified tables by outcome.
	Tables *prometheus.CounterVec

	// Conflicts counts divergent column definitions.
	Conflicts prometheus.Counter

	// RowsWritten counts rows materialized in the output.
	RowsWritten prometheus.Counter

	// StatementLatency tracks per-table CREATE TABLE AS SELECT latency.
	StatementLatency prometheus.Histogram

	// RunDuration is the wall time of the last run.
	RunDuration prometheus.Gauge
}

// New registers a fresh set of collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		FilesScanned: f.NewCounterVec(prometheus.CounterOpts{
			Name: "extract_union_files_total",
			Help: "Input files by scan outcome",
		}, []string{"status"}),
		Tables: f.NewCounterVec(prometheus.CounterOpts{
			Name: "extract_union_tables_total",
			Help: "Unified tables by outcome",
		}, []string{"status"}),
		Conflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "extract_union_schema_conflicts_total",
			Help: "Column definitions that diverged from the first one seen",
		}),
		RowsWritten: f.NewCounter(prometheus.CounterOpts{
			Name: "extract_union_rows_written_total",
			Help: "Rows written to the output",
		}),
		StatementLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "extract_union_statement_seconds",
			Help:    "Latency of one table's union statement in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		RunDuration: f.NewGauge(prometheus.GaugeOpts{
			Name: "extract_union_run_duration_seconds",
			Help: "Wall time of the run in seconds",
		}),
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
