// Package metrics exposes Prometheus collectors for the orchestration
// run, grounded on the teacher's internal/metrics/metrics.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RunMetrics holds the run's Prometheus collectors. The prometheus
// reporter updates UnitsTotal, BackupBytesTotal and SyncBytesTotal from
// status and size events; RunDuration, LastRunTimestamp and
// LastRunSuccessful are registered but nothing in this tree sets them.
type RunMetrics struct {
	RunDuration       prometheus.Histogram
	UnitsTotal        *prometheus.CounterVec // labels: role, status
	BackupBytesTotal  prometheus.Counter
	SyncBytesTotal    prometheus.Counter
	LastRunTimestamp  prometheus.Gauge
	LastRunSuccessful prometheus.Gauge
}

// NewRunMetrics registers the default collectors.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vbackup_run_duration_seconds",
			Help:    "Duration of a full orchestration run in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}),
		UnitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vbackup_units_total",
			Help: "Total number of executable units processed, by role and terminal status",
		}, []string{"role", "status"}),
		BackupBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vbackup_backup_bytes_total",
			Help: "Total bytes written by backup modules",
		}),
		SyncBytesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vbackup_sync_bytes_total",
			Help: "Total bytes transferred by sync modules",
		}),
		LastRunTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vbackup_last_run_timestamp",
			Help: "Unix timestamp of the last completed run",
		}),
		LastRunSuccessful: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "vbackup_last_run_successful",
			Help: "1 if the last run completed with no operational errors, 0 otherwise",
		}),
	}
}
