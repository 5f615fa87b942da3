package worker

import (
	"time"

	"vetcare/internal/pkg/config"
	"vetcare/internal/usecase/schedule"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WorkerMetrics exports the worker's configuration state and scheduler
// activity. It implements schedule.TickObserver.
//
// Metrics:
//   - worker_config_*: see config.ConfigMetrics
//   - worker_scan_runs_total{scan,status}: scans by result (success/failure)
//   - worker_scan_duration_seconds{scan}: scan duration
//   - worker_scan_items_total{scan,outcome}: items by outcome (notified/skipped/failed)
//   - worker_scan_last_success_timestamp{scan}: time of the last successful scan
//   - worker_ticks_skipped_total: ticks skipped because the previous one was running
type WorkerMetrics struct {
	*config.ConfigMetrics

	ScanRunsTotal       *prometheus.CounterVec
	ScanDurationSeconds *prometheus.HistogramVec
	ScanItemsTotal      *prometheus.CounterVec
	ScanLastSuccess     *prometheus.GaugeVec
	TicksSkippedTotal   prometheus.Counter
}

// NewWorkerMetrics registers the worker metrics with the default registry.
func NewWorkerMetrics() *WorkerMetrics {
	return NewWorkerMetricsWith(prometheus.DefaultRegisterer)
}

// NewWorkerMetricsWith registers the worker metrics with reg.
func NewWorkerMetricsWith(reg prometheus.Registerer) *WorkerMetrics {
	factory := promauto.With(reg)
	return &WorkerMetrics{
		ConfigMetrics: config.NewConfigMetricsWith("worker", reg),

		ScanRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_scan_runs_total",
			Help: "Total number of scheduler scans by scan and status (success/failure)",
		}, []string{"scan", "status"}),

		ScanDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "worker_scan_duration_seconds",
			Help:    "Duration of scheduler scans in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 60, 300, 900},
		}, []string{"scan"}),

		ScanItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_scan_items_total",
			Help: "Total number of items handled by scheduler scans by outcome",
		}, []string{"scan", "outcome"}),

		ScanLastSuccess: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_scan_last_success_timestamp",
			Help: "Unix timestamp of the last successful scan",
		}, []string{"scan"}),

		TicksSkippedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "worker_ticks_skipped_total",
			Help: "Total number of ticks skipped because the previous tick was still running",
		}),
	}
}

// ObserveScan implements schedule.TickObserver.
func (m *WorkerMetrics) ObserveScan(scan string, stats schedule.ScanStats, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.ScanRunsTotal.WithLabelValues(scan, status).Inc()
	m.ScanDurationSeconds.WithLabelValues(scan).Observe(duration.Seconds())
	m.ScanItemsTotal.WithLabelValues(scan, "notified").Add(float64(stats.Notified))
	m.ScanItemsTotal.WithLabelValues(scan, "skipped").Add(float64(stats.Skipped))
	m.ScanItemsTotal.WithLabelValues(scan, "failed").Add(float64(stats.Failed))
	if err == nil {
		m.ScanLastSuccess.WithLabelValues(scan).SetToCurrentTime()
	}
}

// ObserveTickSkipped implements schedule.TickObserver.
func (m *WorkerMetrics) ObserveTickSkipped() {
	m.TicksSkippedTotal.Inc()
}
