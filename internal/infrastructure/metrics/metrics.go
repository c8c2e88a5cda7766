// Package metrics exposes Prometheus instrumentation for a fleet run. It is
// purely additive observability: the engine writes to it but never reads it
// back, so a consumer that never scrapes /metrics sees no behavioural
// difference.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// InFlight is the number of per-instance executors currently running.
	InFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleet_upgrade_instances_in_flight",
			Help: "Number of per-instance executors currently running",
		},
	)

	// DispatchTotal counts worker dispatches by operation.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_upgrade_dispatch_total",
			Help: "Total number of per-instance executors dispatched",
		},
		[]string{"operation"},
	)

	// ResultTotal counts terminal outcomes by operation and status.
	ResultTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleet_upgrade_result_total",
			Help: "Total number of terminal OperationResults by operation and status",
		},
		[]string{"operation", "status"},
	)

	// InstanceDuration observes per-instance executor wall-clock duration,
	// labeled by the terminal status so slow failures are distinguishable
	// from slow successes.
	InstanceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_upgrade_instance_duration_seconds",
			Help:    "Per-instance executor duration in seconds, by terminal status",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s .. ~34min
		},
		[]string{"status"},
	)

	// RunDuration observes whole-fleet run wall-clock duration.
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleet_upgrade_run_duration_seconds",
			Help:    "Whole-run wall-clock duration in seconds, by operation",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(InFlight)
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(ResultTotal)
	prometheus.MustRegister(InstanceDuration)
	prometheus.MustRegister(RunDuration)
}

// Handler returns the HTTP handler a caller can mount to expose metrics for
// scraping. The engine itself never starts a listener.
func Handler() http.Handler {
	return promhttp.Handler()
}
