// Package metrics records target operations as Prometheus metrics and
// exports them for the node_exporter textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics holds all Prometheus metrics for auto-proxy.
type Metrics struct {
	// Target metrics
	TargetOperations *prometheus.CounterVec

	// Apply metrics
	LastApply       prometheus.Gauge
	LastApplyFailed prometheus.Gauge
	ActiveProfile   *prometheus.GaugeVec

	registry *prometheus.Registry
	now      func() time.Time
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		now:      time.Now,
	}

	m.TargetOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auto_proxy_target_operations_total",
			Help: "Total number of target operations",
		},
		[]string{"target", "operation", "result"},
	)

	m.LastApply = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auto_proxy_last_apply_timestamp_seconds",
			Help: "Unix time of the last set or unset run",
		},
	)

	m.LastApplyFailed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auto_proxy_last_apply_failed_targets",
			Help: "Number of targets that failed in the last run",
		},
	)

	m.ActiveProfile = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "auto_proxy_active_profile_info",
			Help: "Profile applied by the last run (1 = active)",
		},
		[]string{"profile", "network"},
	)

	m.registry.MustRegister(
		m.TargetOperations,
		m.LastApply,
		m.LastApplyFailed,
		m.ActiveProfile,
	)

	return m
}

// Observe counts one target operation. It satisfies target.Observer.
func (m *Metrics) Observe(target, operation string, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.TargetOperations.WithLabelValues(target, operation, result).Inc()
}

// RecordRun stamps the end of a set or unset run.
func (m *Metrics) RecordRun(failed int) {
	m.LastApply.Set(float64(m.now().Unix()))
	m.LastApplyFailed.Set(float64(failed))
}

// SetActiveProfile marks the applied profile. An empty profile clears the
// gauge.
func (m *Metrics) SetActiveProfile(profile, network string) {
	m.ActiveProfile.Reset()
	if profile != "" {
		m.ActiveProfile.WithLabelValues(profile, network).Set(1)
	}
}

// WriteTextfile writes all metrics in the text exposition format. The file
// is replaced atomically so a concurrent scrape never sees a partial file.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
