package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the Convoy engine.
type Metrics struct {
	config MetricsConfig

	// Module invocation metrics
	invocations        *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	activeInvocations  prometheus.Gauge

	// Inventory metrics
	resolutions      *prometheus.CounterVec
	sourceLoads      *prometheus.CounterVec
	inventoryHosts   prometheus.Gauge
	inventoryGroups  prometheus.Gauge
	hostVarsLookups  *prometheus.CounterVec

	// Cache metrics
	cacheOps *prometheus.CounterVec

	// Policy metrics
	policyDecisions *prometheus.CounterVec

	registry *prometheus.Registry
}

// Invocation status label values.
const (
	StatusOK       = "ok"
	StatusFailed   = "failed"
	StatusTimeout  = "timeout"
	StatusProtocol = "protocol_error"
	StatusLaunch   = "launch_error"
)

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "module_invocations_total",
				Help:      "Total number of module invocations",
			},
			[]string{"status"},
		),
		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "module_invocation_duration_seconds",
				Help:      "Duration of module invocations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
		activeInvocations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_invocations",
				Help:      "Current number of in-flight module invocations",
			},
		),

		resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inventory_resolutions_total",
				Help:      "Total number of inventory resolution passes",
			},
			[]string{"status"},
		),
		sourceLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inventory_source_loads_total",
				Help:      "Total number of inventory source loads",
			},
			[]string{"type", "status"},
		),
		inventoryHosts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inventory_hosts",
				Help:      "Number of hosts in the last resolved inventory",
			},
		),
		inventoryGroups: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inventory_groups",
				Help:      "Number of groups in the last resolved inventory",
			},
		),
		hostVarsLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "host_vars_lookups_total",
				Help:      "Total number of host variable lookups",
			},
			[]string{"result"},
		),

		cacheOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_operations_total",
				Help:      "Total number of cache operations",
			},
			[]string{"kind", "result"},
		),

		policyDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_decisions_total",
				Help:      "Total number of policy decisions",
			},
			[]string{"decision"},
		),
	}

	registry.MustRegister(
		m.invocations,
		m.invocationDuration,
		m.activeInvocations,
		m.resolutions,
		m.sourceLoads,
		m.inventoryHosts,
		m.inventoryGroups,
		m.hostVarsLookups,
		m.cacheOps,
		m.policyDecisions,
	)

	return m, nil
}

// Module Invocation Metrics

// RecordInvocation records a completed module invocation.
func (m *Metrics) RecordInvocation(status string, duration time.Duration) {
	if m.invocations == nil {
		return
	}
	m.invocations.WithLabelValues(status).Inc()
	m.invocationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// InvocationStarted increments the in-flight invocation gauge.
func (m *Metrics) InvocationStarted() {
	if m.activeInvocations == nil {
		return
	}
	m.activeInvocations.Inc()
}

// InvocationFinished decrements the in-flight invocation gauge.
func (m *Metrics) InvocationFinished() {
	if m.activeInvocations == nil {
		return
	}
	m.activeInvocations.Dec()
}

// Inventory Metrics

// RecordResolution records an inventory resolution pass.
func (m *Metrics) RecordResolution(status string) {
	if m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(status).Inc()
}

// RecordSourceLoad records the load of one inventory source.
func (m *Metrics) RecordSourceLoad(sourceType, status string) {
	if m.sourceLoads == nil {
		return
	}
	m.sourceLoads.WithLabelValues(sourceType, status).Inc()
}

// SetInventorySize records the size of the last resolved inventory.
func (m *Metrics) SetInventorySize(hosts, groups int) {
	if m.inventoryHosts == nil {
		return
	}
	m.inventoryHosts.Set(float64(hosts))
	m.inventoryGroups.Set(float64(groups))
}

// RecordHostVarsLookup records a host variable lookup (hit, miss, error).
func (m *Metrics) RecordHostVarsLookup(result string) {
	if m.hostVarsLookups == nil {
		return
	}
	m.hostVarsLookups.WithLabelValues(result).Inc()
}

// Cache Metrics

// RecordCacheOp records a cache operation by kind (invocation, host_vars) and
// result (hit, miss, store, purge).
func (m *Metrics) RecordCacheOp(kind, result string) {
	if m.cacheOps == nil {
		return
	}
	m.cacheOps.WithLabelValues(kind, result).Inc()
}

// Policy Metrics

// RecordPolicyDecision records an allow or deny decision.
func (m *Metrics) RecordPolicyDecision(decision string) {
	if m.policyDecisions == nil {
		return
	}
	m.policyDecisions.WithLabelValues(decision).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
