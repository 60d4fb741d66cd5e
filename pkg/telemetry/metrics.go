package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for empack runs.
type Metrics struct {
	config MetricsConfig

	// Build metrics
	packagesBuilt     *prometheus.CounterVec
	resourcesRendered *prometheus.CounterVec
	buildDuration     *prometheus.HistogramVec

	// Override metrics
	overrideRuns       *prometheus.CounterVec
	overrideRowsMerged *prometheus.CounterVec
	overrideDuration   *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance; all record methods nil-check their collectors.
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "empack"
	}

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.packagesBuilt = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packages_built_total",
			Help:      "Total number of datapackages rendered, by outcome.",
		},
		[]string{"status"},
	)

	m.resourcesRendered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_rendered_total",
			Help:      "Total number of resource files written, by kind.",
		},
		[]string{"kind"},
	)

	m.buildDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of scenario builds in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	m.overrideRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "override_runs_total",
			Help:      "Total number of override runs, by mode and outcome.",
		},
		[]string{"mode", "status"},
	)

	m.overrideRowsMerged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "override_rows_merged_total",
			Help:      "Total number of target rows updated by overrides.",
		},
		[]string{"resource"},
	)

	m.overrideDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "override_duration_seconds",
			Help:      "Duration of override runs in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	collectors := []prometheus.Collector{
		m.packagesBuilt,
		m.resourcesRendered,
		m.buildDuration,
		m.overrideRuns,
		m.overrideRowsMerged,
		m.overrideDuration,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry returns the underlying Prometheus registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordPackageBuilt records a completed (or failed) package build.
func (m *Metrics) RecordPackageBuilt(status string, seconds float64) {
	if m.packagesBuilt == nil {
		return
	}
	m.packagesBuilt.WithLabelValues(status).Inc()
	m.buildDuration.WithLabelValues(status).Observe(seconds)
}

// RecordResourceRendered records one resource file written.
func (m *Metrics) RecordResourceRendered(kind string) {
	if m.resourcesRendered == nil {
		return
	}
	m.resourcesRendered.WithLabelValues(kind).Inc()
}

// RecordOverrideRun records a completed (or failed) override run.
func (m *Metrics) RecordOverrideRun(mode, status string, seconds float64) {
	if m.overrideRuns == nil {
		return
	}
	m.overrideRuns.WithLabelValues(mode, status).Inc()
	m.overrideDuration.WithLabelValues(mode).Observe(seconds)
}

// RecordRowsMerged records the number of target rows updated in a resource.
func (m *Metrics) RecordRowsMerged(resource string, n int) {
	if m.overrideRowsMerged == nil || n <= 0 {
		return
	}
	m.overrideRowsMerged.WithLabelValues(resource).Add(float64(n))
}
