package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/kiln/pkg/report"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "kiln").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush and render durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures Metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "kiln",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics collects runtime metrics. It is a report.Observer for flush and
// render timings and a report.Reporter counting errors; the live server
// feeds it session and frame counts.
type Metrics struct {
	flushesTotal   prometheus.Counter
	flushDuration  prometheus.Histogram
	flushInstances prometheus.Histogram
	updateLoops    prometheus.Counter

	rendersTotal   *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
	patchesTotal   *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	activeSessions prometheus.Gauge
	framesSent     *prometheus.CounterVec
	eventsReceived prometheus.Counter
}

var (
	_ report.Observer = (*Metrics)(nil)
	_ report.Reporter = (*Metrics)(nil)
)

// NewMetrics registers the collectors and returns them.
//
// Metrics collected:
//   - kiln_flushes_total: Counter of scheduler flushes
//   - kiln_flush_duration_seconds: Histogram of flush duration
//   - kiln_flush_instances: Histogram of instances rendered per flush
//   - kiln_renders_total: Counter of render passes by component, phase and result
//   - kiln_render_duration_seconds: Histogram of render duration by component
//   - kiln_patches_total: Counter of applied patches by component
//   - kiln_errors_total: Counter of reported errors by kind and code
//   - kiln_update_loops_total: Counter of aborted flush cascades
//   - kiln_active_sessions: Gauge of live sessions
//   - kiln_frames_sent_total: Counter of frames sent to clients by type
//   - kiln_events_received_total: Counter of client events
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}
	}
	histogram := func(name, help string, buckets []float64) prometheus.HistogramOpts {
		return prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
			Buckets:     buckets,
		}
	}

	return &Metrics{
		flushesTotal:  factory.NewCounter(counter("flushes_total", "Total number of scheduler flushes")),
		flushDuration: factory.NewHistogram(histogram("flush_duration_seconds", "Scheduler flush duration in seconds", config.Buckets)),
		flushInstances: factory.NewHistogram(histogram("flush_instances", "Component instances rendered per flush",
			[]float64{1, 2, 5, 10, 25, 50, 100})),
		updateLoops: factory.NewCounter(counter("update_loops_total", "Total number of flush cascades aborted as update loops")),

		rendersTotal: factory.NewCounterVec(counter("renders_total", "Total number of component render passes"),
			[]string{"component", "phase", "result"}),
		renderDuration: factory.NewHistogramVec(histogram("render_duration_seconds", "Component render duration in seconds", config.Buckets),
			[]string{"component"}),
		patchesTotal: factory.NewCounterVec(counter("patches_total", "Total number of patches applied to the live tree"),
			[]string{"component"}),

		errorsTotal: factory.NewCounterVec(counter("errors_total", "Total number of reported runtime errors"),
			[]string{"kind", "code"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of live sessions",
			ConstLabels: config.ConstLabels,
		}),
		framesSent: factory.NewCounterVec(counter("frames_sent_total", "Total number of frames sent to clients"),
			[]string{"type"}),
		eventsReceived: factory.NewCounter(counter("events_received_total", "Total number of events received from clients")),
	}
}

// ObserveFlush implements report.Observer.
func (m *Metrics) ObserveFlush(s report.FlushStats) {
	m.flushesTotal.Inc()
	m.flushDuration.Observe(s.Duration.Seconds())
	m.flushInstances.Observe(float64(s.Instances))
}

// ObserveRender implements report.Observer.
func (m *Metrics) ObserveRender(s report.RenderStats) {
	result := "ok"
	if s.Failed {
		result = "failed"
	}
	name := componentLabel(s.Component)
	m.rendersTotal.WithLabelValues(name, string(s.Phase), result).Inc()
	m.renderDuration.WithLabelValues(name).Observe(s.Duration.Seconds())
	if s.Patches > 0 {
		m.patchesTotal.WithLabelValues(name).Add(float64(s.Patches))
	}
}

// Report implements report.Reporter.
func (m *Metrics) Report(err *report.Error) {
	m.errorsTotal.WithLabelValues(err.Kind.String(), err.Code).Inc()
	if err.Code == report.CodeUpdateLoop {
		m.updateLoops.Inc()
	}
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	m.activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	m.activeSessions.Dec()
}

// FrameSent counts one frame of the given type.
func (m *Metrics) FrameSent(frameType string) {
	m.framesSent.WithLabelValues(frameType).Inc()
}

// EventReceived counts one client event.
func (m *Metrics) EventReceived() {
	m.eventsReceived.Inc()
}

func componentLabel(name string) string {
	if name == "" {
		return "anonymous"
	}
	return name
}
