package report

import (
	"context"
	"log/slog"
	"time"
)

// Reporter receives every runtime error. Implementations must not panic and
// must not block the loop for long.
type Reporter interface {
	Report(err *Error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(err *Error)

// Report calls f(err).
func (f ReporterFunc) Report(err *Error) {
	f(err)
}

// Multi fans a report out to several reporters in order.
type Multi []Reporter

// Report forwards err to every non-nil reporter.
func (m Multi) Report(err *Error) {
	for _, r := range m {
		if r != nil {
			r.Report(err)
		}
	}
}

// Discard drops every report.
var Discard Reporter = ReporterFunc(func(*Error) {})

// LogReporter writes reports to a slog.Logger. Warnings are logged at
// LevelWarn, everything else at LevelError.
type LogReporter struct {
	logger *slog.Logger
}

// NewLogReporter returns a LogReporter. A nil logger means slog.Default().
func NewLogReporter(logger *slog.Logger) *LogReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogReporter{logger: logger}
}

// Report implements Reporter.
func (r *LogReporter) Report(err *Error) {
	level := slog.LevelError
	if err.Warning() {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("kind", err.Kind.String()),
	}
	if err.Code != "" {
		attrs = append(attrs, slog.String("code", err.Code))
	}
	if err.Component != "" {
		attrs = append(attrs, slog.String("component", err.Component))
	}
	if err.Instance != 0 {
		attrs = append(attrs, slog.Uint64("instance", err.Instance))
	}
	if err.Hook != "" {
		attrs = append(attrs, slog.String("hook", err.Hook))
	}
	if err.Expr != "" {
		attrs = append(attrs, slog.String("expr", err.Expr))
	}
	if err.Err != nil {
		attrs = append(attrs, slog.String("error", err.Err.Error()))
	}
	if err.Panic != nil {
		attrs = append(attrs, slog.Any("panic", err.Panic))
	}
	if len(err.Stack) > 0 && r.logger.Enabled(context.Background(), slog.LevelDebug) {
		attrs = append(attrs, slog.String("stack", string(err.Stack)))
	}

	r.logger.LogAttrs(context.Background(), level, "kiln runtime error", attrs...)
}

// =============================================================================
// Observation
// =============================================================================

// Phase distinguishes the initial render of an instance from re-renders.
type Phase string

const (
	PhaseMount  Phase = "mount"
	PhaseUpdate Phase = "update"
)

// FlushStats describes one scheduler flush.
type FlushStats struct {
	// Instances is the number of instances rendered in the flush.
	Instances int

	// Watchers is the number of signals whose watchers were committed.
	Watchers int

	// Cascade is how many flushes in a row were scheduled from inside a flush.
	Cascade int

	Start    time.Time
	Duration time.Duration
}

// RenderStats describes one instance render pass.
type RenderStats struct {
	Component string
	Instance  uint64
	Phase     Phase

	// Patches is the number of patches applied. Zero for a redundant render.
	Patches int

	// Failed is set when evaluation aborted the pass.
	Failed bool

	Start    time.Time
	Duration time.Duration
}

// Observer receives timing information for flushes and renders. The telemetry
// package provides Prometheus and OpenTelemetry implementations.
type Observer interface {
	ObserveFlush(FlushStats)
	ObserveRender(RenderStats)
}

// Observers fans out to several observers.
type Observers []Observer

// ObserveFlush implements Observer.
func (o Observers) ObserveFlush(s FlushStats) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveFlush(s)
		}
	}
}

// ObserveRender implements Observer.
func (o Observers) ObserveRender(s RenderStats) {
	for _, obs := range o {
		if obs != nil {
			obs.ObserveRender(s)
		}
	}
}

type nopObserver struct{}

func (nopObserver) ObserveFlush(FlushStats)   {}
func (nopObserver) ObserveRender(RenderStats) {}

// NopObserver ignores all observations.
var NopObserver Observer = nopObserver{}
