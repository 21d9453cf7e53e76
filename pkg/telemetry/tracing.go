package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/kiln/pkg/report"
)

// DefaultTracerName is the tracer name used when none is configured.
const DefaultTracerName = "kiln"

// Tracer records flushes, renders and errors as OpenTelemetry spans.
// Observations arrive after the fact, so spans are started and ended with
// explicit timestamps.
type Tracer struct {
	tracer trace.Tracer
	ctx    context.Context
}

var (
	_ report.Observer = (*Tracer)(nil)
	_ report.Reporter = (*Tracer)(nil)
)

// NewTracer uses the global tracer provider. Configure it before the
// runtime starts:
//
//	otel.SetTracerProvider(tp)
//	tracer := telemetry.NewTracer("my-app")
func NewTracer(name string) *Tracer {
	if name == "" {
		name = DefaultTracerName
	}
	return WithTracer(otel.Tracer(name))
}

// WithTracer wraps an existing tracer.
func WithTracer(t trace.Tracer) *Tracer {
	return &Tracer{tracer: t, ctx: context.Background()}
}

// ObserveFlush implements report.Observer.
func (t *Tracer) ObserveFlush(s report.FlushStats) {
	_, span := t.tracer.Start(t.ctx, "kiln.flush",
		trace.WithTimestamp(s.Start),
		trace.WithAttributes(
			attribute.Int("kiln.instances", s.Instances),
			attribute.Int("kiln.watchers", s.Watchers),
			attribute.Int("kiln.cascade", s.Cascade),
		),
	)
	span.End(trace.WithTimestamp(s.Start.Add(s.Duration)))
}

// ObserveRender implements report.Observer.
func (t *Tracer) ObserveRender(s report.RenderStats) {
	_, span := t.tracer.Start(t.ctx, "kiln.render "+componentLabel(s.Component),
		trace.WithTimestamp(s.Start),
		trace.WithAttributes(
			attribute.String("kiln.component", s.Component),
			attribute.Int64("kiln.instance", int64(s.Instance)),
			attribute.String("kiln.phase", string(s.Phase)),
			attribute.Int("kiln.patches", s.Patches),
		),
	)
	if s.Failed {
		span.SetStatus(codes.Error, "render aborted")
	}
	span.End(trace.WithTimestamp(s.Start.Add(s.Duration)))
}

// Report implements report.Reporter. Each error becomes a short span with
// the error recorded on it.
func (t *Tracer) Report(err *report.Error) {
	_, span := t.tracer.Start(t.ctx, "kiln.error",
		trace.WithAttributes(
			attribute.String("kiln.kind", err.Kind.String()),
			attribute.String("kiln.code", err.Code),
			attribute.String("kiln.component", err.Component),
		),
	)
	if err.Hook != "" {
		span.SetAttributes(attribute.String("kiln.hook", err.Hook))
	}
	if err.Expr != "" {
		span.SetAttributes(attribute.String("kiln.expr", err.Expr))
	}
	span.RecordError(err)
	if !err.Warning() {
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
