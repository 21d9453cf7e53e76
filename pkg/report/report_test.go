package report

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	base := errors.New("unknown name count")
	e := &Error{
		Kind:      KindEvaluation,
		Code:      CodeExpressionFailed,
		Component: "counter",
		Expr:      "count + 1",
		Err:       base,
	}

	got := e.Error()
	want := `K020: evaluation error in <counter> at "count + 1": unknown name count`
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(e, base) {
		t.Error("errors.Is should see the wrapped error")
	}
}

func TestRecovered(t *testing.T) {
	e := Recovered(KindHook, CodeHookFailed, "boom")
	if e.Panic != "boom" {
		t.Errorf("Panic = %v, want boom", e.Panic)
	}
	if len(e.Stack) == 0 {
		t.Error("expected a captured stack")
	}
	if !strings.Contains(e.Error(), "panic: boom") {
		t.Errorf("Error() = %q, want panic text", e.Error())
	}

	inner := errors.New("inner")
	e = Recovered(KindHandler, CodeHandlerFailed, inner)
	if !errors.Is(e, inner) {
		t.Error("recovered error values should be unwrappable")
	}
}

func TestMulti(t *testing.T) {
	var a, b []*Error
	m := Multi{
		ReporterFunc(func(e *Error) { a = append(a, e) }),
		nil,
		ReporterFunc(func(e *Error) { b = append(b, e) }),
	}

	m.Report(&Error{Kind: KindSetup})

	if len(a) != 1 || len(b) != 1 {
		t.Errorf("got %d and %d reports, want 1 and 1", len(a), len(b))
	}
}

func TestLogReporterLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	r := NewLogReporter(logger)

	r.Report(&Error{Kind: KindReconcile, Code: CodeDuplicateKey, Component: "list"})
	r.Report(&Error{Kind: KindHook, Code: CodeHookFailed, Hook: "mount", Err: errors.New("x")})

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "code=K040") {
		t.Errorf("warning not logged as WARN: %s", out)
	}
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "hook=mount") {
		t.Errorf("hook error not logged as ERROR: %s", out)
	}
	if strings.Contains(out, "stack=") {
		t.Error("stack should only be logged at debug level")
	}
}

func TestObserversFanOut(t *testing.T) {
	var flushes, renders int
	counting := observerFuncs{
		flush:  func(FlushStats) { flushes++ },
		render: func(RenderStats) { renders++ },
	}
	o := Observers{counting, nil, counting}

	o.ObserveFlush(FlushStats{Instances: 2})
	o.ObserveRender(RenderStats{Component: "a", Phase: PhaseMount})

	if flushes != 2 || renders != 2 {
		t.Errorf("flushes=%d renders=%d, want 2 and 2", flushes, renders)
	}
}

type observerFuncs struct {
	flush  func(FlushStats)
	render func(RenderStats)
}

func (o observerFuncs) ObserveFlush(s FlushStats)   { o.flush(s) }
func (o observerFuncs) ObserveRender(s RenderStats) { o.render(s) }
