package kiln

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/vango-dev/kiln/pkg/dom"
	"github.com/vango-dev/kiln/pkg/report"
)

func counter() *Definition {
	return &Definition{
		Name: "counter",
		Setup: func(ctx *SetupContext) map[string]any {
			count := NewSignal(ctx, 0)
			return map[string]any{
				"count": count,
				"inc":   func() { count.Update(func(n int) int { return n + 1 }) },
			}
		},
		Markup: `<button @click="inc">${count}</button>`,
	}
}

func TestAppDo(t *testing.T) {
	app := New(Config{})
	if err := app.Register(counter()); err != nil {
		t.Fatal(err)
	}

	app.Do(func() {
		if _, err := app.Mount(context.Background(), "body", "counter", nil); err != nil {
			t.Fatal(err)
		}
	})
	btn, err := app.Document().Query("button")
	if err != nil {
		t.Fatal(err)
	}
	app.Do(func() {
		app.Document().Dispatch(btn, dom.NewEvent("click"))
		app.Document().Dispatch(btn, dom.NewEvent("click"))
	})
	if got := dom.TextContent(btn); got != "2" {
		t.Errorf("text = %q, want 2", got)
	}

	app.Close()
	if len(app.Mounter().Roots()) != 0 {
		t.Error("Close should unmount roots")
	}
}

func TestAppRunAndCall(t *testing.T) {
	app := New(Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = app.Run(ctx)
	}()

	var handle *Handle
	err := app.Call(ctx, func() {
		var err error
		handle, err = app.Mount(ctx, "body", counter(), nil)
		if err != nil {
			t.Error(err)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := app.Call(ctx, func() { _ = handle.Context().Signal("count").SetAny(5) }); err != nil {
		t.Fatal(err)
	}

	var html string
	_ = app.Call(ctx, func() { html = dom.InnerHTML(app.Document().Body()) })
	if html != "<button>5</button>" {
		t.Errorf("body = %s", html)
	}

	app.Close()
	wg.Wait()
}

func TestConfigDefaults(t *testing.T) {
	var errs []*report.Error
	app := New(Config{Reporter: report.ReporterFunc(func(e *report.Error) { errs = append(errs, e) })})
	cfg := app.Config()
	if cfg.MaxFlushCascade != DefaultMaxFlushCascade || cfg.Logger == nil || cfg.Document == nil {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	app.Do(func() { _, _ = app.Mount(context.Background(), "#missing", counter(), nil) })
	if len(errs) != 1 || errs[0].Code != report.CodeTargetNotFound {
		t.Errorf("errs = %v", errs)
	}
	if DefaultConfig().MaxFlushCascade != DefaultMaxFlushCascade {
		t.Error("DefaultConfig should set MaxFlushCascade")
	}
}
