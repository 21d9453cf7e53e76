// Package kiln is a component runtime that keeps a live HTML tree in sync
// with reactive state.
//
// Components declare a setup function returning signals and handlers, and
// a template using ${expr}, @event, :prop and key:
//
//	counter := &kiln.Definition{
//	    Name: "counter",
//	    Setup: func(ctx *kiln.SetupContext) map[string]any {
//	        count := kiln.NewSignal(ctx, 0)
//	        return map[string]any{
//	            "count": count,
//	            "inc":   func() { count.Update(func(n int) int { return n + 1 }) },
//	        }
//	    },
//	    Markup: `<button @click="inc">${count}</button>`,
//	}
//
//	app := kiln.New(kiln.Config{})
//	app.Do(func() {
//	    if _, err := app.Mount(context.Background(), "body", counter, nil); err != nil {
//	        log.Fatal(err)
//	    }
//	})
//
// Writes to signals are batched: every write made by one task is rendered
// once, in a single flush, before the next task runs.
//
// The packages below pkg/ hold the pieces: reactive (signals, scheduler,
// loop), template (evaluator), vdom (reconciler), component (lifecycle and
// mounting), dom (live tree), loader (declarative components), live (the
// browser session server) and telemetry.
package kiln

import (
	"github.com/vango-dev/kiln/pkg/component"
	"github.com/vango-dev/kiln/pkg/reactive"
)

// Component types.
type (
	Definition   = component.Definition
	SetupContext = component.SetupContext
	Handle       = component.Handle
	Ref          = component.Ref
	Loader       = component.Loader
	LoaderFunc   = component.LoaderFunc
	Data         = component.Data
)

// Lifecycle hook names.
const (
	HookBeforeMount  = component.HookBeforeMount
	HookMount        = component.HookMount
	HookBeforeUpdate = component.HookBeforeUpdate
	HookUpdate       = component.HookUpdate
	HookUnmount      = component.HookUnmount
)

// Signal is a reactive value.
type Signal[T any] = reactive.Signal[T]

// NewSignal creates a signal owned by scope: a *SetupContext for
// component state, or an App's Scheduler for state shared between
// components.
func NewSignal[T any](scope reactive.Scope, initial T) *Signal[T] {
	return reactive.NewSignal(scope, initial)
}
