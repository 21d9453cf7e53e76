package kiln

import (
	"context"

	"github.com/vango-dev/kiln/pkg/component"
	"github.com/vango-dev/kiln/pkg/dom"
	"github.com/vango-dev/kiln/pkg/reactive"
)

// App wires one runtime: a loop, a scheduler, a live document and a
// mounter.
//
// An App is driven either synchronously with Do, or by a goroutine running
// Run while other goroutines use Call. Everything that touches signals,
// the document or instances must happen inside Do or Call.
type App struct {
	config  Config
	loop    *reactive.Loop
	sched   *reactive.Scheduler
	mounter *component.Mounter
}

// New creates an App.
func New(cfg Config) *App {
	cfg = cfg.withDefaults()
	loop := reactive.NewLoop(reactive.WithLogger(cfg.Logger))
	sched := reactive.NewScheduler(loop,
		reactive.WithReporter(cfg.Reporter),
		reactive.WithObserver(cfg.Observer),
		reactive.WithMaxFlushCascade(cfg.MaxFlushCascade),
	)
	mounter := component.NewMounter(cfg.Document, sched,
		component.WithRegistry(cfg.Registry),
		component.WithEvaluator(cfg.Evaluator),
		component.WithReporter(cfg.Reporter),
		component.WithObserver(cfg.Observer),
		component.WithDuplicateKeyWarnings(!cfg.SilenceDuplicateKeys),
	)
	return &App{config: cfg, loop: loop, sched: sched, mounter: mounter}
}

// Config returns the configuration with defaults applied.
func (a *App) Config() Config { return a.config }

// Loop returns the app's loop.
func (a *App) Loop() *reactive.Loop { return a.loop }

// Scheduler returns the app's scheduler. It is the scope for signals
// shared between components.
func (a *App) Scheduler() *reactive.Scheduler { return a.sched }

// Document returns the live document.
func (a *App) Document() *dom.Document { return a.config.Document }

// Registry returns the registry.
func (a *App) Registry() *component.Registry { return a.config.Registry }

// Mounter returns the mount coordinator.
func (a *App) Mounter() *component.Mounter { return a.mounter }

// Register adds definitions to the registry.
func (a *App) Register(defs ...*component.Definition) error {
	for _, def := range defs {
		if err := a.config.Registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// Mount mounts ref into target. Call it inside Do or Call.
func (a *App) Mount(ctx context.Context, target any, ref component.Ref, props map[string]any) (*component.Handle, error) {
	return a.mounter.Mount(ctx, target, ref, props)
}

// Do runs fn on the calling goroutine as a loop task and renders every
// change it made before returning. Use it when no goroutine runs Run.
func (a *App) Do(fn func()) {
	a.loop.Do(fn)
}

// Call runs fn on the goroutine executing Run and waits until its changes
// are rendered.
func (a *App) Call(ctx context.Context, fn func()) error {
	return a.loop.Call(ctx, fn)
}

// Run serves Call and Submit until ctx is cancelled or Close is called.
func (a *App) Run(ctx context.Context) error {
	return a.loop.Run(ctx)
}

// Close unmounts every root instance and stops the loop. If Run is
// serving, the unmount happens on its goroutine.
func (a *App) Close() {
	unmount := func() { a.mounter.UnmountAll() }
	if a.loop.Running() {
		_ = a.loop.Call(context.Background(), unmount)
	} else {
		a.loop.Do(unmount)
	}
	a.loop.Close()
}

// HTML renders the live document.
func (a *App) HTML() string {
	return a.config.Document.String()
}
