package reactive

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

var (
	// ErrLoopClosed is returned when submitting to a closed loop.
	ErrLoopClosed = errors.New("reactive: loop closed")

	// ErrLoopRunning is returned when Run is called twice.
	ErrLoopRunning = errors.New("reactive: loop already running")
)

// microtaskWarnDepth is the queue length at which a drain logs a warning.
const microtaskWarnDepth = 10000

// Loop is the single execution thread of a kiln runtime.
//
// Tasks run one at a time. After each top-level task the microtask queue is
// drained to empty, including microtasks queued by other microtasks. Signal
// flushes are microtasks, so every write made by a task is rendered before
// the next task starts.
//
// Only Submit, Call and Close are safe to call from other goroutines.
// Everything else must run on the loop.
type Loop struct {
	ingress chan task
	closed  chan struct{}
	once    sync.Once
	running atomic.Bool

	microtasks []func()
	depth      int

	logger *slog.Logger
}

type task struct {
	fn   func()
	done chan struct{}
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLogger sets the logger used for recovered task panics.
func WithLogger(l *slog.Logger) LoopOption {
	return func(loop *Loop) {
		if l != nil {
			loop.logger = l
		}
	}
}

// WithIngressSize sets the buffer size of the Submit queue.
func WithIngressSize(n int) LoopOption {
	return func(loop *Loop) {
		if n >= 0 {
			loop.ingress = make(chan task, n)
		}
	}
}

// NewLoop creates a loop. It does not start a goroutine; call Run to serve
// submitted tasks or drive it directly with Do.
func NewLoop(opts ...LoopOption) *Loop {
	l := &Loop{
		ingress: make(chan task, 256),
		closed:  make(chan struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// QueueMicrotask implements Host.
func (l *Loop) QueueMicrotask(fn func()) {
	l.microtasks = append(l.microtasks, fn)
}

// Do runs fn as a task. If fn is the outermost task the microtask queue is
// drained before Do returns. A panic in fn is recovered and logged.
func (l *Loop) Do(fn func()) {
	l.depth++
	l.safeExecute("task", fn)
	l.depth--
	if l.depth == 0 {
		l.drain()
	}
}

// Drain runs queued microtasks until the queue is empty. It is a no-op when
// called from inside a task.
func (l *Loop) Drain() {
	if l.depth == 0 {
		l.drain()
	}
}

// Idle reports whether no microtask is queued.
func (l *Loop) Idle() bool {
	return len(l.microtasks) == 0
}

func (l *Loop) drain() {
	if n := len(l.microtasks); n > microtaskWarnDepth {
		l.logger.Warn("microtask queue is very deep", "depth", n)
	}
	l.depth++
	for len(l.microtasks) > 0 {
		fn := l.microtasks[0]
		l.microtasks[0] = nil
		l.microtasks = l.microtasks[1:]
		l.safeExecute("microtask", fn)
	}
	l.microtasks = nil
	l.depth--
}

// Submit queues fn to run as a task on the goroutine executing Run. It is
// safe for concurrent use.
func (l *Loop) Submit(fn func()) error {
	return l.submit(task{fn: fn})
}

func (l *Loop) submit(t task) error {
	select {
	case <-l.closed:
		return ErrLoopClosed
	default:
	}
	select {
	case l.ingress <- t:
		return nil
	case <-l.closed:
		return ErrLoopClosed
	}
}

// Call submits fn and waits until it and the microtasks it queued have run.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if err := l.submit(task{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.closed:
		return ErrLoopClosed
	}
}

// Run serves submitted tasks until ctx is cancelled or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer l.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.closed:
			return nil
		case t := <-l.ingress:
			l.Do(t.fn)
			if t.done != nil {
				close(t.done)
			}
		}
	}
}

// Running reports whether a goroutine is executing Run.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Close stops Run and rejects further submissions.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.closed) })
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.closed
}

func (l *Loop) safeExecute(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("loop "+kind+" panicked",
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
