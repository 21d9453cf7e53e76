package reactive

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/vango-dev/kiln/pkg/report"
)

// DefaultMaxFlushCascade is the number of consecutive flushes that may be
// scheduled from inside a flush before the scheduler declares an update loop.
const DefaultMaxFlushCascade = 100

// Host queues microtasks. *Loop implements it.
type Host interface {
	QueueMicrotask(fn func())
}

// HostFunc adapts a function to Host.
type HostFunc func(fn func())

// QueueMicrotask calls f(fn).
func (f HostFunc) QueueMicrotask(fn func()) { f(fn) }

// Scheduler coalesces signal writes into flushes.
//
// The first write that makes the pending set non-empty queues one flush
// microtask on the host. Every later synchronous write joins the same set.
// The flush renders each pending listener once, in first-enqueued order, and
// then runs the watchers of every signal written before it started. Writes
// made while flushing go to the next flush.
type Scheduler struct {
	host Host

	pending []Listener
	index   map[uint64]int

	// batch is the snapshot being rendered by the current flush.
	batch []Listener

	written []source

	scheduled bool
	flushing  bool
	chained   bool
	cascade   int

	maxCascade int
	reporter   report.Reporter
	observer   report.Observer

	flushes uint64
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithReporter sets where render panics, watcher panics and update-loop
// errors are reported.
func WithReporter(r report.Reporter) SchedulerOption {
	return func(s *Scheduler) {
		if r != nil {
			s.reporter = r
		}
	}
}

// WithObserver sets the flush observer.
func WithObserver(o report.Observer) SchedulerOption {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithMaxFlushCascade overrides DefaultMaxFlushCascade. Zero or a negative
// value disables the guard.
func WithMaxFlushCascade(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.maxCascade = n
	}
}

// NewScheduler creates a scheduler that queues its flushes on host.
func NewScheduler(host Host, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		host:       host,
		index:      make(map[uint64]int),
		maxCascade: DefaultMaxFlushCascade,
		reporter:   report.Discard,
		observer:   report.NopObserver,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scheduler implements Scope.
func (s *Scheduler) Scheduler() *Scheduler {
	return s
}

// Reporter returns the scheduler's reporter.
func (s *Scheduler) Reporter() report.Reporter {
	return s.reporter
}

// Enqueue adds l to the pending set. Enqueuing a listener that is already
// pending does nothing.
func (s *Scheduler) Enqueue(l Listener) {
	if l == nil {
		return
	}
	if _, ok := s.index[l.ID()]; ok {
		return
	}
	s.index[l.ID()] = len(s.pending)
	s.pending = append(s.pending, l)
	s.schedule()
}

// Cancel removes l from the pending set and from the flush in progress, so
// it will not be rendered again until it is re-enqueued.
func (s *Scheduler) Cancel(l Listener) {
	if l == nil {
		return
	}
	id := l.ID()
	if i, ok := s.index[id]; ok {
		s.pending[i] = nil
		delete(s.index, id)
	}
	for i, b := range s.batch {
		if b != nil && b.ID() == id {
			s.batch[i] = nil
		}
	}
}

// IsPending reports whether l will be rendered by the next flush.
func (s *Scheduler) IsPending(l Listener) bool {
	_, ok := s.index[l.ID()]
	return ok
}

// Pending returns the number of listeners waiting for the next flush.
func (s *Scheduler) Pending() int {
	return len(s.index)
}

// Flushing reports whether a flush is in progress.
func (s *Scheduler) Flushing() bool {
	return s.flushing
}

// Flushes returns the number of completed flushes.
func (s *Scheduler) Flushes() uint64 {
	return s.flushes
}

// notify is called by a signal after an effective write.
func (s *Scheduler) notify(src source, subs []Listener) {
	for _, l := range subs {
		s.Enqueue(l)
	}
	b := src.state()
	if !b.written {
		b.written = true
		s.written = append(s.written, src)
	}
	s.schedule()
}

func (s *Scheduler) schedule() {
	if s.scheduled {
		return
	}
	s.scheduled = true
	if s.flushing {
		s.chained = true
	}
	s.host.QueueMicrotask(s.flush)
}

func (s *Scheduler) flush() {
	s.scheduled = false
	if s.chained {
		s.cascade++
	} else {
		s.cascade = 0
	}
	s.chained = false

	if s.maxCascade > 0 && s.cascade > s.maxCascade {
		s.abort()
		return
	}

	batch := s.pending
	written := s.written
	s.pending = nil
	s.written = nil
	clear(s.index)

	start := time.Now()
	s.flushing = true
	s.batch = batch

	rendered := 0
	for i := range batch {
		l := batch[i]
		if l == nil {
			continue
		}
		s.render(l)
		rendered++
	}
	s.batch = nil

	for _, src := range written {
		src.commit(s.safeRun)
	}

	s.flushing = false
	s.flushes++

	s.observer.ObserveFlush(report.FlushStats{
		Instances: rendered,
		Watchers:  len(written),
		Cascade:   s.cascade,
		Start:     start,
		Duration:  time.Since(start),
	})
}

// abort drops the pending set after a runaway cascade. Written signals are
// settled without running watchers so the loop cannot restart itself.
func (s *Scheduler) abort() {
	dropped := len(s.index)
	for _, src := range s.written {
		src.commit(nil)
	}
	s.pending = nil
	s.written = nil
	clear(s.index)
	s.cascade = 0

	s.reporter.Report(&report.Error{
		Kind: report.KindScheduler,
		Code: report.CodeUpdateLoop,
		Err: fmt.Errorf("more than %d consecutive flushes scheduled while flushing; dropped %d pending updates",
			s.maxCascade, dropped),
	})
}

func (s *Scheduler) render(l Listener) {
	defer func() {
		if r := recover(); r != nil {
			e := report.Recovered(report.KindScheduler, report.CodeRenderPanic, r)
			e.Instance = l.ID()
			s.reporter.Report(e)
		}
	}()
	l.Flush()
}

func (s *Scheduler) safeRun(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.reporter.Report(&report.Error{
				Kind:  report.KindWatcher,
				Code:  report.CodeWatcherFailed,
				Hook:  kind,
				Panic: r,
				Stack: debug.Stack(),
			})
		}
	}()
	fn()
}
