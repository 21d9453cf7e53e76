package reactive

import (
	"testing"

	"github.com/vango-dev/kiln/pkg/report"
)

func TestSchedulerBatching(t *testing.T) {
	loop := NewLoop()
	sched := NewScheduler(loop)
	a := NewSignal(sched, 0)
	b := NewSignal(sched, "")
	l := newCounting()
	a.Subscribe(l)
	b.Subscribe(l)

	loop.Do(func() {
		for i := 1; i <= 10; i++ {
			a.Set(i)
		}
		b.Set("done")
		if l.flushes != 0 {
			t.Error("writes must not render synchronously")
		}
	})

	if l.flushes != 1 {
		t.Errorf("flushes = %d, want 1", l.flushes)
	}
	if sched.Flushes() != 1 {
		t.Errorf("scheduler flushes = %d, want 1", sched.Flushes())
	}
}

func TestSchedulerOrder(t *testing.T) {
	loop := NewLoop()
	sched := NewScheduler(loop)

	var order []string
	mk := func(name string) Listener {
		return ListenerFunc(func() { order = append(order, name) })
	}
	first, second, third := mk("first"), mk("second"), mk("third")

	loop.Do(func() {
		sched.Enqueue(second)
		sched.Enqueue(first)
		sched.Enqueue(third)
		sched.Enqueue(second)
	})

	want := []string{"second", "first", "third"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestSchedulerWriteDuringFlushGoesToNextFlush(t *testing.T) {
	loop := NewLoop()
	sched := NewScheduler(loop)
	s := NewSignal(sched, 0)

	l := newCounting()
	var seen []uint64
	l.onFlush = func() {
		seen = append(seen, sched.Flushes())
		if s.Get() == 1 {
			s.Set(2)
		}
	}
	s.Subscribe(l)

	loop.Do(func() { s.Set(1) })

	if l.flushes != 2 {
		t.Fatalf("flushes = %d, want 2", l.flushes)
	}
	if seen[0] == seen[1] {
		t.Errorf("second render ran inside the first flush: %v", seen)
	}
}

func TestSchedulerCancel(t *testing.T) {
	loop := NewLoop()
	sched := NewScheduler(loop)
	s := NewSignal(sched, 0)
	l := newCounting()
	s.Subscribe(l)

	loop.Do(func() {
		s.Set(1)
		sched.Cancel(l)
	})

	if l.flushes != 0 {
		t.Errorf("cancelled listener rendered %d times", l.flushes)
	}
}

func TestSchedulerCancelDuringFlush(t *testing.T) {
	loop := NewLoop()
	sched := NewScheduler(loop)

	victim := newCounting()
	killer := ListenerFunc(func() { sched.Cancel(victim) })

	loop.Do(func() {
		sched.Enqueue(killer)
		sched.Enqueue(victim)
	})

	if victim.flushes != 0 {
		t.Errorf("listener cancelled mid-flush still rendered")
	}
}

func TestSchedulerRenderPanicIsolated(t *testing.T) {
	loop := NewLoop()
	var reports []*report.Error
	sched := NewScheduler(loop, WithReporter(report.ReporterFunc(func(e *report.Error) {
		reports = append(reports, e)
	})))

	bad := ListenerFunc(func() { panic("render exploded") })
	good := newCounting()

	loop.Do(func() {
		sched.Enqueue(bad)
		sched.Enqueue(good)
	})

	if good.flushes != 1 {
		t.Errorf("good listener flushes = %d, want 1", good.flushes)
	}
	if len(reports) != 1 || reports[0].Code != report.CodeRenderPanic {
		t.Fatalf("reports = %v, want one render panic", reports)
	}
	if reports[0].Instance != bad.ID() {
		t.Errorf("Instance = %d, want %d", reports[0].Instance, bad.ID())
	}
}

func TestSchedulerUpdateLoopGuard(t *testing.T) {
	loop := NewLoop()
	var reports []*report.Error
	sched := NewScheduler(loop,
		WithMaxFlushCascade(5),
		WithReporter(report.ReporterFunc(func(e *report.Error) { reports = append(reports, e) })),
	)
	s := NewSignal(sched, 0)

	l := newCounting()
	l.onFlush = func() { s.Update(func(n int) int { return n + 1 }) }
	s.Subscribe(l)

	loop.Do(func() { s.Set(1) })

	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	if reports[0].Kind != report.KindScheduler || reports[0].Code != report.CodeUpdateLoop {
		t.Errorf("report = %v, want update loop", reports[0])
	}
	if l.flushes != 6 {
		t.Errorf("flushes = %d, want 6 (initial + 5 cascades)", l.flushes)
	}
	if !loop.Idle() {
		t.Error("loop should be idle after the guard trips")
	}
}

func TestSchedulerWatcherPanicReported(t *testing.T) {
	loop := NewLoop()
	var reports []*report.Error
	sched := NewScheduler(loop, WithReporter(report.ReporterFunc(func(e *report.Error) {
		reports = append(reports, e)
	})))
	s := NewSignal(sched, 0)

	after := 0
	s.Watch(func(next, prev int) { panic("watcher") })
	s.Watch(func(next, prev int) { after++ })

	loop.Do(func() { s.Set(1) })

	if after != 1 {
		t.Errorf("second watcher ran %d times, want 1", after)
	}
	if len(reports) != 1 || reports[0].Kind != report.KindWatcher {
		t.Errorf("reports = %v, want one watcher error", reports)
	}
}

func TestSchedulerObserver(t *testing.T) {
	loop := NewLoop()
	var stats []report.FlushStats
	sched := NewScheduler(loop, WithObserver(flushRecorder(func(s report.FlushStats) {
		stats = append(stats, s)
	})))
	sig := NewSignal(sched, 0)
	sig.Subscribe(newCounting())
	sig.Subscribe(newCounting())

	loop.Do(func() { sig.Set(1) })

	if len(stats) != 1 {
		t.Fatalf("observed %d flushes, want 1", len(stats))
	}
	if stats[0].Instances != 2 || stats[0].Watchers != 1 {
		t.Errorf("stats = %+v, want 2 instances and 1 watched signal", stats[0])
	}
}

type flushRecorder func(report.FlushStats)

func (f flushRecorder) ObserveFlush(s report.FlushStats) { f(s) }
func (flushRecorder) ObserveRender(report.RenderStats)  {}
