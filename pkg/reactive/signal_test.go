package reactive

import (
	"errors"
	"testing"
)

type countingListener struct {
	id      uint64
	flushes int
	onFlush func()
}

func newCounting() *countingListener {
	return &countingListener{id: NextID()}
}

func (c *countingListener) ID() uint64 { return c.id }

func (c *countingListener) Flush() {
	c.flushes++
	if c.onFlush != nil {
		c.onFlush()
	}
}

func TestSignalGetSet(t *testing.T) {
	loop := NewLoop()
	sched := NewScheduler(loop)
	s := NewSignal(sched, 10)

	if got := s.Get(); got != 10 {
		t.Errorf("Get() = %d, want 10", got)
	}

	loop.Do(func() { s.Set(20) })

	if got := s.Get(); got != 20 {
		t.Errorf("Get() = %d, want 20", got)
	}
	if got := s.Version(); got != 1 {
		t.Errorf("Version() = %d, want 1", got)
	}
}

func TestSignalUpdate(t *testing.T) {
	loop := NewLoop()
	s := NewSignal(NewScheduler(loop), 1)

	loop.Do(func() {
		s.Update(func(n int) int { return n + 1 })
		s.Update(func(n int) int { return n * 10 })
	})

	if got := s.Get(); got != 20 {
		t.Errorf("Get() = %d, want 20", got)
	}
}

func TestSignalNoOpWrite(t *testing.T) {
	loop := NewLoop()
	sched := NewScheduler(loop)
	s := NewSignal(sched, "same")
	l := newCounting()
	s.Subscribe(l)

	watched := 0
	s.Watch(func(next, prev string) { watched++ })

	loop.Do(func() {
		s.Set("same")
		if sched.Pending() != 0 {
			t.Error("equal write must not enqueue")
		}
	})

	if l.flushes != 0 {
		t.Errorf("flushes = %d, want 0", l.flushes)
	}
	if watched != 0 {
		t.Errorf("watcher ran %d times, want 0", watched)
	}
	if s.Version() != 0 {
		t.Errorf("Version() = %d, want 0", s.Version())
	}
}

func TestSignalWatchCoalesces(t *testing.T) {
	loop := NewLoop()
	s := NewSignal(NewScheduler(loop), 0)

	type call struct{ next, prev int }
	var calls []call
	s.Watch(func(next, prev int) { calls = append(calls, call{next, prev}) })

	loop.Do(func() {
		s.Set(1)
		s.Set(2)
		s.Set(3)
		if len(calls) != 0 {
			t.Error("watcher must not run synchronously")
		}
	})

	if len(calls) != 1 || calls[0] != (call{3, 0}) {
		t.Errorf("calls = %v, want [{3 0}]", calls)
	}
}

func TestSignalWatchSkipsRevertedWrite(t *testing.T) {
	loop := NewLoop()
	s := NewSignal(NewScheduler(loop), 5)

	watched := 0
	s.Watch(func(next, prev int) { watched++ })

	loop.Do(func() {
		s.Set(6)
		s.Set(5)
	})

	if watched != 0 {
		t.Errorf("watcher ran %d times for a reverted write, want 0", watched)
	}
}

func TestSignalUnwatchIdempotent(t *testing.T) {
	loop := NewLoop()
	s := NewSignal(NewScheduler(loop), 0)

	watched := 0
	stop := s.Watch(func(next, prev int) { watched++ })
	stop()
	stop()

	loop.Do(func() { s.Set(1) })

	if watched != 0 {
		t.Errorf("watched = %d after unwatch, want 0", watched)
	}
}

func TestSignalSubscribeDedup(t *testing.T) {
	s := NewSignal(NewScheduler(NewLoop()), 0)
	l := newCounting()

	unsub1 := s.Subscribe(l)
	unsub2 := s.Subscribe(l)
	if s.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", s.Subscribers())
	}

	unsub1()
	unsub2()
	unsub1()
	if s.Subscribers() != 0 {
		t.Errorf("Subscribers() = %d, want 0", s.Subscribers())
	}
}

func TestSignalWithEquals(t *testing.T) {
	type point struct{ X, Y int }
	loop := NewLoop()
	sched := NewScheduler(loop)
	s := NewSignal(sched, &point{1, 2}).WithEquals(func(a, b *point) bool {
		return *a == *b
	})
	l := newCounting()
	s.Subscribe(l)

	loop.Do(func() { s.Set(&point{1, 2}) })
	if l.flushes != 0 {
		t.Error("custom equality should suppress equal write")
	}

	loop.Do(func() { s.Set(&point{2, 2}) })
	if l.flushes != 1 {
		t.Errorf("flushes = %d, want 1", l.flushes)
	}
}

func TestSignalSliceIdentity(t *testing.T) {
	loop := NewLoop()
	sched := NewScheduler(loop)
	items := []string{"a", "b"}
	s := NewSignal(sched, items)
	l := newCounting()
	s.Subscribe(l)

	loop.Do(func() { s.Set(items) })
	if l.flushes != 0 {
		t.Error("same slice header should be a no-op")
	}

	loop.Do(func() { s.Set([]string{"a", "b"}) })
	if l.flushes != 1 {
		t.Errorf("a new slice with equal contents should notify, flushes = %d", l.flushes)
	}
}

func TestSignalSetAny(t *testing.T) {
	loop := NewLoop()
	s := NewSignal(NewScheduler(loop), 0)

	var as AnySignal = s
	loop.Do(func() {
		if err := as.SetAny(7); err != nil {
			t.Fatalf("SetAny: %v", err)
		}
	})
	if as.GetAny() != 7 {
		t.Errorf("GetAny() = %v, want 7", as.GetAny())
	}

	err := as.SetAny("seven")
	if !errors.Is(err, ErrSignalType) {
		t.Errorf("SetAny(string) error = %v, want ErrSignalType", err)
	}
}

func TestDetachedSignal(t *testing.T) {
	s := NewSignal[int](nil, 0)

	var got []int
	s.Watch(func(next, prev int) { got = append(got, next) })

	s.Set(1)
	s.Set(2)

	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("detached watcher calls = %v, want [1 2]", got)
	}
}

func TestIdentical(t *testing.T) {
	m := map[string]int{"a": 1}
	sl := []int{1, 2}
	fn := func() {}
	type withIface struct{ V any }

	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"equal ints", 1, 1, true},
		{"different ints", 1, 2, false},
		{"int vs string", 1, "1", false},
		{"nil vs nil", nil, nil, true},
		{"nil vs value", nil, 0, false},
		{"same map", m, m, true},
		{"different map", m, map[string]int{"a": 1}, false},
		{"same slice", sl, sl, true},
		{"resliced", sl, sl[:1], false},
		{"func", fn, fn, false},
		{"comparable struct", struct{ A int }{1}, struct{ A int }{1}, true},
		{"struct holding slice", withIface{[]int{1}}, withIface{[]int{1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Identical(tt.a, tt.b); got != tt.want {
				t.Errorf("Identical(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
