package reactive

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
)

// ErrSignalType is returned by SetAny when the value's type does not match
// the signal's element type.
var ErrSignalType = errors.New("reactive: value type does not match signal")

// Scope gives a signal access to the scheduler that batches its writes.
// *Scheduler implements Scope, and so does component.SetupContext.
type Scope interface {
	Scheduler() *Scheduler
}

// AnySignal is the untyped view of a Signal used by templates and
// declarative components.
type AnySignal interface {
	ID() uint64
	Version() uint64
	GetAny() any
	SetAny(v any) error
	Subscribe(l Listener) (unsubscribe func())
}

// source is the scheduler's view of a written signal.
type source interface {
	state() *signalBase

	// commit runs watchers for the value written since the last commit.
	// A nil run settles the value without calling any watcher.
	commit(run func(kind string, fn func()))
}

// signalBase holds the type-erased subscription state shared by all signals.
type signalBase struct {
	id      uint64
	version uint64
	sched   *Scheduler

	// subs are the listeners notified on every effective write, in
	// subscription order.
	subs []Listener

	// written is set between a write and the next commit.
	written bool
}

func (b *signalBase) subscribe(l Listener) func() {
	if l == nil {
		return func() {}
	}
	lid := l.ID()
	if !slices.ContainsFunc(b.subs, func(x Listener) bool { return x.ID() == lid }) {
		b.subs = append(b.subs, l)
	}
	done := false
	return func() {
		if done {
			return
		}
		done = true
		b.subs = slices.DeleteFunc(b.subs, func(x Listener) bool { return x.ID() == lid })
	}
}

// Signal is a reactive memory cell.
//
// Signals use explicit ownership: a write notifies exactly the listeners that
// subscribed to the signal, never whoever happened to read it. Writes never
// re-render synchronously; the owning Scheduler coalesces them into a single
// flush.
//
// Signal is not safe for concurrent use. All reads and writes happen on the
// loop goroutine that owns the Scheduler.
type Signal[T any] struct {
	base signalBase

	value T

	// committed is the value watchers last observed.
	committed T

	equal    func(a, b T) bool
	watchers []*watcher[T]
}

type watcher[T any] struct {
	fn     func(next, prev T)
	active bool
}

// NewSignal creates a signal holding initial. Writes are batched by the
// scope's scheduler. A nil scope creates a detached signal whose watchers run
// synchronously after each write and which has no one to schedule.
func NewSignal[T any](scope Scope, initial T) *Signal[T] {
	var sched *Scheduler
	if scope != nil {
		sched = scope.Scheduler()
	}
	return &Signal[T]{
		base: signalBase{
			id:    NextID(),
			sched: sched,
		},
		value:     initial,
		committed: initial,
	}
}

// Get returns the last written value.
func (s *Signal[T]) Get() T {
	return s.value
}

// Peek returns the last written value. It is identical to Get and exists so
// code ported from auto-tracking runtimes reads naturally.
func (s *Signal[T]) Peek() T {
	return s.value
}

// Set stores v if it differs from the current value and marks every
// subscribed listener dirty. Writing an equal value is a no-op: nothing is
// enqueued and no watcher runs.
func (s *Signal[T]) Set(v T) {
	if s.equals(s.value, v) {
		return
	}
	s.value = v
	s.base.version++
	s.changed()
}

// Update sets the value to fn(current).
func (s *Signal[T]) Update(fn func(T) T) {
	s.Set(fn(s.value))
}

// Watch registers fn to run after every committed write with the new and the
// previous committed value. Several writes in one turn produce one call. The
// returned function unregisters fn and is safe to call more than once.
func (s *Signal[T]) Watch(fn func(next, prev T)) (unwatch func()) {
	w := &watcher[T]{fn: fn, active: true}
	s.watchers = append(s.watchers, w)
	return func() {
		if !w.active {
			return
		}
		w.active = false
		s.watchers = slices.DeleteFunc(s.watchers, func(x *watcher[T]) bool { return x == w })
	}
}

// Subscribe registers l to be enqueued on every effective write. Subscribing
// the same listener twice is a no-op. The returned function is idempotent.
func (s *Signal[T]) Subscribe(l Listener) (unsubscribe func()) {
	return s.base.subscribe(l)
}

// Subscribers returns the number of subscribed listeners.
func (s *Signal[T]) Subscribers() int {
	return len(s.base.subs)
}

// WithEquals replaces the equality used to detect no-op writes.
func (s *Signal[T]) WithEquals(fn func(a, b T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the signal's unique id.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

// Version increases by one on every effective write.
func (s *Signal[T]) Version() uint64 {
	return s.base.version
}

// GetAny implements AnySignal.
func (s *Signal[T]) GetAny() any {
	return s.value
}

// SetAny implements AnySignal. A nil value stores the zero value of T.
func (s *Signal[T]) SetAny(v any) error {
	if v == nil {
		var zero T
		s.Set(zero)
		return nil
	}
	tv, ok := v.(T)
	if !ok {
		var zero T
		return fmt.Errorf("%w: have %T, want %T", ErrSignalType, v, zero)
	}
	s.Set(tv)
	return nil
}

// String makes signals print their value in logs and templates.
func (s *Signal[T]) String() string {
	return fmt.Sprint(s.value)
}

func (s *Signal[T]) changed() {
	subs := slices.Clone(s.base.subs)
	if s.base.sched == nil {
		s.commit(func(_ string, fn func()) { fn() })
		return
	}
	s.base.sched.notify(s, subs)
}

func (s *Signal[T]) state() *signalBase {
	return &s.base
}

func (s *Signal[T]) commit(run func(kind string, fn func())) {
	s.base.written = false
	next, prev := s.value, s.committed
	s.committed = next
	if run == nil || s.equals(next, prev) {
		return
	}
	for _, w := range slices.Clone(s.watchers) {
		if !w.active {
			continue
		}
		fn := w.fn
		run("watch", func() { fn(next, prev) })
	}
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return Identical(a, b)
}

// Identical reports whether a and b are the same value: == for comparable
// values, pointer identity for slices, maps and channels. Funcs and
// non-comparable structs are never identical, so writing one always counts
// as a change.
func Identical(a, b any) (same bool) {
	switch av := a.(type) {
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	if b == nil {
		return false
	}

	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Chan:
		return va.Pointer() == vb.Pointer()
	case reflect.Func:
		return false
	}
	if !ta.Comparable() {
		return false
	}

	// Comparable structs may still hold non-comparable dynamic values in
	// interface fields, which makes == panic.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
