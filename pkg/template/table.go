package template

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/vango-dev/kiln/pkg/dom"
	"github.com/vango-dev/kiln/pkg/reactive"
)

// EntryKind tags an entry of the resolution table.
type EntryKind uint8

const (
	EntryValue EntryKind = iota + 1
	EntrySignal
	EntryCallable
)

// Callable is the uniform calling convention for functions found in a
// component's context. ev is the triggering event, or nil.
type Callable func(ev *dom.Event, args []any) (any, error)

// Entry is one name of the resolution table.
type Entry struct {
	Kind   EntryKind
	Value  any
	Signal reactive.AnySignal
	Call   Callable
}

// Table maps the names a template may use to values, signals and
// callables. A table is built for every render pass and every event
// dispatch from the instance's current context, so it never holds stale
// signal values.
type Table struct {
	entries map[string]Entry
	env     map[string]any
}

// NewTable classifies every entry of data.
func NewTable(data map[string]any) *Table {
	t := &Table{entries: make(map[string]Entry, len(data))}
	for name, v := range data {
		t.entries[name] = classify(v)
	}
	return t
}

func classify(v any) Entry {
	if s, ok := v.(reactive.AnySignal); ok {
		return Entry{Kind: EntrySignal, Value: v, Signal: s}
	}
	if v != nil && reflect.TypeOf(v).Kind() == reflect.Func {
		return Entry{Kind: EntryCallable, Value: v, Call: Adapt(v)}
	}
	return Entry{Kind: EntryValue, Value: v}
}

// Lookup returns the entry for name.
func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Names returns the table's names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.entries))
	for name := range t.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Env returns the expression environment: signals are replaced by their
// current values, everything else is passed through.
func (t *Table) Env() map[string]any {
	if t.env != nil {
		return t.env
	}
	t.env = make(map[string]any, len(t.entries))
	for name, e := range t.entries {
		if e.Kind == EntrySignal {
			t.env[name] = e.Signal.GetAny()
			continue
		}
		t.env[name] = e.Value
	}
	return t.env
}

// with returns a copy of the environment with extra names bound.
func (t *Table) with(extra map[string]any) map[string]any {
	base := t.Env()
	env := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		env[k] = v
	}
	for k, v := range extra {
		env[k] = v
	}
	return env
}

// =============================================================================
// Calling convention
// =============================================================================

var (
	// ErrArity is returned when a callable receives the wrong number of
	// arguments.
	ErrArity = errors.New("template: wrong number of arguments")

	// ErrArgType is returned when an argument cannot be converted to the
	// parameter type.
	ErrArgType = errors.New("template: argument type mismatch")
)

var (
	eventType = reflect.TypeOf((*dom.Event)(nil))
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Adapt wraps any Go function in the Callable convention. A function whose
// only parameter is *dom.Event receives the triggering event when called
// without arguments. Results may be (), (T), (error) or (T, error).
func Adapt(fn any) Callable {
	switch f := fn.(type) {
	case Callable:
		return f
	case func(*dom.Event, []any) (any, error):
		return f
	case func():
		return func(*dom.Event, []any) (any, error) {
			f()
			return nil, nil
		}
	case func() error:
		return func(*dom.Event, []any) (any, error) {
			return nil, f()
		}
	case func(*dom.Event):
		return func(ev *dom.Event, args []any) (any, error) {
			if len(args) == 1 {
				if e, ok := args[0].(*dom.Event); ok {
					ev = e
				}
			}
			f(ev)
			return nil, nil
		}
	}

	rv := reflect.ValueOf(fn)
	rt := rv.Type()
	return func(ev *dom.Event, args []any) (any, error) {
		in, err := bindArgs(rt, ev, args)
		if err != nil {
			return nil, err
		}
		return results(rv.Call(in))
	}
}

func bindArgs(rt reflect.Type, ev *dom.Event, args []any) ([]reflect.Value, error) {
	n := rt.NumIn()
	if len(args) == 0 && n == 1 && rt.In(0) == eventType && !rt.IsVariadic() {
		return []reflect.Value{reflect.ValueOf(ev)}, nil
	}

	fixed := n
	if rt.IsVariadic() {
		fixed = n - 1
		if len(args) < fixed {
			return nil, fmt.Errorf("%w: have %d, want at least %d", ErrArity, len(args), fixed)
		}
	} else if len(args) != n {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrArity, len(args), n)
	}

	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		var pt reflect.Type
		if i < fixed {
			pt = rt.In(i)
		} else {
			pt = rt.In(n - 1).Elem()
		}
		v, err := convert(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		in[i] = v
	}
	return in, nil
}

func convert(arg any, to reflect.Type) (reflect.Value, error) {
	if arg == nil {
		return reflect.Zero(to), nil
	}
	v := reflect.ValueOf(arg)
	if v.Type().AssignableTo(to) {
		return v, nil
	}
	if isNumber(v.Kind()) && isNumber(to.Kind()) {
		return v.Convert(to), nil
	}
	if v.Kind() == reflect.String && to.Kind() == reflect.String {
		return v.Convert(to), nil
	}
	return reflect.Value{}, fmt.Errorf("%w: have %s, want %s", ErrArgType, v.Type(), to)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func results(out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if out[0].Type().Implements(errorType) {
			if out[0].IsNil() {
				return nil, nil
			}
			return nil, out[0].Interface().(error)
		}
		return out[0].Interface(), nil
	default:
		var err error
		if last := out[len(out)-1]; last.Type().Implements(errorType) && !last.IsNil() {
			err = last.Interface().(error)
		}
		return out[0].Interface(), err
	}
}
