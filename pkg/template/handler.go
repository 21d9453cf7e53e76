package template

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vango-dev/kiln/pkg/dom"
)

// EventVar is the name the triggering event is bound to inside inline
// handler arguments, as in @input="rename(event.Value)".
const EventVar = "event"

var handlerPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\((.*)\))?\s*$`)

// Handler is a parsed @event binding: a callable name and, for inline call
// forms, the argument list source.
type Handler struct {
	Event  string
	Source string
	Name   string
	Args   string

	// Call is true for the inline call form name(...), even with no
	// arguments.
	Call bool
}

// ParseHandler parses the value of an @event attribute.
func ParseHandler(event, source string) (Handler, error) {
	m := handlerPattern.FindStringSubmatch(source)
	if m == nil {
		return Handler{}, fmt.Errorf("%w: @%s=%q", ErrInvalidHandler, event, source)
	}
	return Handler{
		Event:  event,
		Source: strings.TrimSpace(source),
		Name:   m[1],
		Args:   strings.TrimSpace(m[2]),
		Call:   strings.Contains(source, "("),
	}, nil
}

// Invoke resolves h against t and calls it. Inline arguments are evaluated
// against the table with the event bound to EventVar.
func (e *Engine) Invoke(t *Table, h Handler, ev *dom.Event) (any, error) {
	entry, ok := t.Lookup(h.Name)
	if !ok || entry.Kind != EntryCallable {
		return nil, handlerError(h.Source, fmt.Errorf("%w: %s", ErrHandlerNotFound, h.Name))
	}

	var args []any
	if h.Args != "" {
		src := "[" + h.Args + "]"
		v, err := e.Eval(src, t.with(map[string]any{EventVar: ev}))
		if err != nil {
			return nil, exprError(h.Args, err)
		}
		list, ok := v.([]any)
		if !ok {
			return nil, exprError(h.Args, fmt.Errorf("arguments evaluated to %T", v))
		}
		args = list
	}
	return entry.Call(ev, args)
}
