package dom

import "golang.org/x/net/html"

// Handler handles a dispatched event.
type Handler func(ev *Event)

// Event is dispatched at a target node and bubbles to the root.
type Event struct {
	Type string

	// Target is the node the event was dispatched at.
	Target *html.Node

	// CurrentTarget is the node whose listener is running.
	CurrentTarget *html.Node

	// Value carries the control value for input-like events.
	Value string

	// Detail carries the payload of component-emitted events.
	Detail any

	stopped bool
}

// NewEvent returns an event of the given type.
func NewEvent(typ string) *Event {
	return &Event{Type: typ}
}

// StopPropagation prevents the event from reaching further ancestors.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// Stopped reports whether StopPropagation was called.
func (e *Event) Stopped() bool {
	return e.stopped
}

// Listen installs h as the listener for event on n. Each node has one
// listener slot per event type; installing a new handler releases the old
// one.
func (d *Document) Listen(n *html.Node, event string, h Handler) {
	m := d.listeners[n]
	if m == nil {
		m = make(map[string]Handler)
		d.listeners[n] = m
	}
	m[event] = h
}

// Unlisten removes the listener for event on n.
func (d *Document) Unlisten(n *html.Node, event string) {
	m := d.listeners[n]
	if m == nil {
		return
	}
	delete(m, event)
	if len(m) == 0 {
		delete(d.listeners, n)
	}
}

// Listener returns the handler installed for event on n.
func (d *Document) Listener(n *html.Node, event string) Handler {
	return d.listeners[n][event]
}

// ListenerCount returns the total number of installed listeners.
func (d *Document) ListenerCount() int {
	total := 0
	for _, m := range d.listeners {
		total += len(m)
	}
	return total
}

// Dispatch fires ev at target and bubbles it through the ancestors until a
// listener stops propagation. It reports whether any listener ran.
func (d *Document) Dispatch(target *html.Node, ev *Event) bool {
	ev.Target = target
	handled := false
	for n := target; n != nil; n = n.Parent {
		h := d.listeners[n][ev.Type]
		if h == nil {
			continue
		}
		ev.CurrentTarget = n
		h(ev)
		handled = true
		if ev.stopped {
			break
		}
	}
	ev.CurrentTarget = nil
	return handled
}
