package component

import (
	"context"
	"maps"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/kiln/pkg/dom"
	"github.com/vango-dev/kiln/pkg/reactive"
)

// SetupContext is passed to a definition's setup. It is a reactive.Scope,
// so signals for the instance are created with reactive.NewSignal(ctx, v).
type SetupContext struct {
	inst *Instance
}

var _ reactive.Scope = (*SetupContext)(nil)

// Scheduler implements reactive.Scope.
func (c *SetupContext) Scheduler() *reactive.Scheduler {
	return c.inst.m.sched
}

// Context returns the context.Context the instance was mounted with.
func (c *SetupContext) Context() context.Context {
	return c.inst.ctx
}

// Props returns a copy of the instance's current props.
func (c *SetupContext) Props() map[string]any {
	return maps.Clone(c.inst.props)
}

// Prop returns the current value of one prop.
func (c *SetupContext) Prop(name string) any {
	return c.inst.props[name]
}

// Emit dispatches a bubbling event named name on the instance's host
// element. A parent listens for it with @name on the placeholder. Emit
// reports whether any listener handled the event.
func (c *SetupContext) Emit(name string, detail any) bool {
	ev := dom.NewEvent(strings.ToLower(name))
	ev.Detail = detail
	return c.inst.m.doc.Dispatch(c.inst.host, ev)
}

// Host returns the element the instance renders into.
func (c *SetupContext) Host() *html.Node {
	return c.inst.host
}

// Document returns the live document.
func (c *SetupContext) Document() *dom.Document {
	return c.inst.m.doc
}

// Instance returns the instance being set up.
func (c *SetupContext) Instance() *Instance {
	return c.inst
}
