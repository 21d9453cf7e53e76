package component

import (
	"context"
	"fmt"
	"maps"
	"sort"

	"golang.org/x/net/html"

	"github.com/vango-dev/kiln/pkg/reactive"
	"github.com/vango-dev/kiln/pkg/template"
	"github.com/vango-dev/kiln/pkg/vdom"
)

type state uint8

const (
	stateCreated state = iota
	stateMounted
	stateUnmounted
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateMounted:
		return "mounted"
	case stateUnmounted:
		return "unmounted"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Instance is one mounted component.
//
// An instance subscribes to the signals its setup returned. When one of
// them changes, the scheduler calls Flush, which re-evaluates the template,
// patches the live tree and reconciles the child instances.
type Instance struct {
	id  uint64
	def *Definition
	m   *Mounter
	ctx context.Context

	parent *Instance
	host   *html.Node
	props  map[string]any

	data  Data
	hooks map[string]template.Callable

	// tree is the most recent successfully rendered tree.
	tree *vdom.VNode

	// children are keyed by the live placeholder element they render into.
	children map[*html.Node]*Instance
	order    []*Instance

	unsubs []func()
	state  state

	// attached is set once the initial render committed; torn once teardown
	// ran. The unmount hook fires only for attached instances.
	attached bool
	torn     bool
}

var _ reactive.Listener = (*Instance)(nil)

// ID implements reactive.Listener.
func (i *Instance) ID() uint64 { return i.id }

// Flush implements reactive.Listener. The scheduler calls it at most once
// per flush.
func (i *Instance) Flush() {
	i.m.traverse(func() { i.m.update(i) })
}

// Name returns the definition name.
func (i *Instance) Name() string { return i.def.Name }

// Definition returns the instance's definition.
func (i *Instance) Definition() *Definition { return i.def }

// Host returns the element the instance renders into.
func (i *Instance) Host() *html.Node { return i.host }

// Parent returns the parent instance, or nil for a root mount.
func (i *Instance) Parent() *Instance { return i.parent }

// Data returns the instance's context: the setup result without hooks.
func (i *Instance) Data() Data { return i.data }

// Props returns a copy of the current props.
func (i *Instance) Props() map[string]any { return maps.Clone(i.props) }

// Tree returns the last rendered tree.
func (i *Instance) Tree() *vdom.VNode { return i.tree }

// Mounted reports whether the instance is mounted.
func (i *Instance) Mounted() bool { return i.state == stateMounted }

// Unmounted reports whether the instance has been unmounted.
func (i *Instance) Unmounted() bool { return i.state == stateUnmounted }

// Children returns the mounted child instances in mount order.
func (i *Instance) Children() []*Instance {
	return append([]*Instance(nil), i.order...)
}

// subscribe subscribes the instance to every signal in its data. Names are
// visited in sorted order so subscription order is stable.
func (i *Instance) subscribe() {
	names := make([]string, 0, len(i.data))
	for name := range i.data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if s, ok := i.data[name].(reactive.AnySignal); ok {
			i.unsubs = append(i.unsubs, s.Subscribe(i))
		}
	}
}

// cancel synchronously stops the instance and its descendants from ever
// rendering again: pending flushes are cancelled and signal subscriptions
// released.
func (i *Instance) cancel() {
	if i.state == stateUnmounted {
		return
	}
	i.state = stateUnmounted
	i.m.sched.Cancel(i)
	i.release()
	for _, c := range i.order {
		c.cancel()
	}
}

func (i *Instance) release() {
	for _, unsub := range i.unsubs {
		unsub()
	}
	i.unsubs = nil
}

// table builds the resolution table for one render or dispatch. props is
// visible to templates unless setup returned its own "props".
func (i *Instance) table() *template.Table {
	data := make(map[string]any, len(i.data)+1)
	for k, v := range i.data {
		data[k] = v
	}
	if _, ok := data["props"]; !ok {
		data["props"] = maps.Clone(i.props)
	}
	return template.NewTable(data)
}

func (i *Instance) addChild(node *html.Node, c *Instance) {
	if i.children == nil {
		i.children = make(map[*html.Node]*Instance)
	}
	i.children[node] = c
	i.order = append(i.order, c)
}

func (i *Instance) removeChild(c *Instance) {
	delete(i.children, c.host)
	for idx, x := range i.order {
		if x == c {
			i.order = append(i.order[:idx], i.order[idx+1:]...)
			return
		}
	}
}
