package vdom

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/kiln/pkg/dom"
)

// VKind is the node type discriminator.
type VKind uint8

const (
	KindElement   VKind = iota // <div>, <button>, etc.
	KindText                   // Plain text node
	KindFragment               // Grouping without wrapper; the render root
	KindComponent              // Child component placeholder
)

// String returns the string representation of the VKind.
func (k VKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindFragment:
		return "Fragment"
	case KindComponent:
		return "Component"
	default:
		return "Unknown"
	}
}

// VNode is a structured node produced by one render pass.
//
// A fresh tree is produced on every render. The previous tree is kept only
// to diff against the next one; Diff carries live node pointers forward from
// matched previous nodes, and Apply fills them in for created nodes.
type VNode struct {
	Kind     VKind
	Tag      string    // Element or placeholder tag name
	Attrs    []Attr    // String attributes in source order
	Props    Props     // Live property values from :prop bindings
	Events   []Binding // Event bindings from @event attributes
	Children []*VNode
	Key      string // Reconciliation key; empty means unkeyed
	Text     string // For KindText

	// Selector is the child-component selector a KindComponent node matched.
	Selector string

	// DOM is the live node this VNode is rendered to. For a KindFragment root
	// it is the host element the fragment's children live under.
	DOM *html.Node
}

// Props holds live property values.
type Props map[string]any

// Attr is a single string attribute.
type Attr struct {
	Key   string
	Value string
}

// Binding attaches an event handler to an element.
type Binding struct {
	Event string

	// Source is the binding text from the markup. Two bindings with the same
	// source are the same handler, so re-renders do not rebind them.
	Source string

	Handler dom.Handler
}

// Text returns a text node.
func Text(s string) *VNode {
	return &VNode{Kind: KindText, Text: s}
}

// Element returns an element node.
func Element(tag string, attrs []Attr, children ...*VNode) *VNode {
	return &VNode{Kind: KindElement, Tag: tag, Attrs: attrs, Children: children}
}

// Fragment returns a fragment node holding children.
func Fragment(children ...*VNode) *VNode {
	return &VNode{Kind: KindFragment, Children: children}
}

// Root returns an empty fragment anchored at host. Diffing Root(host)
// against a rendered tree yields the patches of an initial mount.
func Root(host *html.Node) *VNode {
	return &VNode{Kind: KindFragment, DOM: host}
}

// Attr returns the value of attribute key.
func (v *VNode) Attr(key string) (string, bool) {
	for _, a := range v.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Binding returns the binding for event.
func (v *VNode) Binding(event string) (Binding, bool) {
	for _, b := range v.Events {
		if b.Event == event {
			return b, true
		}
	}
	return Binding{}, false
}

// IsInteractive returns true if this node has event bindings.
func (v *VNode) IsInteractive() bool {
	return v != nil && len(v.Events) > 0
}

// Walk visits v and its descendants depth-first in document order.
func (v *VNode) Walk(fn func(*VNode)) {
	if v == nil {
		return
	}
	fn(v)
	for _, c := range v.Children {
		c.Walk(fn)
	}
}

// Components returns the component placeholders under v in document order.
func (v *VNode) Components() []*VNode {
	var out []*VNode
	v.Walk(func(n *VNode) {
		if n.Kind == KindComponent {
			out = append(out, n)
		}
	})
	return out
}

// String renders the tree as compact markup for debugging and tests.
// Props and bindings are shown as :name and @name attributes.
func (v *VNode) String() string {
	var b strings.Builder
	v.write(&b)
	return b.String()
}

func (v *VNode) write(b *strings.Builder) {
	if v == nil {
		return
	}
	switch v.Kind {
	case KindText:
		b.WriteString(html.EscapeString(v.Text))
		return
	case KindFragment:
		for _, c := range v.Children {
			c.write(b)
		}
		return
	}

	b.WriteByte('<')
	b.WriteString(v.Tag)
	if v.Key != "" {
		b.WriteString(` key="`)
		b.WriteString(html.EscapeString(v.Key))
		b.WriteByte('"')
	}
	for _, a := range v.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Value))
		b.WriteByte('"')
	}
	for _, key := range sortedKeys(v.Props) {
		b.WriteString(" :")
		b.WriteString(key)
	}
	for _, ev := range v.Events {
		b.WriteString(" @")
		b.WriteString(ev.Event)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(ev.Source))
		b.WriteByte('"')
	}
	b.WriteByte('>')
	if v.Kind == KindComponent {
		b.WriteString("</")
		b.WriteString(v.Tag)
		b.WriteByte('>')
		return
	}
	if IsVoidElement(v.Tag) {
		return
	}
	for _, c := range v.Children {
		c.write(b)
	}
	b.WriteString("</")
	b.WriteString(v.Tag)
	b.WriteByte('>')
}
