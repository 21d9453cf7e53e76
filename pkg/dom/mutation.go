package dom

import (
	"fmt"
	"slices"

	"golang.org/x/net/html"
)

// MutationKind identifies a structural or attribute change.
type MutationKind uint8

const (
	MutationInsert MutationKind = iota + 1
	MutationMove
	MutationRemove
	MutationSetText
	MutationSetAttr
	MutationRemoveAttr
	MutationSetProp
	MutationRemoveProp
)

var mutationNames = [...]string{
	MutationInsert:     "Insert",
	MutationMove:       "Move",
	MutationRemove:     "Remove",
	MutationSetText:    "SetText",
	MutationSetAttr:    "SetAttr",
	MutationRemoveAttr: "RemoveAttr",
	MutationSetProp:    "SetProp",
	MutationRemoveProp: "RemoveProp",
}

// String returns the mutation name.
func (k MutationKind) String() string {
	if int(k) < len(mutationNames) && mutationNames[k] != "" {
		return mutationNames[k]
	}
	return fmt.Sprintf("Mutation(%d)", uint8(k))
}

// Mutation records one change to the live tree.
type Mutation struct {
	Kind MutationKind

	// Node is the node that changed. For Insert, Move and Remove it is the
	// child that was placed or removed.
	Node *html.Node

	// Parent is the new parent for Insert and Move, the former parent for
	// Remove.
	Parent *html.Node

	// Before is the reference sibling for Insert and Move. Nil means the
	// child was appended.
	Before *html.Node

	// Key is the attribute or property name.
	Key string

	// Value is the new text, attribute value or stringified property.
	Value string

	// Prop is the live property value for SetProp.
	Prop any
}

type observer struct {
	fn     func(Mutation)
	active bool
}

// Observe registers fn to be called synchronously after every mutation. The
// returned function stops observation.
func (d *Document) Observe(fn func(Mutation)) (stop func()) {
	o := &observer{fn: fn, active: true}
	d.observers = append(d.observers, o)
	return func() {
		if !o.active {
			return
		}
		o.active = false
		d.observers = slices.DeleteFunc(d.observers, func(x *observer) bool { return x == o })
	}
}

// Mutations returns the number of mutations applied so far.
func (d *Document) Mutations() uint64 {
	return d.mutations
}

// emit notifies observers of a change to the attached tree. Changes to
// detached subtrees under construction are not observable; they surface as
// part of the Insert that attaches them.
func (d *Document) emit(m Mutation) {
	target := m.Node
	if m.Parent != nil {
		target = m.Parent
	}
	if !d.Contains(target) {
		return
	}
	d.mutations++
	for _, o := range slices.Clone(d.observers) {
		if o.active {
			o.fn(m)
		}
	}
}

// InsertBefore places child under parent before the reference node. A nil
// before appends. If child is already attached it is moved, which keeps its
// identity, listeners and properties.
func (d *Document) InsertBefore(parent, child, before *html.Node) {
	if before == child {
		return
	}
	kind := MutationInsert
	if child.Parent != nil {
		kind = MutationMove
		child.Parent.RemoveChild(child)
	}
	parent.InsertBefore(child, before)
	d.emit(Mutation{Kind: kind, Node: child, Parent: parent, Before: before})
}

// AppendChild appends child to parent.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.InsertBefore(parent, child, nil)
}

// Remove detaches n from its parent and drops its subtree's listeners,
// properties and ids. Removing a detached node does nothing.
func (d *Document) Remove(n *html.Node) {
	parent := n.Parent
	if parent == nil {
		return
	}
	parent.RemoveChild(n)
	d.emit(Mutation{Kind: MutationRemove, Node: n, Parent: parent})
	d.forget(n)
}

// ReplaceChild puts next where old was and removes old.
func (d *Document) ReplaceChild(old, next *html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	d.InsertBefore(parent, next, old)
	d.Remove(old)
}

// SetText changes the data of a text node.
func (d *Document) SetText(n *html.Node, text string) {
	if n.Data == text {
		return
	}
	n.Data = text
	d.emit(Mutation{Kind: MutationSetText, Node: n, Value: text})
}

// SetAttr sets attribute key on an element.
func (d *Document) SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		a := &n.Attr[i]
		if a.Namespace == "" && a.Key == key {
			if a.Val == val {
				return
			}
			a.Val = val
			d.emit(Mutation{Kind: MutationSetAttr, Node: n, Key: key, Value: val})
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	d.emit(Mutation{Kind: MutationSetAttr, Node: n, Key: key, Value: val})
}

// RemoveAttr removes attribute key from an element.
func (d *Document) RemoveAttr(n *html.Node, key string) {
	i := slices.IndexFunc(n.Attr, func(a html.Attribute) bool {
		return a.Namespace == "" && a.Key == key
	})
	if i < 0 {
		return
	}
	n.Attr = slices.Delete(n.Attr, i, i+1)
	d.emit(Mutation{Kind: MutationRemoveAttr, Node: n, Key: key})
}

// SetProp sets a live property on an element. Properties are not serialized
// as attributes; they carry arbitrary Go values.
func (d *Document) SetProp(n *html.Node, key string, val any) {
	props := d.props[n]
	if props == nil {
		props = make(map[string]any)
		d.props[n] = props
	}
	props[key] = val
	d.emit(Mutation{Kind: MutationSetProp, Node: n, Key: key, Value: fmt.Sprint(val), Prop: val})
}

// RemoveProp deletes a property.
func (d *Document) RemoveProp(n *html.Node, key string) {
	props := d.props[n]
	if _, ok := props[key]; !ok {
		return
	}
	delete(props, key)
	if len(props) == 0 {
		delete(d.props, n)
	}
	d.emit(Mutation{Kind: MutationRemoveProp, Node: n, Key: key})
}

// Prop returns a property value.
func (d *Document) Prop(n *html.Node, key string) (any, bool) {
	v, ok := d.props[n][key]
	return v, ok
}

// Props returns a copy of n's properties.
func (d *Document) Props(n *html.Node) map[string]any {
	src := d.props[n]
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// AddStyle appends <style data-kiln="name"> to the head once per name. It
// reports whether a new style element was created.
func (d *Document) AddStyle(name, css string) bool {
	if _, ok := d.styles[name]; ok {
		return false
	}
	style := d.CreateElement("style")
	style.Attr = []html.Attribute{{Key: "data-kiln", Val: name}}
	style.AppendChild(d.CreateText(css))
	d.styles[name] = style
	d.AppendChild(d.head, style)
	return true
}

// Style returns the style element injected for name.
func (d *Document) Style(name string) *html.Node {
	return d.styles[name]
}
