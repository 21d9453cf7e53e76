package vdom

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/vango-dev/kiln/pkg/dom"
)

// ErrDetached is returned when a patch refers to a node that has no live
// counterpart.
var ErrDetached = errors.New("vdom: patch target has no live node")

// Apply executes patches against doc in order. Nodes created by InsertNode
// and Replace patches get their DOM pointers filled in as they are built.
func Apply(doc *dom.Document, patches []Patch) error {
	for i := range patches {
		if err := apply(doc, &patches[i]); err != nil {
			return fmt.Errorf("vdom: patch %d %s: %w", i, patches[i], err)
		}
	}
	return nil
}

func apply(doc *dom.Document, p *Patch) error {
	switch p.Op {
	case PatchInsertNode, PatchMoveNode:
		if p.Parent == nil || p.Parent.DOM == nil {
			return ErrDetached
		}
		var before *html.Node
		if p.Before != nil {
			if p.Before.DOM == nil {
				return ErrDetached
			}
			before = p.Before.DOM
		}
		if p.Op == PatchInsertNode {
			Build(doc, p.Node)
		} else if p.Node.DOM == nil {
			return ErrDetached
		}
		doc.InsertBefore(p.Parent.DOM, p.Node.DOM, before)
		return nil

	case PatchReplace:
		if p.Old == nil || p.Old.DOM == nil {
			return ErrDetached
		}
		Build(doc, p.Node)
		doc.ReplaceChild(p.Old.DOM, p.Node.DOM)
		return nil
	}

	if p.Node == nil || p.Node.DOM == nil {
		return ErrDetached
	}
	n := p.Node.DOM

	switch p.Op {
	case PatchRemoveNode:
		doc.Remove(n)
	case PatchSetText:
		doc.SetText(n, p.Value)
	case PatchSetAttr:
		doc.SetAttr(n, p.Key, p.Value)
	case PatchRemoveAttr:
		doc.RemoveAttr(n, p.Key)
	case PatchSetProp:
		doc.SetProp(n, p.Key, p.Prop)
	case PatchRemoveProp:
		doc.RemoveProp(n, p.Key)
	case PatchBind:
		doc.Listen(n, p.Key, p.Binding.Handler)
	case PatchUnbind:
		doc.Unlisten(n, p.Key)
	default:
		return fmt.Errorf("vdom: unknown patch op %d", p.Op)
	}
	return nil
}

// Build creates the detached live subtree for v and records the live node
// on every VNode it visits. Component placeholders are built without
// children. A fragment builds nothing and returns nil.
func Build(doc *dom.Document, v *VNode) *html.Node {
	switch v.Kind {
	case KindText:
		v.DOM = doc.CreateText(v.Text)
		return v.DOM
	case KindFragment:
		return nil
	}

	el := doc.CreateElement(v.Tag)
	v.DOM = el
	if len(v.Attrs) > 0 {
		el.Attr = make([]html.Attribute, 0, len(v.Attrs))
		for _, a := range v.Attrs {
			el.Attr = append(el.Attr, html.Attribute{Key: a.Key, Val: a.Value})
		}
	}
	for _, key := range sortedKeys(v.Props) {
		doc.SetProp(el, key, v.Props[key])
	}
	for _, b := range v.Events {
		doc.Listen(el, b.Event, b.Handler)
	}
	if v.Kind == KindComponent {
		return el
	}
	for _, c := range v.Children {
		if child := Build(doc, c); child != nil {
			el.AppendChild(child)
		}
	}
	return el
}
