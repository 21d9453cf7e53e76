package vdom

import (
	"fmt"
	"reflect"
	"strconv"
)

// Differ computes patch sequences. The zero value is ready to use.
type Differ struct {
	// OnDuplicateKey is called once per child list that contains the same
	// key twice. That list is then reconciled positionally.
	OnDuplicateKey func(parent *VNode, key string)
}

// Diff compares two VNode trees and returns the patches needed to transform
// prev into next. Live node pointers of matched nodes are copied from prev
// to next.
func Diff(prev, next *VNode) []Patch {
	var d Differ
	return d.Diff(prev, next)
}

// Diff compares two VNode trees. See the package function Diff.
func (d *Differ) Diff(prev, next *VNode) []Patch {
	var patches []Patch
	d.diff(prev, next, &patches)
	return patches
}

func (d *Differ) diff(prev, next *VNode, patches *[]Patch) {
	// Insertions and removals are decided by the parent.
	if prev == nil || next == nil {
		return
	}

	if !sameType(prev, next) {
		*patches = append(*patches, Patch{Op: PatchReplace, Old: prev, Node: next})
		return
	}

	next.DOM = prev.DOM

	switch prev.Kind {
	case KindText:
		if prev.Text != next.Text {
			*patches = append(*patches, Patch{Op: PatchSetText, Node: next, Value: next.Text})
		}
	case KindElement:
		diffAttrs(prev, next, patches)
		diffProps(prev, next, patches)
		diffEvents(prev, next, patches)
		d.diffChildren(prev, next, patches)
	case KindFragment:
		d.diffChildren(prev, next, patches)
	case KindComponent:
		// The placeholder's content belongs to the child instance.
		diffAttrs(prev, next, patches)
		diffProps(prev, next, patches)
		diffEvents(prev, next, patches)
	}
}

// sameType reports whether next can be patched in place of prev.
func sameType(prev, next *VNode) bool {
	if prev.Kind != next.Kind {
		return false
	}
	switch prev.Kind {
	case KindElement:
		return prev.Tag == next.Tag
	case KindComponent:
		return prev.Tag == next.Tag && prev.Selector == next.Selector
	}
	return true
}

// diffAttrs compares string attributes key by key.
func diffAttrs(prev, next *VNode, patches *[]Patch) {
	for _, a := range next.Attrs {
		if old, ok := prev.Attr(a.Key); !ok || old != a.Value {
			*patches = append(*patches, Patch{Op: PatchSetAttr, Node: next, Key: a.Key, Value: a.Value})
		}
	}
	for _, a := range prev.Attrs {
		if _, ok := next.Attr(a.Key); !ok {
			*patches = append(*patches, Patch{Op: PatchRemoveAttr, Node: next, Key: a.Key})
		}
	}
}

// diffProps compares live properties by value.
func diffProps(prev, next *VNode, patches *[]Patch) {
	for _, key := range sortedKeys(next.Props) {
		nextVal := next.Props[key]
		if prevVal, ok := prev.Props[key]; !ok || !propsEqual(prevVal, nextVal) {
			*patches = append(*patches, Patch{
				Op:    PatchSetProp,
				Node:  next,
				Key:   key,
				Value: propToString(nextVal),
				Prop:  nextVal,
			})
		}
	}
	for _, key := range sortedKeys(prev.Props) {
		if _, ok := next.Props[key]; !ok {
			*patches = append(*patches, Patch{Op: PatchRemoveProp, Node: next, Key: key})
		}
	}
}

// diffEvents rebinds a handler only when its source text changed.
func diffEvents(prev, next *VNode, patches *[]Patch) {
	for _, b := range next.Events {
		if old, ok := prev.Binding(b.Event); !ok || old.Source != b.Source {
			*patches = append(*patches, Patch{Op: PatchBind, Node: next, Key: b.Event, Binding: b})
		}
	}
	for _, b := range prev.Events {
		if _, ok := next.Binding(b.Event); !ok {
			*patches = append(*patches, Patch{Op: PatchUnbind, Node: next, Key: b.Event})
		}
	}
}

// diffChildren compares and patches child nodes.
func (d *Differ) diffChildren(prev, next *VNode, patches *[]Patch) {
	if !hasKeys(prev.Children) && !hasKeys(next.Children) {
		d.diffUnkeyedChildren(prev, next, patches)
		return
	}
	if key, dup := duplicateKey(next.Children); dup {
		if d.OnDuplicateKey != nil {
			d.OnDuplicateKey(next, key)
		}
		d.diffUnkeyedChildren(prev, next, patches)
		return
	}
	d.diffKeyedChildren(prev, next, patches)
}

// diffUnkeyedChildren matches children strictly by index. New trailing
// children are appended; surplus old children are removed.
func (d *Differ) diffUnkeyedChildren(prev, next *VNode, patches *[]Patch) {
	common := min(len(prev.Children), len(next.Children))
	for i := 0; i < common; i++ {
		d.diff(prev.Children[i], next.Children[i], patches)
	}
	for _, child := range next.Children[common:] {
		*patches = append(*patches, Patch{Op: PatchInsertNode, Node: child, Parent: next})
	}
	for _, child := range prev.Children[common:] {
		*patches = append(*patches, Patch{Op: PatchRemoveNode, Node: child})
	}
}

// diffKeyedChildren matches children by key. Unkeyed children in a keyed
// list match positionally among themselves.
func (d *Differ) diffKeyedChildren(prev, next *VNode, patches *[]Patch) {
	prevKeys := childKeys(prev.Children)
	nextKeys := childKeys(next.Children)

	prevIndex := make(map[string]int, len(prevKeys))
	for i, k := range prevKeys {
		if _, exists := prevIndex[k]; !exists {
			prevIndex[k] = i
		}
	}

	// sources[i] is the previous index of next child i, or -1 if it is new.
	sources := make([]int, len(next.Children))
	matched := make([]bool, len(prev.Children))
	for i, k := range nextKeys {
		sources[i] = -1
		j, ok := prevIndex[k]
		if !ok || matched[j] || !sameType(prev.Children[j], next.Children[i]) {
			continue
		}
		sources[i] = j
		matched[j] = true
	}

	for j, child := range prev.Children {
		if !matched[j] {
			*patches = append(*patches, Patch{Op: PatchRemoveNode, Node: child})
		}
	}

	stay := longestIncreasing(sources)

	// Walk backwards so every node is placed before a sibling that is
	// already in its final position.
	for i := len(next.Children) - 1; i >= 0; i-- {
		child := next.Children[i]
		var before *VNode
		if i+1 < len(next.Children) {
			before = next.Children[i+1]
		}

		if sources[i] < 0 {
			*patches = append(*patches, Patch{Op: PatchInsertNode, Node: child, Parent: next, Before: before})
			continue
		}

		d.diff(prev.Children[sources[i]], child, patches)
		if !stay[i] {
			*patches = append(*patches, Patch{Op: PatchMoveNode, Node: child, Parent: next, Before: before})
		}
	}
}

// longestIncreasing marks the positions of sources that lie on a longest
// strictly increasing subsequence. Negative entries are never marked.
func longestIncreasing(sources []int) []bool {
	stay := make([]bool, len(sources))

	// tails[k] is the index into sources of the smallest tail of an
	// increasing subsequence of length k+1.
	var tails []int
	prevOf := make([]int, len(sources))

	for i, v := range sources {
		if v < 0 {
			continue
		}
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if sources[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prevOf[i] = tails[lo-1]
		} else {
			prevOf[i] = -1
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}

	if len(tails) == 0 {
		return stay
	}
	for i := tails[len(tails)-1]; i >= 0; i = prevOf[i] {
		stay[i] = true
	}
	return stay
}

// childKeys returns the matching key of every child. Unkeyed children get
// a positional key that cannot collide with user keys.
func childKeys(children []*VNode) []string {
	keys := make([]string, len(children))
	n := 0
	for i, c := range children {
		if c.Key != "" {
			keys[i] = "k:" + c.Key
			continue
		}
		keys[i] = "#" + strconv.Itoa(n)
		n++
	}
	return keys
}

// hasKeys returns true if any child has a key.
func hasKeys(children []*VNode) bool {
	for _, child := range children {
		if child != nil && child.Key != "" {
			return true
		}
	}
	return false
}

func duplicateKey(children []*VNode) (string, bool) {
	seen := make(map[string]struct{}, len(children))
	for _, c := range children {
		if c.Key == "" {
			continue
		}
		if _, ok := seen[c.Key]; ok {
			return c.Key, true
		}
		seen[c.Key] = struct{}{}
	}
	return "", false
}

// propsEqual compares two prop values for equality.
func propsEqual(a, b any) bool {
	// Fast path for common types
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case int:
		bv, ok := b.(int)
		return ok && av == bv
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case nil:
		return b == nil
	}
	return reflect.DeepEqual(a, b)
}

// propToString converts a prop value to its wire form.
func propToString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
