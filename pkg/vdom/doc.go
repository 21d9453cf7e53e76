// Package vdom provides kiln's structured node tree and reconciler.
//
// A render pass produces a fresh VNode tree rooted at a KindFragment whose
// DOM is the component's host element. The reconciler works in two phases:
// Diff compares the previous tree with the new one and returns the complete
// patch sequence, then Apply executes it against a dom.Document. No live
// mutation happens until every patch is known.
//
// # Matching
//
// Nodes of different kinds, or elements with different tags, are replaced
// wholesale. Attributes are diffed key by key; live properties are compared
// by value; event bindings are compared by their source text.
//
// Keyed children are matched by key regardless of position. The nodes on
// the longest increasing subsequence of their previous positions stay put;
// every other retained node is moved, unmatched old nodes are removed and
// new ones are inserted. Unkeyed children match strictly by index, so
// appending touches only the tail. A list with duplicate keys is reported
// through Differ.OnDuplicateKey and reconciled positionally.
//
// Component placeholders are diffed for their own attributes, properties
// and bindings only. Their children belong to the child component.
package vdom
