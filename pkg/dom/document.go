package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrMalformed is returned when parsed markup lacks the html/head/body
// skeleton.
var ErrMalformed = errors.New("dom: document has no head or body")

// Document is a live visual tree.
//
// Nodes are plain *html.Node values. Everything the HTML node type cannot
// hold (properties, event listeners, stable node ids) lives in side tables
// keyed by node pointer. All mutations go through Document methods so that
// observers see every change.
//
// A Document is owned by a single goroutine.
type Document struct {
	root *html.Node
	head *html.Node
	body *html.Node

	ids    map[*html.Node]uint64
	byID   map[uint64]*html.Node
	nextID uint64

	props     map[*html.Node]map[string]any
	listeners map[*html.Node]map[string]Handler

	styles map[string]*html.Node

	observers []*observer
	mutations uint64

	selectors selectorCache
}

// NewDocument returns an empty document: <html><head></head><body></body></html>.
func NewDocument() *Document {
	doc, err := Parse(strings.NewReader("<!DOCTYPE html><html><head></head><body></body></html>"))
	if err != nil {
		panic(fmt.Sprintf("dom: parsing the empty document: %v", err))
	}
	return doc
}

// Parse builds a document from HTML.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse: %w", err)
	}
	d := &Document{
		root:      root,
		ids:       make(map[*html.Node]uint64),
		byID:      make(map[uint64]*html.Node),
		props:     make(map[*html.Node]map[string]any),
		listeners: make(map[*html.Node]map[string]Handler),
		styles:    make(map[string]*html.Node),
		selectors: newSelectorCache(),
	}
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Head:
				if d.head == nil {
					d.head = n
				}
			case atom.Body:
				if d.body == nil {
					d.body = n
				}
			}
		}
		return true
	})
	if d.head == nil || d.body == nil {
		return nil, ErrMalformed
	}
	return d, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Head returns the <head> element.
func (d *Document) Head() *html.Node { return d.head }

// Body returns the <body> element.
func (d *Document) Body() *html.Node { return d.body }

// ID returns the stable id of n, assigning one on first use. Ids are never
// reused within a document.
func (d *Document) ID(n *html.Node) uint64 {
	if id, ok := d.ids[n]; ok {
		return id
	}
	d.nextID++
	d.ids[n] = d.nextID
	d.byID[d.nextID] = n
	return d.nextID
}

// NodeByID returns the node with the given id, or nil if it has been
// removed or never existed.
func (d *Document) NodeByID(id uint64) *html.Node {
	return d.byID[id]
}

// Contains reports whether n is attached to the document.
func (d *Document) Contains(n *html.Node) bool {
	for p := n; p != nil; p = p.Parent {
		if p == d.root {
			return true
		}
	}
	return false
}

// CreateElement returns a detached element.
func (d *Document) CreateElement(tag string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
}

// CreateText returns a detached text node.
func (d *Document) CreateText(text string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: text}
}

// forget drops side-table entries for a removed subtree.
func (d *Document) forget(n *html.Node) {
	walk(n, func(c *html.Node) bool {
		if id, ok := d.ids[c]; ok {
			delete(d.byID, id)
			delete(d.ids, c)
		}
		delete(d.props, c)
		delete(d.listeners, c)
		return true
	})
}

// walk visits n and its descendants in document order. Returning false
// skips the node's children.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the children of that node.
func Walk(n *html.Node, fn func(*html.Node) bool) {
	walk(n, fn)
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// TextContent returns the concatenated text of n's subtree.
func TextContent(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// Elements returns the element children of n.
func Elements(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}
