package protocol

import (
	"fmt"
	"sort"

	"golang.org/x/net/html"

	"github.com/vango-dev/kiln/pkg/dom"
)

// NodeKind distinguishes wire nodes.
type NodeKind uint8

const (
	NodeElement NodeKind = 0x01
	NodeText    NodeKind = 0x02
)

// Attr is one element attribute.
type Attr struct {
	Key, Val string
}

// Prop is one live element property.
type Prop struct {
	Key   string
	Value Value
}

// Node is a live-tree node as sent to the client. ID is the node's
// document id; mutations address nodes by it.
//
// Wire format:
//
//	element: [0x01][id][tag][#attrs][key val]*[#props][key value]*[#children][node]*
//	text:    [0x02][id][data]
type Node struct {
	Kind     NodeKind
	ID       uint64
	Tag      string
	Attrs    []Attr
	Props    []Prop
	Children []*Node
	Text     string
}

// NodeFromDOM captures n and its subtree. Comments, doctypes and other
// node types are skipped. Every captured node gets a document id.
func NodeFromDOM(doc *dom.Document, n *html.Node) *Node {
	switch n.Type {
	case html.TextNode:
		return &Node{Kind: NodeText, ID: doc.ID(n), Text: n.Data}
	case html.ElementNode:
	default:
		return nil
	}

	out := &Node{Kind: NodeElement, ID: doc.ID(n), Tag: n.Data}
	for _, a := range n.Attr {
		if a.Namespace != "" {
			continue
		}
		out.Attrs = append(out.Attrs, Attr{Key: a.Key, Val: a.Val})
	}
	if props := doc.Props(n); len(props) > 0 {
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out.Props = append(out.Props, Prop{Key: k, Value: ValueOf(props[k])})
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if child := NodeFromDOM(doc, c); child != nil {
			out.Children = append(out.Children, child)
		}
	}
	return out
}

// EncodeNode encodes a node tree.
func EncodeNode(n *Node) []byte {
	e := NewEncoder()
	e.writeNode(n)
	return e.Bytes()
}

// DecodeNode decodes a node tree.
func DecodeNode(data []byte) (*Node, error) {
	d := NewDecoder(data)
	n, err := d.readNode(0)
	if err != nil {
		return nil, err
	}
	return n, d.finish()
}

func (e *Encoder) writeNode(n *Node) {
	e.WriteByte(byte(n.Kind))
	e.WriteUvarint(n.ID)
	if n.Kind == NodeText {
		e.WriteString(n.Text)
		return
	}
	e.WriteString(n.Tag)
	e.WriteUvarint(uint64(len(n.Attrs)))
	for _, a := range n.Attrs {
		e.WriteString(a.Key)
		e.WriteString(a.Val)
	}
	e.WriteUvarint(uint64(len(n.Props)))
	for _, p := range n.Props {
		e.WriteString(p.Key)
		e.writeValue(p.Value)
	}
	e.WriteUvarint(uint64(len(n.Children)))
	for _, c := range n.Children {
		e.writeNode(c)
	}
}

func (d *Decoder) readNode(depth int) (*Node, error) {
	if depth >= MaxNodeDepth {
		return nil, ErrMaxDepthExceeded
	}
	kind, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	n := &Node{Kind: NodeKind(kind)}
	if n.ID, err = d.ReadUvarint(); err != nil {
		return nil, err
	}
	switch n.Kind {
	case NodeText:
		n.Text, err = d.ReadString()
		return n, err
	case NodeElement:
	default:
		return nil, fmt.Errorf("protocol: invalid node kind 0x%02x", kind)
	}

	if n.Tag, err = d.ReadString(); err != nil {
		return nil, err
	}
	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		var a Attr
		if a.Key, err = d.ReadString(); err != nil {
			return nil, err
		}
		if a.Val, err = d.ReadString(); err != nil {
			return nil, err
		}
		n.Attrs = append(n.Attrs, a)
	}
	if count, err = d.ReadCount(); err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		var p Prop
		if p.Key, err = d.ReadString(); err != nil {
			return nil, err
		}
		if p.Value, err = d.readValue(); err != nil {
			return nil, err
		}
		n.Props = append(n.Props, p)
	}
	if count, err = d.ReadCount(); err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		c, err := d.readNode(depth + 1)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	return n, nil
}
