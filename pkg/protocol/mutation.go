package protocol

import (
	"fmt"

	"github.com/vango-dev/kiln/pkg/dom"
)

// Op identifies a mutation on the wire. Values match dom.MutationKind.
type Op uint8

const (
	OpInsert     = Op(dom.MutationInsert)
	OpMove       = Op(dom.MutationMove)
	OpRemove     = Op(dom.MutationRemove)
	OpSetText    = Op(dom.MutationSetText)
	OpSetAttr    = Op(dom.MutationSetAttr)
	OpRemoveAttr = Op(dom.MutationRemoveAttr)
	OpSetProp    = Op(dom.MutationSetProp)
	OpRemoveProp = Op(dom.MutationRemoveProp)
)

// String returns the operation name.
func (op Op) String() string {
	return dom.MutationKind(op).String()
}

// Mutation is one live-tree change addressed by node ids.
//
// Wire format by op:
//
//	Insert:     [op][parent][before][node]
//	Move:       [op][target][parent][before]
//	Remove:     [op][target]
//	SetText:    [op][target][text]
//	SetAttr:    [op][target][key][value]
//	RemoveAttr: [op][target][key]
//	SetProp:    [op][target][key][value]
//	RemoveProp: [op][target][key]
//
// A before id of 0 means append.
type Mutation struct {
	Op     Op
	Target uint64
	Parent uint64
	Before uint64
	Key    string
	Text   string
	Value  Value
	Node   *Node
}

// MutationFromDOM converts an observed mutation. It must run inside the
// observer callback: removed nodes lose their ids right after it returns.
func MutationFromDOM(doc *dom.Document, m dom.Mutation) Mutation {
	out := Mutation{Op: Op(m.Kind)}
	switch m.Kind {
	case dom.MutationInsert:
		out.Parent = doc.ID(m.Parent)
		if m.Before != nil {
			out.Before = doc.ID(m.Before)
		}
		out.Node = NodeFromDOM(doc, m.Node)
	case dom.MutationMove:
		out.Target = doc.ID(m.Node)
		out.Parent = doc.ID(m.Parent)
		if m.Before != nil {
			out.Before = doc.ID(m.Before)
		}
	case dom.MutationRemove:
		out.Target = doc.ID(m.Node)
	case dom.MutationSetText:
		out.Target = doc.ID(m.Node)
		out.Text = m.Value
	case dom.MutationSetAttr:
		out.Target = doc.ID(m.Node)
		out.Key = m.Key
		out.Text = m.Value
	case dom.MutationSetProp:
		out.Target = doc.ID(m.Node)
		out.Key = m.Key
		out.Value = ValueOf(m.Prop)
	case dom.MutationRemoveAttr, dom.MutationRemoveProp:
		out.Target = doc.ID(m.Node)
		out.Key = m.Key
	}
	return out
}

// MutationBatch is the payload of a mutations frame: everything one flush
// changed, in order.
type MutationBatch struct {
	// Seq increases by one per batch within a session.
	Seq       uint64
	Mutations []Mutation
}

// EncodeMutations encodes a batch.
func EncodeMutations(b *MutationBatch) []byte {
	e := NewEncoder()
	e.WriteUvarint(b.Seq)
	e.WriteUvarint(uint64(len(b.Mutations)))
	for i := range b.Mutations {
		e.writeMutation(&b.Mutations[i])
	}
	return e.Bytes()
}

// DecodeMutations decodes a batch.
func DecodeMutations(data []byte) (*MutationBatch, error) {
	d := NewDecoder(data)
	seq, err := d.ReadUvarint()
	if err != nil {
		return nil, err
	}
	count, err := d.ReadCount()
	if err != nil {
		return nil, err
	}
	b := &MutationBatch{Seq: seq, Mutations: make([]Mutation, count)}
	for i := range b.Mutations {
		if err := d.readMutation(&b.Mutations[i]); err != nil {
			return nil, fmt.Errorf("mutation %d: %w", i, err)
		}
	}
	return b, d.finish()
}

func (e *Encoder) writeMutation(m *Mutation) {
	e.WriteByte(byte(m.Op))
	switch m.Op {
	case OpInsert:
		e.WriteUvarint(m.Parent)
		e.WriteUvarint(m.Before)
		e.writeNode(m.Node)
	case OpMove:
		e.WriteUvarint(m.Target)
		e.WriteUvarint(m.Parent)
		e.WriteUvarint(m.Before)
	case OpRemove:
		e.WriteUvarint(m.Target)
	case OpSetText:
		e.WriteUvarint(m.Target)
		e.WriteString(m.Text)
	case OpSetAttr:
		e.WriteUvarint(m.Target)
		e.WriteString(m.Key)
		e.WriteString(m.Text)
	case OpSetProp:
		e.WriteUvarint(m.Target)
		e.WriteString(m.Key)
		e.writeValue(m.Value)
	case OpRemoveAttr, OpRemoveProp:
		e.WriteUvarint(m.Target)
		e.WriteString(m.Key)
	}
}

func (d *Decoder) readMutation(m *Mutation) error {
	op, err := d.ReadByte()
	if err != nil {
		return err
	}
	m.Op = Op(op)
	switch m.Op {
	case OpInsert:
		if m.Parent, err = d.ReadUvarint(); err != nil {
			return err
		}
		if m.Before, err = d.ReadUvarint(); err != nil {
			return err
		}
		m.Node, err = d.readNode(0)
		return err
	case OpMove:
		if m.Target, err = d.ReadUvarint(); err != nil {
			return err
		}
		if m.Parent, err = d.ReadUvarint(); err != nil {
			return err
		}
		m.Before, err = d.ReadUvarint()
		return err
	case OpRemove:
		m.Target, err = d.ReadUvarint()
		return err
	case OpSetText:
		if m.Target, err = d.ReadUvarint(); err != nil {
			return err
		}
		m.Text, err = d.ReadString()
		return err
	case OpSetAttr:
		if m.Target, err = d.ReadUvarint(); err != nil {
			return err
		}
		if m.Key, err = d.ReadString(); err != nil {
			return err
		}
		m.Text, err = d.ReadString()
		return err
	case OpSetProp:
		if m.Target, err = d.ReadUvarint(); err != nil {
			return err
		}
		if m.Key, err = d.ReadString(); err != nil {
			return err
		}
		m.Value, err = d.readValue()
		return err
	case OpRemoveAttr, OpRemoveProp:
		if m.Target, err = d.ReadUvarint(); err != nil {
			return err
		}
		m.Key, err = d.ReadString()
		return err
	}
	return fmt.Errorf("protocol: invalid mutation op 0x%02x", op)
}
