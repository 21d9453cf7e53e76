package vdom

import "fmt"

// PatchOp is the type of patch operation.
type PatchOp uint8

const (
	PatchSetText    PatchOp = 0x01 // Update text content
	PatchSetAttr    PatchOp = 0x02 // Set/update attribute
	PatchRemoveAttr PatchOp = 0x03 // Remove attribute
	PatchInsertNode PatchOp = 0x04 // Build and insert a new subtree
	PatchRemoveNode PatchOp = 0x05 // Remove a subtree
	PatchMoveNode   PatchOp = 0x06 // Relocate an existing node
	PatchReplace    PatchOp = 0x07 // Replace a node entirely
	PatchSetProp    PatchOp = 0x08 // Assign a live property
	PatchRemoveProp PatchOp = 0x09 // Delete a live property
	PatchBind       PatchOp = 0x0A // Install or replace an event handler
	PatchUnbind     PatchOp = 0x0B // Release an event handler
)

// String returns the string representation of the PatchOp.
func (op PatchOp) String() string {
	switch op {
	case PatchSetText:
		return "SetText"
	case PatchSetAttr:
		return "SetAttr"
	case PatchRemoveAttr:
		return "RemoveAttr"
	case PatchInsertNode:
		return "InsertNode"
	case PatchRemoveNode:
		return "RemoveNode"
	case PatchMoveNode:
		return "MoveNode"
	case PatchReplace:
		return "Replace"
	case PatchSetProp:
		return "SetProp"
	case PatchRemoveProp:
		return "RemoveProp"
	case PatchBind:
		return "Bind"
	case PatchUnbind:
		return "Unbind"
	default:
		return "Unknown"
	}
}

// Patch is a single live-tree operation.
//
// Nodes are referenced as VNodes, not live nodes, because an insert creates
// its live node only when applied. Apply resolves VNode.DOM at execution
// time, so a patch may refer to a sibling inserted by an earlier patch.
type Patch struct {
	Op PatchOp

	// Node is the node the operation targets. For InsertNode and Replace it
	// is the new node to build.
	Node *VNode

	// Old is the node being replaced by a Replace patch.
	Old *VNode

	// Parent is the container for InsertNode and MoveNode.
	Parent *VNode

	// Before is the sibling to insert in front of. Nil appends.
	Before *VNode

	// Key is the attribute, property or event name.
	Key string

	// Value is the new text or attribute value.
	Value string

	// Prop is the new property value for SetProp.
	Prop any

	// Binding is the handler for Bind.
	Binding Binding
}

// String describes the patch for logs and test failures.
func (p Patch) String() string {
	switch p.Op {
	case PatchSetText:
		return fmt.Sprintf("SetText(%q)", p.Value)
	case PatchSetAttr:
		return fmt.Sprintf("SetAttr(%s=%q)", p.Key, p.Value)
	case PatchRemoveAttr, PatchRemoveProp, PatchUnbind:
		return fmt.Sprintf("%s(%s)", p.Op, p.Key)
	case PatchSetProp:
		return fmt.Sprintf("SetProp(%s=%v)", p.Key, p.Prop)
	case PatchBind:
		return fmt.Sprintf("Bind(%s=%q)", p.Key, p.Binding.Source)
	case PatchInsertNode, PatchMoveNode:
		before := "end"
		if p.Before != nil {
			before = p.Before.describe()
		}
		return fmt.Sprintf("%s(%s before %s)", p.Op, p.Node.describe(), before)
	case PatchRemoveNode:
		return fmt.Sprintf("RemoveNode(%s)", p.Node.describe())
	case PatchReplace:
		return fmt.Sprintf("Replace(%s with %s)", p.Old.describe(), p.Node.describe())
	}
	return p.Op.String()
}

func (v *VNode) describe() string {
	switch {
	case v == nil:
		return "nil"
	case v.Kind == KindText:
		return fmt.Sprintf("%q", v.Text)
	case v.Key != "":
		return fmt.Sprintf("<%s key=%s>", v.Tag, v.Key)
	default:
		return fmt.Sprintf("<%s>", v.Tag)
	}
}
