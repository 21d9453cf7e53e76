package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/kiln/pkg/dom"
)

func TestVarintBoundaries(t *testing.T) {
	tests := []struct {
		v    uint64
		size int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{1<<64 - 1, 10},
	}
	for _, tt := range tests {
		e := NewEncoder()
		e.WriteUvarint(tt.v)
		if e.Len() != tt.size {
			t.Errorf("WriteUvarint(%d) used %d bytes, want %d", tt.v, e.Len(), tt.size)
		}
		got, err := NewDecoder(e.Bytes()).ReadUvarint()
		if err != nil || got != tt.v {
			t.Errorf("ReadUvarint = %d, %v, want %d", got, err, tt.v)
		}
	}

	for _, v := range []int64{0, -1, 1, -64, 63, -1 << 63} {
		e := NewEncoder()
		e.WriteSvarint(v)
		got, err := NewDecoder(e.Bytes()).ReadSvarint()
		if err != nil || got != v {
			t.Errorf("ReadSvarint = %d, %v, want %d", got, err, v)
		}
	}

	overflow := bytes.Repeat([]byte{0xff}, 11)
	if _, err := NewDecoder(overflow).ReadUvarint(); !errors.Is(err, ErrVarintOverflow) {
		t.Errorf("overflow err = %v", err)
	}
}

func TestDecoderLimits(t *testing.T) {
	e := NewEncoder()
	e.WriteUvarint(MaxAllocation + 1)
	if _, err := NewDecoder(e.Bytes()).ReadString(); !errors.Is(err, ErrAllocationTooLarge) {
		t.Errorf("ReadString err = %v", err)
	}

	e.Reset()
	e.WriteUvarint(MaxCollectionCount + 1)
	if _, err := NewDecoder(e.Bytes()).ReadCount(); !errors.Is(err, ErrCollectionTooLarge) {
		t.Errorf("ReadCount err = %v", err)
	}

	e.Reset()
	e.WriteUvarint(50)
	if _, err := NewDecoder(e.Bytes()).ReadCount(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("count beyond input err = %v", err)
	}

	if _, err := NewDecoder([]byte{0x02}).ReadBool(); !errors.Is(err, ErrInvalidBool) {
		t.Errorf("ReadBool err = %v", err)
	}
}

func TestNodeDepthLimit(t *testing.T) {
	root := &Node{Kind: NodeElement, ID: 1, Tag: "div"}
	n := root
	for i := 0; i < MaxNodeDepth+1; i++ {
		c := &Node{Kind: NodeElement, ID: uint64(i + 2), Tag: "div"}
		n.Children = []*Node{c}
		n = c
	}
	if _, err := DecodeNode(EncodeNode(root)); !errors.Is(err, ErrMaxDepthExceeded) {
		t.Errorf("err = %v, want ErrMaxDepthExceeded", err)
	}
}

func TestFrames(t *testing.T) {
	f := NewFrame(FrameEvent, []byte{1, 2, 3})
	f.Flags = FlagResumed
	data := f.Encode()
	if len(data) != FrameHeaderSize+3 {
		t.Fatalf("len = %d", len(data))
	}

	got, err := DecodeFrame(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != FrameEvent || !got.Flags.Has(FlagResumed) || !bytes.Equal(got.Payload, []byte{1, 2, 3}) {
		t.Errorf("DecodeFrame = %+v", got)
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, NewFrame(FramePing, nil)); err != nil {
		t.Fatal(err)
	}
	if err := WriteFrame(&buf, f); err != nil {
		t.Fatal(err)
	}
	first, err := ReadFrame(&buf)
	if err != nil || first.Type != FramePing || len(first.Payload) != 0 {
		t.Errorf("ReadFrame = %+v, %v", first, err)
	}
	second, err := ReadFrame(&buf)
	if err != nil || second.Type != FrameEvent {
		t.Errorf("ReadFrame = %+v, %v", second, err)
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short header", []byte{0x01, 0x00}, io.ErrUnexpectedEOF},
		{"bad type", []byte{0x7f, 0, 0, 0, 0, 0}, ErrInvalidFrameType},
		{"short payload", []byte{0x01, 0, 0, 0, 0, 4, 1}, io.ErrUnexpectedEOF},
		{"trailing", []byte{0x04, 0, 0, 0, 0, 0, 9}, ErrTrailingBytes},
		{"too large", []byte{0x01, 0, 0xff, 0xff, 0xff, 0xff}, ErrFrameTooLarge},
	}
	for _, tt := range tests {
		if _, err := DecodeFrame(tt.data); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestFrameTypeString(t *testing.T) {
	if FrameMutations.String() != "mutations" || FrameType(0x42).String() != "frame(0x42)" {
		t.Error("unexpected frame names")
	}
}

type label string

func (l label) String() string { return "label:" + string(l) }

func TestValueOf(t *testing.T) {
	var nilMap map[string]int
	tests := []struct {
		in   any
		want Value
	}{
		{nil, Value{Type: ValueNull}},
		{true, Value{Type: ValueBool, Bool: true}},
		{42, Value{Type: ValueInt, Int: 42}},
		{uint8(7), Value{Type: ValueInt, Int: 7}},
		{1.5, Value{Type: ValueFloat, Float: 1.5}},
		{"x", Value{Type: ValueString, String: "x"}},
		{label("a"), Value{Type: ValueString, String: "label:a"}},
		{nilMap, Value{Type: ValueNull}},
		{[]int{1, 2}, Value{Type: ValueString, String: "[1 2]"}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ValueOf(tt.in)); diff != "" {
			t.Errorf("ValueOf(%v) (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestNodeFromDOM(t *testing.T) {
	doc, err := dom.Parse(strings.NewReader(`<ul class="list"><li>a</li><!-- note --><li>b</li></ul>`))
	if err != nil {
		t.Fatal(err)
	}
	ul, err := doc.Query("ul")
	if err != nil {
		t.Fatal(err)
	}
	doc.SetProp(ul, "checked", true)

	n := NodeFromDOM(doc, ul)
	if n.ID != doc.ID(ul) || n.Tag != "ul" {
		t.Errorf("root = %+v", n)
	}
	if diff := cmp.Diff([]Attr{{Key: "class", Val: "list"}}, n.Attrs); diff != "" {
		t.Errorf("attrs (-want +got):\n%s", diff)
	}
	if len(n.Props) != 1 || n.Props[0].Value.Any() != true {
		t.Errorf("props = %+v", n.Props)
	}
	if len(n.Children) != 2 {
		t.Fatalf("children = %d, want 2 (comment skipped)", len(n.Children))
	}
	if txt := n.Children[1].Children[0]; txt.Kind != NodeText || txt.Text != "b" {
		t.Errorf("text = %+v", txt)
	}

	back, err := DecodeNode(EncodeNode(n))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(n, back); diff != "" {
		t.Errorf("decoded node (-want +got):\n%s", diff)
	}
}

func TestMutationsFromDocument(t *testing.T) {
	doc := dom.NewDocument()
	body := doc.Body()
	a := doc.CreateElement("p")
	b := doc.CreateElement("p")
	doc.AppendChild(body, a)
	doc.AppendChild(body, b)
	NodeFromDOM(doc, body.Parent)

	var batch MutationBatch
	stop := doc.Observe(func(m dom.Mutation) {
		batch.Mutations = append(batch.Mutations, MutationFromDOM(doc, m))
	})
	defer stop()

	aID, bID, bodyID := doc.ID(a), doc.ID(b), doc.ID(body)
	span := doc.CreateElement("span")
	span.AppendChild(doc.CreateText("hi"))
	doc.InsertBefore(a, span, nil)
	doc.InsertBefore(body, b, a)
	doc.SetAttr(a, "class", "on")
	doc.SetProp(a, "value", 3)
	doc.RemoveAttr(a, "class")
	doc.Remove(b)

	want := []Op{OpInsert, OpMove, OpSetAttr, OpSetProp, OpRemoveAttr, OpRemove}
	var ops []Op
	for _, m := range batch.Mutations {
		ops = append(ops, m.Op)
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Fatalf("ops (-want +got):\n%s", diff)
	}
	ins := batch.Mutations[0]
	if ins.Parent != aID || ins.Before != 0 || ins.Node.Tag != "span" || ins.Node.Children[0].Text != "hi" {
		t.Errorf("insert = %+v", ins)
	}
	if mv := batch.Mutations[1]; mv.Target != bID || mv.Parent != bodyID || mv.Before != aID {
		t.Errorf("move = %+v", mv)
	}
	if rm := batch.Mutations[5]; rm.Target != bID {
		t.Errorf("remove target = %d, want %d", rm.Target, bID)
	}
	if doc.NodeByID(bID) != nil {
		t.Error("removed node should have lost its id")
	}

	batch.Seq = 9
	got, err := DecodeMutations(EncodeMutations(&batch))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&batch, got); diff != "" {
		t.Errorf("decoded batch (-want +got):\n%s", diff)
	}
}

func TestDecodeMutationsRejectsUnknownOp(t *testing.T) {
	if _, err := DecodeMutations([]byte{1, 1, 0x7f}); err == nil || !strings.Contains(err.Error(), "invalid mutation op") {
		t.Errorf("err = %v", err)
	}
}

func TestEventAndSnapshot(t *testing.T) {
	ev, err := DecodeEvent(EncodeEvent(&Event{Seq: 3, Target: 12, Type: "KeyDown", Detail: ValueOf("Enter")}))
	if err != nil {
		t.Fatal(err)
	}
	if ev.Type != "keydown" || ev.Target != 12 || ev.Detail.Any() != "Enter" {
		t.Errorf("event = %+v", ev)
	}

	snap := &Snapshot{Seq: 4, Session: "abc", Root: &Node{Kind: NodeText, ID: 1, Text: "x"}}
	got, err := DecodeSnapshot(EncodeSnapshot(snap))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("snapshot (-want +got):\n%s", diff)
	}

	em, err := DecodeErrorMessage(EncodeErrorMessage(&ErrorMessage{Code: CodeSessionNotFound, Message: "gone", Fatal: true}))
	if err != nil {
		t.Fatal(err)
	}
	if em.Error() != "fatal: P004: gone" {
		t.Errorf("Error() = %q", em.Error())
	}
}
