package vdom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func keyed(tag, key, text string) *VNode {
	n := Element(tag, nil, Text(text))
	n.Key = key
	return n
}

func patchStrings(patches []Patch) []string {
	out := make([]string, len(patches))
	for i, p := range patches {
		out[i] = p.String()
	}
	return out
}

func TestDiffBothNil(t *testing.T) {
	if patches := Diff(nil, nil); len(patches) != 0 {
		t.Errorf("Expected 0 patches, got %d", len(patches))
	}
}

func TestDiffTextChange(t *testing.T) {
	prev := Text("Hello")
	next := Text("World")

	got := patchStrings(Diff(prev, next))
	want := []string{`SetText("World")`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffTextUnchanged(t *testing.T) {
	if patches := Diff(Text("Hello"), Text("Hello")); len(patches) != 0 {
		t.Errorf("Expected 0 patches for unchanged text, got %d", len(patches))
	}
}

func TestDiffCarriesLiveNodes(t *testing.T) {
	doc := newTestDoc()
	prev := Root(doc.Body())
	prev.Children = []*VNode{Element("p", nil, Text("a"))}
	Build(doc, prev.Children[0])
	next := Fragment(Element("p", nil, Text("a")))

	Diff(prev, next)

	if next.DOM != doc.Body() {
		t.Error("root must inherit the host")
	}
	if next.Children[0].DOM != prev.Children[0].DOM {
		t.Error("matched element must inherit the live node")
	}
	if next.Children[0].Children[0].DOM != prev.Children[0].Children[0].DOM {
		t.Error("matched text must inherit the live node")
	}
}

func TestDiffReplace(t *testing.T) {
	tests := []struct {
		name       string
		prev, next *VNode
	}{
		{"tag change", Element("div", nil), Element("span", nil)},
		{"text to element", Text("x"), Element("span", nil)},
		{"element to component", Element("div", nil), &VNode{Kind: KindComponent, Tag: "div", Selector: "div"}},
		{"component selector change",
			&VNode{Kind: KindComponent, Tag: "x-a", Selector: "x-a"},
			&VNode{Kind: KindComponent, Tag: "x-a", Selector: "x-a.big"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patches := Diff(Fragment(tt.prev), Fragment(tt.next))
			if len(patches) != 1 || patches[0].Op != PatchReplace {
				t.Fatalf("patches = %v, want one Replace", patchStrings(patches))
			}
			if patches[0].Old != tt.prev || patches[0].Node != tt.next {
				t.Error("Replace must reference old and new nodes")
			}
		})
	}
}

func TestDiffAttributes(t *testing.T) {
	prev := Element("div", []Attr{{"class", "a"}, {"id", "x"}, {"title", "t"}})
	next := Element("div", []Attr{{"class", "b"}, {"id", "x"}, {"role", "main"}})

	got := patchStrings(Diff(prev, next))
	want := []string{
		`SetAttr(class="b")`,
		`SetAttr(role="main")`,
		`RemoveAttr(title)`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffProps(t *testing.T) {
	prev := Element("input", nil)
	prev.Props = Props{"value": "a", "checked": true, "items": []int{1, 2}}
	next := Element("input", nil)
	next.Props = Props{"value": "b", "checked": true, "items": []int{1, 2}}

	got := patchStrings(Diff(prev, next))
	want := []string{`SetProp(value=b)`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("props compared by value (-want +got):\n%s", diff)
	}

	next2 := Element("input", nil)
	got = patchStrings(Diff(next, next2))
	want = []string{`RemoveProp(checked)`, `RemoveProp(items)`, `RemoveProp(value)`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("removed props (-want +got):\n%s", diff)
	}
}

func TestDiffEventsBySource(t *testing.T) {
	prev := Element("button", nil)
	prev.Events = []Binding{{Event: "click", Source: "inc"}, {Event: "focus", Source: "track"}}

	same := Element("button", nil)
	same.Events = []Binding{{Event: "click", Source: "inc"}, {Event: "focus", Source: "track"}}
	if patches := Diff(prev, same); len(patches) != 0 {
		t.Errorf("same sources must not rebind, got %v", patchStrings(patches))
	}

	changed := Element("button", nil)
	changed.Events = []Binding{{Event: "click", Source: "dec"}}
	got := patchStrings(Diff(prev, changed))
	want := []string{`Bind(click="dec")`, `Unbind(focus)`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffUnkeyedAppendOnly(t *testing.T) {
	prev := Element("ul", nil, Element("li", nil, Text("a")), Element("li", nil, Text("b")))
	next := Element("ul", nil,
		Element("li", nil, Text("a")),
		Element("li", nil, Text("b")),
		Element("li", nil, Text("c")),
		Element("li", nil, Text("d")),
	)

	got := patchStrings(Diff(prev, next))
	want := []string{
		`InsertNode(<li> before end)`,
		`InsertNode(<li> before end)`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffUnkeyedPositional(t *testing.T) {
	prev := Element("ul", nil, Element("li", nil, Text("a")), Element("li", nil, Text("b")))
	next := Element("ul", nil, Element("li", nil, Text("b")))

	got := patchStrings(Diff(prev, next))
	want := []string{`SetText("b")`, `RemoveNode(<li>)`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unkeyed children match by index (-want +got):\n%s", diff)
	}
}

func TestDiffKeyedRotate(t *testing.T) {
	prev := Element("ul", nil, keyed("li", "a", "A"), keyed("li", "b", "B"), keyed("li", "c", "C"))
	next := Element("ul", nil, keyed("li", "c", "C"), keyed("li", "a", "A"), keyed("li", "b", "B"))

	got := patchStrings(Diff(prev, next))
	want := []string{`MoveNode(<li key=c> before <li key=a>)`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("only c should move (-want +got):\n%s", diff)
	}
}

func TestDiffKeyedRemoveKeepsOthers(t *testing.T) {
	prev := Element("ul", nil, keyed("li", "1", "one"), keyed("li", "2", "two"), keyed("li", "3", "three"))
	next := Element("ul", nil, keyed("li", "2", "two"), keyed("li", "3", "three"))

	got := patchStrings(Diff(prev, next))
	want := []string{`RemoveNode(<li key=1>)`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffKeyedInsertAndUpdate(t *testing.T) {
	prev := Element("ul", nil, keyed("li", "a", "A"), keyed("li", "c", "C"))
	next := Element("ul", nil, keyed("li", "a", "A!"), keyed("li", "b", "B"), keyed("li", "c", "C"))

	got := patchStrings(Diff(prev, next))
	want := []string{
		`InsertNode(<li key=b> before <li key=c>)`,
		`SetText("A!")`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestDiffKeyedReverse(t *testing.T) {
	prev := Element("ul", nil, keyed("li", "1", "1"), keyed("li", "2", "2"), keyed("li", "3", "3"), keyed("li", "4", "4"))
	next := Element("ul", nil, keyed("li", "4", "4"), keyed("li", "3", "3"), keyed("li", "2", "2"), keyed("li", "1", "1"))

	moves := 0
	for _, p := range Diff(prev, next) {
		switch p.Op {
		case PatchMoveNode:
			moves++
		case PatchInsertNode, PatchRemoveNode, PatchReplace:
			t.Errorf("unexpected structural patch %s", p)
		}
	}
	if moves != 3 {
		t.Errorf("moves = %d, want 3 (one node stays)", moves)
	}
}

func TestDiffDuplicateKeysFallBack(t *testing.T) {
	prev := Element("ul", nil, keyed("li", "a", "1"), keyed("li", "b", "2"))
	next := Element("ul", nil, keyed("li", "a", "1"), keyed("li", "a", "2"))

	var dups []string
	d := Differ{OnDuplicateKey: func(parent *VNode, key string) {
		dups = append(dups, key)
		if parent != next {
			t.Error("warning should name the offending list")
		}
	}}

	got := patchStrings(d.Diff(prev, next))
	if diff := cmp.Diff([]string{"a"}, dups); diff != "" {
		t.Errorf("duplicate warnings (-want +got):\n%s", diff)
	}
	if len(got) != 0 {
		t.Errorf("positional fallback on equal content should not patch, got %v", got)
	}
}

func TestDiffComponentPlaceholderIgnoresChildren(t *testing.T) {
	prev := &VNode{Kind: KindComponent, Tag: "x-card", Selector: "x-card",
		Attrs: []Attr{{"title", "a"}}, Children: []*VNode{Text("owned by child")}}
	next := &VNode{Kind: KindComponent, Tag: "x-card", Selector: "x-card",
		Attrs: []Attr{{"title", "b"}}}

	got := patchStrings(Diff(prev, next))
	want := []string{`SetAttr(title="b")`}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}
}

func TestLongestIncreasing(t *testing.T) {
	tests := []struct {
		in   []int
		want []bool
	}{
		{nil, []bool{}},
		{[]int{0, 1, 2}, []bool{true, true, true}},
		{[]int{2, 0, 1}, []bool{false, true, true}},
		{[]int{-1, 0, -1, 1}, []bool{false, true, false, true}},
		{[]int{3, 2, 1, 0}, []bool{false, false, false, true}},
	}
	for _, tt := range tests {
		got := longestIncreasing(tt.in)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("longestIncreasing(%v) (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestPropsEqual(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{"a", "a", true},
		{"a", "b", false},
		{1, 1, true},
		{1, int64(1), false},
		{nil, nil, true},
		{[]string{"x"}, []string{"x"}, true},
		{map[string]int{"a": 1}, map[string]int{"a": 2}, false},
	}
	for _, tt := range tests {
		if got := propsEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("propsEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
