package vdom

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/vango-dev/kiln/pkg/dom"
)

func newTestDoc() *dom.Document {
	return dom.NewDocument()
}

// render diffs prev against next, applies the result and returns the
// number of live mutations it caused.
func render(t *testing.T, doc *dom.Document, prev, next *VNode) uint64 {
	t.Helper()
	before := doc.Mutations()
	if err := Apply(doc, Diff(prev, next)); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return doc.Mutations() - before
}

func list(keys ...string) *VNode {
	ul := Element("ul", nil)
	for _, k := range keys {
		ul.Children = append(ul.Children, keyed("li", k, k))
	}
	return Fragment(ul)
}

func TestApplyInitialMount(t *testing.T) {
	doc := newTestDoc()
	root := Root(doc.Body())

	clicks := 0
	btn := Element("button", []Attr{{"class", "primary"}}, Text("go"))
	btn.Events = []Binding{{Event: "click", Source: "go", Handler: func(*dom.Event) { clicks++ }}}
	btn.Props = Props{"disabled": false}
	next := Fragment(Element("p", nil, Text("hello")), btn)

	render(t, doc, root, next)

	want := `<p>hello</p><button class="primary">go</button>`
	if diff := cmp.Diff(want, dom.InnerHTML(doc.Body())); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	if btn.DOM == nil || btn.DOM.Parent != doc.Body() {
		t.Fatal("built node must be recorded and attached")
	}
	if v, ok := doc.Prop(btn.DOM, "disabled"); !ok || v != false {
		t.Errorf("prop disabled = %v, %v", v, ok)
	}

	doc.Dispatch(btn.DOM, dom.NewEvent("click"))
	if clicks != 1 {
		t.Errorf("clicks = %d, want 1", clicks)
	}
}

func TestApplyIdenticalRenderIsSilent(t *testing.T) {
	doc := newTestDoc()
	first := list("a", "b", "c")
	render(t, doc, Root(doc.Body()), first)

	second := list("a", "b", "c")
	if n := render(t, doc, first, second); n != 0 {
		t.Errorf("identical render caused %d mutations, want 0", n)
	}
}

func TestApplyKeyedReorderKeepsNodes(t *testing.T) {
	doc := newTestDoc()
	first := list("A", "B", "C")
	render(t, doc, Root(doc.Body()), first)

	ul := first.Children[0]
	nodes := map[string]*html.Node{}
	for _, li := range ul.Children {
		nodes[li.Key] = li.DOM
	}

	second := list("C", "A", "B")
	n := render(t, doc, first, second)

	if got := dom.InnerHTML(ul.DOM); got != "<li>C</li><li>A</li><li>B</li>" {
		t.Errorf("ul = %s", got)
	}
	for _, li := range second.Children[0].Children {
		if li.DOM != nodes[li.Key] {
			t.Errorf("key %s got a new live node", li.Key)
		}
	}
	if n != 1 {
		t.Errorf("mutations = %d, want 1 move", n)
	}
}

func TestApplyKeyedFilter(t *testing.T) {
	doc := newTestDoc()
	first := list("1", "2", "3")
	render(t, doc, Root(doc.Body()), first)
	two := first.Children[0].Children[1].DOM

	second := list("2", "3")
	render(t, doc, first, second)

	if second.Children[0].Children[0].DOM != two {
		t.Error("item 2 must keep its live node after item 1 is removed")
	}
	if got := dom.InnerHTML(doc.Body()); got != "<ul><li>2</li><li>3</li></ul>" {
		t.Errorf("body = %s", got)
	}
}

func TestApplyKeyedShuffle(t *testing.T) {
	doc := newTestDoc()
	prev := list("a", "b", "c", "d", "e")
	render(t, doc, Root(doc.Body()), prev)

	steps := [][]string{
		{"e", "d", "c", "b", "a"},
		{"b", "x", "e", "a"},
		{"y", "a", "b", "z", "e", "x"},
		{},
		{"q", "r"},
	}
	for _, keys := range steps {
		next := list(keys...)
		render(t, doc, prev, next)

		want := ""
		for _, k := range keys {
			want += "<li>" + k + "</li>"
		}
		if got := dom.InnerHTML(next.Children[0].DOM); got != want {
			t.Errorf("after %v: ul = %s, want %s", keys, got, want)
		}
		prev = next
	}
}

func TestApplyUnkeyedAppendTouchesOnlyTail(t *testing.T) {
	doc := newTestDoc()
	mk := func(items ...string) *VNode {
		ul := Element("ul", nil)
		for _, it := range items {
			ul.Children = append(ul.Children, Element("li", nil, Text(it)))
		}
		return Fragment(ul)
	}
	first := mk("a", "b")
	render(t, doc, Root(doc.Body()), first)

	var kinds []dom.MutationKind
	stop := doc.Observe(func(m dom.Mutation) { kinds = append(kinds, m.Kind) })
	defer stop()

	render(t, doc, first, mk("a", "b", "c"))

	if diff := cmp.Diff([]dom.MutationKind{dom.MutationInsert}, kinds); diff != "" {
		t.Errorf("mutations (-want +got):\n%s", diff)
	}
}

func TestApplyReplace(t *testing.T) {
	doc := newTestDoc()
	first := Fragment(Element("div", nil, Text("x")))
	render(t, doc, Root(doc.Body()), first)

	second := Fragment(Element("section", nil, Text("y")))
	render(t, doc, first, second)

	if got := dom.InnerHTML(doc.Body()); got != "<section>y</section>" {
		t.Errorf("body = %s", got)
	}
}

func TestApplyRebindReleasesOldHandler(t *testing.T) {
	doc := newTestDoc()
	var calls []string
	mk := func(src string) *VNode {
		b := Element("button", nil)
		b.Events = []Binding{{Event: "click", Source: src, Handler: func(*dom.Event) { calls = append(calls, src) }}}
		return Fragment(b)
	}

	first := mk("one")
	render(t, doc, Root(doc.Body()), first)
	second := mk("two")
	render(t, doc, first, second)

	doc.Dispatch(second.Children[0].DOM, dom.NewEvent("click"))
	if diff := cmp.Diff([]string{"two"}, calls); diff != "" {
		t.Errorf("calls (-want +got):\n%s", diff)
	}
	if doc.ListenerCount() != 1 {
		t.Errorf("ListenerCount() = %d, want 1", doc.ListenerCount())
	}
}

func TestApplyDetachedTarget(t *testing.T) {
	doc := newTestDoc()
	err := Apply(doc, []Patch{{Op: PatchSetText, Node: Text("x"), Value: "y"}})
	if err == nil {
		t.Error("patch without a live node should fail")
	}
}

func TestBuildComponentPlaceholderHasNoChildren(t *testing.T) {
	doc := newTestDoc()
	v := &VNode{Kind: KindComponent, Tag: "x-card", Selector: "x-card",
		Attrs: []Attr{{"title", "t"}}, Children: []*VNode{Text("ignored")}}

	n := Build(doc, v)
	if n.FirstChild != nil {
		t.Error("placeholder children belong to the child instance")
	}
	if got, _ := dom.Attr(n, "title"); got != "t" {
		t.Errorf("title = %q", got)
	}
}

func TestVNodeString(t *testing.T) {
	btn := Element("button", []Attr{{"class", "x"}}, Text("a<b"))
	btn.Events = []Binding{{Event: "click", Source: "inc"}}
	btn.Props = Props{"value": 1}
	root := Fragment(btn, Element("br", nil))

	want := `<button class="x" :value @click="inc">a&lt;b</button><br>`
	if got := root.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}
