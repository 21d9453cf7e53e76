package template

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/vango-dev/kiln/pkg/dom"
	"github.com/vango-dev/kiln/pkg/vdom"
)

// Input is one render pass worth of template input.
type Input struct {
	// Markup is the template output with ${} expressions and directive
	// attributes.
	Markup string

	// Table resolves the names used by expressions and handlers.
	Table *Table

	// Children turns matching elements into component placeholders.
	Children *Children

	// Dispatch runs a bound handler when its event fires. When nil the
	// handler is invoked against Table directly and errors are dropped.
	Dispatch func(h Handler, ev *dom.Event)
}

// Evaluator turns markup into structured node trees.
type Evaluator struct {
	engine *Engine
}

// NewEvaluator returns an evaluator using engine. A nil engine gets a fresh
// one.
func NewEvaluator(engine *Engine) *Evaluator {
	if engine == nil {
		engine = NewEngine()
	}
	return &Evaluator{engine: engine}
}

// Engine returns the evaluator's expression engine.
func (e *Evaluator) Engine() *Engine {
	return e.engine
}

type frame struct {
	tag  string
	node *vdom.VNode // nil while skipping placeholder content

	// space is set when whitespace was skipped after the last child. It
	// becomes a single space if the next child is inline too.
	space bool
}

// add appends child to f, keeping one space between inline siblings that
// were separated by whitespace in the markup.
func (f *frame) add(child *vdom.VNode) {
	kids := f.node.Children
	if f.space && len(kids) > 0 && isInline(kids[len(kids)-1]) && isInline(child) {
		f.node.Children = append(f.node.Children, vdom.Text(" "))
	}
	f.space = false
	f.node.Children = append(f.node.Children, child)
}

type pass struct {
	e      *Evaluator
	in     Input
	exprs  []string
	values []any
	done   []bool
}

// Evaluate produces the structured tree for in. The result is a fragment
// holding the top-level nodes. Any expression, handler or markup error
// fails the whole pass.
func (e *Evaluator) Evaluate(in Input) (*vdom.VNode, error) {
	if in.Table == nil {
		in.Table = NewTable(nil)
	}
	marked, exprs, err := scan(in.Markup)
	if err != nil {
		return nil, markupError(err)
	}
	p := &pass{e: e, in: in, exprs: exprs, values: make([]any, len(exprs)), done: make([]bool, len(exprs))}

	root := vdom.Fragment()
	stack := []frame{{node: root}}
	top := func() *frame { return &stack[len(stack)-1] }

	z := html.NewTokenizer(strings.NewReader(marked))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, markupError(err)
			}
			return root, nil

		case html.TextToken:
			parent := top()
			if parent.node == nil {
				continue
			}
			text := string(z.Text())
			if strings.TrimSpace(text) == "" && !preserveSpace(parent.tag) {
				parent.space = true
				continue
			}
			s, err := p.interpolate(text)
			if err != nil {
				return nil, err
			}
			parent.add(vdom.Text(s))

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			tag := tok.Data
			parent := top()
			selfClosing := tt == html.SelfClosingTagToken || vdom.IsVoidElement(tag)

			if parent.node == nil {
				if !selfClosing {
					stack = append(stack, frame{tag: tag})
				}
				continue
			}

			node, err := p.element(tag, tok.Attr)
			if err != nil {
				return nil, err
			}
			parent.add(node)
			if selfClosing {
				continue
			}
			if node.Kind == vdom.KindComponent {
				stack = append(stack, frame{tag: tag})
				continue
			}
			stack = append(stack, frame{tag: tag, node: node})

		case html.EndTagToken:
			tag := z.Token().Data
			for i := len(stack) - 1; i > 0; i-- {
				if stack[i].tag == tag {
					stack = stack[:i]
					break
				}
			}
		}
	}
}

func preserveSpace(tag string) bool {
	return tag == "pre" || tag == "textarea"
}

// inlineTags are the phrasing elements whitespace between which is visible.
var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "button": true,
	"cite": true, "code": true, "data": true, "dfn": true, "em": true, "i": true,
	"img": true, "input": true, "kbd": true, "label": true, "mark": true,
	"output": true, "q": true, "s": true, "samp": true, "select": true,
	"small": true, "span": true, "strong": true, "sub": true, "sup": true,
	"textarea": true, "time": true, "u": true, "var": true,
}

// isInline reports whether v flows inline. Component placeholders are
// custom elements, which are inline unless styled otherwise.
func isInline(v *vdom.VNode) bool {
	switch v.Kind {
	case vdom.KindText, vdom.KindComponent:
		return true
	case vdom.KindElement:
		return inlineTags[v.Tag]
	}
	return false
}

// element builds the node for one start tag.
func (p *pass) element(tag string, raw []html.Attribute) (*vdom.VNode, error) {
	node := vdom.Element(tag, nil)
	var props []html.Attribute
	var plain []html.Attribute

	for _, a := range raw {
		if hasMarker(a.Key) {
			return nil, markupError(fmt.Errorf("%w: <%s>", ErrMarkerInAttrName, tag))
		}
		switch {
		case strings.HasPrefix(a.Key, "@"):
			b, err := p.binding(strings.TrimPrefix(a.Key, "@"), a.Val)
			if err != nil {
				return nil, err
			}
			node.Events = append(node.Events, b)

		case a.Key == "key":
			s, err := p.interpolate(a.Val)
			if err != nil {
				return nil, err
			}
			node.Key = s

		case a.Key == ":key":
			v, err := p.value(a.Val)
			if err != nil {
				return nil, err
			}
			node.Key = Stringify(v)

		case strings.HasPrefix(a.Key, ":"):
			props = append(props, a)

		default:
			s, err := p.interpolate(a.Val)
			if err != nil {
				return nil, err
			}
			plain = append(plain, html.Attribute{Key: a.Key, Val: s})
		}
	}

	if sel, ok := p.in.Children.Match(tag, plain); ok {
		node.Kind = vdom.KindComponent
		node.Selector = sel
	}

	for _, a := range plain {
		node.Attrs = append(node.Attrs, vdom.Attr{Key: a.Key, Value: a.Val})
	}
	for _, a := range props {
		v, err := p.prop(a.Val, node.Kind == vdom.KindComponent)
		if err != nil {
			return nil, err
		}
		if node.Props == nil {
			node.Props = vdom.Props{}
		}
		node.Props[strings.TrimPrefix(a.Key, ":")] = v
	}
	return node, nil
}

// binding resolves an @event attribute. The handler must exist now; it is
// invoked only when the event fires.
func (p *pass) binding(event, val string) (vdom.Binding, error) {
	source, err := p.interpolate(val)
	if err != nil {
		return vdom.Binding{}, err
	}
	h, err := ParseHandler(event, source)
	if err != nil {
		return vdom.Binding{}, handlerError(source, err)
	}
	if entry, ok := p.in.Table.Lookup(h.Name); !ok || entry.Kind != EntryCallable {
		return vdom.Binding{}, handlerError(source, fmt.Errorf("%w: %s", ErrHandlerNotFound, h.Name))
	}

	dispatch := p.in.Dispatch
	if dispatch == nil {
		table, engine := p.in.Table, p.e.engine
		dispatch = func(h Handler, ev *dom.Event) {
			_, _ = engine.Invoke(table, h, ev)
		}
	}
	return vdom.Binding{
		Event:   event,
		Source:  h.Source,
		Handler: func(ev *dom.Event) { dispatch(h, ev) },
	}, nil
}

// prop returns the live value of a :prop attribute. On a component
// placeholder a bare signal name passes the signal itself, so parent and
// child share it.
func (p *pass) prop(val string, component bool) (any, error) {
	if strings.TrimSpace(val) == "" {
		return true, nil
	}
	if component {
		name := strings.TrimSpace(val)
		if idx, ok := soleMarker(val); ok {
			name = p.exprs[idx]
		}
		if entry, ok := p.in.Table.Lookup(name); ok && entry.Kind == EntrySignal {
			return entry.Signal, nil
		}
	}
	return p.value(val)
}

// value evaluates an attribute that carries a single expression, either
// as ${expr} or as bare expression text. Mixed text is interpolated.
func (p *pass) value(val string) (any, error) {
	if idx, ok := soleMarker(val); ok {
		return p.eval(idx)
	}
	if hasMarker(val) {
		return p.interpolate(val)
	}
	src := strings.TrimSpace(val)
	v, err := p.e.engine.Eval(src, p.in.Table.Env())
	if err != nil {
		return nil, exprError(src, err)
	}
	return v, nil
}

func (p *pass) eval(idx int) (any, error) {
	if idx < 0 || idx >= len(p.exprs) {
		return nil, markupError(fmt.Errorf("template: bad expression reference %d", idx))
	}
	if p.done[idx] {
		return p.values[idx], nil
	}
	v, err := p.e.engine.Eval(p.exprs[idx], p.in.Table.Env())
	if err != nil {
		return nil, exprError(p.exprs[idx], err)
	}
	p.values[idx], p.done[idx] = v, true
	return v, nil
}

// interpolate replaces every marker in s with its stringified value.
func (p *pass) interpolate(s string) (string, error) {
	if !hasMarker(s) {
		return s, nil
	}
	var b strings.Builder
	for _, part := range split(s) {
		if part.expr < 0 {
			b.WriteString(part.text)
			continue
		}
		v, err := p.eval(part.expr)
		if err != nil {
			return "", err
		}
		b.WriteString(Stringify(v))
	}
	return b.String(), nil
}

// Stringify converts an expression value to text. nil renders as the empty
// string.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case error:
		return x.Error()
	default:
		return fmt.Sprint(v)
	}
}
