package loader

import (
	"fmt"
	"maps"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/vango-dev/kiln/pkg/component"
	"github.com/vango-dev/kiln/pkg/dom"
	"github.com/vango-dev/kiln/pkg/reactive"
	"github.com/vango-dev/kiln/pkg/template"
)

// Resolver maps a child component name from a document to a reference.
// A nil Resolver leaves names as registry lookups.
type Resolver func(name string) component.Ref

func compileAction(src string) (*vm.Program, error) {
	return expr.Compile(src)
}

type compiledAction struct {
	name    string
	action  Action
	program *vm.Program
}

// Definition validates the document and builds a component definition
// from it. Each mounted instance gets its own state signals.
func (d *Document) Definition(resolve Resolver) (*component.Definition, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	actions := make([]compiledAction, 0, len(d.Actions))
	for _, name := range sortedKeys(d.Actions) {
		a := d.Actions[name]
		program, err := compileAction(a.Expr)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", name, err)
		}
		actions = append(actions, compiledAction{name: name, action: a, program: program})
	}

	def := &component.Definition{
		Name:   d.Name,
		Markup: d.Template,
		Style:  d.Style,
	}
	if len(d.Children) > 0 {
		def.Children = make(map[string]component.Ref, len(d.Children))
		for sel, name := range d.Children {
			var ref component.Ref = name
			if resolve != nil {
				ref = resolve(name)
			}
			def.Children[sel] = ref
		}
	}

	state := maps.Clone(d.State)
	hooks := maps.Clone(d.Hooks)
	def.Setup = func(ctx *component.SetupContext) map[string]any {
		data := make(map[string]any, len(state)+len(actions)+len(hooks))
		signals := make(map[string]*reactive.Signal[any], len(state))
		for name, initial := range state {
			s := reactive.NewSignal[any](ctx, initial)
			signals[name] = s
			data[name] = s
		}
		calls := make(map[string]template.Callable, len(actions))
		for _, ca := range actions {
			call := ca.bind(ctx, signals)
			calls[ca.name] = call
			data[ca.name] = call
		}
		for hook, action := range hooks {
			call := calls[action]
			data[hook] = func() error {
				_, err := call(nil, nil)
				return err
			}
		}
		return data
	}
	return def, nil
}

func (ca compiledAction) bind(ctx *component.SetupContext, signals map[string]*reactive.Signal[any]) template.Callable {
	return func(ev *dom.Event, args []any) (any, error) {
		params := ca.action.Params
		if len(args) != len(params) {
			return nil, fmt.Errorf("%w: action %s has %d, want %d", template.ErrArity, ca.name, len(args), len(params))
		}
		env := make(map[string]any, len(signals)+len(params)+2)
		for name, s := range signals {
			env[name] = s.Get()
		}
		env["props"] = ctx.Props()
		env[template.EventVar] = ev
		for i, p := range params {
			env[p] = args[i]
		}

		out, err := expr.Run(ca.program, env)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", ca.name, err)
		}
		if ca.action.Set != "" {
			signals[ca.action.Set].Set(out)
		}
		if ca.action.Emit != "" {
			ctx.Emit(ca.action.Emit, out)
		}
		return out, nil
	}
}
