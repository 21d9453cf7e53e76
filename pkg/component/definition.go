package component

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vango-dev/kiln/pkg/reactive"
	"github.com/vango-dev/kiln/pkg/report"
	"github.com/vango-dev/kiln/pkg/template"
)

// Lifecycle hook names. Setup entries under these names are always hooks,
// never template data.
const (
	HookBeforeMount  = "beforeMount"
	HookMount        = "mount"
	HookBeforeUpdate = "beforeUpdate"
	HookUpdate       = "update"
	HookUnmount      = "unmount"
)

var reservedHooks = []string{HookBeforeMount, HookMount, HookBeforeUpdate, HookUpdate, HookUnmount}

// IsHookName reports whether name is a reserved lifecycle hook name.
func IsHookName(name string) bool {
	for _, h := range reservedHooks {
		if h == name {
			return true
		}
	}
	return false
}

// SetupFunc initializes an instance. It runs once per instance and returns
// the signals, functions and values the template and handlers can use.
type SetupFunc func(ctx *SetupContext) map[string]any

// TemplateFunc produces markup from an instance's data. It runs on every
// render pass.
type TemplateFunc func(data Data) string

// Definition declares a component.
type Definition struct {
	// Name identifies the definition in a Registry and names its style
	// block. Inline definitions may leave it empty.
	Name string

	Setup SetupFunc

	// Template produces the markup. When nil, Markup is used as a static
	// template.
	Template TemplateFunc
	Markup   string

	// Style is passed through untouched into a <style> element in the
	// document head, once per definition name.
	Style string

	// Children maps CSS selectors to child components. Elements of the
	// rendered tree matching a selector become nested mounts.
	Children map[string]Ref

	compileOnce sync.Once
	children    *template.Children
	compileErr  error
}

// Validate checks that the definition can be mounted.
func (d *Definition) Validate() error {
	if d == nil {
		return &report.Error{Kind: report.KindRegistry, Code: report.CodeInvalidReference, Err: ErrInvalidDefinition}
	}
	if d.Template == nil && d.Markup == "" {
		return &report.Error{
			Kind:      report.KindRegistry,
			Code:      report.CodeInvalidReference,
			Component: d.Name,
			Err:       fmt.Errorf("%w: no template", ErrInvalidDefinition),
		}
	}
	for sel, ref := range d.Children {
		if !validRef(ref) {
			return &report.Error{
				Kind:      report.KindRegistry,
				Code:      report.CodeInvalidReference,
				Component: d.Name,
				Err:       fmt.Errorf("%w: child %q is %T", ErrInvalidRef, sel, ref),
			}
		}
	}
	if _, err := d.childSelectors(); err != nil {
		return &report.Error{Kind: report.KindRegistry, Code: report.CodeInvalidReference, Component: d.Name, Err: err}
	}
	return nil
}

// childSelectors compiles the Children selectors once.
func (d *Definition) childSelectors() (*template.Children, error) {
	d.compileOnce.Do(func() {
		sels := make([]string, 0, len(d.Children))
		for sel := range d.Children {
			sels = append(sels, sel)
		}
		sort.Strings(sels)
		d.children, d.compileErr = template.CompileChildren(sels)
	})
	return d.children, d.compileErr
}

func (d *Definition) markup(data Data) string {
	if d.Template != nil {
		return d.Template(data)
	}
	return d.Markup
}

func (d *Definition) styleName() string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("anonymous-%p", d)
}

// Ref identifies a component to mount: a registry name (string), a
// *Definition or a Loader.
type Ref any

// Loader resolves a definition lazily, at mount time.
type Loader interface {
	Load(ctx context.Context) (*Definition, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (*Definition, error)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) (*Definition, error) {
	return f(ctx)
}

func validRef(ref Ref) bool {
	switch ref.(type) {
	case string, *Definition, Loader:
		return true
	}
	return false
}

// Data is an instance's setup result without its hooks: the names its
// template and handlers resolve.
type Data map[string]any

// Value returns the value of name, reading through signals.
func (d Data) Value(name string) any {
	v := d[name]
	if s, ok := v.(reactive.AnySignal); ok {
		return s.GetAny()
	}
	return v
}

// Signal returns the signal stored under name, or nil.
func (d Data) Signal(name string) reactive.AnySignal {
	s, _ := d[name].(reactive.AnySignal)
	return s
}
