package component

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vango-dev/kiln/pkg/report"
)

var (
	ErrNotFound          = errors.New("component: not registered")
	ErrDuplicate         = errors.New("component: already registered")
	ErrInvalidDefinition = errors.New("component: invalid definition")
	ErrInvalidRef        = errors.New("component: invalid component reference")
	ErrTargetNotFound    = errors.New("component: mount target not found")
	ErrReservedHook      = errors.New("component: reserved hook name holds a non-function")
	ErrLoader            = errors.New("component: loader failed")
)

// Registry maps names to definitions. It is safe for concurrent use so
// definitions can be registered while sessions are running.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds def under def.Name.
func (r *Registry) Register(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if def.Name == "" {
		return &report.Error{
			Kind: report.KindRegistry,
			Code: report.CodeInvalidReference,
			Err:  fmt.Errorf("%w: registered definitions need a name", ErrInvalidDefinition),
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[def.Name]; ok {
		return &report.Error{
			Kind:      report.KindRegistry,
			Code:      report.CodeDuplicateComponent,
			Component: def.Name,
			Err:       ErrDuplicate,
		}
	}
	r.defs[def.Name] = def
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(defs ...*Definition) {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
}

// Replace registers def, overwriting any definition with the same name.
func (r *Registry) Replace(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.defs[def.Name] = def
	r.mu.Unlock()
	return nil
}

// Lookup returns the definition registered as name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
