package template

import (
	"container/list"
	"fmt"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/builtin"
	"github.com/expr-lang/expr/vm"
)

// DefaultCacheSize is the number of compiled programs an Engine keeps.
const DefaultCacheSize = 1024

// Engine compiles and runs template expressions with expr-lang/expr.
// Compiled programs are cached by source text in an LRU of bounded size, so
// an expression is parsed once no matter how many instances or renders use
// it, while sources built from interpolated values cannot grow the cache
// without limit. Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	size     int
	programs map[string]*list.Element
	order    *list.List // front = most recently used
}

type program struct {
	src string
	vm  *vm.Program

	// names are the free identifiers the expression reads. They must all be
	// present in the environment; expr itself would silently yield nil.
	names []string
}

// NewEngine returns an empty engine caching DefaultCacheSize programs.
func NewEngine() *Engine {
	return NewEngineSize(DefaultCacheSize)
}

// NewEngineSize returns an empty engine caching at most size programs.
// A size below 1 means DefaultCacheSize.
func NewEngineSize(size int) *Engine {
	if size < 1 {
		size = DefaultCacheSize
	}
	return &Engine{
		size:     size,
		programs: make(map[string]*list.Element),
		order:    list.New(),
	}
}

// compile parses src, or returns the cached program.
func (e *Engine) compile(src string) (*program, error) {
	e.mu.Lock()
	if elem, ok := e.programs[src]; ok {
		e.order.MoveToFront(elem)
		e.mu.Unlock()
		return elem.Value.(*program), nil
	}
	e.mu.Unlock()

	compiled, err := expr.Compile(src)
	if err != nil {
		return nil, err
	}
	p := &program{src: src, vm: compiled, names: freeNames(compiled.Node())}

	e.mu.Lock()
	defer e.mu.Unlock()
	if elem, ok := e.programs[src]; ok {
		e.order.MoveToFront(elem)
		return elem.Value.(*program), nil
	}
	e.programs[src] = e.order.PushFront(p)
	for e.order.Len() > e.size {
		oldest := e.order.Back()
		e.order.Remove(oldest)
		delete(e.programs, oldest.Value.(*program).src)
	}
	return p, nil
}

// Check compiles src without running it.
func (e *Engine) Check(src string) error {
	_, err := e.compile(src)
	return err
}

// Eval runs src against env.
func (e *Engine) Eval(src string, env map[string]any) (any, error) {
	p, err := e.compile(src)
	if err != nil {
		return nil, err
	}
	for _, name := range p.names {
		if _, ok := env[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownName, name)
		}
	}
	return expr.Run(p.vm, env)
}

// Cached returns the number of cached programs.
func (e *Engine) Cached() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.order.Len()
}

type nameCollector struct {
	names map[string]struct{}
	bound map[string]struct{}
}

func (c *nameCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		c.names[n.Value] = struct{}{}
	case *ast.VariableDeclaratorNode:
		c.bound[n.Name] = struct{}{}
	}
}

func freeNames(root ast.Node) []string {
	c := &nameCollector{
		names: make(map[string]struct{}),
		bound: make(map[string]struct{}),
	}
	ast.Walk(&root, c)

	var out []string
	for name := range c.names {
		if _, ok := c.bound[name]; ok || name == "$env" {
			continue
		}
		if _, ok := builtin.Index[name]; ok {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
