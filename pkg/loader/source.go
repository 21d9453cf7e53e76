package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/vango-dev/kiln/pkg/component"
)

// fetcher returns the raw document stored for a component name, along
// with the file or key name it was found under.
type fetcher interface {
	fetch(ctx context.Context, name string) (key string, data []byte, err error)
}

// cache builds each definition once per source. Children named in a
// document resolve lazily through the same cache.
type cache struct {
	src fetcher

	mu   sync.Mutex
	defs map[string]*component.Definition
}

func newCache(src fetcher) *cache {
	return &cache{src: src, defs: make(map[string]*component.Definition)}
}

func (c *cache) load(ctx context.Context, name string) (*component.Definition, error) {
	c.mu.Lock()
	def, ok := c.defs[name]
	c.mu.Unlock()
	if ok {
		return def, nil
	}

	key, data, err := c.src.fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	doc, err := ParseFile(key, data)
	if err != nil {
		return nil, err
	}
	def, err = doc.Definition(c.resolve)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.defs[name]; ok {
		return prev, nil
	}
	c.defs[name] = def
	return def, nil
}

func (c *cache) resolve(name string) component.Ref {
	return c.loader(name)
}

func (c *cache) loader(name string) component.Loader {
	return component.LoaderFunc(func(ctx context.Context) (*component.Definition, error) {
		return c.load(ctx, name)
	})
}

func (c *cache) forget(name string) {
	c.mu.Lock()
	delete(c.defs, name)
	c.mu.Unlock()
}
