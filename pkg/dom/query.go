package dom

import (
	"errors"
	"fmt"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// ErrNotFound is returned when a selector matches nothing.
var ErrNotFound = errors.New("dom: no element matches selector")

type selectorCache map[string]cascadia.Selector

func newSelectorCache() selectorCache {
	return make(selectorCache)
}

func (c selectorCache) compile(sel string) (cascadia.Selector, error) {
	if s, ok := c[sel]; ok {
		return s, nil
	}
	s, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("dom: selector %q: %w", sel, err)
	}
	c[sel] = s
	return s, nil
}

// Query returns the first element in document order matching sel.
func (d *Document) Query(sel string) (*html.Node, error) {
	return d.QueryIn(d.root, sel)
}

// QueryIn returns the first element under root (root included) matching sel.
func (d *Document) QueryIn(root *html.Node, sel string) (*html.Node, error) {
	s, err := d.selectors.compile(sel)
	if err != nil {
		return nil, err
	}
	n := s.MatchFirst(root)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sel)
	}
	return n, nil
}

// QueryAll returns every element matching sel in document order.
func (d *Document) QueryAll(sel string) ([]*html.Node, error) {
	return d.QueryAllIn(d.root, sel)
}

// QueryAllIn returns every element under root (root included) matching sel.
func (d *Document) QueryAllIn(root *html.Node, sel string) ([]*html.Node, error) {
	s, err := d.selectors.compile(sel)
	if err != nil {
		return nil, err
	}
	return s.MatchAll(root), nil
}

// Matches reports whether n matches sel.
func (d *Document) Matches(n *html.Node, sel string) (bool, error) {
	s, err := d.selectors.compile(sel)
	if err != nil {
		return false, err
	}
	return s.Match(n), nil
}
