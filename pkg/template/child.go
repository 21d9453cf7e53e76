package template

import (
	"fmt"
	"sort"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Children is a compiled child-selector set. Elements matching a selector
// become component placeholders instead of plain elements.
//
// Selectors are matched against the element alone, without its ancestors,
// so combinators never match.
type Children struct {
	sels []childSelector
}

type childSelector struct {
	source string
	sel    cascadia.Selector
}

// CompileChildren compiles selectors. Selectors are tried in sorted order
// and the first match wins.
func CompileChildren(selectors []string) (*Children, error) {
	sorted := append([]string(nil), selectors...)
	sort.Strings(sorted)

	c := &Children{sels: make([]childSelector, 0, len(sorted))}
	for _, s := range sorted {
		sel, err := cascadia.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("template: child selector %q: %w", s, err)
		}
		c.sels = append(c.sels, childSelector{source: s, sel: sel})
	}
	return c, nil
}

// Len returns the number of selectors.
func (c *Children) Len() int {
	if c == nil {
		return 0
	}
	return len(c.sels)
}

// Match returns the selector matching an element with the given tag and
// attributes.
func (c *Children) Match(tag string, attrs []html.Attribute) (string, bool) {
	if c.Len() == 0 {
		return "", false
	}
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag)), Attr: attrs}
	for _, s := range c.sels {
		if s.sel.Match(n) {
			return s.source, true
		}
	}
	return "", false
}
