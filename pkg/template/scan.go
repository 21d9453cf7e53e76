package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Expressions are lifted out of the markup before tokenizing and replaced
// by private-use markers carrying their index, so the HTML tokenizer never
// sees expression text.
const (
	markerOpen  = '\uE000'
	markerClose = '\uE001'
)

// scan replaces every ${...} in markup with a marker. Braces nested inside
// the expression and braces inside quoted strings are balanced. A literal
// "${" can be written as "\${".
func scan(markup string) (string, []string, error) {
	if !strings.Contains(markup, "${") {
		return markup, nil, nil
	}

	var b strings.Builder
	b.Grow(len(markup))
	var exprs []string

	for i := 0; i < len(markup); {
		c := markup[i]
		if c == '\\' && strings.HasPrefix(markup[i+1:], "${") {
			b.WriteString("${")
			i += 3
			continue
		}
		if c != '$' || i+1 >= len(markup) || markup[i+1] != '{' {
			b.WriteByte(c)
			i++
			continue
		}

		end, err := closingBrace(markup, i+2)
		if err != nil {
			return "", nil, err
		}
		src := strings.TrimSpace(markup[i+2 : end])
		if src == "" {
			return "", nil, fmt.Errorf("%w at offset %d", ErrEmptyExpression, i)
		}
		exprs = append(exprs, src)
		b.WriteRune(markerOpen)
		b.WriteString(strconv.Itoa(len(exprs) - 1))
		b.WriteRune(markerClose)
		i = end + 1
	}
	return b.String(), exprs, nil
}

func closingBrace(s string, start int) (int, error) {
	depth := 0
	var quote byte
	for i := start; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{':
			depth++
		case '}':
			if depth == 0 {
				return i, nil
			}
			depth--
		}
	}
	return 0, fmt.Errorf("%w at offset %d", ErrUnterminated, start-2)
}

// part is a run of literal text or a reference to an expression.
type part struct {
	text string
	expr int // -1 for literal text
}

// split breaks s into literal runs and marker references.
func split(s string) []part {
	var parts []part
	for {
		open := strings.IndexRune(s, markerOpen)
		if open < 0 {
			if s != "" {
				parts = append(parts, part{text: s, expr: -1})
			}
			return parts
		}
		if open > 0 {
			parts = append(parts, part{text: s[:open], expr: -1})
		}
		rest := s[open+len(string(markerOpen)):]
		close := strings.IndexRune(rest, markerClose)
		if close < 0 {
			parts = append(parts, part{text: s[open:], expr: -1})
			return parts
		}
		idx, err := strconv.Atoi(rest[:close])
		if err != nil {
			parts = append(parts, part{text: s[open:], expr: -1})
			return parts
		}
		parts = append(parts, part{expr: idx})
		s = rest[close+len(string(markerClose)):]
	}
}

// hasMarker reports whether s references an expression.
func hasMarker(s string) bool {
	return strings.ContainsRune(s, markerOpen)
}

// soleMarker returns the expression index if s is exactly one marker,
// ignoring surrounding whitespace.
func soleMarker(s string) (int, bool) {
	parts := split(strings.TrimSpace(s))
	if len(parts) == 1 && parts[0].expr >= 0 {
		return parts[0].expr, true
	}
	return 0, false
}
