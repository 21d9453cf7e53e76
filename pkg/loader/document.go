package loader

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/vango-dev/kiln/pkg/component"
)

var (
	// ErrUnknownFormat is returned for a document whose format cannot be
	// determined from its file name.
	ErrUnknownFormat = errors.New("loader: unknown document format")

	// ErrInvalidDocument is returned by Validate.
	ErrInvalidDocument = errors.New("loader: invalid document")

	// ErrNotFound is returned when no document exists for a name.
	ErrNotFound = errors.New("loader: document not found")
)

// Format is a document encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Extensions lists the file extensions tried, in order, when a document is
// looked up by component name.
var Extensions = []string{".yaml", ".yml", ".toml"}

// FormatOf returns the format implied by a file name's extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, name)
}

// Document is a declarative component.
type Document struct {
	Name     string            `yaml:"name" toml:"name"`
	Template string            `yaml:"template" toml:"template"`
	Style    string            `yaml:"style" toml:"style"`
	State    map[string]any    `yaml:"state" toml:"state"`
	Actions  map[string]Action `yaml:"actions" toml:"actions"`
	Children map[string]string `yaml:"children" toml:"children"`
	Hooks    map[string]string `yaml:"hooks" toml:"hooks"`
}

// Action is a named state transition.
type Action struct {
	// Params names the positional arguments of the action.
	Params []string `yaml:"params" toml:"params"`

	// Set names the state entry receiving the result. Empty for actions
	// that only emit.
	Set string `yaml:"set" toml:"set"`

	// Expr is evaluated with expr-lang against state, props, params and
	// event.
	Expr string `yaml:"expr" toml:"expr"`

	// Emit names an event dispatched to the parent with the result as its
	// detail.
	Emit string `yaml:"emit" toml:"emit"`
}

// Parse decodes a document. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	case FormatTOML:
		meta, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parse toml: unknown field %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return &doc, nil
}

// ParseFile decodes a document, choosing the format from name. A document
// without a name takes the file's base name.
func ParseFile(name string, data []byte) (*Document, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if doc.Name == "" {
		base := path.Base(name)
		doc.Name = strings.TrimSuffix(base, path.Ext(base))
	}
	return doc, nil
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks names, references and expressions. Every problem found
// is returned, joined.
func (d *Document) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...)))
	}

	if d.Name == "" {
		fail("missing name")
	}
	if strings.TrimSpace(d.Template) == "" {
		fail("missing template")
	}
	for _, name := range sortedKeys(d.State) {
		if !identifier.MatchString(name) {
			fail("state %q is not an identifier", name)
		}
		if component.IsHookName(name) {
			fail("state %q uses a hook name", name)
		}
	}
	for _, name := range sortedKeys(d.Actions) {
		a := d.Actions[name]
		if !identifier.MatchString(name) {
			fail("action %q is not an identifier", name)
		}
		if component.IsHookName(name) {
			fail("action %q uses a hook name", name)
		}
		if _, dup := d.State[name]; dup {
			fail("action %q shadows state", name)
		}
		if a.Set == "" && a.Emit == "" {
			fail("action %q neither sets state nor emits", name)
		}
		if a.Set != "" {
			if _, ok := d.State[a.Set]; !ok {
				fail("action %q sets unknown state %q", name, a.Set)
			}
		}
		for _, p := range a.Params {
			if !identifier.MatchString(p) {
				fail("action %q parameter %q is not an identifier", name, p)
			}
		}
		if strings.TrimSpace(a.Expr) == "" {
			fail("action %q has no expression", name)
		} else if _, err := compileAction(a.Expr); err != nil {
			fail("action %q: %v", name, err)
		}
	}
	for _, hook := range sortedKeys(d.Hooks) {
		if !component.IsHookName(hook) {
			fail("unknown hook %q", hook)
		}
		if _, ok := d.Actions[d.Hooks[hook]]; !ok {
			fail("hook %q runs unknown action %q", hook, d.Hooks[hook])
		}
	}
	for _, sel := range sortedKeys(d.Children) {
		if d.Children[sel] == "" {
			fail("child %q has no component", sel)
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
