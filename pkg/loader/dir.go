package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/vango-dev/kiln/pkg/component"
)

// Dir reads documents from a directory tree. A component named "nav/menu"
// lives in nav/menu.yaml, nav/menu.yml or nav/menu.toml.
type Dir struct {
	fsys  fs.FS
	cache *cache
}

// NewDir reads documents below the directory root.
func NewDir(root string) *Dir {
	return NewFS(os.DirFS(root))
}

// NewFS reads documents from fsys.
func NewFS(fsys fs.FS) *Dir {
	d := &Dir{fsys: fsys}
	d.cache = newCache(d)
	return d
}

func (d *Dir) fetch(_ context.Context, name string) (string, []byte, error) {
	for _, ext := range Extensions {
		file := name + ext
		data, err := fs.ReadFile(d.fsys, file)
		if err == nil {
			return file, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("read %s: %w", file, err)
		}
	}
	return "", nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Load returns the definition for name, building it on first use.
func (d *Dir) Load(ctx context.Context, name string) (*component.Definition, error) {
	return d.cache.load(ctx, name)
}

// Lazy returns a loader that reads name at mount time.
func (d *Dir) Lazy(name string) component.Loader {
	return d.cache.loader(name)
}

// Reload drops the cached definition for name so the next Load rereads it.
func (d *Dir) Reload(name string) {
	d.cache.forget(name)
}

// Names lists every component name with a document in the tree, sorted.
func (d *Dir) Names() ([]string, error) {
	seen := make(map[string]bool)
	err := fs.WalkDir(d.fsys, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if _, ferr := FormatOf(p); ferr != nil {
			return nil
		}
		seen[strings.TrimSuffix(p, path.Ext(p))] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// RegisterAll loads every document in the tree and registers it.
func (d *Dir) RegisterAll(ctx context.Context, reg *component.Registry) error {
	names, err := d.Names()
	if err != nil {
		return err
	}
	for _, name := range names {
		def, err := d.Load(ctx, name)
		if err != nil {
			return err
		}
		if err := reg.Register(def); err != nil {
			return err
		}
	}
	return nil
}
