package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vango-dev/kiln"
	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/pkg/component"
	"github.com/vango-dev/kiln/pkg/dom"
	"github.com/vango-dev/kiln/pkg/loader"
	"github.com/vango-dev/kiln/pkg/report"
)

// collector keeps every report of a run.
type collector struct {
	mu      sync.Mutex
	reports []*report.Error
}

func (c *collector) Report(err *report.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, err)
}

// firstFailure returns the first collected report that is not a warning.
func (c *collector) firstFailure() error {
	for _, r := range c.reports {
		if !r.Warning() {
			return r
		}
	}
	return nil
}

// documentName splits a document path into the directory its children
// resolve against and the component name.
func documentName(path string) (string, string) {
	base := filepath.Base(path)
	return filepath.Dir(path), strings.TrimSuffix(base, filepath.Ext(base))
}

// mountDocument mounts the document at path into a fresh document and
// returns the App. Reports are sent to rep.
func mountDocument(ctx context.Context, path, target string, props map[string]any, rep report.Reporter) (*kiln.App, error) {
	dir, name := documentName(path)
	src := loader.NewDir(dir)

	app := kiln.New(kiln.Config{
		Reporter: rep,
		Document: dom.NewDocument(),
		Registry: component.NewRegistry(),
	})
	var err error
	app.Do(func() {
		_, err = app.Mount(ctx, target, src.Lazy(name), props)
	})
	return app, err
}

// parseProps turns key=value flags into props.
func parseProps(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, errors.Newf(errors.CategoryCLI, "invalid --prop %q, want key=value", p)
		}
		props[k] = v
	}
	return props, nil
}

// diagnose converts err into diagnostics about file.
func diagnose(file string, err error) []*errors.Error {
	var out []*errors.Error
	for _, e := range errors.Split(err) {
		d := errors.FromError(e, "K081")
		if d.Location == nil {
			d.WithFile(file)
		}
		out = append(out, d)
	}
	return out
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
