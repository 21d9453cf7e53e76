package kiln

import (
	"log/slog"

	"github.com/vango-dev/kiln/pkg/component"
	"github.com/vango-dev/kiln/pkg/dom"
	"github.com/vango-dev/kiln/pkg/report"
	"github.com/vango-dev/kiln/pkg/template"
)

// DefaultMaxFlushCascade is the number of flushes that may be scheduled
// from inside a flush before the cascade is treated as an update loop.
const DefaultMaxFlushCascade = 100

// Config configures an App. The zero value is usable.
type Config struct {
	// Logger receives loop panics and, unless Reporter is set, runtime
	// errors. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Reporter receives every runtime error. If nil, errors are logged to
	// Logger.
	Reporter report.Reporter

	// Observer receives flush and render timings.
	Observer report.Observer

	// MaxFlushCascade bounds chained flushes.
	// Default: DefaultMaxFlushCascade
	MaxFlushCascade int

	// SilenceDuplicateKeys stops duplicate list keys from being reported.
	// They fall back to positional matching either way.
	SilenceDuplicateKeys bool

	// Document is the live tree to render into. If nil, an empty document
	// is created.
	Document *dom.Document

	// Registry resolves components mounted by name. Share one registry
	// between apps to share definitions. If nil, a new one is created.
	Registry *component.Registry

	// Evaluator compiles and caches template expressions. Share one
	// between apps to share the cache. If nil, a new one is created.
	Evaluator *template.Evaluator
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		Logger:          slog.Default(),
		MaxFlushCascade: DefaultMaxFlushCascade,
	}
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Reporter == nil {
		c.Reporter = report.NewLogReporter(c.Logger)
	}
	if c.Observer == nil {
		c.Observer = report.NopObserver
	}
	if c.MaxFlushCascade <= 0 {
		c.MaxFlushCascade = DefaultMaxFlushCascade
	}
	if c.Document == nil {
		c.Document = dom.NewDocument()
	}
	if c.Registry == nil {
		c.Registry = component.NewRegistry()
	}
	if c.Evaluator == nil {
		c.Evaluator = template.NewEvaluator(nil)
	}
	return c
}
