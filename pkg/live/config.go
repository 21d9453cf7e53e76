package live

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/kiln"
	"github.com/vango-dev/kiln/pkg/telemetry"
)

// MountFunc mounts a session's components. It runs on the session's loop
// once per session, with the request that opened the page.
type MountFunc func(ctx context.Context, app *kiln.App, r *http.Request) error

// Config configures a Server.
type Config struct {
	// App is the template for every session's App. Document is ignored;
	// each session gets its own. Share Registry and Evaluator here.
	App kiln.Config

	// Title is the page title written into new documents.
	Title string

	// ResumeWindow is how long a session survives without a connected
	// client. A page that never connects expires after the same window.
	// Default: 30 seconds.
	ResumeWindow time.Duration

	// ReadTimeout closes a connection that sends nothing, not even a
	// ping, for this long.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// MaxSessions limits concurrent sessions. 0 means unlimited.
	MaxSessions int

	// CheckOrigin validates the WebSocket Origin header. If nil, only
	// same-host origins are accepted.
	CheckOrigin func(r *http.Request) bool

	// Metrics, when set, counts sessions, frames and events.
	Metrics *telemetry.Metrics

	// Gatherer, when set, is served at /metrics.
	Gatherer prometheus.Gatherer

	// Logger is the structured logger. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with default timeouts.
func DefaultConfig() Config {
	return Config{
		Title:        "kiln",
		ResumeWindow: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,

		ShutdownTimeout: 10 * time.Second,
		CheckOrigin:     SameOriginCheck,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Title == "" {
		c.Title = def.Title
	}
	if c.ResumeWindow <= 0 {
		c.ResumeWindow = def.ResumeWindow
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = SameOriginCheck
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// SameOriginCheck accepts requests without an Origin header and requests
// whose Origin host equals the request host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || r.Host == "" {
		return false
	}
	return u.Host == r.Host
}
