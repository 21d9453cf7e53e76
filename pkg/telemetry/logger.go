package telemetry

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/vango-dev/kiln/pkg/report"
)

// NewConsoleLogger returns a human-readable zerolog logger tagged with app.
func NewConsoleLogger(w io.Writer, app string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Str("app", app).Logger()
}

// ParseLevel maps a configuration level name to a zerolog level. Unknown
// names yield InfoLevel.
func ParseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// ZerologReporter writes reports as structured zerolog events.
type ZerologReporter struct {
	logger zerolog.Logger
}

var _ report.Reporter = (*ZerologReporter)(nil)

// NewZerologReporter returns a reporter logging to logger.
func NewZerologReporter(logger zerolog.Logger) *ZerologReporter {
	return &ZerologReporter{logger: logger}
}

// Report implements report.Reporter.
func (r *ZerologReporter) Report(err *report.Error) {
	ev := r.logger.Error()
	if err.Warning() {
		ev = r.logger.Warn()
	}
	ev = ev.Str("kind", err.Kind.String()).Str("code", err.Code)
	if err.Component != "" {
		ev = ev.Str("component", err.Component)
	}
	if err.Instance != 0 {
		ev = ev.Uint64("instance", err.Instance)
	}
	if err.Hook != "" {
		ev = ev.Str("hook", err.Hook)
	}
	if err.Expr != "" {
		ev = ev.Str("expr", err.Expr)
	}
	if err.Panic != nil {
		ev = ev.Interface("panic", err.Panic)
		if r.logger.GetLevel() <= zerolog.DebugLevel && len(err.Stack) > 0 {
			ev = ev.Bytes("stack", err.Stack)
		}
	}
	ev.Msg(err.Error())
}
