package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vango-dev/kiln"
	"github.com/vango-dev/kiln/internal/config"
	"github.com/vango-dev/kiln/internal/errors"
	"github.com/vango-dev/kiln/pkg/component"
	"github.com/vango-dev/kiln/pkg/live"
	"github.com/vango-dev/kiln/pkg/loader"
	"github.com/vango-dev/kiln/pkg/report"
	"github.com/vango-dev/kiln/pkg/telemetry"
)

func serveCmd() *cobra.Command {
	var (
		dir  string
		addr string
		root string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve components live to browsers",
		Long: `Serve the root component from kiln.toml as a live page.

Every page load mounts the root component into a new session. The
browser keeps a WebSocket open and receives the document's mutations
after every state change.

Components are read from [components] dir, or from S3 when
[s3] bucket is set.

Examples:
  kiln serve
  kiln serve --addr=:3000 --root=app
  KILN_S3_BUCKET=defs kiln serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(dir)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Live.Addr = addr
			}
			if root != "" {
				cfg.Components.Root = root
			}
			if cfg.Components.Root == "" {
				return errors.New("C002").WithDetail("components.root must name the component to serve")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&dir, "config", "c", ".", "Directory holding kiln.toml")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Address to listen on (default from kiln.toml)")
	cmd.Flags().StringVarP(&root, "root", "r", "", "Root component (default from kiln.toml)")

	return cmd
}

// source is a component source that hands out lazy loaders.
type source interface {
	Lazy(name string) component.Loader
}

func runServe(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	zlog := newLogger(cfg, stderr)
	slogger := newSlogger(cfg, stderr)

	reporters := report.Multi{telemetry.NewZerologReporter(zlog)}
	observers := report.Observers{}

	liveCfg := live.DefaultConfig()
	liveCfg.Title = cfg.Live.Title
	liveCfg.ResumeWindow = cfg.Live.ResumeWindow
	liveCfg.ReadTimeout = cfg.Live.ReadTimeout
	liveCfg.MaxSessions = cfg.Live.MaxSessions
	liveCfg.Logger = slogger

	if cfg.Telemetry.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics := telemetry.NewMetrics(
			telemetry.WithNamespace(cfg.Telemetry.MetricsNamespace),
			telemetry.WithRegistry(reg),
		)
		reporters = append(reporters, metrics)
		observers = append(observers, metrics)
		liveCfg.Metrics = metrics
		liveCfg.Gatherer = reg
	}
	if cfg.Telemetry.Tracing {
		tracer := telemetry.NewTracer(cfg.Telemetry.TracerName)
		reporters = append(reporters, tracer)
		observers = append(observers, tracer)
	}

	registry := component.NewRegistry()
	var src source
	if cfg.UsesS3() {
		s3cfg := loader.S3Config{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		}
		src = loader.NewS3Source(loader.NewS3Client(s3cfg), s3cfg)
		zlog.Info().Str("bucket", s3cfg.Bucket).Str("prefix", s3cfg.Prefix).Msg("loading components from S3")
	} else {
		d := loader.NewDir(cfg.ComponentsPath())
		if err := d.RegisterAll(ctx, registry); err != nil {
			return errors.New("K080").WithFile(cfg.ComponentsPath()).Wrap(err)
		}
		src = d
		zlog.Info().Str("dir", cfg.ComponentsPath()).Strs("components", registry.Names()).Msg("components loaded")
	}

	liveCfg.App = kiln.Config{
		Logger:               slogger,
		Reporter:             reporters,
		Observer:             observers,
		MaxFlushCascade:      cfg.Runtime.MaxFlushCascade,
		SilenceDuplicateKeys: cfg.Runtime.SilenceDuplicateKeys,
		Registry:             registry,
	}

	rootRef := src.Lazy(cfg.Components.Root)
	target := cfg.Components.Target
	srv := live.NewServer(liveCfg, func(ctx context.Context, app *kiln.App, _ *http.Request) error {
		_, err := app.Mount(ctx, target, rootRef, nil)
		return err
	})

	zlog.Info().
		Str("addr", cfg.Live.Addr).
		Str("root", cfg.Components.Root).
		Bool("metrics", cfg.Telemetry.Metrics).
		Bool("tracing", cfg.Telemetry.Tracing).
		Msg("serving")
	return srv.ListenAndServe(ctx, cfg.Live.Addr)
}

// newLogger builds the CLI's zerolog logger.
func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Log.Format == "json" {
		logger = zerolog.New(w).With().Timestamp().Str("app", "kiln").Logger()
	} else {
		logger = telemetry.NewConsoleLogger(w, "kiln")
	}
	return logger.Level(telemetry.ParseLevel(cfg.Log.Level))
}

// newSlogger builds the runtime's slog logger at the same level.
func newSlogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch telemetry.ParseLevel(cfg.Log.Level) {
	case zerolog.TraceLevel, zerolog.DebugLevel:
		level = slog.LevelDebug
	case zerolog.WarnLevel:
		level = slog.LevelWarn
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
