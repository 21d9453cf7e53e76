package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/vango-dev/kiln/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "kiln.toml"

	// EnvFileName is loaded from the project directory when present.
	EnvFileName = ".env"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "KILN_"

	DefaultAddr         = ":8080"
	DefaultResumeWindow = 30 * time.Second
	DefaultReadTimeout  = 60 * time.Second
	DefaultComponents   = "components"
	DefaultTarget       = "body"
	DefaultMaxCascade   = 100
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "console"
	DefaultNamespace    = "kiln"
	DefaultTracerName   = "kiln"
)

// Config is the parsed kiln.toml with defaults and overrides applied.
type Config struct {
	Runtime    RuntimeConfig
	Live       LiveConfig
	Components ComponentsConfig
	S3         S3Config
	Telemetry  TelemetryConfig
	Log        LogConfig

	// path stores the file the config was loaded from.
	path string
}

// RuntimeConfig is the [runtime] table.
type RuntimeConfig struct {
	MaxFlushCascade      int
	SilenceDuplicateKeys bool
}

// LiveConfig is the [live] table.
type LiveConfig struct {
	Addr         string
	Title        string
	ResumeWindow time.Duration
	ReadTimeout  time.Duration
	MaxSessions  int
}

// ComponentsConfig is the [components] table. Root is the component mounted
// into Target on every page.
type ComponentsConfig struct {
	Dir    string
	Root   string
	Target string
}

// S3Config is the [s3] table. When Bucket is set, components are loaded
// from S3 instead of Components.Dir.
type S3Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// TelemetryConfig is the [telemetry] table.
type TelemetryConfig struct {
	Metrics          bool
	MetricsNamespace string
	Tracing          bool
	TracerName       string
}

// LogConfig is the [log] table. Format is "console" or "json".
type LogConfig struct {
	Level  string
	Format string
}

type fileConfig struct {
	Runtime struct {
		MaxFlushCascade      int  `toml:"max_flush_cascade"`
		SilenceDuplicateKeys bool `toml:"silence_duplicate_keys"`
	} `toml:"runtime"`
	Live struct {
		Addr         string `toml:"addr"`
		Title        string `toml:"title"`
		ResumeWindow string `toml:"resume_window"`
		ReadTimeout  string `toml:"read_timeout"`
		MaxSessions  int    `toml:"max_sessions"`
	} `toml:"live"`
	Components struct {
		Dir    string `toml:"dir"`
		Root   string `toml:"root"`
		Target string `toml:"target"`
	} `toml:"components"`
	S3 struct {
		Bucket    string `toml:"bucket"`
		Prefix    string `toml:"prefix"`
		Region    string `toml:"region"`
		Endpoint  string `toml:"endpoint"`
		PathStyle bool   `toml:"path_style"`
	} `toml:"s3"`
	Telemetry struct {
		Metrics          bool   `toml:"metrics"`
		MetricsNamespace string `toml:"metrics_namespace"`
		Tracing          bool   `toml:"tracing"`
		TracerName       string `toml:"tracer_name"`
	} `toml:"telemetry"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

// Default returns the configuration used when kiln.toml sets nothing.
func Default() *Config {
	return &Config{
		Runtime: RuntimeConfig{MaxFlushCascade: DefaultMaxCascade},
		Live: LiveConfig{
			Addr:         DefaultAddr,
			Title:        "kiln",
			ResumeWindow: DefaultResumeWindow,
			ReadTimeout:  DefaultReadTimeout,
		},
		Components: ComponentsConfig{Dir: DefaultComponents, Target: DefaultTarget},
		Telemetry: TelemetryConfig{
			MetricsNamespace: DefaultNamespace,
			TracerName:       DefaultTracerName,
		},
		Log: LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Load reads kiln.toml from dir, loads dir/.env into the environment
// without overriding variables already set, and applies KILN_*
// overrides.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile is Load for an explicit file path.
func LoadFile(path string) (*Config, error) {
	if err := loadEnvFile(filepath.Join(filepath.Dir(path), EnvFileName)); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("C003").WithFile(path).Wrap(err)
		}
		return nil, errors.New("C001").WithFile(path).Wrap(err)
	}
	cfg, err := Parse(data)
	if err != nil {
		var diag *errors.Error
		if stderrors.As(err, &diag) {
			diag.WithFile(path)
		}
		return nil, err
	}
	cfg.path = path
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadOrDefault is Load, falling back to defaults plus environment
// overrides when dir has no kiln.toml.
func LoadOrDefault(dir string) (*Config, error) {
	if Exists(dir) {
		return Load(dir)
	}
	if err := loadEnvFile(filepath.Join(dir, EnvFileName)); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func loadEnvFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return errors.New("C001").WithFile(path).Wrap(err)
	}
	return nil
}

// Parse decodes kiln.toml content over the defaults. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(string(data), &raw)
	if err != nil {
		diag := errors.New("C001").Wrap(err)
		var perr toml.ParseError
		if stderrors.As(err, &perr) {
			diag.Location = &errors.Location{Line: perr.Position.Line, Column: perr.Position.Col}
		}
		return nil, diag
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.New("C001").Wrap(fmt.Errorf("unknown keys: %s", strings.Join(keys, ", ")))
	}

	cfg := Default()

	if meta.IsDefined("runtime", "max_flush_cascade") {
		cfg.Runtime.MaxFlushCascade = raw.Runtime.MaxFlushCascade
	}
	if meta.IsDefined("runtime", "silence_duplicate_keys") {
		cfg.Runtime.SilenceDuplicateKeys = raw.Runtime.SilenceDuplicateKeys
	}

	if meta.IsDefined("live", "addr") {
		cfg.Live.Addr = strings.TrimSpace(raw.Live.Addr)
	}
	if meta.IsDefined("live", "title") {
		cfg.Live.Title = raw.Live.Title
	}
	if meta.IsDefined("live", "resume_window") {
		d, err := parseDuration("live.resume_window", raw.Live.ResumeWindow)
		if err != nil {
			return nil, err
		}
		cfg.Live.ResumeWindow = d
	}
	if meta.IsDefined("live", "read_timeout") {
		d, err := parseDuration("live.read_timeout", raw.Live.ReadTimeout)
		if err != nil {
			return nil, err
		}
		cfg.Live.ReadTimeout = d
	}
	if meta.IsDefined("live", "max_sessions") {
		cfg.Live.MaxSessions = raw.Live.MaxSessions
	}

	if meta.IsDefined("components", "dir") {
		cfg.Components.Dir = strings.TrimSpace(raw.Components.Dir)
	}
	if meta.IsDefined("components", "root") {
		cfg.Components.Root = strings.TrimSpace(raw.Components.Root)
	}
	if meta.IsDefined("components", "target") {
		cfg.Components.Target = strings.TrimSpace(raw.Components.Target)
	}

	if meta.IsDefined("s3") {
		cfg.S3 = S3Config{
			Bucket:    strings.TrimSpace(raw.S3.Bucket),
			Prefix:    strings.TrimSpace(raw.S3.Prefix),
			Region:    strings.TrimSpace(raw.S3.Region),
			Endpoint:  strings.TrimSpace(raw.S3.Endpoint),
			PathStyle: raw.S3.PathStyle,
		}
	}

	if meta.IsDefined("telemetry", "metrics") {
		cfg.Telemetry.Metrics = raw.Telemetry.Metrics
	}
	if meta.IsDefined("telemetry", "metrics_namespace") {
		cfg.Telemetry.MetricsNamespace = strings.TrimSpace(raw.Telemetry.MetricsNamespace)
	}
	if meta.IsDefined("telemetry", "tracing") {
		cfg.Telemetry.Tracing = raw.Telemetry.Tracing
	}
	if meta.IsDefined("telemetry", "tracer_name") {
		cfg.Telemetry.TracerName = strings.TrimSpace(raw.Telemetry.TracerName)
	}

	if meta.IsDefined("log", "level") {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(raw.Log.Level))
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(raw.Log.Format))
	}

	return cfg, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.New("C002").WithDetail(key + " must be a duration such as 30s or 2m").Wrap(err)
	}
	return d, nil
}

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv applies KILN_* overrides:
//
//	KILN_ADDR, KILN_TITLE, KILN_RESUME_WINDOW, KILN_READ_TIMEOUT,
//	KILN_MAX_SESSIONS, KILN_MAX_FLUSH_CASCADE, KILN_COMPONENTS_DIR,
//	KILN_ROOT, KILN_TARGET, KILN_S3_BUCKET, KILN_S3_PREFIX,
//	KILN_S3_REGION, KILN_S3_ENDPOINT, KILN_S3_PATH_STYLE, KILN_METRICS,
//	KILN_TRACING, KILN_LOG_LEVEL, KILN_LOG_FORMAT
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return errors.New("C002").WithDetail(EnvPrefix + name + " must be a boolean").Wrap(err)
		}
		*dst = b
		return nil
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.New("C002").WithDetail(EnvPrefix + name + " must be an integer").Wrap(err)
		}
		*dst = n
		return nil
	}
	duration := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := parseDuration(EnvPrefix+name, v)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}

	str("ADDR", &c.Live.Addr)
	str("TITLE", &c.Live.Title)
	str("COMPONENTS_DIR", &c.Components.Dir)
	str("ROOT", &c.Components.Root)
	str("TARGET", &c.Components.Target)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_PREFIX", &c.S3.Prefix)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)

	return stderrors.Join(
		duration("RESUME_WINDOW", &c.Live.ResumeWindow),
		duration("READ_TIMEOUT", &c.Live.ReadTimeout),
		integer("MAX_SESSIONS", &c.Live.MaxSessions),
		integer("MAX_FLUSH_CASCADE", &c.Runtime.MaxFlushCascade),
		boolean("S3_PATH_STYLE", &c.S3.PathStyle),
		boolean("METRICS", &c.Telemetry.Metrics),
		boolean("TRACING", &c.Telemetry.Tracing),
	)
}

var logLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate reports every invalid value, joined.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(detail string) {
		errs = append(errs, errors.New("C002").WithDetail(detail))
	}

	if c.Runtime.MaxFlushCascade <= 0 {
		invalid("runtime.max_flush_cascade must be positive")
	}
	if c.Live.Addr == "" {
		invalid("live.addr must not be empty")
	}
	if c.Live.ResumeWindow <= 0 {
		invalid("live.resume_window must be positive")
	}
	if c.Live.ReadTimeout <= 0 {
		invalid("live.read_timeout must be positive")
	}
	if c.Live.MaxSessions < 0 {
		invalid("live.max_sessions must not be negative")
	}
	if c.Components.Target == "" {
		invalid("components.target must not be empty")
	}
	if c.S3.Bucket == "" && c.Components.Dir == "" {
		invalid("set components.dir or s3.bucket")
	}
	if c.S3.Bucket == "" && (c.S3.Prefix != "" || c.S3.Endpoint != "") {
		invalid("s3.prefix and s3.endpoint require s3.bucket")
	}
	if c.Telemetry.Metrics && c.Telemetry.MetricsNamespace == "" {
		invalid("telemetry.metrics_namespace must not be empty")
	}
	if !logLevels[c.Log.Level] {
		invalid(fmt.Sprintf("log.level %q is not one of trace, debug, info, warn, error", c.Log.Level))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		invalid(fmt.Sprintf("log.format %q is not console or json", c.Log.Format))
	}
	return stderrors.Join(errs...)
}

// UsesS3 reports whether components are loaded from S3.
func (c *Config) UsesS3() bool {
	return c.S3.Bucket != ""
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.path == "" {
		return ""
	}
	return filepath.Dir(c.path)
}

// ComponentsPath returns the components directory, resolved against the
// config file's directory.
func (c *Config) ComponentsPath() string {
	if filepath.IsAbs(c.Components.Dir) || c.path == "" {
		return c.Components.Dir
	}
	return filepath.Join(c.Dir(), c.Components.Dir)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up from startDir to the directory holding
// kiln.toml.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("C003").
				WithDetail("No kiln.toml found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}
