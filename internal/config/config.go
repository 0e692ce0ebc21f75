package config

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/splitrender/internal/errors"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = ":3000"

	// DefaultBuildLocation is the default build artifact location.
	DefaultBuildLocation = "dist"

	// DefaultPublicPath is the default URL prefix of built assets.
	DefaultPublicPath = "/static/"

	// DefaultMaxRounds is the default render round budget.
	DefaultMaxRounds = 10

	// DefaultRoundWait is the default wait for split loads between rounds.
	DefaultRoundWait = "200ms"

	// DefaultRequestTimeout is the default per-request deadline.
	DefaultRequestTimeout = "10s"

	// DefaultMetricsPath is the default path of the metrics endpoint.
	DefaultMetricsPath = "/metrics"
)

// FileNames are the configuration file names Load looks for, in order.
var FileNames = []string{"splitrender.yaml", "splitrender.yml", "splitrender.json"}

// Config is the complete server configuration.
type Config struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// Build locates the build artifacts.
	Build BuildConfig `json:"build,omitempty" yaml:"build,omitempty"`

	// Render tunes the render loop.
	Render RenderConfig `json:"render,omitempty" yaml:"render,omitempty"`

	// Log configures the slog handler.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Settings is the application configuration handed to BeforeRender.
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty"`

	// Private names Settings keys that must never reach the client.
	Private []string `json:"private,omitempty" yaml:"private,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// BuildConfig locates the build artifacts.
type BuildConfig struct {
	// Location is a directory or an s3://bucket/prefix URL holding
	// build-info.json and manifest.json.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`

	// PublicPath is prepended to every asset URL.
	PublicPath string `json:"publicPath,omitempty" yaml:"publicPath,omitempty"`

	// StaticDir is served under PublicPath when set.
	StaticDir string `json:"staticDir,omitempty" yaml:"staticDir,omitempty"`
}

// RenderConfig tunes the render loop.
type RenderConfig struct {
	// MaxRounds is the render round budget. Zero disables server rendering.
	MaxRounds *int `json:"maxRounds,omitempty" yaml:"maxRounds,omitempty"`

	// RoundWait is the longest wait for split loads between rounds (e.g. "200ms").
	RoundWait string `json:"roundWait,omitempty" yaml:"roundWait,omitempty"`

	// RequestTimeout bounds each request (e.g. "10s").
	RequestTimeout string `json:"requestTimeout,omitempty" yaml:"requestTimeout,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes the endpoint and records metrics.
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Path is the endpoint path.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the first configuration file found in dir.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E141").
		WithDetail("No " + strings.Join(FileNames, ", ") + " found in " + dir).
		WithSuggestion("Pass --config or create splitrender.yaml")
}

// LoadFile reads configuration from path. The extension selects the format:
// .json is decoded as JSON, anything else as YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E141").WithDetail("No config file at " + path)
		}
		return nil, errors.New("E140").Wrap(err)
	}

	cfg := &Config{}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E140").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}

	if c.Build.Location == "" {
		c.Build.Location = DefaultBuildLocation
	}
	if c.Build.PublicPath == "" {
		c.Build.PublicPath = DefaultPublicPath
	}

	if c.Render.MaxRounds == nil {
		n := DefaultMaxRounds
		c.Render.MaxRounds = &n
	}
	if c.Render.RoundWait == "" {
		c.Render.RoundWait = DefaultRoundWait
	}
	if c.Render.RequestTimeout == "" {
		c.Render.RequestTimeout = DefaultRequestTimeout
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Render.MaxRounds != nil && *c.Render.MaxRounds < 0 {
		return errors.New("E140").WithDetail("render.maxRounds must not be negative")
	}
	for field, value := range map[string]string{
		"render.roundWait":      c.Render.RoundWait,
		"render.requestTimeout": c.Render.RequestTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return errors.New("E140").WithDetailf("%s: %v", field, err)
		}
		if d <= 0 {
			return errors.New("E140").WithDetailf("%s must be positive", field)
		}
	}
	if _, ok := logLevels[strings.ToLower(c.Log.Level)]; !ok {
		return errors.New("E140").WithDetailf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return errors.New("E140").WithDetailf("log.format %q is not text or json", c.Log.Format)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("E140").WithDetailf("metrics.path %q must start with /", c.Metrics.Path)
	}
	return nil
}

// MaxRounds returns the render round budget.
func (c *Config) MaxRounds() int {
	if c.Render.MaxRounds == nil {
		return DefaultMaxRounds
	}
	return *c.Render.MaxRounds
}

// RoundWait returns the parsed render.roundWait.
func (c *Config) RoundWait() time.Duration {
	return parseDuration(c.Render.RoundWait, DefaultRoundWait)
}

// RequestTimeout returns the parsed render.requestTimeout.
func (c *Config) RequestTimeout() time.Duration {
	return parseDuration(c.Render.RequestTimeout, DefaultRequestTimeout)
}

// BuildLocation returns the build location. Relative directories are
// resolved against the config file's directory.
func (c *Config) BuildLocation() string {
	return c.resolve(c.Build.Location)
}

// StaticDir returns the static directory, or "" when none is configured.
func (c *Config) StaticDir() string {
	if c.Build.StaticDir == "" {
		return ""
	}
	return c.resolve(c.Build.StaticDir)
}

func (c *Config) resolve(path string) string {
	if strings.Contains(path, "://") || filepath.IsAbs(path) || c.Dir() == "" {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogger returns a logger writing to w with the configured handler and level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: logLevels[strings.ToLower(c.Log.Level)]}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseDuration(s, fallback string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
