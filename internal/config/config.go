// Package config provides configuration loading for headcam commands.
//
// Configuration is loaded from a single YAML file specified by the
// HEADCAM_CONFIG environment variable or the --config flag. When neither
// is set, built-in defaults apply, so every command works out of the box
// on a machine with ffmpeg, ffprobe, and gpmfdemo on PATH.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfig is the environment variable naming the config file.
const EnvConfig = "HEADCAM_CONFIG"

// Config is the master configuration for the headcam toolkit.
type Config struct {
	// DatasetRoot is the base directory for recordings. Commands that
	// scan or rename resolve relative paths against it.
	DatasetRoot string `yaml:"dataset_root"`

	// CatalogPath is the SQLite database file for the video catalog.
	CatalogPath string `yaml:"catalog_path"`

	// Workers is the number of concurrent workers for batch operations.
	Workers int `yaml:"workers"`

	// Tools configures the external tool harness.
	Tools ToolsConfig `yaml:"tools"`

	// Telemetry configures sensor stream extraction.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Serve configures the HTTP server.
	Serve ServeConfig `yaml:"serve"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`
}

// ToolsConfig configures the external tools the toolkit shells out to.
// Empty paths resolve through PATH at invocation time.
type ToolsConfig struct {
	// FFmpeg is the path to the ffmpeg binary.
	FFmpeg string `yaml:"ffmpeg"`

	// FFprobe is the path to the ffprobe binary.
	FFprobe string `yaml:"ffprobe"`

	// GPMFDemo is the path to the gpmfdemo binary used for telemetry
	// stream extraction.
	GPMFDemo string `yaml:"gpmfdemo"`

	// TimeoutSeconds bounds a single tool invocation. Telemetry
	// extraction applies it per tag.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// TelemetryConfig configures sensor stream extraction.
type TelemetryConfig struct {
	// Tags restricts extraction to the named four-character stream tags.
	// Empty means every supported tag.
	Tags []string `yaml:"tags"`
}

// ServeConfig configures the HTTP server started by `headcam serve`.
type ServeConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`

	// AllowedOrigins lists origins permitted by CORS. Empty allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// StatsCacheSeconds is how long catalog statistics are cached
	// before being recomputed.
	StatsCacheSeconds int `yaml:"stats_cache_seconds"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is the minimum level to emit: debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is the output format: text or json.
	Format string `yaml:"format"`
}

// Default returns the built-in configuration. It is the base that any
// loaded file merges into, so unset fields keep these values.
func Default() *Config {
	return &Config{
		DatasetRoot: ".",
		CatalogPath: "headcam.db",
		Workers:     runtime.NumCPU(),
		Tools: ToolsConfig{
			FFmpeg:         "ffmpeg",
			FFprobe:        "ffprobe",
			GPMFDemo:       "gpmfdemo",
			TimeoutSeconds: 120,
		},
		Serve: ServeConfig{
			Addr:              ":8080",
			StatsCacheSeconds: 30,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from path. When path is empty it consults
// HEADCAM_CONFIG, and when that is also unset it returns the defaults.
// An explicitly named file that does not exist is an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.DatasetRoot == "" {
		errs = append(errs, fmt.Errorf("dataset_root is required"))
	}
	if c.CatalogPath == "" {
		errs = append(errs, fmt.Errorf("catalog_path is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if c.Tools.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("tools.timeout_seconds must be at least 1, got %d", c.Tools.TimeoutSeconds))
	}
	if c.Serve.Addr == "" {
		errs = append(errs, fmt.Errorf("serve.addr is required"))
	}
	if c.Serve.StatsCacheSeconds < 0 {
		errs = append(errs, fmt.Errorf("serve.stats_cache_seconds must not be negative, got %d", c.Serve.StatsCacheSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ToolTimeout returns the per-invocation tool timeout as a duration.
func (c *Config) ToolTimeout() time.Duration {
	return time.Duration(c.Tools.TimeoutSeconds) * time.Second
}

// StatsCacheTTL returns the statistics cache lifetime as a duration.
func (c *Config) StatsCacheTTL() time.Duration {
	return time.Duration(c.Serve.StatsCacheSeconds) * time.Second
}

// ResolvePath resolves a path against the dataset root. Absolute paths
// are returned unchanged.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.DatasetRoot, path)
}
