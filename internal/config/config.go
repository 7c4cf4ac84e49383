// Package config provides configuration loading and management for the registry mirror.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/registry-mirror/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of environment variables read by the CLI
	EnvPrefix = "REGISTRY_MIRROR"

	// DefaultOutput is the default artifact path
	DefaultOutput = "index.json"

	// DefaultBranch is the default branch used in the raw URL
	DefaultBranch = "master"

	// DefaultFetchTimeout bounds each source request
	DefaultFetchTimeout = 15 * time.Second

	// DefaultServeAddress is the default listen address of the serve command
	DefaultServeAddress = ":8080"

	// DefaultServeInterval is the default interval between runs in serve mode
	DefaultServeInterval = 30 * time.Minute

	// MinServeInterval protects the upstream mirrors from aggressive polling
	MinServeInterval = time.Minute
)

// DefaultSources are the public Koishi registry mirrors
var DefaultSources = []string{
	"https://koishi-registry.yumetsuki.moe/index.json",
	"https://koi.nyan.zone/registry/index.json",
	"https://registry.koishi.t4wefan.pub/index.json",
	"https://kp.itzdrli.cc/index.json",
}

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path      string
	overrides []func(*Config)
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// WithOverride applies fn to the configuration after the file is parsed and
// before defaults and validation. Flags and environment variables use it.
func WithOverride(fn func(*Config)) Option {
	return func(cfg *loaderConfig) error {
		if fn != nil {
			cfg.overrides = append(cfg.overrides, fn)
		}
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// Sources are the registry feed URLs, fetched in this order
	Sources []string `yaml:"sources,omitempty"`

	// Output is the artifact path
	Output string `yaml:"output,omitempty"`

	// Branch is the branch the artifact is published from
	Branch string `yaml:"branch,omitempty"`

	// Repository is "owner/repo"; defaults to GITHUB_REPOSITORY. Any other
	// form leaves rawUrl empty.
	Repository string `yaml:"repository,omitempty"`

	// Info is the provenance note of the envelope
	Info string `yaml:"info,omitempty"`

	Fetch     FetchConfig       `yaml:"fetch,omitempty"`
	Status    StatusConfig      `yaml:"status,omitempty"`
	Serve     ServeConfig       `yaml:"serve,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// FetchConfig controls source requests
type FetchConfig struct {
	// Timeout is a duration string such as "15s"
	Timeout string `yaml:"timeout,omitempty"`
}

// StatusConfig controls the synthetic status record
type StatusConfig struct {
	// Verbose adds process memory to the description; defaults to true
	Verbose *bool `yaml:"verbose,omitempty"`

	// Timezone is the IANA name of the display time zone; defaults to UTC
	Timezone string `yaml:"timezone,omitempty"`

	Publisher PublisherConfig `yaml:"publisher,omitempty"`
}

// PublisherConfig names the publisher of the status record
type PublisherConfig struct {
	Name  string `yaml:"name,omitempty"`
	Email string `yaml:"email,omitempty"`
}

// ServeConfig controls the serve command
type ServeConfig struct {
	Address string `yaml:"address,omitempty"`

	// Interval is a duration string such as "30m"
	Interval string `yaml:"interval,omitempty"`

	// StateFile keeps the run status across restarts; empty disables it
	StateFile string `yaml:"stateFile,omitempty"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig builds the configuration from an optional YAML file and overrides
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	for _, override := range loaderCfg.overrides {
		override(&config)
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if len(c.Sources) == 0 {
		c.Sources = append([]string(nil), DefaultSources...)
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.Branch == "" {
		c.Branch = DefaultBranch
	}
	if c.Repository == "" {
		c.Repository = os.Getenv("GITHUB_REPOSITORY")
	}
	if c.Serve.Address == "" {
		c.Serve.Address = DefaultServeAddress
	}
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one source must be configured")
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, source := range c.Sources {
		if err := validateSource(source); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if seen[source] {
			return fmt.Errorf("sources[%d]: duplicate source '%s'", i, source)
		}
		seen[source] = true
	}

	if strings.TrimSpace(c.Output) == "" {
		return fmt.Errorf("output is required")
	}

	if _, err := parseDuration(c.Fetch.Timeout, DefaultFetchTimeout); err != nil {
		return fmt.Errorf("fetch.timeout must be a valid duration (e.g., '15s'): %w", err)
	}

	if _, err := c.Status.GetLocation(); err != nil {
		return fmt.Errorf("status.timezone: %w", err)
	}

	interval, err := parseDuration(c.Serve.Interval, DefaultServeInterval)
	if err != nil {
		return fmt.Errorf("serve.interval must be a valid duration (e.g., '30m', '1h'): %w", err)
	}
	if interval < MinServeInterval {
		return fmt.Errorf("serve.interval must be at least %s, got %s", MinServeInterval, interval)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func validateSource(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("source cannot be empty")
	}
	if !strings.Contains(source, "://") {
		// bare local path
		return nil
	}

	u, err := url.Parse(source)
	if err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("source URL '%s' has no host", source)
		}
	case "file":
		if u.Path == "" {
			return fmt.Errorf("source URL '%s' has no path", source)
		}
	default:
		return fmt.Errorf("unsupported source scheme '%s'", u.Scheme)
	}
	return nil
}

func parseDuration(value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("duration must be positive")
	}
	return d, nil
}

// GetFetchTimeout returns the per-source timeout
func (c *Config) GetFetchTimeout() time.Duration {
	d, err := parseDuration(c.Fetch.Timeout, DefaultFetchTimeout)
	if err != nil {
		return DefaultFetchTimeout
	}
	return d
}

// GetServeInterval returns the interval between runs in serve mode
func (c *Config) GetServeInterval() time.Duration {
	d, err := parseDuration(c.Serve.Interval, DefaultServeInterval)
	if err != nil {
		return DefaultServeInterval
	}
	return d
}

// IsVerbose reports whether the status record includes memory usage
func (s *StatusConfig) IsVerbose() bool {
	return s.Verbose == nil || *s.Verbose
}

// GetLocation returns the display time zone of the status record
func (s *StatusConfig) GetLocation() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}
