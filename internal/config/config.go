// Package config provides configuration loading and management for the roster server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/studio-roster/internal/telemetry"
)

const (
	// EnvPrefix is the prefix of every environment variable read by the server
	EnvPrefix = "ROSTER"

	// DefaultTimezone is the studio timezone used when none is configured
	DefaultTimezone = "America/Phoenix"

	// DefaultRefreshInterval is the time between two scheduled refreshes
	DefaultRefreshInterval = "5m"

	// DefaultRequestTimeout bounds every call to the studio API
	DefaultRequestTimeout = "30s"

	// DefaultConcurrency is the number of class-detail calls in flight during a refresh
	DefaultConcurrency = 4

	// DefaultRequestsPerSecond caps the outbound call rate to the studio API
	DefaultRequestsPerSecond = 10

	minRefreshInterval = time.Second
)

// Environment keys, resolved against EnvPrefix with dots replaced by underscores
// (studio.base_url is read from ROSTER_STUDIO_BASE_URL).
const (
	keyStudioBaseURL           = "studio.base_url"
	keyStudioCompanyID         = "studio.company_id"
	keyStudioEmail             = "studio.email"
	keyStudioTimezone          = "studio.timezone"
	keyStudioRequestTimeout    = "studio.request_timeout"
	keyStudioRequestsPerSecond = "studio.requests_per_second"
	keyRefreshInterval         = "refresh.interval"
	keyRefreshConcurrency      = "refresh.concurrency"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
	env  *viper.Viper
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
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

// WithEnvironment applies overrides found in v on top of the file configuration.
// v is expected to have AutomaticEnv enabled; NewEnvironment returns a suitable instance.
func WithEnvironment(v *viper.Viper) Option {
	return func(cfg *loaderConfig) error {
		if v == nil {
			return fmt.Errorf("viper instance cannot be nil")
		}
		cfg.env = v
		return nil
	}
}

// NewEnvironment returns a viper instance reading ROSTER_ prefixed environment variables
func NewEnvironment() *viper.Viper {
	v := viper.New()
	ConfigureEnvironment(v)
	return v
}

// ConfigureEnvironment enables prefixed environment lookups on v
func ConfigureEnvironment(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process environment.
// Files that do not exist are skipped; variables already set are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Config represents the root configuration structure
type Config struct {
	Studio    StudioConfig      `yaml:"studio"`
	Refresh   RefreshConfig     `yaml:"refresh"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`

	location *time.Location
}

// StudioConfig identifies the studio account the roster is pulled from
type StudioConfig struct {
	// BaseURL is the API root; endpoint names are appended to it
	// Example: "https://studio.example.com/api"
	BaseURL string `yaml:"baseUrl"`

	// CompanyID is the studio's company identifier
	CompanyID string `yaml:"companyId"`

	// Email is the staff account used to obtain attendance tokens
	Email string `yaml:"email"`

	// Timezone is the IANA zone used for the program date and display times
	Timezone string `yaml:"timezone,omitempty"`

	// RequestTimeout bounds each studio API call (Go duration, e.g. "30s")
	RequestTimeout string `yaml:"requestTimeout,omitempty"`

	// RequestsPerSecond caps the outbound call rate
	RequestsPerSecond int `yaml:"requestsPerSecond,omitempty"`
}

// RefreshConfig controls how often and how aggressively the roster is refreshed
type RefreshConfig struct {
	// Interval is the time between scheduled refreshes (Go duration, e.g. "5m")
	Interval string `yaml:"interval,omitempty"`

	// Concurrency is the number of class-detail calls in flight at once
	Concurrency int `yaml:"concurrency,omitempty"`
}

// LoadConfig builds the configuration from defaults, an optional YAML file and
// optional environment overrides, in that order, and validates the result.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	config := &Config{}

	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if loaderCfg.env != nil {
		applyEnvironment(config, loaderCfg.env)
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func applyEnvironment(c *Config, v *viper.Viper) {
	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	setString(keyStudioBaseURL, &c.Studio.BaseURL)
	setString(keyStudioCompanyID, &c.Studio.CompanyID)
	setString(keyStudioEmail, &c.Studio.Email)
	setString(keyStudioTimezone, &c.Studio.Timezone)
	setString(keyStudioRequestTimeout, &c.Studio.RequestTimeout)
	setInt(keyStudioRequestsPerSecond, &c.Studio.RequestsPerSecond)
	setString(keyRefreshInterval, &c.Refresh.Interval)
	setInt(keyRefreshConcurrency, &c.Refresh.Concurrency)
}

func (c *Config) applyDefaults() {
	if c.Studio.Timezone == "" {
		c.Studio.Timezone = DefaultTimezone
	}
	if c.Studio.RequestTimeout == "" {
		c.Studio.RequestTimeout = DefaultRequestTimeout
	}
	if c.Studio.RequestsPerSecond == 0 {
		c.Studio.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.Refresh.Interval == "" {
		c.Refresh.Interval = DefaultRefreshInterval
	}
	if c.Refresh.Concurrency == 0 {
		c.Refresh.Concurrency = DefaultConcurrency
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Studio.validate(); err != nil {
		return fmt.Errorf("studio: %w", err)
	}

	loc, err := time.LoadLocation(c.Studio.Timezone)
	if err != nil {
		return fmt.Errorf("studio: invalid timezone %q: %w", c.Studio.Timezone, err)
	}
	c.location = loc

	if err := c.Refresh.validate(); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	return nil
}

func (s *StudioConfig) validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("baseUrl is required")
	}
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid baseUrl: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("baseUrl must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("baseUrl must include a host")
	}

	if s.CompanyID == "" {
		return fmt.Errorf("companyId is required")
	}
	if s.Email == "" {
		return fmt.Errorf("email is required")
	}

	timeout, err := time.ParseDuration(s.RequestTimeout)
	if err != nil {
		return fmt.Errorf("invalid requestTimeout: %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("requestTimeout must be positive, got %s", s.RequestTimeout)
	}

	if s.RequestsPerSecond < 0 {
		return fmt.Errorf("requestsPerSecond must not be negative, got %d", s.RequestsPerSecond)
	}
	return nil
}

func (r *RefreshConfig) validate() error {
	interval, err := time.ParseDuration(r.Interval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}
	if interval < minRefreshInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minRefreshInterval, r.Interval)
	}
	if r.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", r.Concurrency)
	}
	return nil
}

// Location returns the studio timezone. Only valid on a loaded configuration.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		if loc, err := time.LoadLocation(c.Studio.Timezone); err == nil {
			return loc
		}
		return time.UTC
	}
	return c.location
}

// GetRefreshInterval returns the parsed refresh interval
func (c *Config) GetRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.Refresh.Interval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetRequestTimeout returns the parsed studio request timeout
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Studio.RequestTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetEndpointURL joins the studio base URL and an endpoint name
func (c *Config) GetEndpointURL(endpoint string) string {
	return strings.TrimRight(c.Studio.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}
