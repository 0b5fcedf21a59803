// Package config provides configuration management for FleetForge.
//
// The config file holds process settings: listener, database location,
// logging, metrics and tracing. Fleet data lives in the database.
//
// Config file locations (priority order):
//  1. $FLEETFORGE_CONFIG
//  2. ./fleetforge.yaml
//  3. $XDG_CONFIG_HOME/fleetforge/config.yaml
//  4. ~/.config/fleetforge/config.yaml
//  5. /etc/fleetforge/config.yaml
//
// FLEETFORGE_ADDR, FLEETFORGE_DB and FLEETFORGE_LOG_LEVEL override the file.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Environment overrides
const (
	EnvAddr     = "FLEETFORGE_ADDR"
	EnvDB       = "FLEETFORGE_DB"
	EnvLogLevel = "FLEETFORGE_LOG_LEVEL"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(15 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		// The event stream clears its own write deadline
		c.Server.WriteTimeout = Duration(30 * time.Second)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(60 * time.Second)
	}
	if c.Database.Path == "" {
		c.Database.Path = "./fleetforge.db"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "compact"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "fleetforge"
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

// applyEnv applies environment overrides on top of the file
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvDB); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Validate reports every problem in the config at once
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		result = multierror.Append(result, fmt.Errorf("server.addr %q: %w", c.Server.Addr, err))
	}
	for name, d := range map[string]Duration{
		"server.read_timeout":  c.Server.ReadTimeout,
		"server.write_timeout": c.Server.WriteTimeout,
		"server.idle_timeout":  c.Server.IdleTimeout,
	} {
		if d < 0 {
			result = multierror.Append(result, fmt.Errorf("%s must not be negative", name))
		}
	}
	if c.Database.Path == "" {
		result = multierror.Append(result, fmt.Errorf("database.path is required"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text", "simple", "compact":
	default:
		result = multierror.Append(result, fmt.Errorf("logging.format %q is not one of json, text, simple, compact", c.Logging.Format))
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		result = multierror.Append(result, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
	}
	if c.Tracing.Enabled && strings.ToLower(c.Tracing.Exporter) != "stdout" {
		result = multierror.Append(result, fmt.Errorf("tracing.exporter %q is not supported", c.Tracing.Exporter))
	}
	if c.Fixtures.Watch && c.Fixtures.Path == "" {
		result = multierror.Append(result, fmt.Errorf("fixtures.watch requires fixtures.path"))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		result = multierror.Append(result, fmt.Errorf("tracing.sample_ratio %v must be within [0, 1]", c.Tracing.SampleRatio))
	}

	return result.ErrorOrNil()
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Listen: %s, Database: %s\n", c.Server.Addr, c.Database.Path)
	summary += fmt.Sprintf("Logging: %s/%s", c.Logging.Level, c.Logging.Format)
	if c.Metrics.Enabled {
		summary += fmt.Sprintf(", Metrics: %s", c.Metrics.Path)
	}
	if c.Tracing.Enabled {
		summary += fmt.Sprintf(", Tracing: %s (ratio %.2f)", c.Tracing.Exporter, c.Tracing.SampleRatio)
	}
	return summary
}
