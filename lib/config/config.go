// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/logbook/lib/codec"
)

// EnvVar names the environment variable [Load] reads the config path from.
const EnvVar = "LOGBOOK_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration for logbook binaries.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Server configures logbook-server.
	Server ServerConfig `yaml:"server"`

	// Shipper configures the client side (logbook-pipe and any
	// application that builds a shipper from this file).
	Shipper ShipperConfig `yaml:"shipper"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Zero values leave the base value untouched.
type ConfigOverrides struct {
	Server  *ServerConfig  `yaml:"server,omitempty"`
	Shipper *ShipperConfig `yaml:"shipper,omitempty"`
}

// ServerConfig configures the HTTP log store.
type ServerConfig struct {
	// Listen is the TCP address for the HTTP API.
	// Default: 127.0.0.1:7420
	Listen string `yaml:"listen"`

	// Database configures the SQLite file.
	Database DatabaseConfig `yaml:"database"`

	// Timezone is the IANA zone used for the "logs today" metric.
	// Empty or "Local" uses the host zone.
	Timezone string `yaml:"timezone"`

	// RequestTimeout bounds each API request.
	// Default: 30s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxBodyBytes caps request bodies, measured before decompression.
	// Default: 16 MiB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the database file. ${VAR} expansion applies.
	// Default: ${HOME}/.local/share/logbook/logbook.db
	Path string `yaml:"path"`

	// PoolSize is the number of pooled connections.
	// Default: 4
	PoolSize int `yaml:"pool_size"`
}

// ShipperConfig configures log delivery from a client.
type ShipperConfig struct {
	// Server is the logbook-server base URL.
	// Default: http://127.0.0.1:7420
	Server string `yaml:"server"`

	// Project is the project id or name entries are filed under.
	Project string `yaml:"project"`

	// Compression is the bulk body encoding: none, zstd, or lz4.
	// Default: zstd
	Compression string `yaml:"compression"`

	// BatchSize is the queue length that triggers a flush.
	// Default: 10
	BatchSize int `yaml:"batch_size"`

	// FlushInterval is the longest an entry waits before a flush.
	// Default: 5s
	FlushInterval time.Duration `yaml:"flush_interval"`

	// RetryDelay is how long a failed entry waits before its one retry.
	// Default: 5s
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			Listen: "127.0.0.1:7420",
			Database: DatabaseConfig{
				Path:     "${HOME}/.local/share/logbook/logbook.db",
				PoolSize: 4,
			},
			Timezone:       "Local",
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   16 << 20,
		},
		Shipper: ShipperConfig{
			Server:        "http://127.0.0.1:7420",
			Compression:   string(codec.CompressionZstd),
			BatchSize:     10,
			FlushInterval: 5 * time.Second,
			RetryDelay:    5 * time.Second,
		},
	}
}

// Load loads configuration from the file named by LOGBOOK_CONFIG.
// There is no discovery: if the variable is unset, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your logbook.yaml config file, or use --config flag", EnvVar)
	}

	return LoadFile(configPath)
}

// Resolve picks the config source for a binary: the --config flag if
// given, then LOGBOOK_CONFIG, then [Default] with variables expanded.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvVar) != "" {
		return Load()
	}
	cfg := Default()
	cfg.expandVariables()
	return cfg, nil
}

// LoadFile loads configuration from a specific file path.
//
// Environment variables do not override config values. The only
// expansion performed is ${VAR} substitution in path and URL fields.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}

	if overrides == nil {
		return
	}

	if server := overrides.Server; server != nil {
		if server.Listen != "" {
			c.Server.Listen = server.Listen
		}
		if server.Database.Path != "" {
			c.Server.Database.Path = server.Database.Path
		}
		if server.Database.PoolSize != 0 {
			c.Server.Database.PoolSize = server.Database.PoolSize
		}
		if server.Timezone != "" {
			c.Server.Timezone = server.Timezone
		}
		if server.RequestTimeout != 0 {
			c.Server.RequestTimeout = server.RequestTimeout
		}
		if server.MaxBodyBytes != 0 {
			c.Server.MaxBodyBytes = server.MaxBodyBytes
		}
	}

	if shipper := overrides.Shipper; shipper != nil {
		if shipper.Server != "" {
			c.Shipper.Server = shipper.Server
		}
		if shipper.Project != "" {
			c.Shipper.Project = shipper.Project
		}
		if shipper.Compression != "" {
			c.Shipper.Compression = shipper.Compression
		}
		if shipper.BatchSize != 0 {
			c.Shipper.BatchSize = shipper.BatchSize
		}
		if shipper.FlushInterval != 0 {
			c.Shipper.FlushInterval = shipper.FlushInterval
		}
		if shipper.RetryDelay != 0 {
			c.Shipper.RetryDelay = shipper.RetryDelay
		}
	}
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Server.Listen = expandVars(c.Server.Listen, vars)
	c.Server.Database.Path = expandVars(c.Server.Database.Path, vars)
	c.Shipper.Server = expandVars(c.Shipper.Server, vars)
	c.Shipper.Project = expandVars(c.Shipper.Project, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. Every problem is
// reported, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Server.Listen == "" {
		errs = append(errs, fmt.Errorf("server.listen is required"))
	}
	if c.Server.Database.Path == "" {
		errs = append(errs, fmt.Errorf("server.database.path is required"))
	}
	if c.Server.Database.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("server.database.pool_size must be at least 1, got %d", c.Server.Database.PoolSize))
	}
	if _, err := c.Server.Location(); err != nil {
		errs = append(errs, fmt.Errorf("server.timezone: %w", err))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.request_timeout must be positive"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be positive"))
	}

	if parsed, err := url.Parse(c.Shipper.Server); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		errs = append(errs, fmt.Errorf("shipper.server must be an http or https URL, got %q", c.Shipper.Server))
	}
	if _, err := codec.ParseCompression(c.Shipper.Compression); err != nil {
		errs = append(errs, fmt.Errorf("shipper.compression: %w", err))
	}
	if c.Shipper.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("shipper.batch_size must be at least 1, got %d", c.Shipper.BatchSize))
	}
	if c.Shipper.FlushInterval <= 0 {
		errs = append(errs, fmt.Errorf("shipper.flush_interval must be positive"))
	}
	if c.Shipper.RetryDelay <= 0 {
		errs = append(errs, fmt.Errorf("shipper.retry_delay must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Location resolves Timezone. Empty and "Local" mean the host zone.
func (s ServerConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// EnsurePaths creates the database directory if it does not exist.
func (c *Config) EnsurePaths() error {
	if c.Server.Database.Path == "" {
		return nil
	}
	dir := filepath.Dir(c.Server.Database.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
