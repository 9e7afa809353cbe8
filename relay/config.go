// Copyright 2026 The Tracewire Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tracewire/tracewire/lib/netutil"
)

// DefaultListenAddress is the producer-facing socket when none is
// configured. Producers expect a local collector socket here, which is
// exactly the illusion the relay maintains.
const DefaultListenAddress = "/run/tracewire/producer.sock"

// DefaultDialTimeout bounds each upstream connection attempt.
const DefaultDialTimeout = 10 * time.Second

// Config is the top-level configuration for the relay daemon.
type Config struct {
	// ListenAddress is the producer-facing endpoint. Defaults to
	// DefaultListenAddress. Accepts the forms netutil.ParseAddress
	// accepts: unix paths, @abstract names, and tcp host:port.
	ListenAddress string `yaml:"listen_address"`

	// UpstreamAddress is the collector endpoint the relay connects to
	// for each accepted producer. Required.
	UpstreamAddress string `yaml:"upstream_address"`

	// MetricsAddress is an optional TCP address for the prometheus and
	// health endpoints. Empty disables the metrics server.
	MetricsAddress string `yaml:"metrics_address"`

	// DialTimeout bounds each upstream connection attempt. Defaults to
	// DefaultDialTimeout.
	DialTimeout Duration `yaml:"dial_timeout"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`
}

// Duration wraps time.Duration so YAML configs can use Go duration
// strings like "10s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// LoadConfig loads a configuration from a YAML file and applies
// defaults. Call Validate before using the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()
	return &config, nil
}

// ApplyDefaults fills unset fields with their default values.
func (c *Config) ApplyDefaults() {
	if c.ListenAddress == "" {
		c.ListenAddress = DefaultListenAddress
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = Duration(DefaultDialTimeout)
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// SlogLevel maps the configured log level to its slog constant. Values
// Validate would reject map to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.UpstreamAddress == "" {
		return fmt.Errorf("upstream_address is required")
	}
	if _, err := netutil.ParseAddress(c.UpstreamAddress); err != nil {
		return fmt.Errorf("upstream_address: %w", err)
	}
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address is required")
	}
	if _, err := netutil.ParseAddress(c.ListenAddress); err != nil {
		return fmt.Errorf("listen_address: %w", err)
	}
	if c.MetricsAddress != "" {
		endpoint, err := netutil.ParseAddress(c.MetricsAddress)
		if err != nil {
			return fmt.Errorf("metrics_address: %w", err)
		}
		if endpoint.Network != "tcp" {
			return fmt.Errorf("metrics_address: %q is not a tcp address", c.MetricsAddress)
		}
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial_timeout must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q (supported: debug, info, warn, error)", c.LogLevel)
	}
	return nil
}
