// File: control/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package control

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds transport configuration loaded from the environment.
type Config struct {
	// DevicePath is the bus endpoint device node.
	DevicePath string `envconfig:"KDBUS_DEVICE" default:"/dev/kdbus/0-system/bus"`

	// TimeoutSeconds is the idle timeout for event watches; 0 disables it.
	TimeoutSeconds uint `envconfig:"KDBUS_TIMEOUT_SECONDS" default:"0"`

	// LogLevel selects the zap level for the examples and embedding hosts.
	LogLevel string `envconfig:"KDBUS_LOG_LEVEL" default:"info"`

	// MetricsEnabled toggles prometheus registration.
	MetricsEnabled bool `envconfig:"KDBUS_METRICS" default:"true"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("control: load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads from the environment, falling back to defaults on error.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		// Same values the envconfig defaults produce.
		return &Config{
			DevicePath:     "/dev/kdbus/0-system/bus",
			TimeoutSeconds: 0,
			LogLevel:       "info",
			MetricsEnabled: true,
		}
	}
	return cfg
}

// Timeout returns the idle timeout as a duration; zero means no timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
