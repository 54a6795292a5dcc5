// Package config loads warden configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/bhandras/warden/client"
)

// Config is the resolved warden configuration.
type Config struct {
	// ServerURL is the base URL of the session server API.
	ServerURL string
	// Password authenticates against the server; empty disables auth.
	Password string
	// AutoConnect dials the event stream as soon as the client is built.
	AutoConnect bool
	// CheckInterval is the liveness tick period.
	CheckInterval time.Duration
	// SessionTimeout is the busy-session staleness threshold.
	SessionTimeout time.Duration
	// RetrySettleDelay is the abort-to-resend pause on timeout retries.
	RetrySettleDelay time.Duration
	// FailoverSettleDelay is the abort-to-resend pause on model failover.
	FailoverSettleDelay time.Duration
	// LogLevel selects logger verbosity (trace|debug|info|warn|error).
	LogLevel string
}

// Load reads configuration from ~/.warden/config.yaml (overridable via
// WARDEN_CONFIG_DIR) and WARDEN_* environment variables. A missing config
// file is not an error; defaults apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configDir := os.Getenv("WARDEN_CONFIG_DIR")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		configDir = filepath.Join(home, ".warden")
	}
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("WARDEN")
	v.AutomaticEnv()

	v.SetDefault("server_url", "http://127.0.0.1:4096")
	v.SetDefault("auto_connect", true)
	v.SetDefault("check_interval", "1s")
	v.SetDefault("session_timeout", "4m")
	v.SetDefault("retry_settle_delay", "1s")
	v.SetDefault("failover_settle_delay", "500ms")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return &Config{
		ServerURL:           v.GetString("server_url"),
		Password:            v.GetString("password"),
		AutoConnect:         v.GetBool("auto_connect"),
		CheckInterval:       v.GetDuration("check_interval"),
		SessionTimeout:      v.GetDuration("session_timeout"),
		RetrySettleDelay:    v.GetDuration("retry_settle_delay"),
		FailoverSettleDelay: v.GetDuration("failover_settle_delay"),
		LogLevel:            v.GetString("log_level"),
	}, nil
}

// ClientConfig converts the loaded configuration into client construction
// settings.
func (c *Config) ClientConfig() client.Config {
	return client.Config{
		BaseURL:             c.ServerURL,
		Password:            c.Password,
		AutoConnect:         c.AutoConnect,
		CheckInterval:       c.CheckInterval,
		SessionTimeout:      c.SessionTimeout,
		RetrySettleDelay:    c.RetrySettleDelay,
		FailoverSettleDelay: c.FailoverSettleDelay,
	}
}
