// Package config provides configuration management for the Elsevier profile client.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all configuration for the profile client.
type Config struct {
	// Client contains Elsevier API client settings.
	Client ClientConfig `mapstructure:"client"`
	// Documents contains document persistence settings.
	Documents DocumentsConfig `mapstructure:"documents"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ClientConfig holds Elsevier API client configuration.
type ClientConfig struct {
	// BaseURL is the Elsevier content API base URL.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	// APIKey is the Elsevier API key, loaded exclusively from the environment.
	APIKey string `mapstructure:"-"`
	// InstToken is the optional institutional token, loaded exclusively from
	// the environment. Sent as X-ELS-Insttoken when set.
	InstToken string `mapstructure:"-"`
	// Timeout is the request timeout for HTTP operations.
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gt=0"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size" validate:"gt=0"`
	// MaxRetries is the maximum number of retry attempts on 429/5xx.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay" validate:"gte=0"`
	// UserAgent is the User-Agent header sent with requests.
	UserAgent string `mapstructure:"user_agent" validate:"required"`
}

// DocumentsConfig holds document persistence configuration.
type DocumentsConfig struct {
	// OutputDir is the directory document lists are written to. The
	// directory must already exist.
	OutputDir string `mapstructure:"output_dir" validate:"required"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level" validate:"oneof=trace debug info warn warning error fatal panic"`
	// Format is the log output format (json, console, pretty).
	Format string `mapstructure:"format" validate:"oneof=json console pretty"`
	// Output is the log destination (stdout, stderr).
	Output string `mapstructure:"output" validate:"oneof=stdout stderr"`
	// AddSource adds source file and line number to log entries.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the time format for log timestamps.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled toggles metric recording on the API client.
	Enabled bool `mapstructure:"enabled"`
	// Namespace is the prefix for all metric names.
	Namespace string `mapstructure:"namespace" validate:"required"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("ELSPROFILE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/elsevier-profiles")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
func loadSecrets(cfg *Config) {
	cfg.Client.APIKey = os.Getenv("ELSPROFILE_CLIENT_API_KEY")
	cfg.Client.InstToken = os.Getenv("ELSPROFILE_CLIENT_INST_TOKEN")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Client defaults
	v.SetDefault("client.base_url", "https://api.elsevier.com/content")
	v.SetDefault("client.timeout", "30s")
	v.SetDefault("client.rate_limit", 5.0)
	v.SetDefault("client.burst_size", 5)
	v.SetDefault("client.max_retries", 3)
	v.SetDefault("client.retry_delay", "1s")
	v.SetDefault("client.user_agent", "elsevier-profiles/1.0")

	// Documents defaults
	v.SetDefault("documents.output_dir", "data")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "elsevier_profiles")
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid %s: failed %q constraint", first.Namespace(), first.Tag())
		}
		return err
	}

	if c.Client.MaxRetries > 0 && c.Client.RetryDelay <= 0 {
		return fmt.Errorf("client retry_delay must be positive when max_retries is set")
	}

	return nil
}
