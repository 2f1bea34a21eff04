// Package config loads the service configuration: a JSON file layered
// with environment overrides, validated before use. Environment
// variables win over the file so containerized deployments can inject
// credentials without editing it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "SDM"

// Config is the complete service configuration.
type Config struct {
	Service ServiceConfig `json:"service"`
	NATS    NATSConfig    `json:"nats"`
	Metrics MetricsConfig `json:"metrics"`
	Log     LogConfig     `json:"log"`
}

// ServiceConfig identifies the running instance.
type ServiceConfig struct {
	Name string `json:"name,omitempty"`

	// BucketHistory is the number of revisions the document buckets
	// keep per key.
	BucketHistory int `json:"bucketHistory,omitempty"`
}

// NATSConfig holds the connection settings for the NATS server that
// backs both the document store and the request subjects.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
	MaxReconnects int           `json:"maxReconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnectWait,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
}

// UnmarshalJSON accepts the duration fields either as duration strings
// ("2s", "500ms") or as integer nanoseconds. Absent fields keep their
// defaults.
func (n *NATSConfig) UnmarshalJSON(data []byte) error {
	type alias NATSConfig
	aux := &struct {
		ReconnectWait any `json:"reconnectWait,omitempty"`
		Timeout       any `json:"timeout,omitempty"`
		*alias
	}{alias: (*alias)(n)}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	var err error
	if n.ReconnectWait, err = parseDuration(aux.ReconnectWait, n.ReconnectWait); err != nil {
		return fmt.Errorf("nats.reconnectWait: %w", err)
	}
	if n.Timeout, err = parseDuration(aux.Timeout, n.Timeout); err != nil {
		return fmt.Errorf("nats.timeout: %w", err)
	}
	return nil
}

func parseDuration(v any, fallback time.Duration) (time.Duration, error) {
	switch d := v.(type) {
	case nil:
		return fallback, nil
	case string:
		return time.ParseDuration(d)
	case float64:
		return time.Duration(d), nil
	default:
		return 0, fmt.Errorf("unsupported duration value %v", v)
	}
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // json or text
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:          "sensor-deployment-manager",
			BucketHistory: 1,
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads a config file, applies environment overrides and
// validates the result. An empty path loads defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(EnvPrefix + "_SERVICE_NAME"); val != "" {
		cfg.Service.Name = val
	}
	if val := os.Getenv(EnvPrefix + "_NATS_URLS"); val != "" {
		cfg.NATS.URLs = strings.Split(val, ",")
	}
	if val := os.Getenv(EnvPrefix + "_NATS_USERNAME"); val != "" {
		cfg.NATS.Username = val
	}
	if val := os.Getenv(EnvPrefix + "_NATS_PASSWORD"); val != "" {
		cfg.NATS.Password = val
	}
	if val := os.Getenv(EnvPrefix + "_NATS_TOKEN"); val != "" {
		cfg.NATS.Token = val
	}
	if val := os.Getenv(EnvPrefix + "_METRICS_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil {
			cfg.Metrics.Port = port
		}
	}
	if val := os.Getenv(EnvPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Log.Level = val
	}
	if val := os.Getenv(EnvPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Log.Format = val
	}
}

// Validate checks the configuration for values the service cannot run
// with.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	if len(c.NATS.URLs) == 0 {
		return fmt.Errorf("nats.urls is required")
	}
	for _, url := range c.NATS.URLs {
		if !strings.HasPrefix(url, "nats://") && !strings.HasPrefix(url, "tls://") {
			return fmt.Errorf("nats url %q must start with nats:// or tls://", url)
		}
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q must be one of debug, info, warn, error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q must be json or text", c.Log.Format)
	}
	if c.Service.BucketHistory < 1 || c.Service.BucketHistory > 64 {
		return fmt.Errorf("service.bucketHistory %d out of range [1,64]", c.Service.BucketHistory)
	}
	return nil
}
