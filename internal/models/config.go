// Package models - service configuration and operational settings.
// Configuration is hierarchical with logical grouping per component
// (server, storage, security, logging, metrics, observability), ships
// environment-friendly defaults, and is validated at startup so
// misconfigurations fail fast.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
)

// Config is the root configuration structure containing all service settings.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Security      SecurityConfig      `yaml:"security" json:"security"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	PublicURL    string        `yaml:"public_url" json:"public_url"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Path     string         `yaml:"path" json:"path"`
	Database DatabaseConfig `yaml:"database" json:"database"`
}

type DatabaseConfig struct {
	DSN          string `yaml:"dsn" json:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" json:"max_idle_conns"`
}

type SecurityConfig struct {
	EnableAuth   bool            `yaml:"enable_auth" json:"enable_auth"`
	BootstrapKey string          `yaml:"bootstrap_key" json:"bootstrap_key"`
	RateLimit    RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig controls the fixed-window quota applied to credentialed
// requests. The limit applies uniformly to all API keys; there is no
// per-key override.
type RateLimitConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	MaxRequests   int           `yaml:"max_requests" json:"max_requests"`
	Window        time.Duration `yaml:"window" json:"window"`
	Retention     time.Duration `yaml:"retention" json:"retention"`
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled  bool    `yaml:"enabled" json:"enabled"`
	Exporter string  `yaml:"exporter" json:"exporter"` // stdout or otlp
	Endpoint string  `yaml:"endpoint" json:"endpoint"`
	Sampling float64 `yaml:"sampling" json:"sampling"`
}

// NewDefaultConfig returns a configuration with sensible defaults that
// work out of the box for local development.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			PublicURL:    "http://localhost:8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Storage: StorageConfig{
			Type: StorageTypeSQLite,
			Database: DatabaseConfig{
				DSN:          "shortener.db",
				MaxOpenConns: 10,
				MaxIdleConns: 5,
			},
		},
		Security: SecurityConfig{
			EnableAuth: true,
			RateLimit: RateLimitConfig{
				Enabled:       true,
				MaxRequests:   100,
				Window:        time.Minute,
				Retention:     24 * time.Hour,
				SweepInterval: time.Hour,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "shortener",
			Tracing: TracingConfig{
				Enabled:  false,
				Exporter: "stdout",
				Sampling: 1.0,
			},
		},
	}
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Storage.Type {
	case StorageTypeMemory:
	case StorageTypeSQLite, StorageTypePostgres:
		if c.Storage.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", c.Storage.Type)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	if c.Server.TLSEnabled {
		if c.Server.TLSCertFile == "" || c.Server.TLSKeyFile == "" {
			return errors.New("tls_cert_file and tls_key_file are required when TLS is enabled")
		}
	}

	rl := c.Security.RateLimit
	if rl.Enabled {
		if rl.MaxRequests <= 0 {
			return fmt.Errorf("rate limit max_requests must be positive, got %d", rl.MaxRequests)
		}
		if rl.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive, got %s", rl.Window)
		}
		if rl.Retention < rl.Window {
			return fmt.Errorf("rate limit retention (%s) must be at least one window (%s)", rl.Retention, rl.Window)
		}
		if rl.SweepInterval <= 0 {
			return fmt.Errorf("rate limit sweep_interval must be positive, got %s", rl.SweepInterval)
		}
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.Logging.Level)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}
