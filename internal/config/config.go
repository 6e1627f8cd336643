// Package config provides centralized configuration management for the importer.
// It loads configuration from environment variables and an optional YAML file
// with sensible defaults, and validates all settings on startup to fail fast
// on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// Every setting can be configured via environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Import   ImportConfig   `yaml:"import"`
	Source   SourceConfig   `yaml:"source"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings for `assayimport serve`.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0" yaml:"host"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the request body (default: 5m)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"5m" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing the response (default: 0, imports can be long)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s" yaml:"write_timeout"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s" yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s" yaml:"shutdown_timeout"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	// URL selects the store: postgres://, sqlite: or memory:// (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true" yaml:"url"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4" yaml:"max_conns"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1" yaml:"min_conns"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h" yaml:"max_conn_lifetime"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m" yaml:"max_conn_idle_time"`
}

// ImportConfig holds import processing settings.
type ImportConfig struct {
	// MetaFieldPrefix is prepended to the name, description and url treatment columns (default: none)
	MetaFieldPrefix string `env:"IMPORT_META_FIELD_PREFIX" yaml:"meta_field_prefix"`

	// Timeout is the maximum duration of one file import (default: 30m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"30m" yaml:"timeout"`

	// MaxConcurrent is the number of HTTP imports allowed at once (default: 1)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"1" yaml:"max_concurrent"`

	// MaxWaitTime is how long an HTTP import waits for a slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s" yaml:"max_wait_time"`

	// MaxUploadSize is the maximum HTTP request body in bytes (default: 100MB)
	MaxUploadSize int64 `env:"IMPORT_MAX_UPLOAD_SIZE" default:"104857600" yaml:"max_upload_size"`
}

// SourceConfig holds settings for s3:// inputs.
type SourceConfig struct {
	// S3Region is the bucket region (default: us-east-1)
	S3Region string `env:"S3_REGION" envAlt:"AWS_REGION" default:"us-east-1" yaml:"s3_region"`

	// S3Endpoint overrides the S3 endpoint, e.g. for MinIO
	S3Endpoint string `env:"S3_ENDPOINT" yaml:"s3_endpoint"`

	// S3PathStyle forces path-style bucket addressing (default: false)
	S3PathStyle bool `env:"S3_PATH_STYLE" default:"false" yaml:"s3_path_style"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info" yaml:"level"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text" yaml:"format"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
