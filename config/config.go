// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"
)

var pathPattern = regexp.MustCompile(`^/`)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Models   ModelsConfig   `yaml:"models"`
	Storage  StorageConfig  `yaml:"storage"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Docs     DocsConfig     `yaml:"docs"`
	Events   EventsConfig   `yaml:"events"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // only "sqlite"
	DSN    string `yaml:"dsn"`
}

// ModelsConfig locates the model definition files.
type ModelsConfig struct {
	Dir string `yaml:"dir"`

	// Pattern selects files below Dir. Supports ** and {a,b}.
	Pattern string `yaml:"pattern"`

	// Strict fails startup when a pointer targets a class that was not loaded.
	Strict bool `yaml:"strict"`
}

// StorageConfig configures attachment URL resolution.
type StorageConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SecurityConfig configures the password parser.
type SecurityConfig struct {
	PasswordCost int `yaml:"password_cost"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// DocsConfig configures the generated API documentation.
type DocsConfig struct {
	Enabled bool   `yaml:"enabled"` // Serve the Swagger UI at /_docs/
	Title   string `yaml:"title"`
}

// EventsConfig configures relaying record events to NATS.
type EventsConfig struct {
	NatsURL       string `yaml:"nats_url"` // empty disables the relay
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds configuration from YAML content.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	WARP_SERVER_HOST            - Server host (default: 0.0.0.0)
//	WARP_SERVER_PORT            - Server port (default: 8080)
//	WARP_DATABASE_DSN           - Database path (default: warpmodel.db)
//	WARP_MODELS_DIR             - Model files directory (default: models)
//	WARP_MODELS_PATTERN         - Model file glob (default: **/*.{yaml,yml})
//	WARP_MODELS_STRICT          - Fail on unresolved pointers (default: false)
//	WARP_STORAGE_BASE_URL       - Base URL of stored attachments
//	WARP_SECURITY_PASSWORD_COST - bcrypt cost of password fields (default: 8)
//	WARP_LOG_LEVEL              - Log level: debug, info, warn, error (default: info)
//	WARP_LOG_FORMAT             - Log format: json or console (default: json)
//	WARP_METRICS_ENABLED        - Enable /metrics endpoint (default: false)
//	WARP_DOCS_ENABLED           - Serve the Swagger UI (default: false)
//	WARP_EVENTS_NATS_URL        - NATS server receiving record events
//	WARP_EVENTS_SUBJECT_PREFIX  - NATS subject prefix (default: warpmodel)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies WARP_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("WARP_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("WARP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("WARP_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("WARP_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("WARP_SERVER_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}

	// Database configuration
	if v := os.Getenv("WARP_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("WARP_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Models configuration
	if v := os.Getenv("WARP_MODELS_DIR"); v != "" {
		cfg.Models.Dir = v
	}
	if v := os.Getenv("WARP_MODELS_PATTERN"); v != "" {
		cfg.Models.Pattern = v
	}
	if v := os.Getenv("WARP_MODELS_STRICT"); v != "" {
		cfg.Models.Strict = parseBool(v)
	}

	if v := os.Getenv("WARP_STORAGE_BASE_URL"); v != "" {
		cfg.Storage.BaseURL = v
	}

	if v := os.Getenv("WARP_SECURITY_PASSWORD_COST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Security.PasswordCost = n
		}
	}

	// Logging configuration
	if v := os.Getenv("WARP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("WARP_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("WARP_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("WARP_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	if v := os.Getenv("WARP_DOCS_ENABLED"); v != "" {
		cfg.Docs.Enabled = parseBool(v)
	}
	if v := os.Getenv("WARP_DOCS_TITLE"); v != "" {
		cfg.Docs.Title = v
	}

	if v := os.Getenv("WARP_EVENTS_NATS_URL"); v != "" {
		cfg.Events.NatsURL = v
	}
	if v := os.Getenv("WARP_EVENTS_SUBJECT_PREFIX"); v != "" {
		cfg.Events.SubjectPrefix = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "warpmodel.db"
	}

	if cfg.Models.Dir == "" {
		cfg.Models.Dir = "models"
	}
	if cfg.Models.Pattern == "" {
		cfg.Models.Pattern = "**/*.{yaml,yml}"
	}

	if cfg.Security.PasswordCost == 0 {
		cfg.Security.PasswordCost = 8
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Docs.Title == "" {
		cfg.Docs.Title = "warpmodel API"
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "warpmodel"
	}
}

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server),
		validation.Field(&c.Database),
		validation.Field(&c.Models),
		validation.Field(&c.Storage),
		validation.Field(&c.Security),
		validation.Field(&c.Logging),
		validation.Field(&c.Metrics),
		validation.Field(&c.Events),
	)
}

// Validate checks the server section.
func (s ServerConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&s.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&s.RequestTimeout, validation.Min(time.Duration(0))),
	)
}

// Validate checks the database section.
func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In("sqlite").Error("must be 'sqlite'")),
		validation.Field(&d.DSN, validation.Required),
	)
}

// Validate checks the models section.
func (m ModelsConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Dir, validation.Required),
		validation.Field(&m.Pattern, validation.Required, validation.By(validPattern)),
	)
}

func validPattern(value any) error {
	if p, _ := value.(string); !doublestar.ValidatePattern(p) {
		return errors.New("must be a valid glob pattern")
	}
	return nil
}

// Validate checks the storage section.
func (s StorageConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.BaseURL, is.URL),
	)
}

// Validate checks the security section. bcrypt accepts costs 4 to 31.
func (s SecurityConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.PasswordCost, validation.Min(4), validation.Max(31)),
	)
}

// Validate checks the logging section.
func (l LoggingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("json", "console")),
	)
}

// Validate checks the metrics section.
func (m MetricsConfig) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Path, validation.Required, validation.Match(pathPattern).Error("must start with '/'")),
	)
}

var subjectToken = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// Validate checks the events section.
func (e EventsConfig) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.NatsURL, validation.By(validNatsURLs)),
		validation.Field(&e.SubjectPrefix, validation.Required, validation.Match(subjectToken).Error("must be dot-separated subject tokens")),
	)
}

// validNatsURLs accepts the comma-separated server list nats.Connect takes.
func validNatsURLs(value any) error {
	v, _ := value.(string)
	if v == "" {
		return nil
	}
	for _, raw := range strings.Split(v, ",") {
		u, err := url.Parse(strings.TrimSpace(raw))
		if err != nil || u.Host == "" {
			return fmt.Errorf("invalid server url %q", raw)
		}
		switch u.Scheme {
		case "nats", "tls", "ws", "wss":
		default:
			return fmt.Errorf("unsupported scheme %q", u.Scheme)
		}
	}
	return nil
}
