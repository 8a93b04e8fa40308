// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Definitions   DefinitionsConfig   `yaml:"definitions"`
	Database      DatabaseConfig      `yaml:"database"`
	Preferences   PreferencesConfig   `yaml:"preferences"`
	Grid          GridConfig          `yaml:"grid"`
	Export        ExportConfig        `yaml:"export"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// DefinitionsConfig describes where to find grid definition YAML files.
type DefinitionsConfig struct {
	Directories []string `yaml:"directories"`
}

// DatabaseConfig describes the PostgreSQL pool backing SQL grids.
type DatabaseConfig struct {
	DSNEnv          string               `yaml:"dsn_env"`
	MaxConns        int32                `yaml:"max_conns"`
	MinConns        int32                `yaml:"min_conns"`
	ConnMaxLifetime time.Duration        `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration        `yaml:"query_timeout"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig describes circuit breaker settings.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	SuccessThreshold   int           `yaml:"success_threshold"`
	Timeout            time.Duration `yaml:"timeout"`
	ErrorRateThreshold float64       `yaml:"error_rate_threshold"`
	ErrorRateWindow    time.Duration `yaml:"error_rate_window"`
}

// PreferencesConfig describes where persisted grid preferences live.
type PreferencesConfig struct {
	Driver string        `yaml:"driver"`
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

// RedisConfig describes a Redis connection.
type RedisConfig struct {
	AddrEnv     string `yaml:"addr_env"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
}

// GridConfig holds engine defaults applied to every grid.
type GridConfig struct {
	DefaultPageSize int           `yaml:"default_page_size"`
	MaxPageSize     int           `yaml:"max_page_size"`
	SearchDebounce  time.Duration `yaml:"search_debounce"`
}

// ExportConfig describes export settings.
type ExportConfig struct {
	MaxRows          int           `yaml:"max_rows"`
	DateLayout       string        `yaml:"date_layout"`
	Timeout          time.Duration `yaml:"timeout"`
	IncludeTimestamp bool          `yaml:"include_timestamp"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Preference store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
)

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    150 * time.Second,
			HandlerTimeout:  55 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type", "X-Correlation-Id"},
				MaxAge:         86400,
			},
		},
		Definitions: DefinitionsConfig{
			Directories: []string{"/definitions"},
		},
		Database: DatabaseConfig{
			DSNEnv:          "GRIDD_DATABASE_DSN",
			MaxConns:        25,
			MinConns:        2,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold: 5,
				SuccessThreshold: 2,
				Timeout:          30 * time.Second,
			},
		},
		Preferences: PreferencesConfig{
			Driver: DriverMemory,
			Redis: RedisConfig{
				AddrEnv:     "GRIDD_REDIS_ADDR",
				PasswordEnv: "GRIDD_REDIS_PASSWORD",
			},
		},
		Grid: GridConfig{
			DefaultPageSize: 10,
			MaxPageSize:     1000,
			SearchDebounce:  300 * time.Millisecond,
		},
		Export: ExportConfig{
			MaxRows:          50000,
			DateLayout:       "2006-01-02",
			Timeout:          2 * time.Minute,
			IncludeTimestamp: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if len(c.Definitions.Directories) == 0 {
		errs = append(errs, "definitions.directories is required")
	}
	if c.Database.DSNEnv == "" {
		errs = append(errs, "database.dsn_env is required")
	}
	if c.Database.MaxConns < 0 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		errs = append(errs, "database.min_conns must be between 0 and database.max_conns")
	}
	if r := c.Database.CircuitBreaker.ErrorRateThreshold; r < 0 || r > 1 {
		errs = append(errs, "database.circuit_breaker.error_rate_threshold must be between 0 and 1")
	}

	switch c.Preferences.Driver {
	case DriverMemory, DriverPostgres:
	case DriverRedis:
		if c.Preferences.Redis.AddrEnv == "" {
			errs = append(errs, "preferences.redis.addr_env is required for the redis driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("preferences.driver %q must be one of memory, redis, postgres", c.Preferences.Driver))
	}
	if c.Preferences.TTL < 0 {
		errs = append(errs, "preferences.ttl must not be negative")
	}

	if c.Grid.MaxPageSize < 1 {
		errs = append(errs, "grid.max_page_size must be positive")
	}
	if c.Grid.DefaultPageSize < 1 || c.Grid.DefaultPageSize > c.Grid.MaxPageSize {
		errs = append(errs, "grid.default_page_size must be between 1 and grid.max_page_size")
	}
	if c.Grid.SearchDebounce < 0 {
		errs = append(errs, "grid.search_debounce must not be negative")
	}
	if c.Export.MaxRows < 0 {
		errs = append(errs, "export.max_rows must not be negative")
	}

	if t := c.Observability.Tracing; t.Enabled {
		if t.Exporter != "otlp" && t.Exporter != "stdout" {
			errs = append(errs, fmt.Sprintf("observability.tracing.exporter %q must be otlp or stdout", t.Exporter))
		}
		if t.SamplingRate < 0 || t.SamplingRate > 1 {
			errs = append(errs, "observability.tracing.sampling_rate must be between 0 and 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the database connection string from the configured
// environment variable.
func (c DatabaseConfig) DSN() string {
	return os.Getenv(c.DSNEnv)
}

// Addr returns the Redis address from the configured environment variable.
func (c RedisConfig) Addr() string {
	return os.Getenv(c.AddrEnv)
}

// Password returns the Redis password from the configured environment
// variable.
func (c RedisConfig) Password() string {
	if c.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(c.PasswordEnv)
}

// applyEnvOverrides reads GRIDD_* environment variables and overrides config
// values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRIDD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GRIDD_DEFINITIONS_DIRECTORIES"); v != "" {
		cfg.Definitions.Directories = strings.Split(v, ",")
	}
	if v := os.Getenv("GRIDD_PREFERENCES_DRIVER"); v != "" {
		cfg.Preferences.Driver = v
	}
	if v := os.Getenv("GRIDD_GRID_SEARCH_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Grid.SearchDebounce = d
		}
	}
	if v := os.Getenv("GRIDD_EXPORT_MAX_ROWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Export.MaxRows = n
		}
	}
	if v := os.Getenv("GRIDD_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("GRIDD_TRACING_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.Tracing.Enabled = b
		}
	}
	if v := os.Getenv("GRIDD_TRACING_ENDPOINT"); v != "" {
		cfg.Observability.Tracing.Endpoint = v
	}
}
