// Package config provides configuration management for the storefront server.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	DefaultServerPort        = 8080
	DefaultProbePort         = 9090
	DefaultLogLevel          = "info"
	DefaultShutdownTimeout   = 30 * time.Second
	DefaultMetricsEnabled    = true
	DefaultTracingSampleRate = 1.0
	DefaultProductsFile      = "data/products.json"
	DefaultCartsFile         = "data/carts.json"
	DefaultConfigFile        = "config.yaml"
	DefaultEnvFile           = ".env"
	DefaultCORSOrigins       = "*"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "APP_"

// Environment variable names.
const (
	EnvConfigFile         = "APP_CONFIG_FILE"
	EnvServerPort         = "APP_SERVER_PORT"
	EnvProbePort          = "APP_PROBE_PORT"
	EnvLogLevel           = "APP_LOG_LEVEL"
	EnvShutdownTimeout    = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled     = "APP_METRICS_ENABLED"
	EnvOTLPEndpoint       = "APP_OTLP_ENDPOINT"
	EnvTracingSampleRate  = "APP_TRACING_SAMPLE_RATE"
	EnvProductsFile       = "APP_PRODUCTS_FILE"
	EnvCartsFile          = "APP_CARTS_FILE"
	EnvCORSAllowedOrigins = "APP_CORS_ALLOWED_ORIGINS"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int           `koanf:"server_port"`
	ProbePort       int           `koanf:"probe_port"` // Probe server port (0 = disabled).
	LogLevel        string        `koanf:"log_level"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MetricsEnabled  bool          `koanf:"metrics_enabled"`

	// Tracing is enabled when OTLPEndpoint is set (host:port of an OTLP/HTTP collector).
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`

	// Persistence.
	ProductsFile string `koanf:"products_file"`
	CartsFile    string `koanf:"carts_file"`

	// Comma-separated list of allowed CORS origins; "*" allows any.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidProbePort       = errors.New("probe port must be between 0 and 65535")
	ErrProbePortConflict      = errors.New(
		"probe port must differ from server port when probe port is not 0",
	)
	ErrInvalidSampleRate   = errors.New("tracing sample rate must be between 0 and 1")
	ErrEmptyProductsFile   = errors.New("products file path must be set")
	ErrEmptyCartsFile      = errors.New("carts file path must be set")
	ErrSameCollectionFiles = errors.New("products and carts must use different files")
)

// defaults returns the lowest-priority configuration layer.
func defaults() map[string]any {
	return map[string]any{
		"server_port":          DefaultServerPort,
		"probe_port":           DefaultProbePort,
		"log_level":            DefaultLogLevel,
		"shutdown_timeout":     DefaultShutdownTimeout.String(),
		"metrics_enabled":      DefaultMetricsEnabled,
		"otlp_endpoint":        "",
		"tracing_sample_rate":  DefaultTracingSampleRate,
		"products_file":        DefaultProductsFile,
		"carts_file":           DefaultCartsFile,
		"cors_allowed_origins": DefaultCORSOrigins,
	}
}

// Load reads the configuration. Layers, from lowest to highest priority:
// built-in defaults, the YAML file named by APP_CONFIG_FILE (config.yaml by
// default, skipped when missing), a .env file in the working directory, and
// APP_-prefixed environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	configFile := os.Getenv(EnvConfigFile)
	if configFile == "" {
		configFile = DefaultConfigFile
	}
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", configFile, err)
		}
	}

	if err := loadDotEnv(k, DefaultEnvFile); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv merges APP_-prefixed entries of a .env file into k.
func loadDotEnv(k *koanf.Koanf, path string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	layer := make(map[string]any, len(values))
	for name, value := range values {
		if strings.HasPrefix(name, EnvPrefix) {
			layer[envKey(name)] = value
		}
	}

	if err := k.Load(confmap.Provider(layer, "."), nil); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// envKey maps APP_SERVER_PORT to server_port.
func envKey(name string) string {
	return strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return ErrInvalidSampleRate
	}

	return nil
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	if c.ProbePort < 0 || c.ProbePort > 65535 {
		return ErrInvalidProbePort
	}

	if c.ProbePort != 0 && c.ProbePort == c.ServerPort {
		return ErrProbePortConflict
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

func (c *Config) validateStorage() error {
	if strings.TrimSpace(c.ProductsFile) == "" {
		return ErrEmptyProductsFile
	}
	if strings.TrimSpace(c.CartsFile) == "" {
		return ErrEmptyCartsFile
	}
	if c.ProductsFile == c.CartsFile {
		return ErrSameCollectionFiles
	}
	return nil
}

// TracingEnabled reports whether spans are exported.
func (c *Config) TracingEnabled() bool {
	return c.OTLPEndpoint != ""
}

// AllowedOrigins splits CORSAllowedOrigins into a list.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// ProbeAddress returns the probe server address in host:port format.
func (c *Config) ProbeAddress() string {
	return fmt.Sprintf(":%d", c.ProbePort)
}
