package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	Trace    TraceConfig    `yaml:"trace"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error or none
	Format string `yaml:"format"` // json or console
}

// DatabaseConfig contains sqflite plugin settings.
type DatabaseConfig struct {
	RootPath    string   `yaml:"root_path"`
	Driver      string   `yaml:"driver"`
	Workers     int      `yaml:"workers"`
	QueueDepth  int      `yaml:"queue_depth"`
	BusyTimeout Duration `yaml:"busy_timeout"`
	LogLevel    int      `yaml:"log_level"` // sqflite level: 0 none, 1 sql, 2 verbose
}

// BridgeConfig contains call dispatch settings.
type BridgeConfig struct {
	CallTimeout       Duration    `yaml:"call_timeout"` // 0 disables the timeout middleware
	RateLimit         float64     `yaml:"rate_limit"`   // calls per second, 0 disables limiting
	RateBurst         int         `yaml:"rate_burst"`
	IncludeCallID     bool        `yaml:"include_call_id"`
	ValidateArguments bool        `yaml:"validate_arguments"`
	QueueSize         int         `yaml:"queue_size"`
	ShutdownTimeout   Duration    `yaml:"shutdown_timeout"`
	Retry             RetryConfig `yaml:"retry"`
}

// RetryConfig controls retries of calls failing on a locked database.
type RetryConfig struct {
	MaxRetries int      `yaml:"max_retries"` // 0 disables retries
	BaseDelay  Duration `yaml:"base_delay"`
}

// TraceConfig enables the call trace when Path is set.
type TraceConfig struct {
	Path  string `yaml:"path"`
	Codec string `yaml:"codec"` // json or cbor
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load loads configuration with precedence: defaults → YAML file → env vars.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("GURU_BRIDGE_CONFIG", "guru-bridge.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path, which must exist.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return newDefaults()
}

func newDefaults() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Database: DatabaseConfig{
			RootPath:    "databases",
			Driver:      "sqlite",
			Workers:     4,
			QueueDepth:  64,
			BusyTimeout: Duration(5 * time.Second),
		},
		Bridge: BridgeConfig{
			RateBurst:         50,
			ValidateArguments: true,
			QueueSize:         256,
			ShutdownTimeout:   Duration(5 * time.Second),
			Retry: RetryConfig{
				MaxRetries: 3,
				BaseDelay:  Duration(50 * time.Millisecond),
			},
		},
		Trace: TraceConfig{
			Codec: "json",
		},
	}
}

func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Log
	if v := os.Getenv("GURU_BRIDGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GURU_BRIDGE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Database
	if v := os.Getenv("GURU_BRIDGE_DB_ROOT"); v != "" {
		cfg.Database.RootPath = v
	}
	if v := os.Getenv("GURU_BRIDGE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("GURU_BRIDGE_DB_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.Workers = n
		}
	}
	if v := os.Getenv("GURU_BRIDGE_DB_BUSY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Database.BusyTimeout = Duration(d)
		}
	}
	if v := os.Getenv("GURU_BRIDGE_DB_LOG_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.LogLevel = n
		}
	}

	// Bridge
	if v := os.Getenv("GURU_BRIDGE_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Bridge.CallTimeout = Duration(d)
		}
	}
	if v := os.Getenv("GURU_BRIDGE_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Bridge.RateLimit = f
		}
	}
	if v := os.Getenv("GURU_BRIDGE_INCLUDE_CALL_ID"); v != "" {
		cfg.Bridge.IncludeCallID = v == "true" || v == "1"
	}
	if v := os.Getenv("GURU_BRIDGE_VALIDATE_ARGUMENTS"); v != "" {
		cfg.Bridge.ValidateArguments = v == "true" || v == "1"
	}
	if v := os.Getenv("GURU_BRIDGE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Bridge.Retry.MaxRetries = n
		}
	}

	// Trace
	if v := os.Getenv("GURU_BRIDGE_TRACE_PATH"); v != "" {
		cfg.Trace.Path = v
	}
	if v := os.Getenv("GURU_BRIDGE_TRACE_CODEC"); v != "" {
		cfg.Trace.Codec = v
	}
}

func (c *Config) validate() error {
	var errs []error

	switch c.Log.Level {
	case "debug", "info", "warn", "error", "none":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error, none", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of json, console", c.Log.Format))
	}
	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("database.driver %q is not one of sqlite, sqlite3", c.Database.Driver))
	}
	if c.Database.RootPath == "" {
		errs = append(errs, errors.New("database.root_path is required"))
	}
	if c.Database.Workers <= 0 {
		errs = append(errs, fmt.Errorf("database.workers must be positive, got %d", c.Database.Workers))
	}
	switch c.Trace.Codec {
	case "", "json", "cbor":
	default:
		errs = append(errs, fmt.Errorf("trace.codec %q is not one of json, cbor", c.Trace.Codec))
	}
	if c.Bridge.RateLimit < 0 {
		errs = append(errs, errors.New("bridge.rate_limit must not be negative"))
	}
	if c.Bridge.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("bridge.retry.max_retries must not be negative"))
	}
	return errors.Join(errs...)
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
