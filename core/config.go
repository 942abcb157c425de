package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine configuration shared by the connection manager,
// the containers, and the task processor.
//
// Configuration priority:
//  1. Explicit option (e.g. WithRedisURL)
//  2. Environment variable (REDIS_URL, TASKS_MAX_WORKERS, ...)
//  3. Default value
type Config struct {
	// RedisURL is the store connection string (redis://host:port/db)
	RedisURL string `json:"redis_url" yaml:"redis_url"`

	// RedisDB selects the Redis database (0-15). Overrides any DB encoded
	// in RedisURL when >= 0.
	RedisDB int `json:"redis_db" yaml:"redis_db"`

	// MaxConnections bounds the connection pool
	MaxConnections int `json:"max_connections" yaml:"max_connections"`

	// RetryMaxAttempts is the number of attempts per store operation
	RetryMaxAttempts int `json:"retry_max_attempts" yaml:"retry_max_attempts"`

	// CircuitBreakerThreshold is the consecutive-failure count that opens
	// the breaker
	CircuitBreakerThreshold int `json:"circuit_breaker_threshold" yaml:"circuit_breaker_threshold"`

	// CircuitBreakerCooldown is how long the breaker stays open after the
	// last failure
	CircuitBreakerCooldown time.Duration `json:"circuit_breaker_cooldown" yaml:"circuit_breaker_cooldown"`

	// MaxWorkers bounds the number of concurrently executing task bodies
	MaxWorkers int `json:"max_workers" yaml:"max_workers"`

	// ResultTTL is how long task records are kept in the store
	ResultTTL time.Duration `json:"result_ttl" yaml:"result_ttl"`

	// TaskKeyPrefix namespaces task records and update channels
	TaskKeyPrefix string `json:"task_key_prefix" yaml:"task_key_prefix"`

	// CompressionThreshold is the serialized size in bytes above which
	// payloads are compressed
	CompressionThreshold int `json:"compression_threshold" yaml:"compression_threshold"`

	// LogLevel for the default logger ("debug", "info", "warn", "error")
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// ConfigOption configures a Config
type ConfigOption func(*Config)

// WithRedisURL sets the store connection string
func WithRedisURL(url string) ConfigOption {
	return func(c *Config) { c.RedisURL = url }
}

// WithRedisDB sets the Redis database number
func WithRedisDB(db int) ConfigOption {
	return func(c *Config) { c.RedisDB = db }
}

// WithMaxConnections sets the connection pool size
func WithMaxConnections(n int) ConfigOption {
	return func(c *Config) { c.MaxConnections = n }
}

// WithRetryMaxAttempts sets the per-operation attempt count
func WithRetryMaxAttempts(n int) ConfigOption {
	return func(c *Config) { c.RetryMaxAttempts = n }
}

// WithCircuitBreaker sets the breaker threshold and cooldown
func WithCircuitBreaker(threshold int, cooldown time.Duration) ConfigOption {
	return func(c *Config) {
		c.CircuitBreakerThreshold = threshold
		c.CircuitBreakerCooldown = cooldown
	}
}

// WithMaxWorkers sets the task concurrency bound
func WithMaxWorkers(n int) ConfigOption {
	return func(c *Config) { c.MaxWorkers = n }
}

// WithResultTTL sets the task record retention
func WithResultTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) { c.ResultTTL = ttl }
}

// WithTaskKeyPrefix sets the task record namespace
func WithTaskKeyPrefix(prefix string) ConfigOption {
	return func(c *Config) { c.TaskKeyPrefix = prefix }
}

// WithCompressionThreshold sets the serializer compression threshold
func WithCompressionThreshold(bytes int) ConfigOption {
	return func(c *Config) { c.CompressionThreshold = bytes }
}

// NewConfig builds a Config from environment defaults and applies options
func NewConfig(opts ...ConfigOption) (*Config, error) {
	c := &Config{
		RedisURL:                GetEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		RedisDB:                 GetEnvIntOrDefault("REDIS_DB", 0),
		MaxConnections:          GetEnvIntOrDefault("REDIS_MAX_CONNECTIONS", 10),
		RetryMaxAttempts:        GetEnvIntOrDefault("REDIS_RETRY_ATTEMPTS", 3),
		CircuitBreakerThreshold: GetEnvIntOrDefault("REDIS_CB_THRESHOLD", 5),
		CircuitBreakerCooldown:  GetEnvDurationOrDefault("REDIS_CB_COOLDOWN", time.Minute),
		MaxWorkers:              GetEnvIntOrDefault("TASKS_MAX_WORKERS", 10),
		ResultTTL:               GetEnvDurationOrDefault("TASKS_RESULT_TTL", time.Hour),
		TaskKeyPrefix:           GetEnvOrDefault("TASKS_KEY_PREFIX", "background_tasks"),
		CompressionThreshold:    GetEnvIntOrDefault("SERIALIZER_COMPRESSION_THRESHOLD", 1024),
		LogLevel:                GetEnvOrDefault("LOG_LEVEL", "info"),
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFromFile merges configuration from a JSON or YAML file into c.
// Values already present in the file override the current ones; fields the
// file omits keep their values.
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := filepath.Ext(cleanPath)
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config file %s: %w", cleanPath, ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config file %s: %w", cleanPath, ErrInvalidConfiguration)
		}
	}

	return c.Validate()
}

// Validate checks the configuration and returns an error describing the
// first violation found
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return &EngineError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: "redis URL is required",
			Err:     ErrMissingConfiguration,
		}
	}
	if c.RedisDB < 0 || c.RedisDB > 15 {
		return &EngineError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid redis DB: %d", c.RedisDB),
			Err:     ErrInvalidConfiguration,
		}
	}
	if c.MaxConnections < 1 {
		return &EngineError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid max connections: %d", c.MaxConnections),
			Err:     ErrInvalidConfiguration,
		}
	}
	if c.RetryMaxAttempts < 1 {
		return &EngineError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid retry attempts: %d", c.RetryMaxAttempts),
			Err:     ErrInvalidConfiguration,
		}
	}
	if c.CircuitBreakerThreshold < 1 {
		return &EngineError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid circuit breaker threshold: %d", c.CircuitBreakerThreshold),
			Err:     ErrInvalidConfiguration,
		}
	}
	if c.MaxWorkers < 1 {
		return &EngineError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid max workers: %d", c.MaxWorkers),
			Err:     ErrInvalidConfiguration,
		}
	}
	if c.ResultTTL <= 0 {
		return &EngineError{
			Op:      "Config.Validate",
			Kind:    "config",
			Message: fmt.Sprintf("invalid result TTL: %s", c.ResultTTL),
			Err:     ErrInvalidConfiguration,
		}
	}
	return nil
}
