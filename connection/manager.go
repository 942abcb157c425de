// Package connection provides the resilient handle to the shared Redis
// store that the containers and the task processor are built on.
//
// The Manager wraps a pooled go-redis client with:
//   - named operation dispatch (Execute), so callers stay decoupled from the
//     concrete client API
//   - automatic retry with exponential backoff for transient errors
//   - a fixed-cooldown circuit breaker that fails fast once consecutive
//     failures cross a threshold
//   - pipeline access for atomic multi-step batches
//   - pub/sub subscriptions and a health check surface
//
// Logical errors (unknown operations, malformed arguments) are never retried
// and never count toward the circuit breaker.
package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/jalexanderII/test-websocket/core"
)

// Manager manages Redis connections with pooling, automatic retry, and
// circuit breaking
type Manager struct {
	client    *redis.Client
	breaker   *CircuitBreaker
	retry     *RetryConfig
	logger    core.Logger
	telemetry core.Telemetry
	redisURL  string // For error messages
}

// HealthStatus reports store connectivity, pool utilization, and breaker
// state
type HealthStatus struct {
	Healthy        bool          `json:"healthy"`
	Error          string        `json:"error,omitempty"`
	Latency        time.Duration `json:"latency"`
	TotalConns     uint32        `json:"total_conns"`
	IdleConns      uint32        `json:"idle_conns"`
	PoolHits       uint32        `json:"pool_hits"`
	PoolMisses     uint32        `json:"pool_misses"`
	PoolTimeouts   uint32        `json:"pool_timeouts"`
	CircuitBreaker BreakerStatus `json:"circuit_breaker"`
}

type managerConfig struct {
	redisURL       string
	redisDB        int
	maxConnections int
	retry          *RetryConfig
	breakerLimit   int
	breakerCool    time.Duration
	logger         core.Logger
	telemetry      core.Telemetry
	client         *redis.Client
}

// ManagerOption configures the Manager
type ManagerOption func(*managerConfig)

// WithRedisURL sets the Redis connection URL
func WithRedisURL(url string) ManagerOption {
	return func(c *managerConfig) { c.redisURL = url }
}

// WithRedisDB sets the Redis database number
func WithRedisDB(db int) ManagerOption {
	return func(c *managerConfig) { c.redisDB = db }
}

// WithMaxConnections sets the connection pool size
func WithMaxConnections(n int) ManagerOption {
	return func(c *managerConfig) { c.maxConnections = n }
}

// WithRetry sets the retry policy for store operations
func WithRetry(retry *RetryConfig) ManagerOption {
	return func(c *managerConfig) { c.retry = retry }
}

// WithBreaker sets the circuit breaker threshold and cooldown
func WithBreaker(threshold int, cooldown time.Duration) ManagerOption {
	return func(c *managerConfig) {
		c.breakerLimit = threshold
		c.breakerCool = cooldown
	}
}

// WithLogger sets the logger for connection events
func WithLogger(logger core.Logger) ManagerOption {
	return func(c *managerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTelemetry sets the telemetry backend. Every store operation is traced
// and its latency and failures recorded as metrics.
func WithTelemetry(telemetry core.Telemetry) ManagerOption {
	return func(c *managerConfig) {
		if telemetry != nil {
			c.telemetry = telemetry
		}
	}
}

// WithClient injects a pre-built Redis client. Used by tests; when set,
// RedisURL and pool options are ignored.
func WithClient(client *redis.Client) ManagerOption {
	return func(c *managerConfig) { c.client = client }
}

// NewManager creates a connection manager and verifies connectivity.
//
// Configuration priority:
//  1. Explicit option (e.g. WithRedisURL)
//  2. Environment variable (REDIS_URL, REDIS_DB, ...)
//  3. Default value
func NewManager(opts ...ManagerOption) (*Manager, error) {
	config := &managerConfig{
		redisURL:       core.GetEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		redisDB:        core.GetEnvIntOrDefault("REDIS_DB", 0),
		maxConnections: core.GetEnvIntOrDefault("REDIS_MAX_CONNECTIONS", 10),
		breakerLimit:   core.GetEnvIntOrDefault("REDIS_CB_THRESHOLD", 5),
		breakerCool:    core.GetEnvDurationOrDefault("REDIS_CB_COOLDOWN", time.Minute),
		logger:         &core.NoOpLogger{},
		telemetry:      &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(config)
	}
	if config.retry == nil {
		config.retry = DefaultRetryConfig()
		config.retry.MaxAttempts = core.GetEnvIntOrDefault("REDIS_RETRY_ATTEMPTS", config.retry.MaxAttempts)
		config.retry.JitterEnabled = core.GetEnvBoolOrDefault("REDIS_RETRY_JITTER", config.retry.JitterEnabled)
	}

	client := config.client
	if client == nil {
		redisOpts, err := redis.ParseURL(config.redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid Redis URL %s: %w", config.redisURL, core.ErrInvalidConfiguration)
		}
		if config.redisDB >= 0 && config.redisDB <= 15 {
			redisOpts.DB = config.redisDB
		}
		if config.maxConnections > 0 {
			redisOpts.PoolSize = config.maxConnections
		}
		client = redis.NewClient(redisOpts)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", config.redisURL, core.ErrConnectionFailed)
	}

	m := &Manager{
		client:    client,
		breaker:   NewCircuitBreaker(config.breakerLimit, config.breakerCool, config.logger),
		retry:     config.retry,
		logger:    config.logger,
		telemetry: config.telemetry,
		redisURL:  config.redisURL,
	}

	m.logger.Info("Connection manager ready", map[string]interface{}{
		"redis_url":       config.redisURL,
		"db":              config.redisDB,
		"max_connections": config.maxConnections,
	})
	return m, nil
}

// NewManagerFromConfig creates a Manager from an engine Config
func NewManagerFromConfig(cfg *core.Config, logger core.Logger) (*Manager, error) {
	retry := DefaultRetryConfig()
	retry.MaxAttempts = cfg.RetryMaxAttempts
	return NewManager(
		WithRedisURL(cfg.RedisURL),
		WithRedisDB(cfg.RedisDB),
		WithMaxConnections(cfg.MaxConnections),
		WithRetry(retry),
		WithBreaker(cfg.CircuitBreakerThreshold, cfg.CircuitBreakerCooldown),
		WithLogger(logger),
	)
}

// Execute invokes a named operation against the store with retry and circuit
// breaker protection. Missing-value reads (get on an absent key, pop on an
// empty list) return (nil, nil) rather than an error.
func (m *Manager) Execute(ctx context.Context, op string, args ...interface{}) (interface{}, error) {
	var result interface{}
	err := m.run(ctx, op, func() error {
		res, err := m.dispatch(ctx, op, args)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Scan iterates keys matching a pattern. Returns the keys of this page and
// the cursor for the next call; a zero cursor means the scan is complete.
func (m *Manager) Scan(ctx context.Context, cursor uint64, match string, count int64) ([]string, uint64, error) {
	var keys []string
	var next uint64
	err := m.run(ctx, "scan", func() error {
		var err error
		keys, next, err = m.client.Scan(ctx, cursor, match, count).Result()
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return keys, next, nil
}

// Subscribe opens a pub/sub subscription on the given channels. The
// subscription is confirmed before returning. The caller owns the returned
// PubSub and must Close it.
func (m *Manager) Subscribe(ctx context.Context, channels ...string) (*redis.PubSub, error) {
	if !m.breaker.Allow() {
		return nil, fmt.Errorf("subscribe %v: %w", channels, core.ErrCircuitOpen)
	}
	pubsub := m.client.Subscribe(ctx, channels...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		m.breaker.RecordFailure()
		return nil, fmt.Errorf("failed to subscribe to %v: %w (check REDIS_URL=%s)", channels, err, m.redisURL)
	}
	m.breaker.RecordSuccess()
	return pubsub, nil
}

// Pipeline returns a batch context whose queued operations execute as one
// atomic network round trip
func (m *Manager) Pipeline() redis.Pipeliner {
	return m.client.Pipeline()
}

// HealthCheck reports latency, pool utilization, and circuit breaker state
func (m *Manager) HealthCheck(ctx context.Context) *HealthStatus {
	status := &HealthStatus{CircuitBreaker: m.breaker.Status()}

	start := time.Now()
	err := m.client.Ping(ctx).Err()
	status.Latency = time.Since(start)
	if err != nil {
		status.Error = err.Error()
		m.logger.Error("Health check failed", map[string]interface{}{
			"operation": "health_check",
			"error":     err.Error(),
		})
		return status
	}

	status.Healthy = true
	pool := m.client.PoolStats()
	status.TotalConns = pool.TotalConns
	status.IdleConns = pool.IdleConns
	status.PoolHits = pool.Hits
	status.PoolMisses = pool.Misses
	status.PoolTimeouts = pool.Timeouts
	return status
}

// Breaker exposes the circuit breaker, mainly for health endpoints and tests
func (m *Manager) Breaker() *CircuitBreaker {
	return m.breaker
}

// Close releases pooled connections
func (m *Manager) Close() error {
	err := m.client.Close()
	if err != nil {
		m.logger.Error("Failed to close connection manager", map[string]interface{}{
			"operation": "connection_close",
			"error":     err.Error(),
		})
	}
	return err
}

// run applies circuit breaker and retry policy around a store call
func (m *Manager) run(ctx context.Context, op string, fn func() error) error {
	_, span := m.telemetry.StartSpan(ctx, "store."+op)
	defer span.End()
	span.SetAttribute("operation", op)

	if !m.breaker.Allow() {
		m.logger.Warn("Operation rejected, circuit breaker is open", map[string]interface{}{
			"operation": op,
		})
		err := fmt.Errorf("%s: %w", op, core.ErrCircuitOpen)
		span.RecordError(err)
		m.telemetry.RecordMetric("store.operation.rejected", 1, map[string]string{"operation": op})
		return err
	}

	start := time.Now()
	err := Retry(ctx, m.retry, transientError, fn)
	m.telemetry.RecordMetric("store.operation.duration_ms",
		float64(time.Since(start).Milliseconds()), map[string]string{"operation": op})
	if err != nil {
		span.RecordError(err)
		if core.IsUsageError(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		m.breaker.RecordFailure()
		m.telemetry.RecordMetric("store.operation.failures", 1, map[string]string{"operation": op})
		m.logger.Error("Store operation failed", map[string]interface{}{
			"operation": op,
			"error":     err.Error(),
		})
		return fmt.Errorf("%s failed: %w", op, err)
	}

	m.breaker.RecordSuccess()
	return nil
}

// transientError reports whether an error is worth retrying. Usage errors
// and context cancellation are not; anything else from the store is treated
// as a transient network/store fault.
func transientError(err error) bool {
	if err == nil {
		return false
	}
	if core.IsUsageError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
