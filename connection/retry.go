package connection

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jalexanderII/test-websocket/core"
)

// RetryConfig configures retry behavior for store operations
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryConfig provides sensible defaults
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Retry executes fn with exponential backoff. Only transient errors are
// retried; errors the classifier rejects propagate immediately. On
// exhaustion the last error is wrapped with core.ErrMaxRetriesExceeded.
func Retry(ctx context.Context, config *RetryConfig, retryable func(error) bool, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if retryable == nil {
		retryable = core.IsRetryable
	}

	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err

		if attempt == config.MaxAttempts {
			break
		}

		if attempt > 1 {
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}

		// Jitter spreads out synchronized retries across clients
		sleep := delay
		if config.JitterEnabled {
			sleep += time.Duration(rand.Int63n(int64(delay)/10 + 1))
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %v: %w", config.MaxAttempts, lastErr, core.ErrMaxRetriesExceeded)
}
