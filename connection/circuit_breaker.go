package connection

import (
	"sync"
	"time"

	"github.com/jalexanderII/test-websocket/core"
)

// CircuitBreaker is a fail-fast guard in front of the store. It counts
// consecutive operation failures; once the count reaches the threshold the
// breaker opens and every call is rejected without touching the store until
// the cooldown has elapsed since the last failure. The first call after the
// cooldown is attempted normally: success closes the breaker fully, another
// failure restarts the cooldown.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration
	logger    core.Logger

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
}

// BreakerStatus is a point-in-time snapshot of the breaker
type BreakerStatus struct {
	State        string        `json:"state"`
	FailureCount int           `json:"failure_count"`
	Threshold    int           `json:"threshold"`
	Cooldown     time.Duration `json:"cooldown"`
}

// NewCircuitBreaker creates a breaker. A threshold < 1 defaults to 5,
// a cooldown <= 0 defaults to one minute.
func NewCircuitBreaker(threshold int, cooldown time.Duration, logger core.Logger) *CircuitBreaker {
	if threshold < 1 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger,
	}
}

// Allow reports whether a call may proceed
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allowLocked()
}

func (b *CircuitBreaker) allowLocked() bool {
	if b.failures < b.threshold {
		return true
	}
	return time.Since(b.lastFailure) >= b.cooldown
}

// RecordSuccess resets the failure count
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures >= b.threshold {
		b.logger.Info("Circuit breaker closed after successful probe", map[string]interface{}{
			"operation":     "circuit_breaker_close",
			"failure_count": b.failures,
		})
	}
	b.failures = 0
}

// RecordFailure increments the failure count and may open the breaker
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = time.Now()
	if b.failures == b.threshold {
		b.logger.Error("Circuit breaker opened", map[string]interface{}{
			"operation":     "circuit_breaker_open",
			"failure_count": b.failures,
			"threshold":     b.threshold,
			"cooldown":      b.cooldown.String(),
		})
	}
}

// Reset deliberately closes the breaker and clears the failure count
func (b *CircuitBreaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.lastFailure = time.Time{}
}

// State returns "open" or "closed"
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.allowLocked() {
		return "closed"
	}
	return "open"
}

// Status returns a snapshot for health reporting
func (b *CircuitBreaker) Status() BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	state := "closed"
	if !b.allowLocked() {
		state = "open"
	}
	return BreakerStatus{
		State:        state,
		FailureCount: b.failures,
		Threshold:    b.threshold,
		Cooldown:     b.cooldown,
	}
}
