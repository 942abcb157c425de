package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Hour, nil)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		assert.True(t, b.Allow(), "breaker must stay closed below the threshold")
	}

	b.RecordFailure()
	assert.False(t, b.Allow())
	assert.Equal(t, "open", b.State())
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	b := NewCircuitBreaker(3, time.Hour, nil)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()

	// The count starts over; two more failures must not open the breaker
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow())
}

func TestCircuitBreaker_CooldownAllowsProbe(t *testing.T) {
	b := NewCircuitBreaker(1, 20*time.Millisecond, nil)

	b.RecordFailure()
	assert.False(t, b.Allow())

	time.Sleep(30 * time.Millisecond)
	assert.True(t, b.Allow(), "post-cooldown probe must be allowed")

	// A failed probe restarts the cooldown
	b.RecordFailure()
	assert.False(t, b.Allow())

	// A successful probe closes the breaker fully
	time.Sleep(30 * time.Millisecond)
	b.RecordSuccess()
	assert.True(t, b.Allow())
	assert.Equal(t, "closed", b.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	b := NewCircuitBreaker(1, time.Hour, nil)

	b.RecordFailure()
	assert.False(t, b.Allow())

	b.Reset()
	assert.True(t, b.Allow())
	assert.Equal(t, 0, b.Status().FailureCount)
}

func TestCircuitBreaker_Status(t *testing.T) {
	b := NewCircuitBreaker(2, time.Minute, nil)
	b.RecordFailure()

	status := b.Status()
	assert.Equal(t, "closed", status.State)
	assert.Equal(t, 1, status.FailureCount)
	assert.Equal(t, 2, status.Threshold)
	assert.Equal(t, time.Minute, status.Cooldown)
}

func TestCircuitBreaker_Defaults(t *testing.T) {
	b := NewCircuitBreaker(0, 0, nil)
	assert.Equal(t, 5, b.Status().Threshold)
	assert.Equal(t, time.Minute, b.Status().Cooldown)
}
