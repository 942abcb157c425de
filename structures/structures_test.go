package structures

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalexanderII/test-websocket/connection"
)

type session struct {
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// newTestManager creates a connection manager backed by miniredis
func newTestManager(t *testing.T) *connection.Manager {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	m, err := connection.NewManager(connection.WithClient(client))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	return m
}

func TestBase_KeyNamespacing(t *testing.T) {
	m := newTestManager(t)

	d := NewDict[string]("users", m)
	assert.Equal(t, "structures:users", d.Key())

	q := NewQueue[string]("work", m, WithKeyPrefix("myapp"))
	assert.Equal(t, "myapp:work", q.Key())
}

func TestBase_TTL(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	q := NewQueue[string]("work", m)
	require.NoError(t, q.Push(ctx, "item"))

	ok, err := q.SetTTL(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := q.GetTTL(ctx)
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	ok, err = q.Persist(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
