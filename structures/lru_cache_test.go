package structures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jalexanderII/test-websocket/core"
)

func TestNewLRUCache_InvalidCapacity(t *testing.T) {
	m := newTestManager(t)

	_, err := NewLRUCache[string]("hot", 0, m)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestLRUCache_PutGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	c, err := NewLRUCache[string]("hot", 3, m)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "a", "va"))

	got, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "va", got)

	_, found, err = c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	c, err := NewLRUCache[string]("hot", 2, m)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "a", "va"))
	require.NoError(t, c.Put(ctx, "b", "vb"))
	require.NoError(t, c.Put(ctx, "c", "vc"))

	size, err := c.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	_, found, err := c.Peek(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found, "oldest entry must be evicted")

	_, found, err = c.Peek(ctx, "b")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = c.Peek(ctx, "c")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestLRUCache_GetPromotes(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	c, err := NewLRUCache[string]("hot", 2, m)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "a", "va"))
	require.NoError(t, c.Put(ctx, "b", "vb"))

	// Touch a, making b the eviction candidate
	_, _, err = c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "c", "vc"))

	_, found, err := c.Peek(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found, "recently used entry must survive eviction")

	_, found, err = c.Peek(ctx, "b")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLRUCache_PeekDoesNotPromote(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	c, err := NewLRUCache[string]("hot", 2, m)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "a", "va"))
	require.NoError(t, c.Put(ctx, "b", "vb"))

	_, _, err = c.Peek(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.Put(ctx, "c", "vc"))

	_, found, err := c.Peek(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found, "peek must not affect recency")
}

func TestLRUCache_PutExistingUpdatesValue(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	c, err := NewLRUCache[string]("hot", 2, m)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "a", "old"))
	require.NoError(t, c.Put(ctx, "a", "new"))

	size, err := c.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size, "re-putting a key must not grow the cache")

	got, found, err := c.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", got)
}

func TestLRUCache_GetLRUOrder(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	c, err := NewLRUCache[string]("hot", 3, m)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "a", "va"))
	require.NoError(t, c.Put(ctx, "b", "vb"))
	require.NoError(t, c.Put(ctx, "c", "vc"))

	order, err := c.GetLRUOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order, "least to most recently used")

	_, _, err = c.Get(ctx, "a")
	require.NoError(t, err)

	order, err = c.GetLRUOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, order)
}

func TestLRUCache_Remove(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	c, err := NewLRUCache[string]("hot", 2, m)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "a", "va"))

	removed, err := c.Remove(ctx, "a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.Remove(ctx, "a")
	require.NoError(t, err)
	assert.False(t, removed)

	order, err := c.GetLRUOrder(ctx)
	require.NoError(t, err)
	assert.Empty(t, order, "removed keys must leave the recency list")
}

func TestLRUCache_StructValues(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	c, err := NewLRUCache[session]("sessions", 4, m)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "alice", session{UserID: "u-1", Score: 3}))

	got, found, err := c.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, session{UserID: "u-1", Score: 3}, got)
}

func TestLRUCache_Clear(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	c, err := NewLRUCache[string]("hot", 2, m)
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, "a", "va"))
	require.NoError(t, c.Put(ctx, "b", "vb"))

	require.NoError(t, c.Clear(ctx))

	size, err := c.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)

	order, err := c.GetLRUOrder(ctx)
	require.NoError(t, err)
	assert.Empty(t, order)
}
