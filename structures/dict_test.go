package structures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDict_SetGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	d := NewDict[session]("sessions", m)
	require.NoError(t, d.Set(ctx, "alice", session{UserID: "u-1", Score: 10}))

	got, found, err := d.Get(ctx, "alice")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, session{UserID: "u-1", Score: 10}, got)
}

func TestDict_GetMissing(t *testing.T) {
	m := newTestManager(t)

	d := NewDict[session]("sessions", m)
	_, found, err := d.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDict_Overwrite(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	d := NewDict[int]("counts", m)
	require.NoError(t, d.Set(ctx, "k", 1))
	require.NoError(t, d.Set(ctx, "k", 2))

	got, found, err := d.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, got)

	size, err := d.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, size)
}

func TestDict_Delete(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	d := NewDict[string]("kv", m)
	require.NoError(t, d.Set(ctx, "k", "v"))

	removed, err := d.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, removed)

	// Deleting again is a no-op
	removed, err = d.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, removed)

	exists, err := d.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDict_KeysValuesItems(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	d := NewDict[int]("scores", m)
	require.NoError(t, d.Set(ctx, "a", 1))
	require.NoError(t, d.Set(ctx, "b", 2))

	keys, err := d.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, keys)

	values, err := d.Values(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, values)

	items, err := d.Items(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, items)
}

func TestDict_Clear(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	d := NewDict[int]("scores", m)
	require.NoError(t, d.Set(ctx, "a", 1))
	require.NoError(t, d.Set(ctx, "b", 2))

	require.NoError(t, d.Clear(ctx))

	size, err := d.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)

	// Clearing an empty dict is fine
	require.NoError(t, d.Clear(ctx))
}

func TestDict_IsolatedNamespaces(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	d1 := NewDict[string]("first", m)
	d2 := NewDict[string]("second", m)
	require.NoError(t, d1.Set(ctx, "k", "one"))
	require.NoError(t, d2.Set(ctx, "k", "two"))

	got, _, err := d1.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	keys, err := d2.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)
}
