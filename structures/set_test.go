package structures

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_AddContains(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s := NewSet[string]("tags", m)

	added, err := s.Add(ctx, "go")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Add(ctx, "go")
	require.NoError(t, err)
	assert.False(t, added, "duplicate add must report false")

	ok, err := s.Contains(ctx, "go")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Contains(ctx, "rust")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSet_Remove(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s := NewSet[string]("tags", m)
	_, err := s.Add(ctx, "go")
	require.NoError(t, err)

	removed, err := s.Remove(ctx, "go")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove(ctx, "go")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestSet_MembersAndSize(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s := NewSet[session]("sessions", m)
	_, err := s.Add(ctx, session{UserID: "u-1", Score: 1})
	require.NoError(t, err)
	_, err = s.Add(ctx, session{UserID: "u-2", Score: 2})
	require.NoError(t, err)

	members, err := s.Members(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []session{
		{UserID: "u-1", Score: 1},
		{UserID: "u-2", Score: 2},
	}, members)

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)
}

func TestSet_Pop(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s := NewSet[string]("tags", m)
	_, err := s.Add(ctx, "only")
	require.NoError(t, err)

	v, found, err := s.Pop(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "only", v)

	_, found, err = s.Pop(ctx)
	require.NoError(t, err)
	assert.False(t, found, "popping an empty set must report absence")
}

func TestSet_Clear(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	s := NewSet[string]("tags", m)
	_, err := s.Add(ctx, "a")
	require.NoError(t, err)
	_, err = s.Add(ctx, "b")
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, size)
}
