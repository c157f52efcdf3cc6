package kv

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_GetSet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "k", "v", 0))

	value, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", value)

	require.NoError(t, store.Delete(ctx, "k"))

	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemoryStore_SetNX(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	acquired, err := store.SetNX(ctx, "lock", "a", 0)
	require.NoError(t, err)
	assert.True(t, acquired)

	acquired, err = store.SetNX(ctx, "lock", "b", 0)
	require.NoError(t, err)
	assert.False(t, acquired)

	value, err := store.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "a", value)
}
