package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Stock int    `json:"stock"`
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "product:1", sample{Name: "Pixel", Stock: 3}, time.Minute))

	var got sample
	require.NoError(t, c.Get(ctx, "product:1", &got))
	assert.Equal(t, "Pixel", got.Name)
	assert.Equal(t, 3, got.Stock)

	assert.ErrorIs(t, c.Get(ctx, "product:2", &got), ErrCacheMiss)
}

func TestMemoryCache_Expiration(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", sample{Name: "x"}, time.Second))
	c.now = func() time.Time { return now.Add(2 * time.Second) }

	var got sample
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCache_InvalidatePattern(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "product:1", sample{}, 0))
	require.NoError(t, c.Set(ctx, "product:2", sample{}, 0))
	require.NoError(t, c.Set(ctx, "user:1", sample{}, 0))

	require.NoError(t, c.InvalidatePattern(ctx, "product:*"))

	var got sample
	assert.ErrorIs(t, c.Get(ctx, "product:1", &got), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "product:2", &got), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "user:1", &got))
}
