package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedSection struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "section:s1", cachedSection{ID: "s1", Title: "Passage"}, time.Minute))

	var got cachedSection
	require.NoError(t, c.Get(ctx, "section:s1", &got))
	assert.Equal(t, "Passage", got.Title)

	assert.ErrorIs(t, c.Get(ctx, "section:s2", &got), ErrCacheMiss)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Nanosecond))
	time.Sleep(time.Millisecond)

	var got string
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "section:s1", "a", 0))
	require.NoError(t, c.Set(ctx, "section:s2", "b", 0))
	require.NoError(t, c.Set(ctx, "other", "c", 0))

	require.NoError(t, c.Delete(ctx, "section:s1", "section:s2", "missing"))

	var got string
	assert.ErrorIs(t, c.Get(ctx, "section:s1", &got), ErrCacheMiss)
	assert.ErrorIs(t, c.Get(ctx, "section:s2", &got), ErrCacheMiss)
	assert.NoError(t, c.Get(ctx, "other", &got))
}
