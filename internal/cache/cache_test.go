package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCacheSetGet(t *testing.T) {
	c := NewLocalCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "provider:prv_1", map[string]string{"name": "smm-panel"}, time.Minute))

	var got map[string]string
	require.NoError(t, c.Get(ctx, "provider:prv_1", &got))
	assert.Equal(t, "smm-panel", got["name"])
}

func TestLocalCacheMissIsNotAnError(t *testing.T) {
	c := NewLocalCache()

	var got string
	err := c.Get(context.Background(), "missing", &got)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLocalCacheDelete(t *testing.T) {
	c := NewLocalCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	require.NoError(t, c.Delete(ctx, "k"))

	var got string
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Empty(t, got)
}
