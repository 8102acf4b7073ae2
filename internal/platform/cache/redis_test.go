package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache("not-a-url", time.Minute, "")
	assert.Error(t, err)
}

func TestKeyPrefix(t *testing.T) {
	c, err := NewRedisCache("redis://127.0.0.1:6379/0", time.Minute, "board:profile:")
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "board:profile:u1", c.key("u1"))
}

func TestEmptyBatches(t *testing.T) {
	c, err := NewRedisCache("redis://127.0.0.1:1/0", time.Minute, "")
	require.NoError(t, err)
	defer c.Close()

	got, err := c.GetMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, c.SetMany(context.Background(), nil))
}
