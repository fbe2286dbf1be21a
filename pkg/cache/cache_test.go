package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	c := New[string, int](time.Minute)
	defer c.Stop()

	c.Set("answer", 42)

	v, ok := c.Get("answer")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New[string, string](time.Minute)
	defer c.Stop()

	c.SetTTL("short", "lived", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
}

func TestDeleteAndClear(t *testing.T) {
	c := New[string, int](time.Minute)
	defer c.Stop()

	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
