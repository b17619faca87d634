package scaling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type cachedSnapshot struct {
	Hunger float64
	Mood   string
}

func TestCacheSetGetRoundTrip(t *testing.T) {
	c, err := NewCache(1000, time.Minute)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.NoError(t, c.Set("agent:npc_1:snapshot", cachedSnapshot{Hunger: 0.4, Mood: "Calm"}))

	var got cachedSnapshot
	ok, err := c.Get("agent:npc_1:snapshot", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0.4, got.Hunger)
	require.Equal(t, "Calm", got.Mood)
}

func TestCacheGetMissingKey(t *testing.T) {
	c, err := NewCache(1000, time.Minute)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	var got cachedSnapshot
	ok, err := c.Get("agent:missing:snapshot", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCacheInvalidatePrefixRemovesMatchingKeys(t *testing.T) {
	c, err := NewCache(1000, time.Minute)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.NoError(t, c.Set("agent:npc_1:snapshot", cachedSnapshot{Hunger: 0.1}))
	require.NoError(t, c.Set("agent:npc_1:relations", cachedSnapshot{Hunger: 0.2}))
	require.NoError(t, c.Set("agent:npc_2:snapshot", cachedSnapshot{Hunger: 0.3}))

	removed := c.InvalidatePrefix("agent:npc_1:")
	require.Equal(t, 2, removed)

	var got cachedSnapshot
	ok, err := c.Get("agent:npc_1:snapshot", &got)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = c.Get("agent:npc_2:snapshot", &got)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCacheDelRemovesSingleKey(t *testing.T) {
	c, err := NewCache(1000, time.Minute)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	require.NoError(t, c.Set("k", cachedSnapshot{Hunger: 1}))
	c.Del("k")

	var got cachedSnapshot
	ok, err := c.Get("k", &got)
	require.NoError(t, err)
	require.False(t, ok)
}
