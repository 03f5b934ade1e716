package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New[string, int](time.Minute, 0).WithClock(func() time.Time { return now })

	c.Set("a", 1)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok, "an entry expires exactly at its ttl")

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, 1, st.Expired)

	assert.Equal(t, 1, c.CleanupExpired())
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestTTLMaxEntries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := New[string, string](time.Hour, 2).WithClock(func() time.Time { return now })

	c.Set("first", "1")
	now = now.Add(time.Second)
	c.Set("second", "2")
	now = now.Add(time.Second)
	c.Set("third", "3")

	_, ok := c.Get("first")
	assert.False(t, ok, "the entry closest to expiry is evicted")
	_, ok = c.Get("third")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Stats().Entries)

	// Replacing an existing key never evicts.
	c.Set("second", "two")
	v, _ := c.Get("second")
	assert.Equal(t, "two", v)
	assert.Equal(t, 2, c.Stats().Entries)

	c.Delete("second")
	c.Clear()
	assert.Equal(t, 0, c.Stats().Entries)
}
