package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminatedCacheStoreAndGet(t *testing.T) {
	t.Parallel()
	c := NewTerminatedCache(time.Hour)
	c.Store(Snapshot{ID: "s1"})

	got, ok := c.Get("s1")
	require.True(t, ok)
	assert.Equal(t, "s1", got.ID)
}

func TestTerminatedCacheGetUnknown(t *testing.T) {
	t.Parallel()
	c := NewTerminatedCache(time.Hour)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestTerminatedCacheDefaultTTL(t *testing.T) {
	t.Parallel()
	c := NewTerminatedCache(0)
	assert.Equal(t, DefaultTerminatedTTL, c.ttl)
}

func TestTerminatedCacheGetSweepsExpiredEntry(t *testing.T) {
	t.Parallel()
	c := NewTerminatedCache(time.Millisecond)
	fixed := time.Now()
	c.now = func() time.Time { return fixed }
	c.Store(Snapshot{ID: "s1"})

	c.now = func() time.Time { return fixed.Add(time.Hour) }
	_, ok := c.Get("s1")
	assert.False(t, ok, "a read past expiry must sweep the entry out")
}

func TestTerminatedCacheStoreSweepsBeforeInserting(t *testing.T) {
	t.Parallel()
	c := NewTerminatedCache(time.Millisecond)
	fixed := time.Now()
	c.now = func() time.Time { return fixed }
	c.Store(Snapshot{ID: "stale"})

	c.now = func() time.Time { return fixed.Add(time.Hour) }
	c.Store(Snapshot{ID: "fresh"})

	_, ok := c.Get("stale")
	assert.False(t, ok, "store must sweep out entries expired before the new insert")
	_, ok = c.Get("fresh")
	assert.True(t, ok)
}

func TestTerminatedCacheClearDropsEverythingUnconditionally(t *testing.T) {
	t.Parallel()
	c := NewTerminatedCache(time.Hour)
	c.Store(Snapshot{ID: "s1"})
	c.Store(Snapshot{ID: "s2"})

	c.Clear()

	_, ok := c.Get("s1")
	assert.False(t, ok)
	_, ok = c.Get("s2")
	assert.False(t, ok)
}
