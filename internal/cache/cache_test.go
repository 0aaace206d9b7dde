package cache_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adtech/kvserving/internal/cache"
)

func TestUpdateKeyValue_LogicalTimeOrdering(t *testing.T) {
	c := cache.New(cache.Config{})

	require.NoError(t, c.UpdateKeyValue("k", "v1", 5))
	require.NoError(t, c.UpdateKeyValue("k", "v0", 3)) // older, dropped silently
	require.NoError(t, c.UpdateKeyValue("k", "v2", 10))

	got := c.GetValues([]string{"k"})
	assert.Equal(t, "v2", got["k"])
}

func TestUpdateKeyValue_EqualTimeIsNoop(t *testing.T) {
	c := cache.New(cache.Config{})
	require.NoError(t, c.UpdateKeyValue("k", "v1", 5))
	require.NoError(t, c.UpdateKeyValue("k", "v2", 5))
	assert.Equal(t, "v1", c.GetValues([]string{"k"})["k"])
}

func TestDeleteKey_TombstoneHidesValue(t *testing.T) {
	c := cache.New(cache.Config{})
	require.NoError(t, c.UpdateKeyValue("k", "v1", 1))
	require.NoError(t, c.DeleteKey("k", 2))

	got := c.GetValues([]string{"k"})
	_, found := got["k"]
	assert.False(t, found)
}

func TestDeleteKey_OlderDeleteIsNoop(t *testing.T) {
	c := cache.New(cache.Config{})
	require.NoError(t, c.UpdateKeyValue("k", "v1", 5))
	require.NoError(t, c.DeleteKey("k", 2))
	assert.Equal(t, "v1", c.GetValues([]string{"k"})["k"])
}

func TestRemoveDeletedKeys_ReclaimsOldTombstonesOnly(t *testing.T) {
	c := cache.New(cache.Config{})
	require.NoError(t, c.UpdateKeyValue("a", "va", 1))
	require.NoError(t, c.DeleteKey("a", 5))
	require.NoError(t, c.UpdateKeyValue("b", "vb", 1))
	require.NoError(t, c.DeleteKey("b", 50))

	reclaimed := c.RemoveDeletedKeys(10)
	assert.Equal(t, 1, reclaimed)

	stats := c.Stats()
	assert.Equal(t, 1, stats.ScalarEntries, "only b's tombstone should remain")
}

func TestUpdateKeyValueSet_ElementWiseLastWriterWins(t *testing.T) {
	c := cache.New(cache.Config{})
	require.NoError(t, c.UpdateKeyValueSet("A", []string{"x", "y"}, 1))
	require.NoError(t, c.DeleteValuesInSet("A", []string{"x"}, 2))

	got := c.GetKeyValueSet([]string{"A"})
	_, hasX := got["A"]["x"]
	_, hasY := got["A"]["y"]
	assert.False(t, hasX)
	assert.True(t, hasY)
}

func TestUpdateKeyValueSet_OutOfOrderRemoveThenAdd(t *testing.T) {
	c := cache.New(cache.Config{})
	// Remove arrives (logically) before the add it's meant to cancel.
	require.NoError(t, c.DeleteValuesInSet("A", []string{"x"}, 5))
	require.NoError(t, c.UpdateKeyValueSet("A", []string{"x"}, 3))

	got := c.GetKeyValueSet([]string{"A"})
	_, hasX := got["A"]["x"]
	assert.False(t, hasX, "remove at t=5 should still win over add at t=3")
}

func TestUint32Set_AddRemoveRoundTrip(t *testing.T) {
	c := cache.New(cache.Config{})
	require.NoError(t, c.UpdateKeyValueUint32Set("nums", []uint32{1, 2, 3}, 1))
	require.NoError(t, c.DeleteValuesInUint32Set("nums", []uint32{2}, 2))

	got := c.GetUint32ValueSet([]string{"nums"})
	assert.ElementsMatch(t, []uint32{1, 3}, got["nums"])
}

func TestKindMismatch_ScalarThenSet(t *testing.T) {
	c := cache.New(cache.Config{})
	require.NoError(t, c.UpdateKeyValue("k", "v", 1))

	err := c.UpdateKeyValueSet("k", []string{"x"}, 2)
	require.Error(t, err)

	// the cache must remain consistent: the scalar value is untouched and
	// no string-set entry was created for k.
	assert.Equal(t, "v", c.GetValues([]string{"k"})["k"])
	assert.Empty(t, c.GetKeyValueSet([]string{"k"}))
}

func TestReplayIdempotency(t *testing.T) {
	apply := func(c *cache.Cache) {
		_ = c.UpdateKeyValue("k", "v1", 5)
		_ = c.UpdateKeyValue("k", "v0", 3)
		_ = c.UpdateKeyValueSet("A", []string{"x", "y"}, 1)
		_ = c.DeleteValuesInSet("A", []string{"x"}, 2)
		_ = c.DeleteKey("gone", 1)
	}

	c1 := cache.New(cache.Config{})
	apply(c1)
	c2 := cache.New(cache.Config{})
	apply(c2)
	apply(c2) // replay the same stream twice

	assert.Equal(t, c1.GetValues([]string{"k"}), c2.GetValues([]string{"k"}))
	assert.Equal(t, c1.Stats(), c2.Stats())
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := cache.New(cache.Config{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		i := i
		go func() {
			defer wg.Done()
			_ = c.UpdateKeyValue("k", "v", int64(i+1))
		}()
		go func() {
			defer wg.Done()
			_ = c.GetValues([]string{"k"})
		}()
	}
	wg.Wait()
}
