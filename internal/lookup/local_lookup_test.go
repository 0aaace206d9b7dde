package lookup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adtech/kvserving/internal/cache"
	"github.com/adtech/kvserving/internal/lookup"
)

func TestLocalLookup_GetKeyValues(t *testing.T) {
	c := cache.New(cache.Config{})
	require.NoError(t, c.UpdateKeyValue("present", "v", 1))

	ll := lookup.New(c)
	out := ll.GetKeyValues([]string{"present", "absent"})

	require.Contains(t, out, "present")
	require.Contains(t, out, "absent")
	assert.Equal(t, lookup.StatusOK, out["present"].Status)
	assert.Equal(t, "v", out["present"].Value)
	assert.Equal(t, lookup.StatusNotFound, out["absent"].Status)
}

func TestLocalLookup_GetKeyValueSet(t *testing.T) {
	c := cache.New(cache.Config{})
	require.NoError(t, c.UpdateKeyValueSet("A", []string{"x", "y"}, 1))

	ll := lookup.New(c)
	out := ll.GetKeyValueSet([]string{"A", "B"})

	assert.Equal(t, lookup.StatusOK, out["A"].Status)
	assert.ElementsMatch(t, []string{"x", "y"}, out["A"].KeysetValues)
	assert.Equal(t, lookup.StatusNotFound, out["B"].Status)
}

func TestLocalLookup_GetUint32ValueSet(t *testing.T) {
	c := cache.New(cache.Config{})
	require.NoError(t, c.UpdateKeyValueUint32Set("nums", []uint32{1, 2}, 1))

	ll := lookup.New(c)
	out := ll.GetUint32ValueSet([]string{"nums"})

	assert.Equal(t, lookup.StatusOK, out["nums"].Status)
	assert.ElementsMatch(t, []uint32{1, 2}, out["nums"].Uint32Values)
}
