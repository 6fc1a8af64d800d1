package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValue struct {
	key     string
	version int64
}

func (f fakeValue) Version() int64 { return f.version }

func newTestCache() *Cache[fakeValue] {
	return New(KeyFuncs[fakeValue]{
		PrimaryKey: func(v fakeValue) string { return v.key },
	}, time.Minute, nil)
}

// S5 Cache swap.
func TestUpdateLocalCASSemantics(t *testing.T) {
	c := newTestCache()

	v1 := fakeValue{key: "K", version: 10}
	replaced, did := c.UpdateLocal(v1)
	require.False(t, did)
	require.Equal(t, fakeValue{}, replaced)

	cur, ok := c.FindPrimary("K")
	require.True(t, ok)
	assert.Equal(t, v1, cur)

	v2 := fakeValue{key: "K", version: 9}
	replaced, did = c.UpdateLocal(v2)
	assert.False(t, did)
	cur, ok = c.FindPrimary("K")
	require.True(t, ok)
	assert.Equal(t, v1, cur, "stale version must not replace current")

	v3 := fakeValue{key: "K", version: 11}
	replaced, did = c.UpdateLocal(v3)
	assert.True(t, did)
	assert.Equal(t, v1, replaced)
	cur, ok = c.FindPrimary("K")
	require.True(t, ok)
	assert.Equal(t, v3, cur)
}

func TestRemovePrimaryTombstoneThenGrace(t *testing.T) {
	c := newTestCache()
	c.UpdateLocal(fakeValue{key: "K", version: 1})
	c.RemovePrimary("K")

	_, ok := c.FindPrimary("K")
	assert.False(t, ok, "removed node must read as absent immediately")

	c.mu.RLock()
	n := c.primary["K"]
	c.mu.RUnlock()
	require.NotNil(t, n, "tombstoned node must still exist during the grace period")
}

func TestSecondaryKeyAliasesSameNode(t *testing.T) {
	c := New(KeyFuncs[fakeValue]{
		PrimaryKey:   func(v fakeValue) string { return v.key },
		SecondaryKey: func(v fakeValue) (string, bool) { return "sec:" + v.key, true },
	}, time.Minute, nil)

	c.UpdateLocal(fakeValue{key: "K", version: 1})
	v, ok := c.FindSecondary("sec:K")
	require.True(t, ok)
	assert.Equal(t, "K", v.key)

	c.RemovePrimary("K")
	_, ok = c.FindSecondary("sec:K")
	assert.False(t, ok, "secondary alias must observe removal atomically")
}

// Property 5: successive values observed by a single reader have
// non-decreasing version.
func TestMonotonicity(t *testing.T) {
	c := newTestCache()
	versions := []int64{1, 3, 2, 5, 4, 5, 7}
	var lastObserved int64
	for _, v := range versions {
		c.UpdateLocal(fakeValue{key: "K", version: v})
		cur, ok := c.FindPrimary("K")
		require.True(t, ok)
		assert.GreaterOrEqual(t, cur.version, lastObserved)
		lastObserved = cur.version
	}
}
