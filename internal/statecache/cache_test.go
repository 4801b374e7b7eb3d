package statecache

import (
	"testing"

	"github.com/erigontech/rpcdaemon/internal/rpctypes"
	"github.com/stretchr/testify/require"
)

func TestCacheMissOnUnknownView(t *testing.T) {
	c := New(Config{MaxViews: 3, MaxStateKeys: 1024, MaxCodeKeys: 1024})
	_, ok := c.Get(1, []byte("addr"))
	require.False(t, ok)
}

func TestOnNewBlockMakesChangesVisible(t *testing.T) {
	c := New(DefaultConfig)
	c.OnNewBlock(1, []StateChange{{Key: []byte("addr1"), Value: []byte("bal1")}}, nil)

	v, ok := c.Get(1, []byte("addr1"))
	require.True(t, ok)
	require.Equal(t, []byte("bal1"), v)

	require.Equal(t, rpctypes.ViewId(1), c.LatestViewID())
}

func TestPutOnlyFillsLatestView(t *testing.T) {
	c := New(DefaultConfig)
	c.OnNewBlock(1, nil, nil)
	c.OnNewBlock(2, nil, nil)

	// Populating the now-stale view 1 must be a no-op: only the latest
	// view accepts cache-miss fills.
	c.Put(1, []byte("addr"), []byte("bal"), true)
	_, ok := c.Get(1, []byte("addr"))
	require.False(t, ok)

	c.Put(2, []byte("addr"), []byte("bal"), true)
	v, ok := c.Get(2, []byte("addr"))
	require.True(t, ok)
	require.Equal(t, []byte("bal"), v)
}

func TestEvictRootsRespectsMaxViews(t *testing.T) {
	c := New(Config{MaxViews: 2, MaxStateKeys: 1024, MaxCodeKeys: 1024})
	c.OnNewBlock(1, nil, nil)
	c.OnNewBlock(2, nil, nil)
	c.OnNewBlock(3, nil, nil)

	require.Equal(t, 2, c.Len())
	_, ok := c.Get(1, []byte("x"))
	require.False(t, ok)
}

func TestStateKeyEvictionRespectsMaxStateKeys(t *testing.T) {
	c := New(Config{MaxViews: 1, MaxStateKeys: 2, MaxCodeKeys: 2})
	c.OnNewBlock(1, []StateChange{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("c"), Value: []byte("3")},
	}, nil)

	_, ok := c.Get(1, []byte("a"))
	require.False(t, ok, "oldest key should have been evicted")
	_, ok = c.Get(1, []byte("c"))
	require.True(t, ok)
}

func TestDeletedKeyIsCachedAsAbsent(t *testing.T) {
	c := New(DefaultConfig)
	c.OnNewBlock(1, []StateChange{{Key: []byte("addr"), Deleted: true}}, nil)

	v, ok := c.Get(1, []byte("addr"))
	require.True(t, ok, "a confirmed deletion is still a cache hit")
	require.Empty(t, v)
}

func TestViewZeroWraparoundAlwaysAdvances(t *testing.T) {
	c := New(DefaultConfig)
	c.OnNewBlock(1, nil, nil)
	c.OnNewBlock(0, []StateChange{{Key: []byte("addr"), Value: []byte("bal")}}, nil)

	v, ok := c.Get(0, []byte("addr"))
	require.True(t, ok)
	require.Equal(t, []byte("bal"), v)
}

func TestViewZeroDropsEveryOtherRoot(t *testing.T) {
	c := New(DefaultConfig)
	c.OnNewBlock(1, nil, nil)
	c.OnNewBlock(2, nil, nil)
	c.OnNewBlock(0, nil, nil)

	require.Equal(t, 1, c.Len(), "a view_id 0 batch is a wraparound: every other root is dropped")
	_, ok := c.Get(1, []byte("x"))
	require.False(t, ok)
	_, ok = c.Get(2, []byte("x"))
	require.False(t, ok)
}

func TestAdvanceRootInheritsPreviousCanonicalState(t *testing.T) {
	c := New(DefaultConfig)
	c.OnNewBlock(1, []StateChange{
		{Key: []byte("addr1"), Value: []byte("bal1")},
		{Key: []byte("addr2"), Value: []byte("bal2")},
	}, nil)

	// view 2's delta only touches addr1; addr2 is unchanged and must still
	// be visible at view 2 by inheritance from view 1's canonical root.
	c.OnNewBlock(2, []StateChange{{Key: []byte("addr1"), Value: []byte("bal1-new")}}, nil)

	v, ok := c.Get(2, []byte("addr1"))
	require.True(t, ok)
	require.Equal(t, []byte("bal1-new"), v)

	v, ok = c.Get(2, []byte("addr2"))
	require.True(t, ok, "an unchanged key must survive into the next view by inheritance")
	require.Equal(t, []byte("bal2"), v)

	// view 1 itself must be unaffected by view 2's update.
	v, ok = c.Get(1, []byte("addr1"))
	require.True(t, ok)
	require.Equal(t, []byte("bal1"), v)
}

func TestAdvanceRootStartsFreshWithoutCanonicalPredecessor(t *testing.T) {
	c := New(DefaultConfig)
	c.OnNewBlock(1, []StateChange{{Key: []byte("addr1"), Value: []byte("bal1")}}, nil)
	// view 3 is not view 1's immediate successor: no inheritance.
	c.OnNewBlock(3, []StateChange{{Key: []byte("addr2"), Value: []byte("bal2")}}, nil)

	_, ok := c.Get(3, []byte("addr1"))
	require.False(t, ok, "a non-sequential view has no canonical predecessor to inherit from")
	v, ok := c.Get(3, []byte("addr2"))
	require.True(t, ok)
	require.Equal(t, []byte("bal2"), v)
}

func TestGetTouchesRecencyOnlyForLatestView(t *testing.T) {
	c := New(Config{MaxViews: 1, MaxStateKeys: 2, MaxCodeKeys: 2})
	c.OnNewBlock(1, []StateChange{
		{Key: []byte("a"), Value: []byte("1")},
		{Key: []byte("b"), Value: []byte("2")},
	}, nil)

	// Touch "a" so it becomes more recently used than "b".
	_, ok := c.Get(1, []byte("a"))
	require.True(t, ok)

	// Inserting a third key evicts the least-recently-used entry, which is
	// now "b" rather than "a" because the read above moved "a" to the back.
	c.Put(1, []byte("c"), []byte("3"), true)

	_, ok = c.Get(1, []byte("b"))
	require.False(t, ok, "b should have been evicted as least recently used")
	v, ok := c.Get(1, []byte("a"))
	require.True(t, ok, "a was touched by the read and should have survived eviction")
	require.Equal(t, []byte("1"), v)
}

func TestPutMissIsNeverCached(t *testing.T) {
	c := New(DefaultConfig)
	c.OnNewBlock(1, nil, nil)

	c.Put(1, []byte("addr"), nil, false)
	_, ok := c.Get(1, []byte("addr"))
	require.False(t, ok, "a confirmed database miss is never inserted into the cache")
}
