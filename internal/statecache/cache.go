// Package statecache implements the coherent state cache (spec §4.5, C5):
// a bounded set of recent, immutable-once-closed snapshots of
// PlainState/Code, kept current by sequential application of state-change
// batches and consulted by the cached database (C6) ahead of a remote
// read. Grounded on silkworm/silkrpc's ethdb/kv/state_cache.cpp.
package statecache

import (
	"container/list"
	"sync"

	"github.com/erigontech/rpcdaemon/internal/rpclog"
	"github.com/erigontech/rpcdaemon/internal/rpctypes"
)

// Config bounds the cache's memory. MaxViews == 0 is invalid: the cache
// must retain at least the latest view (spec §4.5).
type Config struct {
	MaxViews     int
	MaxStateKeys int
	MaxCodeKeys  int
	WithStorage  bool
}

// DefaultConfig mirrors silkrpc's default coherent cache sizing.
var DefaultConfig = Config{
	MaxViews:     5,
	MaxStateKeys: 1024,
	MaxCodeKeys:  1024,
	WithStorage:  true,
}

// entry is one cached (key -> value) record. Every entry reachable from
// root.state/root.code is a cache hit: a REMOVE is stored as an entry with
// an empty value (a tombstone), not as an absent map entry (spec §4.5
// "REMOVE: write (address, empty) ... (tombstone)"). A database miss is
// never cached at all, mirroring state_cache.cpp's get(): it returns
// nullopt without inserting anything on an empty read.
type entry struct {
	key   string
	value []byte
	elem  *list.Element
}

// root is one view's snapshot. Only the latest root is ever mutated (by
// insertState/insertCode); older roots are frozen and serve reads until
// evicted.
type root struct {
	viewID rpctypes.ViewId

	state    map[string]*entry
	stateLRU *list.List

	code    map[string]*entry
	codeLRU *list.List
}

func newRoot(viewID rpctypes.ViewId) *root {
	return &root{
		viewID:   viewID,
		state:    make(map[string]*entry),
		stateLRU: list.New(),
		code:     make(map[string]*entry),
		codeLRU:  list.New(),
	}
}

// cloneRoot starts a new root for viewID from prev's entries, mirroring
// state_cache.cpp:312's `root->cache = previous_root->cache; root->code_cache
// = previous_root->code_cache`. In the original this is a value-semantics
// map copy, so the new root diverges independently from prev once either
// one is mutated further; here that means building fresh maps and LRU
// lists holding the same (key, value) pairs in the same recency order,
// never the same map/list objects as prev (prev stays frozen and
// unaffected by anything inserted into the new root afterwards).
func cloneRoot(viewID rpctypes.ViewId, prev *root) *root {
	r := newRoot(viewID)
	for e := prev.stateLRU.Front(); e != nil; e = e.Next() {
		oe := e.Value.(*entry)
		ne := &entry{key: oe.key, value: oe.value}
		ne.elem = r.stateLRU.PushBack(ne)
		r.state[oe.key] = ne
	}
	for e := prev.codeLRU.Front(); e != nil; e = e.Next() {
		oe := e.Value.(*entry)
		ne := &entry{key: oe.key, value: oe.value}
		ne.elem = r.codeLRU.PushBack(ne)
		r.code[oe.key] = ne
	}
	return r
}

// Cache is the coherent state cache. A single shared lock guards lookups;
// a cache hit against the latest view also promotes the entry's recency
// (spec §4.5 "locking discipline"), so both Get and Put take the
// exclusive lock rather than splitting readers from writers.
type Cache struct {
	cfg Config
	log rpclog.Logger

	mu    sync.Mutex
	views map[rpctypes.ViewId]*root
	order []rpctypes.ViewId // insertion order, oldest first
}

// New constructs an empty cache. cfg.MaxViews == 0 is normalized to 1.
func New(cfg Config) *Cache {
	if cfg.MaxViews <= 0 {
		cfg.MaxViews = 1
	}
	return &Cache{
		cfg:   cfg,
		log:   rpclog.New("component", "statecache"),
		views: make(map[rpctypes.ViewId]*root),
	}
}

// latest returns the most recently advanced root, or nil if the cache has
// not observed any block yet.
func (c *Cache) latest() *root {
	if len(c.order) == 0 {
		return nil
	}
	return c.views[c.order[len(c.order)-1]]
}

// LatestViewID reports the view the cache currently considers current, or
// 0 if it has not been primed by a batch yet.
func (c *Cache) LatestViewID() rpctypes.ViewId {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.latest()
	if r == nil {
		return 0
	}
	return r.viewID
}

// Get looks up key under viewID's snapshot. ok is false both when the view
// itself is unknown to the cache and when the view is known but has no
// entry for key: callers must fall through to the database in either case
// (spec §4.6). A hit against the latest view touches the entry's recency,
// moving it to the back of its view's eviction list (state_cache.cpp:236).
func (c *Cache) Get(viewID rpctypes.ViewId, key []byte) (value []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, found := c.views[viewID]
	if !found {
		return nil, false
	}
	e, found := r.state[string(key)]
	if !found {
		return nil, false
	}
	if r == c.latest() {
		r.stateLRU.MoveToBack(e.elem)
	}
	return e.value, true
}

// GetCode is Get over the code table.
func (c *Cache) GetCode(viewID rpctypes.ViewId, key []byte) (value []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, found := c.views[viewID]
	if !found {
		return nil, false
	}
	e, found := r.code[string(key)]
	if !found {
		return nil, false
	}
	if r == c.latest() {
		r.codeLRU.MoveToBack(e.elem)
	}
	return e.value, true
}

// Put records a database read's result against viewID, upgrading to the
// exclusive lock. Populating a view older than the latest is a no-op: only
// the latest view accepts new cache-miss fills (spec §4.5). A confirmed
// database miss (present == false) is never cached at all, matching
// state_cache.cpp:247 (returns nullopt on an empty read without inserting
// anything) — only a REMOVE observed through OnNewBlock is a cacheable
// tombstone.
func (c *Cache) Put(viewID rpctypes.ViewId, key, value []byte, present bool) {
	if !present {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, found := c.views[viewID]
	if !found || r != c.latest() {
		return
	}
	c.insertState(r, key, value)
}

// PutCode is Put over the code table.
func (c *Cache) PutCode(viewID rpctypes.ViewId, key, value []byte, present bool) {
	if !present {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, found := c.views[viewID]
	if !found || r != c.latest() {
		return
	}
	c.insertCode(r, key, value)
}

func (c *Cache) insertState(r *root, key, value []byte) {
	k := string(key)
	if old, ok := r.state[k]; ok {
		r.stateLRU.Remove(old.elem)
	}
	e := &entry{key: k, value: value}
	e.elem = r.stateLRU.PushBack(e)
	r.state[k] = e
	for len(r.state) > c.cfg.MaxStateKeys {
		oldest := r.stateLRU.Front()
		if oldest == nil {
			break
		}
		oe := oldest.Value.(*entry)
		delete(r.state, oe.key)
		r.stateLRU.Remove(oldest)
	}
}

func (c *Cache) insertCode(r *root, key, value []byte) {
	k := string(key)
	if old, ok := r.code[k]; ok {
		r.codeLRU.Remove(old.elem)
	}
	e := &entry{key: k, value: value}
	e.elem = r.codeLRU.PushBack(e)
	r.code[k] = e
	for len(r.code) > c.cfg.MaxCodeKeys {
		oldest := r.codeLRU.Front()
		if oldest == nil {
			break
		}
		oe := oldest.Value.(*entry)
		delete(r.code, oe.key)
		r.codeLRU.Remove(oldest)
	}
}

// StateChange is one applied mutation within a batch: Deleted == true
// records a REMOVE (a tombstone: still a cache hit, with an empty value),
// distinct from a Value of nil/empty that isn't a deletion.
type StateChange struct {
	Key     []byte
	Value   []byte
	Deleted bool
}

// OnNewBlock applies one state-change batch, advancing the cache's notion
// of latest view to viewID and folding in every changed key so that
// subsequent Get calls against viewID observe the batch without a database
// round trip (spec §4.4, §4.5). The exclusive lock is held for the whole
// batch: a reader never observes a partially-ingested block. A REMOVE is
// folded in as a present, empty-valued entry (a tombstone hit), never as
// an absence.
func (c *Cache) OnNewBlock(viewID rpctypes.ViewId, stateChanges, codeChanges []StateChange) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.advanceRoot(viewID)
	r := c.latest()
	for _, ch := range stateChanges {
		value := ch.Value
		if ch.Deleted {
			value = nil
		}
		c.insertState(r, ch.Key, value)
	}
	for _, ch := range codeChanges {
		value := ch.Value
		if ch.Deleted {
			value = nil
		}
		c.insertCode(r, ch.Key, value)
	}
}

// advanceRoot creates (or reuses) the root for viewID and makes it latest.
//
// A viewID of 0 is the genesis/rewind sentinel used by the remote backend
// when it cannot yet report a monotonic view: rather than being compared
// against the previous latest view it always starts a completely fresh
// cache, dropping every other retained root (state_cache.cpp:351's
// wraparound special case), since no canonical predecessor can be
// identified for it.
//
// Otherwise, if viewID's immediate predecessor (viewID-1) is the current
// canonical (latest) root, the new root inherits its state/code contents
// via cloneRoot so a key written at view v-1 but not resent in view v's
// delta batch still hits at view v (state_cache.cpp:312). If there is no
// such canonical predecessor (a gap, or the cache's first block), the new
// root starts empty, the same "fresh start" branch the original takes.
func (c *Cache) advanceRoot(viewID rpctypes.ViewId) {
	if viewID == 0 {
		r := newRoot(viewID)
		c.views = map[rpctypes.ViewId]*root{viewID: r}
		c.order = []rpctypes.ViewId{viewID}
		return
	}
	if _, ok := c.views[viewID]; ok {
		c.promote(viewID)
		return
	}

	prev := c.latest()
	var r *root
	if prev != nil && prev.viewID == viewID-1 {
		r = cloneRoot(viewID, prev)
	} else {
		r = newRoot(viewID)
	}
	c.views[viewID] = r
	c.order = append(c.order, viewID)
	c.evictRoots()
}

// promote moves an already-known viewID to the end of the eviction order
// without creating a new root, used when the backend replays a view it
// already reported (e.g. a duplicate state-change notification).
func (c *Cache) promote(viewID rpctypes.ViewId) {
	for i, v := range c.order {
		if v == viewID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, viewID)
}

// evictRoots drops every retained view whose viewID falls at or behind
// latest - MaxViews, matching state_cache.cpp's eviction rule rather than
// insertion order: with strictly sequential view IDs the two coincide
// (the oldest inserted view is also the numerically furthest behind), but
// this is what keeps a view gap from leaving stale roots retained past
// their numeric age.
func (c *Cache) evictRoots() {
	latest := c.latest()
	if latest == nil {
		return
	}
	if uint64(latest.viewID) < uint64(c.cfg.MaxViews) {
		return
	}
	threshold := rpctypes.ViewId(uint64(latest.viewID) - uint64(c.cfg.MaxViews))

	kept := c.order[:0:0]
	for _, v := range c.order {
		if v != latest.viewID && v <= threshold {
			delete(c.views, v)
			continue
		}
		kept = append(kept, v)
	}
	c.order = kept
}

// Len reports how many views the cache currently retains, for tests and
// diagnostics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
