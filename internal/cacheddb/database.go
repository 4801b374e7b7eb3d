// Package cacheddb implements the cached database (spec §4.6, C6): a
// DatabaseReader that answers PlainState and Code reads from the coherent
// cache (C5) when possible, otherwise falling through to the plain
// transaction reader (C3). Grounded on silkworm/silkrpc's
// ethdb/kv/cached_database.cpp and .hpp.
package cacheddb

import (
	"context"

	"github.com/erigontech/rpcdaemon/internal/remotekv"
	"github.com/erigontech/rpcdaemon/internal/rpctypes"
	"github.com/erigontech/rpcdaemon/internal/statecache"
	"github.com/erigontech/rpcdaemon/internal/txdb"
)

// Database wraps a txdb.Reader, intercepting PlainState/Code table reads.
// It never re-populates the cache on a fallback miss: only batches applied
// through the state-change subscriber (C4) are allowed to grow the cache,
// keeping its contents always attributable to a specific, ordered view
// (spec §4.6 "Non-goals").
type Database struct {
	reader *txdb.Reader
	cache  *statecache.Cache
}

// New binds a cached database to an open transaction reader and the
// process-wide coherent cache.
func New(reader *txdb.Reader, cache *statecache.Cache) *Database {
	return &Database{reader: reader, cache: cache}
}

var _ txdb.DatabaseReader = (*Database)(nil)

// Get intercepts PlainState; every other table is read straight through.
func (d *Database) Get(ctx context.Context, table string, key []byte) (rpctypes.KV, error) {
	if table == remotekv.TablePlainState {
		if v, ok := d.cache.Get(d.reader.ViewID(), key); ok {
			if v == nil {
				return rpctypes.KV{}, nil
			}
			return rpctypes.KV{Key: key, Value: v}, nil
		}
	}
	return d.reader.Get(ctx, table, key)
}

// GetOne intercepts PlainState and Code.
func (d *Database) GetOne(ctx context.Context, table string, key []byte) ([]byte, error) {
	switch table {
	case remotekv.TablePlainState:
		if v, ok := d.cache.Get(d.reader.ViewID(), key); ok {
			return v, nil
		}
	case remotekv.TableCode:
		if v, ok := d.cache.GetCode(d.reader.ViewID(), key); ok {
			return v, nil
		}
	}
	return d.reader.GetOne(ctx, table, key)
}

// GetBothRange always falls through: the cache holds whole-key values, not
// dup-sorted storage slots (spec §4.6).
func (d *Database) GetBothRange(ctx context.Context, table string, key, subkey []byte) ([]byte, error) {
	return d.reader.GetBothRange(ctx, table, key, subkey)
}

// Walk always falls through: the cache is a point-lookup structure, not an
// ordered index (spec §4.6).
func (d *Database) Walk(ctx context.Context, table string, startKey []byte, fixedBits uint32, visit txdb.Walker) error {
	return d.reader.Walk(ctx, table, startKey, fixedBits, visit)
}

// ForPrefix always falls through, for the same reason as Walk.
func (d *Database) ForPrefix(ctx context.Context, table string, prefix []byte, visit txdb.Walker) error {
	return d.reader.ForPrefix(ctx, table, prefix, visit)
}
