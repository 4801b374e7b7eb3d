// Package txdb binds a remote transaction to table-level operations: point
// lookups, dup-range lookups, and prefix-bounded range scans (spec §4.3,
// C3). Grounded on silkworm/silkrpc's ethdb/transaction_database and
// ethdb/database.hpp (the DatabaseReader contract both the plain
// transaction reader and the cached database implement).
package txdb

import (
	"context"

	"github.com/erigontech/rpcdaemon/internal/remotekv"
	"github.com/erigontech/rpcdaemon/internal/rpctypes"
)

// Walker is called once per (key, value) during a Walk/ForPrefix scan. It
// returns false to stop the scan early (spec §4.3).
type Walker func(k, v []byte) (bool, error)

// DatabaseReader is the table-level read contract. Reader (this package)
// implements it directly against the remote transaction; cacheddb.Database
// implements it by routing PlainState/Code reads through the coherent
// cache and everything else to a wrapped Reader (spec §4.6).
type DatabaseReader interface {
	Get(ctx context.Context, table string, key []byte) (rpctypes.KV, error)
	GetOne(ctx context.Context, table string, key []byte) ([]byte, error)
	GetBothRange(ctx context.Context, table string, key, subkey []byte) ([]byte, error)
	Walk(ctx context.Context, table string, startKey []byte, fixedBits uint32, visit Walker) error
	ForPrefix(ctx context.Context, table string, prefix []byte, visit Walker) error
}

// Reader reads table contents through a remote KV transaction, opening and
// discarding one cursor per call. The remote transaction's lifetime (and
// hence the cursors') is owned by the caller, not by Reader.
type Reader struct {
	client *remotekv.Client
}

// New binds a reader to an already-open remote transaction.
func New(client *remotekv.Client) *Reader {
	return &Reader{client: client}
}

// ViewID returns the bound transaction's view identifier, used by the
// coherent cache to key its lookups (spec §4.5).
func (r *Reader) ViewID() rpctypes.ViewId { return r.client.ViewID() }

// Get performs a point lookup, returning an empty value on miss (spec
// §4.3).
func (r *Reader) Get(ctx context.Context, table string, key []byte) (rpctypes.KV, error) {
	cur, err := remotekv.NewCursor(ctx, r.client, table)
	if err != nil {
		return rpctypes.KV{}, err
	}
	defer cur.Close(ctx)
	return cur.SeekExact(ctx, key)
}

// GetOne is a convenience wrapper returning just the value bytes.
func (r *Reader) GetOne(ctx context.Context, table string, key []byte) ([]byte, error) {
	kv, err := r.Get(ctx, table, key)
	if err != nil {
		return nil, err
	}
	return kv.Value, nil
}

// GetBothRange returns the first dup-sort value >= subkey under key, or nil
// if the dup group is absent or exhausted (spec §4.3).
func (r *Reader) GetBothRange(ctx context.Context, table string, key, subkey []byte) ([]byte, error) {
	cur, err := remotekv.NewDupCursor(ctx, r.client, table)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	return cur.SeekBoth(ctx, key, subkey)
}

// Walk scans table starting at startKey, stopping once the first fixedBits
// bits of the current key stop matching startKey, or the visitor returns
// false (spec §4.3). fixedBits is expected byte-aligned, as in every
// concrete use in this daemon.
func (r *Reader) Walk(ctx context.Context, table string, startKey []byte, fixedBits uint32, visit Walker) error {
	cur, err := remotekv.NewCursor(ctx, r.client, table)
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	matchBytes := int(fixedBits / 8)
	kv, err := cur.Seek(ctx, startKey)
	if err != nil {
		return err
	}
	for len(kv.Key) > 0 {
		if matchBytes > 0 {
			if len(kv.Key) < matchBytes || len(startKey) < matchBytes {
				break
			}
			if !bytesEqual(kv.Key[:matchBytes], startKey[:matchBytes]) {
				break
			}
		}
		cont, err := visit(kv.Key, kv.Value)
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
		kv, err = cur.Next(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// ForPrefix is Walk with a bit-aligned prefix: every key sharing prefix is
// visited (spec §4.3).
func (r *Reader) ForPrefix(ctx context.Context, table string, prefix []byte, visit Walker) error {
	return r.Walk(ctx, table, prefix, uint32(len(prefix)*8), visit)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
