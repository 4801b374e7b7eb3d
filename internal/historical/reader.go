// Package historical implements the historical state reader (spec §4.7,
// C7): point-in-time account and storage resolution by a history-index
// seek, answered from the change set when the index names a later block and
// from the current PlainState otherwise, plus the storage_range_at scan used
// by debug_storageRangeAt. No merge walk over the cursors and no visitor
// walker are provided. Grounded on silkworm/silkrpc's
// core/storage_walker.cpp.
package historical

import (
	"context"
	"encoding/binary"

	"github.com/erigontech/rpcdaemon/internal/remotekv"
	"github.com/erigontech/rpcdaemon/internal/rpctypes"
	"github.com/ethereum/go-ethereum/common"
	"github.com/VictoriaMetrics/fastcache"
)

// DefaultResolvedCacheBytes sizes the per-reader fastcache used to memoize
// historical lookups. A resolved (block, key) value never changes, unlike
// the coherent cache's latest-view entries, so this is a plain unbounded-TTL
// memo rather than anything view-aware.
const DefaultResolvedCacheBytes = 32 * 1024 * 1024

// Reader resolves account and storage values as of a historical block,
// bound directly to a remote transaction so it can open the plain and
// dup-sorted cursors its lookups need. It does not go through the coherent
// cache: cached
// entries only ever describe the latest view (spec §4.7 "Non-goals").
//
// Resolved results are memoized in a fastcache.Cache keyed by the full
// lookup (table, address, incarnation, location, block): once a historical
// value is resolved it can never change, so unlike statecache there is no
// invalidation concern, only eviction under memory pressure. Grounded on
// go-ethereum's own use of fastcache for trie/state caching (trie/db and
// core/state/snapshot), adapted here to the read-heavy point-lookup shape
// debug_storageRangeAt and eth_getStorageAt/eth_getBalance at a historical
// block produce.
type Reader struct {
	client *remotekv.Client
	cache  *fastcache.Cache
}

// New binds a historical reader to an open remote transaction, with a
// resolved-value memo cache sized to DefaultResolvedCacheBytes.
func New(client *remotekv.Client) *Reader {
	return &Reader{client: client, cache: fastcache.New(DefaultResolvedCacheBytes)}
}

func storageCacheKey(addr common.Address, incarnation uint64, location common.Hash, block uint64) []byte {
	key := make([]byte, 0, 1+common.AddressLength+8+common.HashLength+8)
	key = append(key, 's')
	key = append(key, addr.Bytes()...)
	key = append(key, encodeIncarnation(incarnation)...)
	key = append(key, location.Bytes()...)
	key = append(key, encodeBlockNumber(block)...)
	return key
}

func accountCacheKey(addr common.Address, block uint64) []byte {
	key := make([]byte, 0, 1+common.AddressLength+8)
	key = append(key, 'a')
	key = append(key, addr.Bytes()...)
	key = append(key, encodeBlockNumber(block)...)
	return key
}

func encodeIncarnation(incarnation uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], incarnation)
	return b[:]
}

func encodeBlockNumber(block uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], block)
	return b[:]
}

func storageHistoryKey(addr common.Address, incarnation uint64, location common.Hash) []byte {
	key := make([]byte, 0, common.AddressLength+8+common.HashLength)
	key = append(key, addr.Bytes()...)
	key = append(key, encodeIncarnation(incarnation)...)
	key = append(key, location.Bytes()...)
	return key
}

// GetStorage resolves address/incarnation/location's value as of block,
// mirroring storage_walker.cpp's next() helper: find the earliest change
// at or after block via the history-index bitmap, and if one exists, read
// its pre-image from the storage change set; otherwise the current
// PlainState value is still correct as of block (spec §4.7).
func (r *Reader) GetStorage(ctx context.Context, addr common.Address, incarnation uint64, location common.Hash, block uint64) ([]byte, error) {
	cacheKey := storageCacheKey(addr, incarnation, location, block)
	if cached, ok := r.cache.HasGet(nil, cacheKey); ok {
		return decodeCachedValue(cached), nil
	}
	value, err := r.getStorageUncached(ctx, addr, incarnation, location, block)
	if err != nil {
		return nil, err
	}
	r.cache.Set(cacheKey, encodeCachedValue(value))
	return value, nil
}

func (r *Reader) getStorageUncached(ctx context.Context, addr common.Address, incarnation uint64, location common.Hash, block uint64) ([]byte, error) {
	histKey := storageHistoryKey(addr, incarnation, location)
	histCur, err := remotekv.NewCursor(ctx, r.client, remotekv.TableStorageHistory)
	if err != nil {
		return nil, err
	}
	defer histCur.Close(ctx)

	kv, err := histCur.SeekExact(ctx, histKey)
	if err != nil {
		return nil, err
	}
	if len(kv.Value) == 0 {
		return r.currentStorage(ctx, addr, incarnation, location)
	}

	changeBlock, found := decodeBitmap(kv.Value).seek(block)
	if !found {
		return r.currentStorage(ctx, addr, incarnation, location)
	}

	csCur, err := remotekv.NewDupCursor(ctx, r.client, remotekv.TablePlainStorageChangeSet)
	if err != nil {
		return nil, err
	}
	defer csCur.Close(ctx)

	subkey := make([]byte, 0, common.AddressLength+8+common.HashLength)
	subkey = append(subkey, addr.Bytes()...)
	subkey = append(subkey, encodeIncarnation(incarnation)...)
	subkey = append(subkey, location.Bytes()...)
	return csCur.SeekBoth(ctx, encodeBlockNumber(changeBlock), subkey)
}

func (r *Reader) currentStorage(ctx context.Context, addr common.Address, incarnation uint64, location common.Hash) ([]byte, error) {
	cur, err := remotekv.NewDupCursor(ctx, r.client, remotekv.TablePlainState)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	key := append(append([]byte{}, addr.Bytes()...), encodeIncarnation(incarnation)...)
	return cur.SeekBoth(ctx, key, location.Bytes())
}

// GetAccount resolves address's encoded account record as of block, by the
// same index-then-changeset pattern as GetStorage.
func (r *Reader) GetAccount(ctx context.Context, addr common.Address, block uint64) ([]byte, error) {
	cacheKey := accountCacheKey(addr, block)
	if cached, ok := r.cache.HasGet(nil, cacheKey); ok {
		return decodeCachedValue(cached), nil
	}
	value, err := r.getAccountUncached(ctx, addr, block)
	if err != nil {
		return nil, err
	}
	r.cache.Set(cacheKey, encodeCachedValue(value))
	return value, nil
}

func (r *Reader) getAccountUncached(ctx context.Context, addr common.Address, block uint64) ([]byte, error) {
	histCur, err := remotekv.NewCursor(ctx, r.client, remotekv.TableAccountHistory)
	if err != nil {
		return nil, err
	}
	defer histCur.Close(ctx)

	kv, err := histCur.SeekExact(ctx, addr.Bytes())
	if err != nil {
		return nil, err
	}
	if len(kv.Value) == 0 {
		return r.currentAccount(ctx, addr)
	}

	changeBlock, found := decodeBitmap(kv.Value).seek(block)
	if !found {
		return r.currentAccount(ctx, addr)
	}

	csCur, err := remotekv.NewDupCursor(ctx, r.client, remotekv.TableAccountChangeSet)
	if err != nil {
		return nil, err
	}
	defer csCur.Close(ctx)
	return csCur.SeekBoth(ctx, encodeBlockNumber(changeBlock), addr.Bytes())
}

func (r *Reader) currentAccount(ctx context.Context, addr common.Address) ([]byte, error) {
	cur, err := remotekv.NewCursor(ctx, r.client, remotekv.TablePlainState)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	kv, err := cur.SeekExact(ctx, addr.Bytes())
	if err != nil {
		return nil, err
	}
	return kv.Value, nil
}

// StorageSlot is one resolved entry from StorageRangeAt.
type StorageSlot struct {
	Location common.Hash
	Value    []byte
}

// StorageRangeAt walks an account's storage starting at startLocation,
// resolving each slot's historical value as of block and returning up to
// maxResults entries, deduplicated by location (debug_storageRangeAt,
// spec §4.7 "storage_range_at"). Locations are visited in PlainState's
// native dup-sort order, which is already location order, so no
// additional sort is needed.
func (r *Reader) StorageRangeAt(ctx context.Context, addr common.Address, incarnation uint64, block uint64, startLocation common.Hash, maxResults int) ([]StorageSlot, error) {
	cur, err := remotekv.NewDupCursor(ctx, r.client, remotekv.TablePlainState)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	key := append(append([]byte{}, addr.Bytes()...), encodeIncarnation(incarnation)...)
	seen := make(map[common.Hash]struct{})
	var out []StorageSlot

	dupVal, err := cur.SeekBoth(ctx, key, startLocation.Bytes())
	for len(dupVal) >= common.HashLength && len(out) < maxResults {
		location := common.BytesToHash(dupVal[:common.HashLength])
		if _, dup := seen[location]; !dup {
			seen[location] = struct{}{}
			value, err := r.GetStorage(ctx, addr, incarnation, location, block)
			if err != nil {
				return nil, err
			}
			if len(value) > 0 {
				out = append(out, StorageSlot{Location: location, Value: value})
			}
		}
		var kv rpctypes.KV
		kv, err = cur.NextDup(ctx)
		if err != nil {
			return nil, err
		}
		if len(kv.Value) < common.HashLength {
			break
		}
		dupVal = kv.Value
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// encodeCachedValue/decodeCachedValue distinguish "resolved to empty" from
// "absent" in the fastcache entry with a one-byte presence prefix, since
// fastcache itself cannot tell a stored zero-length value from a miss.
func encodeCachedValue(value []byte) []byte {
	if len(value) == 0 {
		return []byte{0}
	}
	return append([]byte{1}, value...)
}

func decodeCachedValue(cached []byte) []byte {
	if len(cached) == 0 || cached[0] == 0 {
		return nil
	}
	return cached[1:]
}
