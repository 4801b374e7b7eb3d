package remotekv

import (
	"bytes"
	"context"
)

// SplittedKeyValue is the decomposed view a split cursor produces: a
// composite key's three contiguous slices plus the associated value
// (spec §3, §4.2).
type SplittedKeyValue struct {
	Key1  []byte
	Key2  []byte
	Key3  []byte
	Value []byte
}

func (s SplittedKeyValue) end() bool { return len(s.Key1) == 0 }

// SplitCursor decomposes an ordered cursor's composite keys at fixed byte
// offsets, halting once the underlying key's matched-bit prefix diverges
// from the seed key. Grounded on storage_walker.cpp's StorageHistory split
// (match on address only, key2 = location hash, key3 = block number).
type SplitCursor struct {
	cursor     *Cursor
	seed       []byte
	matchBytes int
	part1End   int
	part2Start int
	part3Start int
}

// NewSplitCursor wraps cursor. matchBits must be byte-aligned (a multiple
// of 8), matching every concrete use in the spec.
func NewSplitCursor(cursor *Cursor, seed []byte, matchBits, part1End, part2Start, part3Start int) *SplitCursor {
	return &SplitCursor{
		cursor:     cursor,
		seed:       seed,
		matchBytes: matchBits / 8,
		part1End:   part1End,
		part2Start: part2Start,
		part3Start: part3Start,
	}
}

func (s *SplitCursor) decompose(key, value []byte) SplittedKeyValue {
	if len(key) == 0 || !s.matches(key) {
		return SplittedKeyValue{}
	}
	return SplittedKeyValue{
		Key1:  key[:s.part1End],
		Key2:  key[s.part2Start:s.part3Start],
		Key3:  key[s.part3Start:],
		Value: value,
	}
}

func (s *SplitCursor) matches(key []byte) bool {
	if s.matchBytes == 0 {
		return true
	}
	if len(key) < s.matchBytes || len(s.seed) < s.matchBytes {
		return false
	}
	return bytes.Equal(key[:s.matchBytes], s.seed[:s.matchBytes])
}

// Seek positions the underlying cursor at the seed key.
func (s *SplitCursor) Seek(ctx context.Context) (SplittedKeyValue, error) {
	kv, err := s.cursor.Seek(ctx, s.seed)
	if err != nil {
		return SplittedKeyValue{}, err
	}
	return s.decompose(kv.Key, kv.Value), nil
}

// Next advances the underlying cursor by one entry.
func (s *SplitCursor) Next(ctx context.Context) (SplittedKeyValue, error) {
	kv, err := s.cursor.Next(ctx)
	if err != nil {
		return SplittedKeyValue{}, err
	}
	return s.decompose(kv.Key, kv.Value), nil
}

// SplitCursorDupSort decomposes a dup-sorted cursor whose key2/value live
// inside the dup-sort value rather than the primary key. Grounded on
// storage_walker.cpp's PlainState split (seed = address||incarnation,
// subkey = location hash, value_offset = kHashLength).
type SplitCursorDupSort struct {
	cursor      *DupCursor
	seed        []byte
	subkey      []byte
	part1End    int
	valueOffset int
}

// NewSplitCursorDupSort wraps cursor. seed is the primary dup-sort key
// (e.g. address||incarnation); subkey seeds the dup-sort search within it.
func NewSplitCursorDupSort(cursor *DupCursor, seed, subkey []byte, part1End, valueOffset int) *SplitCursorDupSort {
	return &SplitCursorDupSort{cursor: cursor, seed: seed, subkey: subkey, part1End: part1End, valueOffset: valueOffset}
}

func (s *SplitCursorDupSort) splitValue(value []byte) SplittedKeyValue {
	if len(value) < s.valueOffset {
		return SplittedKeyValue{}
	}
	key1 := s.seed
	if len(key1) > s.part1End {
		key1 = key1[:s.part1End]
	}
	return SplittedKeyValue{
		Key1:  key1,
		Key2:  value[:s.valueOffset],
		Value: value[s.valueOffset:],
	}
}

// SeekBoth seeks to the first dup entry whose value starts with subkey.
func (s *SplitCursorDupSort) SeekBoth(ctx context.Context) (SplittedKeyValue, error) {
	value, err := s.cursor.SeekBoth(ctx, s.seed, s.subkey)
	if err != nil {
		return SplittedKeyValue{}, err
	}
	if len(value) == 0 {
		return SplittedKeyValue{}, nil
	}
	return s.splitValue(value), nil
}

// NextDup advances within the current key's dup group.
func (s *SplitCursorDupSort) NextDup(ctx context.Context) (SplittedKeyValue, error) {
	kv, err := s.cursor.NextDup(ctx)
	if err != nil {
		return SplittedKeyValue{}, err
	}
	if len(kv.Key) == 0 {
		return SplittedKeyValue{}, nil
	}
	return s.splitValue(kv.Value), nil
}
