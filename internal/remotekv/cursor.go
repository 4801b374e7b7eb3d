package remotekv

import (
	"context"

	"github.com/erigontech/rpcdaemon/internal/rpctypes"
)

// Cursor is the ordered-cursor view over one table within a transaction
// (spec §4.2). An empty Key in a returned KV is the end-of-data sentinel.
type Cursor struct {
	client *Client
	id     uint32
	bucket string
}

// NewCursor opens a plain (non dup-sorted) cursor on bucket.
func NewCursor(ctx context.Context, c *Client, bucket string) (*Cursor, error) {
	id, err := c.OpenCursor(ctx, bucket, false)
	if err != nil {
		return nil, err
	}
	return &Cursor{client: c, id: id, bucket: bucket}, nil
}

func (cur *Cursor) Seek(ctx context.Context, key []byte) (rpctypes.KV, error) {
	return cur.client.Seek(ctx, cur.id, key)
}

func (cur *Cursor) SeekExact(ctx context.Context, key []byte) (rpctypes.KV, error) {
	return cur.client.SeekExact(ctx, cur.id, key)
}

func (cur *Cursor) Next(ctx context.Context) (rpctypes.KV, error) {
	return cur.client.Next(ctx, cur.id)
}

func (cur *Cursor) Close(ctx context.Context) error {
	return cur.client.CloseCursor(ctx, cur.id)
}

// DupCursor is the dup-sorted extension of Cursor (spec §4.2).
type DupCursor struct {
	Cursor
}

// NewDupCursor opens a dup-sorted cursor on bucket.
func NewDupCursor(ctx context.Context, c *Client, bucket string) (*DupCursor, error) {
	id, err := c.OpenCursor(ctx, bucket, true)
	if err != nil {
		return nil, err
	}
	return &DupCursor{Cursor{client: c, id: id, bucket: bucket}}, nil
}

// SeekBoth returns the first value whose full key starts with key||subkey.
func (cur *DupCursor) SeekBoth(ctx context.Context, key, subkey []byte) ([]byte, error) {
	kv, err := cur.client.SeekBoth(ctx, cur.id, key, subkey)
	if err != nil {
		return nil, err
	}
	return kv.Value, nil
}

// SeekBothExact is SeekBoth but returns the full (key, value) pair, matching
// table layouts where the dup-sort value also carries trailing key bytes.
func (cur *DupCursor) SeekBothExact(ctx context.Context, key, subkey []byte) (rpctypes.KV, error) {
	return cur.client.SeekBoth(ctx, cur.id, key, subkey)
}

func (cur *DupCursor) NextDup(ctx context.Context) (rpctypes.KV, error) {
	return cur.client.NextDup(ctx, cur.id)
}
