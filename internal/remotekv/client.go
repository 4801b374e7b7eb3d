package remotekv

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/erigontech/rpcdaemon/internal/rpcerror"
	"github.com/erigontech/rpcdaemon/internal/rpclog"
	"github.com/erigontech/rpcdaemon/internal/rpctypes"
)

// Client owns the single bidirectional stream backing one remote KV
// transaction. Every cursor operation on that transaction is serialized
// through do(): the spec requires completion order to equal issue order,
// and a single in-flight request per stream is the simplest way to
// guarantee that without a correlation table on the wire (spec §4.1, §5).
//
// Cursors are tracked in an arena keyed by the server-assigned cursor ID,
// the same shape as revm_bridge's handle registry (a sync.Map plus an
// atomic sequence) adapted here to the daemon's own domain: closing the
// transaction invalidates every entry at once instead of requiring each
// cursor to be closed individually (spec §9 "cyclic ownership").
type Client struct {
	mu     sync.Mutex
	stream Stream
	viewID rpctypes.ViewId

	arenaMu sync.Mutex
	arena   map[uint32]struct{}

	closed int32
	log    rpclog.Logger
}

// Begin wraps an already-established stream whose first reply carried the
// transaction's ViewId (the remote KV service assigns it when the
// transaction begins, spec §4.1).
func Begin(stream Stream, viewID rpctypes.ViewId) *Client {
	return &Client{
		stream: stream,
		viewID: viewID,
		arena:  make(map[uint32]struct{}),
		log:    rpclog.New("component", "remotekv"),
	}
}

// ViewID returns the transaction's view identifier.
func (c *Client) ViewID() rpctypes.ViewId { return c.viewID }

// do sends one request and waits for its matching reply. Any transport
// error marks the client dead: subsequent calls fail fast rather than
// attempting to resynchronize a corrupted stream (spec §4.1 "Failure").
func (c *Client) do(ctx context.Context, req *CursorRequest) (*Pair, error) {
	if atomic.LoadInt32(&c.closed) != 0 {
		return nil, &rpcerror.Transport{Op: "do", Err: fmt.Errorf("transaction closed")}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &rpcerror.Transport{Op: "do", Err: err}
	}
	if err := c.stream.Send(req); err != nil {
		atomic.StoreInt32(&c.closed, 1)
		return nil, &rpcerror.Transport{Op: "send", Err: err}
	}
	reply, err := c.stream.Recv()
	if err != nil {
		atomic.StoreInt32(&c.closed, 1)
		return nil, &rpcerror.Transport{Op: "recv", Err: err}
	}
	return reply, nil
}

// OpenCursor issues an OPEN (or OPEN_DUP_SORT) op and registers the
// server-assigned cursor ID in the arena.
func (c *Client) OpenCursor(ctx context.Context, bucket string, dupSort bool) (uint32, error) {
	op := OpOpen
	if dupSort {
		op = OpOpenDupSort
	}
	reply, err := c.do(ctx, &CursorRequest{Op: op, BucketName: bucket})
	if err != nil {
		return 0, err
	}
	c.arenaMu.Lock()
	c.arena[reply.CursorID] = struct{}{}
	c.arenaMu.Unlock()
	return reply.CursorID, nil
}

// CloseCursor issues a CLOSE op for one cursor. Per spec §4.3 cursors need
// not be explicitly closed — closing the transaction frees them all — but
// callers that want to free server-side resources early may still do so.
func (c *Client) CloseCursor(ctx context.Context, cursorID uint32) error {
	_, err := c.do(ctx, &CursorRequest{Op: OpClose, Cursor: cursorID})
	c.arenaMu.Lock()
	delete(c.arena, cursorID)
	c.arenaMu.Unlock()
	return err
}

func (c *Client) cursorAlive(cursorID uint32) bool {
	c.arenaMu.Lock()
	defer c.arenaMu.Unlock()
	_, ok := c.arena[cursorID]
	return ok
}

func (c *Client) requireAlive(cursorID uint32) error {
	if atomic.LoadInt32(&c.closed) != 0 || !c.cursorAlive(cursorID) {
		return &rpcerror.Transport{Op: "cursor", Err: fmt.Errorf("cursor %d invalid after transaction close", cursorID)}
	}
	return nil
}

// Seek positions the cursor at the first key >= k.
func (c *Client) Seek(ctx context.Context, cursorID uint32, k []byte) (rpctypes.KV, error) {
	if err := c.requireAlive(cursorID); err != nil {
		return rpctypes.KV{}, err
	}
	reply, err := c.do(ctx, &CursorRequest{Op: OpSeek, Cursor: cursorID, K: k})
	if err != nil {
		return rpctypes.KV{}, err
	}
	return rpctypes.KV{Key: reply.K, Value: reply.V}, nil
}

// SeekExact positions the cursor exactly at k, or returns an empty key
// sentinel if k is absent.
func (c *Client) SeekExact(ctx context.Context, cursorID uint32, k []byte) (rpctypes.KV, error) {
	if err := c.requireAlive(cursorID); err != nil {
		return rpctypes.KV{}, err
	}
	reply, err := c.do(ctx, &CursorRequest{Op: OpSeekExact, Cursor: cursorID, K: k})
	if err != nil {
		return rpctypes.KV{}, err
	}
	return rpctypes.KV{Key: reply.K, Value: reply.V}, nil
}

// Next advances the cursor by one entry.
func (c *Client) Next(ctx context.Context, cursorID uint32) (rpctypes.KV, error) {
	if err := c.requireAlive(cursorID); err != nil {
		return rpctypes.KV{}, err
	}
	reply, err := c.do(ctx, &CursorRequest{Op: OpNext, Cursor: cursorID})
	if err != nil {
		return rpctypes.KV{}, err
	}
	return rpctypes.KV{Key: reply.K, Value: reply.V}, nil
}

// SeekBoth returns the first value of a dup-sorted cursor whose full key
// starts with key||subkey (spec §4.2).
func (c *Client) SeekBoth(ctx context.Context, cursorID uint32, key, subkey []byte) (rpctypes.KV, error) {
	if err := c.requireAlive(cursorID); err != nil {
		return rpctypes.KV{}, err
	}
	reply, err := c.do(ctx, &CursorRequest{Op: OpSeekBoth, Cursor: cursorID, K: key, V: subkey})
	if err != nil {
		return rpctypes.KV{}, err
	}
	return rpctypes.KV{Key: reply.K, Value: reply.V}, nil
}

// NextDup advances within the current key's duplicate group.
func (c *Client) NextDup(ctx context.Context, cursorID uint32) (rpctypes.KV, error) {
	if err := c.requireAlive(cursorID); err != nil {
		return rpctypes.KV{}, err
	}
	reply, err := c.do(ctx, &CursorRequest{Op: OpNextDup, Cursor: cursorID})
	if err != nil {
		return rpctypes.KV{}, err
	}
	return rpctypes.KV{Key: reply.K, Value: reply.V}, nil
}

// Close tears down the stream, invalidating every cursor in the arena.
// The owner of the transaction is responsible for calling it; txdb.Reader
// does not close the client it wraps.
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	c.arenaMu.Lock()
	c.arena = make(map[uint32]struct{})
	c.arenaMu.Unlock()
	if err := c.stream.CloseSend(); err != nil {
		c.log.Debug("close send failed", "err", err)
		return err
	}
	return nil
}
