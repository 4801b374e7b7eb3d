package remotekv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeStream replays a scripted sequence of replies and records the
// requests it received, standing in for the real gRPC bidirectional
// stream in unit tests.
type fakeStream struct {
	replies []*Pair
	sent    []*CursorRequest
	failAt  int // index at which Send/Recv should fail, -1 for never
	pos     int
}

func (f *fakeStream) Send(req *CursorRequest) error {
	if f.failAt == f.pos {
		return errors.New("boom")
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeStream) Recv() (*Pair, error) {
	if f.failAt == f.pos {
		return nil, errors.New("boom")
	}
	reply := f.replies[f.pos]
	f.pos++
	return reply, nil
}

func (f *fakeStream) CloseSend() error { return nil }

func TestClientOpenSeekNext(t *testing.T) {
	stream := &fakeStream{
		failAt: -1,
		replies: []*Pair{
			{CursorID: 7},
			{K: []byte("addr1"), V: []byte("val1")},
			{K: []byte("addr2"), V: []byte("val2")},
			{K: nil, V: nil},
		},
	}
	c := Begin(stream, 42)
	require.Equal(t, uint64(42), uint64(c.ViewID()))

	id, err := c.OpenCursor(context.Background(), TablePlainState, false)
	require.NoError(t, err)
	require.Equal(t, uint32(7), id)

	kv, err := c.Seek(context.Background(), id, []byte("addr1"))
	require.NoError(t, err)
	require.Equal(t, []byte("val1"), kv.Value)

	kv, err = c.Next(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, []byte("addr2"), kv.Key)

	kv, err = c.Next(context.Background(), id)
	require.NoError(t, err)
	require.Empty(t, kv.Key)
}

func TestClientTransportErrorInvalidatesCursors(t *testing.T) {
	stream := &fakeStream{
		failAt: 1,
		replies: []*Pair{
			{CursorID: 3},
			{},
		},
	}
	c := Begin(stream, 1)
	id, err := c.OpenCursor(context.Background(), TableCode, false)
	require.NoError(t, err)

	_, err = c.Seek(context.Background(), id, []byte("x"))
	require.Error(t, err)

	// The transaction is now dead: every subsequent op fails fast without
	// touching the stream again.
	_, err = c.Seek(context.Background(), id, []byte("y"))
	require.Error(t, err)
}

func TestClientCloseInvalidatesAllCursors(t *testing.T) {
	stream := &fakeStream{failAt: -1, replies: []*Pair{{CursorID: 1}, {CursorID: 2}}}
	c := Begin(stream, 1)
	id1, err := c.OpenCursor(context.Background(), TablePlainState, false)
	require.NoError(t, err)
	id2, err := c.OpenCursor(context.Background(), TableCode, false)
	require.NoError(t, err)

	require.NoError(t, c.Close())

	_, err = c.Seek(context.Background(), id1, []byte("x"))
	require.Error(t, err)
	_, err = c.Seek(context.Background(), id2, []byte("x"))
	require.Error(t, err)
}
