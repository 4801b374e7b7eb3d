package historical

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/erigontech/rpcdaemon/internal/remotekv"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	replies []*remotekv.Pair
	pos     int
}

func (f *fakeStream) Send(*remotekv.CursorRequest) error { return nil }

func (f *fakeStream) Recv() (*remotekv.Pair, error) {
	reply := f.replies[f.pos]
	if f.pos < len(f.replies)-1 {
		f.pos++
	}
	return reply, nil
}

func (f *fakeStream) CloseSend() error { return nil }

func bitmapBytes(blocks ...uint64) []byte {
	out := make([]byte, 8*len(blocks))
	for i, b := range blocks {
		binary.BigEndian.PutUint64(out[i*8:], b)
	}
	return out
}

func TestGetStorageFallsBackToCurrentWhenNoHistory(t *testing.T) {
	stream := &fakeStream{replies: []*remotekv.Pair{
		{CursorID: 1}, // history cursor open
		{},            // seek_exact miss on history index
		{CursorID: 2}, // plain state dup cursor open
		{K: []byte("k"), V: []byte("current-value")},
	}}
	r := New(remotekv.Begin(stream, 1))

	v, err := r.GetStorage(context.Background(), common.Address{1}, 1, common.Hash{2}, 100)
	require.NoError(t, err)
	require.Equal(t, []byte("current-value"), v)
}

func TestGetStorageResolvesFromChangeSetWhenIndexedChangeExists(t *testing.T) {
	stream := &fakeStream{replies: []*remotekv.Pair{
		{CursorID: 1},                            // history cursor open
		{K: []byte("idx"), V: bitmapBytes(150)},  // seek_exact hit, change at block 150
		{CursorID: 2},                            // changeset dup cursor open
		{K: []byte("k"), V: []byte("pre-value")}, // seek_both on changeset
	}}
	r := New(remotekv.Begin(stream, 1))

	v, err := r.GetStorage(context.Background(), common.Address{1}, 1, common.Hash{2}, 100)
	require.NoError(t, err)
	require.Equal(t, []byte("pre-value"), v)
}

type countingStream struct {
	fakeStream
	recvCalls int
}

func (f *countingStream) Recv() (*remotekv.Pair, error) {
	f.recvCalls++
	return f.fakeStream.Recv()
}

func TestGetStorageSecondLookupIsServedFromCache(t *testing.T) {
	stream := &countingStream{fakeStream: fakeStream{replies: []*remotekv.Pair{
		{CursorID: 1},
		{},
		{CursorID: 2},
		{K: []byte("k"), V: []byte("current-value")},
	}}}
	r := New(remotekv.Begin(stream, 1))

	v1, err := r.GetStorage(context.Background(), common.Address{1}, 1, common.Hash{2}, 100)
	require.NoError(t, err)
	callsAfterFirst := stream.recvCalls

	v2, err := r.GetStorage(context.Background(), common.Address{1}, 1, common.Hash{2}, 100)
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Equal(t, callsAfterFirst, stream.recvCalls, "second lookup should be served from cache without any further Recv calls")
}

func TestGetAccountFallsBackToCurrent(t *testing.T) {
	stream := &fakeStream{replies: []*remotekv.Pair{
		{CursorID: 1},
		{},
		{CursorID: 2},
		{K: []byte("addr"), V: []byte("account-data")},
	}}
	r := New(remotekv.Begin(stream, 1))

	v, err := r.GetAccount(context.Background(), common.Address{1}, 100)
	require.NoError(t, err)
	require.Equal(t, []byte("account-data"), v)
}
