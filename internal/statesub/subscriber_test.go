package statesub

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/erigontech/rpcdaemon/internal/rpctypes"
	"github.com/erigontech/rpcdaemon/internal/statecache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	batches []*rpctypes.StateChangeBatch
	pos     int
	failAt  int // -1 never
}

func (f *fakeStream) Recv() (*rpctypes.StateChangeBatch, error) {
	if f.failAt == f.pos {
		return nil, errors.New("connection reset")
	}
	if f.pos >= len(f.batches) {
		return nil, io.EOF
	}
	b := f.batches[f.pos]
	f.pos++
	return b, nil
}

func batch(view rpctypes.ViewId, addr string, value []byte) *rpctypes.StateChangeBatch {
	return &rpctypes.StateChangeBatch{
		DatabaseViewId: view,
		ChangeBatch: []rpctypes.ChangeBatch{{
			BlockHeight: uint64(view),
			Changes: []rpctypes.AccountChange{{
				Address: common.HexToAddress(addr),
				Action:  rpctypes.ActionUpsert,
				Data:    value,
			}},
		}},
	}
}

func TestSubscriberAppliesBatchesInOrder(t *testing.T) {
	stream := &fakeStream{failAt: -1, batches: []*rpctypes.StateChangeBatch{
		batch(1, "0x0000000000000000000000000000000000000001", []byte("v1")),
		batch(2, "0x0000000000000000000000000000000000000001", []byte("v2")),
	}}
	cache := statecache.New(statecache.DefaultConfig)
	sub := New(func(ctx context.Context) (Stream, error) { return stream, nil }, cache, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = sub.Run(ctx)

	addr := common.HexToAddress("0x0000000000000000000000000000000000000001").Bytes()
	v, ok := cache.Get(2, addr)
	require.True(t, ok)
	require.Equal(t, []byte("v2"), v)
}

func TestSubscriberReconnectsWithoutClearingCache(t *testing.T) {
	first := &fakeStream{failAt: 1, batches: []*rpctypes.StateChangeBatch{
		batch(1, "0x0000000000000000000000000000000000000001", []byte("v1")),
	}}
	second := &fakeStream{failAt: -1, batches: []*rpctypes.StateChangeBatch{
		batch(2, "0x0000000000000000000000000000000000000002", []byte("v2")),
	}}
	dialCount := 0
	dial := func(ctx context.Context) (Stream, error) {
		dialCount++
		if dialCount == 1 {
			return first, nil
		}
		return second, nil
	}
	cache := statecache.New(statecache.DefaultConfig)
	sub := New(dial, cache, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = sub.Run(ctx)

	addr1 := common.HexToAddress("0x0000000000000000000000000000000000000001").Bytes()
	_, ok := cache.Get(1, addr1)
	require.True(t, ok, "the view populated before the break must survive a reconnect")
}
