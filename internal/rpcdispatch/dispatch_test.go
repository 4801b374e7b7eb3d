package rpcdispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/erigontech/rpcdaemon/internal/rpcerror"
	"github.com/stretchr/testify/require"
)

func TestServeUnknownMethodReturnsMethodNotFound(t *testing.T) {
	d := New()
	resp := d.Serve(context.Background(), Request{Method: "eth_bogus"})
	require.NotNil(t, resp.Error)
	require.Equal(t, rpcerror.CodeMethodNotFound, resp.Error.Code)
}

func TestServeReturnsHandlerResult(t *testing.T) {
	d := New()
	d.Register("eth_blockNumber", func(ctx context.Context, params json.RawMessage) (any, error) {
		return "0x1", nil
	})
	resp := d.Serve(context.Background(), Request{Method: "eth_blockNumber"})
	require.Nil(t, resp.Error)
	require.Equal(t, "0x1", resp.Result)
}

func TestServeShapesDomainError(t *testing.T) {
	d := New()
	d.Register("engine_forkchoiceUpdatedV1", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, rpcerror.NewDomain("finalized block hash is empty")
	})
	resp := d.Serve(context.Background(), Request{Method: "engine_forkchoiceUpdatedV1"})
	require.NotNil(t, resp.Error)
	require.Equal(t, rpcerror.CodeDomain, resp.Error.Code)
	require.Equal(t, "finalized block hash is empty", resp.Error.Message)
}

func TestServeRecoversPanicAsInternalError(t *testing.T) {
	d := New()
	d.Register("trace_call", func(ctx context.Context, params json.RawMessage) (any, error) {
		panic("boom")
	})
	resp := d.Serve(context.Background(), Request{Method: "trace_call"})
	require.NotNil(t, resp.Error)
	require.Equal(t, rpcerror.CodeInternal, resp.Error.Code)
	require.Equal(t, "unexpected exception", resp.Error.Message)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	d := New()
	d.Register("eth_blockNumber", func(ctx context.Context, params json.RawMessage) (any, error) { return nil, nil })
	require.Panics(t, func() {
		d.Register("eth_blockNumber", func(ctx context.Context, params json.RawMessage) (any, error) { return nil, nil })
	})
}
