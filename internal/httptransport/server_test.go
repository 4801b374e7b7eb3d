package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/erigontech/rpcdaemon/internal/rpcdispatch"
	"github.com/stretchr/testify/require"
)

func TestServeHTTPDispatchesPostRequest(t *testing.T) {
	d := rpcdispatch.New()
	d.Register("eth_blockNumber", func(ctx context.Context, params json.RawMessage) (any, error) {
		return "0x1", nil
	})
	srv := New(d)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"method":"eth_blockNumber"}`))
	rec := httptest.NewRecorder()
	srv.Handler(nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp rpcdispatch.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "0x1", resp.Result)
}

func TestServeHTTPRejectsNonPost(t *testing.T) {
	d := rpcdispatch.New()
	srv := New(d)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler(nil).ServeHTTP(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
