package remotekv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGobCodecRoundTripsCursorRequest(t *testing.T) {
	codec := gobCodec{}
	req := &CursorRequest{Op: OpSeekBoth, Cursor: 7, BucketName: TablePlainState, K: []byte("k"), V: []byte("v")}

	data, err := codec.Marshal(req)
	require.NoError(t, err)

	var decoded CursorRequest
	require.NoError(t, codec.Unmarshal(data, &decoded))
	require.Equal(t, *req, decoded)
}

func TestGobCodecRoundTripsPair(t *testing.T) {
	codec := gobCodec{}
	pair := &Pair{CursorID: 3, K: []byte("k"), V: []byte("v")}

	data, err := codec.Marshal(pair)
	require.NoError(t, err)

	var decoded Pair
	require.NoError(t, codec.Unmarshal(data, &decoded))
	require.Equal(t, *pair, decoded)
}
