package engineapi

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/golang-jwt/jwt/v4"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	forkchoiceStatus PayloadStatus
	ttd              *uint256.Int
	chainConfig      map[string]any
}

func (f *fakeChain) InsertPayload(ctx context.Context, payload ExecutionPayload) (PayloadStatus, error) {
	return StatusValid, nil
}

func (f *fakeChain) UpdateForkchoice(ctx context.Context, state ForkchoiceState) (PayloadStatus, error) {
	return f.forkchoiceStatus, nil
}

func (f *fakeChain) BuildPayload(ctx context.Context, state ForkchoiceState, attrs *PayloadAttributes) (uint64, error) {
	return 42, nil
}

func (f *fakeChain) GetPayload(ctx context.Context, payloadID uint64) (ExecutionPayload, error) {
	return ExecutionPayload{BlockNumber: payloadID}, nil
}

func (f *fakeChain) GenesisHash(ctx context.Context) (common.Hash, error) { return common.Hash{}, nil }

func (f *fakeChain) ChainConfig(ctx context.Context) (map[string]any, error) { return f.chainConfig, nil }

func (f *fakeChain) TerminalTotalDifficulty(ctx context.Context) (*uint256.Int, error) {
	return f.ttd, nil
}

func TestForkchoiceUpdatedRejectsEmptyFinalizedHash(t *testing.T) {
	api := New(&fakeChain{forkchoiceStatus: StatusValid})
	_, _, err := api.ForkchoiceUpdatedV1(context.Background(), ForkchoiceState{
		HeadBlockHash: common.HexToHash("0x1"),
	}, nil)
	require.EqualError(t, err, "finalized block hash is empty")
}

func TestForkchoiceUpdatedRejectsEmptySafeHash(t *testing.T) {
	api := New(&fakeChain{forkchoiceStatus: StatusValid})
	_, _, err := api.ForkchoiceUpdatedV1(context.Background(), ForkchoiceState{
		HeadBlockHash:      common.HexToHash("0x1"),
		FinalizedBlockHash: common.HexToHash("0x2"),
	}, nil)
	require.EqualError(t, err, "safe block hash is empty")
}

func TestForkchoiceUpdatedBuildsPayloadWhenAttrsGiven(t *testing.T) {
	api := New(&fakeChain{forkchoiceStatus: StatusValid})
	state := ForkchoiceState{
		HeadBlockHash:      common.HexToHash("0x1"),
		FinalizedBlockHash: common.HexToHash("0x2"),
		SafeBlockHash:      common.HexToHash("0x3"),
	}
	status, payloadID, err := api.ForkchoiceUpdatedV1(context.Background(), state, &PayloadAttributes{Timestamp: 100})
	require.NoError(t, err)
	require.Equal(t, StatusValid, status)
	require.NotNil(t, payloadID)
	require.Equal(t, uint64(42), *payloadID)
}

func TestExchangeTransitionConfigurationRejectsMissingTTD(t *testing.T) {
	api := New(&fakeChain{})
	_, err := api.ExchangeTransitionConfigurationV1(context.Background(), uint256.NewInt(100), 0)
	require.EqualError(t, err, "execution layer does not have terminal total difficulty")
}

func TestExchangeTransitionConfigurationRejectsMismatchedTTD(t *testing.T) {
	api := New(&fakeChain{ttd: uint256.NewInt(100)})
	_, err := api.ExchangeTransitionConfigurationV1(context.Background(), uint256.NewInt(200), 0)
	require.EqualError(t, err, "incorrect terminal total difficulty")
}

func TestExchangeTransitionConfigurationRejectsNonZeroTerminalBlockNumber(t *testing.T) {
	api := New(&fakeChain{ttd: uint256.NewInt(100)})
	_, err := api.ExchangeTransitionConfigurationV1(context.Background(), uint256.NewInt(100), 5)
	require.EqualError(t, err, "consensus layer terminal block number is not zero")
}

func TestExchangeTransitionConfigurationAccepts(t *testing.T) {
	api := New(&fakeChain{ttd: uint256.NewInt(100)})
	ttd, err := api.ExchangeTransitionConfigurationV1(context.Background(), uint256.NewInt(100), 0)
	require.NoError(t, err)
	require.True(t, ttd.Eq(uint256.NewInt(100)))
}

func TestActiveForkResolvesFromChainConfig(t *testing.T) {
	api := New(&fakeChain{chainConfig: map[string]any{
		"homesteadBlock": 0,
		"eip150Block":    0,
		"eip155Block":    0,
		"eip158Block":    0,
		"byzantiumBlock": 0,
		"londonBlock":    100,
	}})
	fork, err := api.ActiveFork(context.Background(), 150, 0)
	require.NoError(t, err)
	require.EqualValues(t, "london", fork)
}

func TestAuthProviderValidatesToken(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	provider := NewAuthProvider(secret)
	require.NoError(t, provider.Validate(signed))
}

func TestAuthProviderRejectsWrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
	})
	signed, err := token.SignedString([]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	require.NoError(t, err)

	provider := NewAuthProvider([]byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	require.Error(t, provider.Validate(signed))
}
