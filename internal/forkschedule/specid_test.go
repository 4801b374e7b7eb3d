package forkschedule

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
)

func TestResolvePicksNewestActiveFork(t *testing.T) {
	cfg := &params.ChainConfig{
		HomesteadBlock: big.NewInt(0),
		EIP150Block:    big.NewInt(0),
		EIP155Block:    big.NewInt(0),
		EIP158Block:    big.NewInt(0),
		ByzantiumBlock: big.NewInt(0),
		LondonBlock:    big.NewInt(100),
		ShanghaiTime:   u64ptr(1000),
	}

	require.Equal(t, Byzantium, Resolve(cfg, 50, 0))
	require.Equal(t, London, Resolve(cfg, 150, 0))
	require.Equal(t, Shanghai, Resolve(cfg, 150, 1000))
}

func u64ptr(v uint64) *uint64 { return &v }
