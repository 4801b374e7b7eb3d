// Package gasprice implements the gas-price oracle (spec §4.8, C8):
// sampling recent blocks' transaction priority fees and proposing
// eth_gasPrice's answer as a percentile over the pooled samples. Grounded
// on silkworm/silkrpc's core/gas_price_oracle.cpp and .hpp, constants and
// algorithm included.
package gasprice

import (
	"context"
	"math/big"
	"sort"

	"github.com/holiman/uint256"
)

const (
	checkBlocks     = 20
	samplesPerBlock = 3
	maxSamples      = checkBlocks * samplesPerBlock // 60, the oracle's sample pool ceiling
	percentile      = 60
)

// DefaultPrice, MinPrice and MaxPrice bound the oracle's answer (spec
// §4.8).
var (
	DefaultPrice = uint256.NewInt(0)
	MinPrice     = uint256.NewInt(2) // 2 wei
	MaxPrice, _  = uint256.FromBig(new(big.Int).Mul(big.NewInt(500), big.NewInt(1_000_000_000)))
)

// Block is the minimal per-block view the oracle samples from: the set of
// transaction priority fees paid, excluding the block's own beneficiary
// (miner-submitted transactions are not competitive market signals, spec
// §4.8 "Exclusions").
type Block struct {
	Number           uint64
	BaseFee          *uint256.Int
	PriorityFees     []*uint256.Int // in any order; sampleBlock sorts a copy
}

// ChainReader supplies blocks to walk backward from head.
type ChainReader interface {
	BlockByNumber(ctx context.Context, number uint64) (Block, error)
	HeadNumber(ctx context.Context) (uint64, error)
}

// Oracle samples up to checkBlocks recent blocks, taking the lowest
// samplesPerBlock priority fees from each (skipping fees below MinPrice),
// pools up to maxSamples total, and returns the percentile-th value.
type Oracle struct {
	chain ChainReader
}

// New binds an oracle to a chain reader.
func New(chain ChainReader) *Oracle {
	return &Oracle{chain: chain}
}

// SuggestPrice implements eth_gasPrice (spec §4.8).
func (o *Oracle) SuggestPrice(ctx context.Context) (*uint256.Int, error) {
	head, err := o.chain.HeadNumber(ctx)
	if err != nil {
		return nil, err
	}

	var samples []*uint256.Int
	blocksWalked := 0
	for n := head; blocksWalked < checkBlocks; {
		block, err := o.chain.BlockByNumber(ctx, n)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sampleBlock(block)...)
		blocksWalked++
		if n == 0 {
			break
		}
		n--
	}

	if len(samples) == 0 {
		return new(uint256.Int).Set(DefaultPrice), nil
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].Lt(samples[j]) })
	idx := (len(samples) - 1) * percentile / 100
	price := new(uint256.Int).Set(samples[idx])
	if price.Gt(MaxPrice) {
		price.Set(MaxPrice)
	}
	return price, nil
}

// sampleBlock takes the lowest samplesPerBlock priority fees from block,
// excluding fees below MinPrice (spec §4.8). The fees are sorted ascending
// once per block, on a copy so b.PriorityFees is left untouched.
func sampleBlock(b Block) []*uint256.Int {
	fees := append([]*uint256.Int(nil), b.PriorityFees...)
	sort.Slice(fees, func(i, j int) bool { return fees[i].Lt(fees[j]) })
	var out []*uint256.Int
	for _, fee := range fees {
		if fee.Lt(MinPrice) {
			continue
		}
		out = append(out, fee)
		if len(out) == samplesPerBlock {
			break
		}
	}
	return out
}
