// Package forkschedule resolves which protocol fork is active at a given
// block/timestamp from a chain's configuration. Adapted from
// clydemeng-bsc's core/vm.SpecID, which mapped go-ethereum's ChainConfig
// predicates onto the numeric spec IDs its REVM FFI layer understood; this
// daemon has no embedded VM to hand an ID to, so the mapping is kept for
// its real remaining purpose here: reporting which named fork is active
// for engine API validation and trace/debug responses, without
// constructing or stepping an interpreter at all.
package forkschedule

import (
	"math/big"

	"github.com/ethereum/go-ethereum/params"
)

// Fork names this daemon reports, ordered oldest to newest.
type Fork string

const (
	Frontier        Fork = "frontier"
	Homestead       Fork = "homestead"
	TangerineWhistle Fork = "tangerine_whistle"
	SpuriousDragon  Fork = "spurious_dragon"
	Byzantium       Fork = "byzantium"
	Constantinople  Fork = "constantinople"
	Petersburg      Fork = "petersburg"
	Istanbul        Fork = "istanbul"
	Berlin          Fork = "berlin"
	London          Fork = "london"
	ArrowGlacier    Fork = "arrow_glacier"
	GrayGlacier     Fork = "gray_glacier"
	Shanghai        Fork = "shanghai"
	Cancun          Fork = "cancun"
)

// Resolve returns the active fork name for cfg at the given block number
// and timestamp, checking from newest to oldest exactly as
// params.ChainConfig's own Is* predicates are meant to be chained. Stops
// at Cancun: Prague and Osaka predicates are not part of the go-ethereum
// release this module depends on (go.mod pins v1.13.14), unlike the
// teacher's own in-tree fork of go-ethereum where core/vm.SpecID was
// grounded and could reach ahead of upstream.
func Resolve(cfg *params.ChainConfig, blockNumber uint64, timestamp uint64) Fork {
	bn := new(big.Int).SetUint64(blockNumber)
	switch {
	case cfg.IsCancun(bn, timestamp):
		return Cancun
	case cfg.IsShanghai(bn, timestamp):
		return Shanghai
	case cfg.IsLondon(bn):
		if cfg.IsGrayGlacier(bn) {
			return GrayGlacier
		}
		if cfg.IsArrowGlacier(bn) {
			return ArrowGlacier
		}
		return London
	case cfg.IsBerlin(bn):
		return Berlin
	case cfg.IsIstanbul(bn):
		return Istanbul
	case cfg.IsPetersburg(bn):
		return Petersburg
	case cfg.IsConstantinople(bn):
		return Constantinople
	case cfg.IsByzantium(bn):
		return Byzantium
	case cfg.IsEIP158(bn):
		return SpuriousDragon
	case cfg.IsEIP150(bn):
		return TangerineWhistle
	case cfg.IsHomestead(bn):
		return Homestead
	default:
		return Frontier
	}
}
