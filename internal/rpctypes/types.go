// Package rpctypes holds the wire-adjacent domain types shared across the
// daemon's components: key-value pairs, view identifiers, trace frames and
// the JSON-RPC call parameter shape. Grounded on silkworm/silkrpc's
// types/ headers (chain_config.hpp, call.cpp) and the spec's §3 data model.
package rpctypes

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// KV is an ordered key-value pair as returned by a cursor operation.
type KV struct {
	Key   []byte
	Value []byte
}

// ViewId is the remote KV transaction's monotonically non-decreasing
// snapshot identifier (spec §3).
type ViewId uint64

// Call is the eth_call / trace_call / eth_estimateGas parameter shape.
type Call struct {
	From                 *common.Address
	To                   *common.Address
	Gas                  *uint64
	GasPrice             *uint256.Int
	MaxPriorityFeePerGas *uint256.Int
	MaxFeePerGas         *uint256.Int
	Value                *uint256.Int
	Data                 []byte
}

// ChainConfig pairs the genesis hash with the raw chain-config JSON blob
// read from the Config table, mirroring silkrpc::ChainConfig.
type ChainConfig struct {
	GenesisHash common.Hash
	Raw         map[string]any
}

// TraceAction is the "action" field of a trace frame (spec §3).
type TraceAction struct {
	CallType *string
	From     common.Address
	To       *common.Address
	Gas      uint64
	Input    []byte
	Init     []byte
	Value    uint256.Int
}

// TraceResult is the optional "result" field of a trace frame.
type TraceResult struct {
	Address *common.Address
	Code    []byte
	Output  []byte
	GasUsed uint64
}

// RewardAction describes a block-reward pseudo-trace.
type RewardAction struct {
	Author     common.Address
	RewardType string
	Value      uint256.Int
}

// Trace is one entry in a produced trace: a call/create frame, identified by
// TraceAddress, or a reward frame carried in Reward.
type Trace struct {
	Type             string // "call", "create", or "reward"
	Action           *TraceAction
	Reward           *RewardAction
	Result           *TraceResult
	Error            string
	SubTraces        int
	TraceAddress     []int
	BlockHash        common.Hash
	BlockNumber      uint64
	TransactionHash  *common.Hash
	TransactionPosition *int
}

// AccountChangeAction enumerates the kinds of mutation carried by a
// state-change batch (spec §3).
type AccountChangeAction int

const (
	ActionUpsert AccountChangeAction = iota
	ActionUpsertCode
	ActionRemove
	ActionStorage
	ActionCode
)

// StorageChange is one storage delta within an AccountChange.
type StorageChange struct {
	Location common.Hash
	Data     []byte
}

// AccountChange is one per-address record within a ChangeBatch.
type AccountChange struct {
	Address        common.Address
	Action         AccountChangeAction
	Data           []byte
	Code           []byte
	Incarnation    uint64
	StorageChanges []StorageChange
}

// ChangeBatch groups the AccountChanges produced for one block.
type ChangeBatch struct {
	BlockHeight uint64
	BlockHash   common.Hash
	Changes     []AccountChange
}

// StateChangeBatch is the full payload of one state-change subscription
// message: the view identifier it produces plus the per-block batches.
type StateChangeBatch struct {
	DatabaseViewId ViewId
	ChangeBatch    []ChangeBatch
}
