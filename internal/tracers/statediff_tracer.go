package tracers

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// DiffValue is one changed field's before/after pair, or the Same
// sentinel when a touched field turned out unchanged (spec §4.9
// "state_diff elision"). A born value sets Born and After, a died value
// sets Died and Before, and a changed value sets Before and After.
type DiffValue struct {
	Same    bool
	Born    bool
	Died    bool
	Before  []byte
	After   []byte
}

// AccountDiff is the full per-address entry in a state_diff result.
type AccountDiff struct {
	Balance       DiffValue
	BalanceReason BalanceChangeReason
	Nonce         DiffValue
	Code          DiffValue
	Storage       map[common.Hash]DiffValue
}

// StateAccessor reads account/storage state as of both ends of a
// transaction's execution, supplied by the caller since the tracer itself
// never talks to storage directly.
type StateAccessor interface {
	Balance(addr common.Address) *uint256.Int
	Nonce(addr common.Address) uint64
	Code(addr common.Address) []byte
	Storage(addr common.Address, key common.Hash) common.Hash
}

// StateDiffTracer records every address touched during execution and,
// once Finalize is called with before/after accessors, produces the
// state_diff result with Same entries elided per field (spec §4.9).
// Grounded on evm_trace.cpp's StateDiffTracer.
type StateDiffTracer struct {
	noopHooks

	touched        map[common.Address]struct{}
	touchedStorage map[common.Address]map[common.Hash]struct{}
	balanceReasons map[common.Address]BalanceChangeReason
}

// NewStateDiffTracer starts an empty touch set.
func NewStateDiffTracer() *StateDiffTracer {
	return &StateDiffTracer{
		touched:        make(map[common.Address]struct{}),
		touchedStorage: make(map[common.Address]map[common.Hash]struct{}),
		balanceReasons: make(map[common.Address]BalanceChangeReason),
	}
}

func (t *StateDiffTracer) touch(addr common.Address) {
	t.touched[addr] = struct{}{}
}

// RecordBalanceChange attributes addr's balance change to reason, called
// as the caller observes value transfers, precompile costs,
// fees, and rewards. The last reason recorded for an address wins, which is
// sufficient for state_diff's purposes: one explanatory tag per account,
// not a full ledger of every change.
func (t *StateDiffTracer) RecordBalanceChange(addr common.Address, reason BalanceChangeReason) {
	t.touch(addr)
	t.balanceReasons[addr] = reason
}

// OnExecutionStart marks both parties to a call as touched: a balance
// transfer (or attempted one) always makes both addresses candidates for
// the diff, even if the call itself later fails.
func (t *StateDiffTracer) OnExecutionStart(depth int, kind CallKind, from, to common.Address, gas uint64, value *uint256.Int, input []byte) {
	t.touch(from)
	t.touch(to)
}

func (t *StateDiffTracer) OnCreationCompleted(addr common.Address, code []byte) {
	t.touch(addr)
}

// TouchStorage records a storage slot accessed by SSTORE/SLOAD, supplied
// by the caller when it observes one (the tracer has no opcode decoding of
// its own).
func (t *StateDiffTracer) TouchStorage(addr common.Address, key common.Hash) {
	t.touch(addr)
	if t.touchedStorage[addr] == nil {
		t.touchedStorage[addr] = make(map[common.Hash]struct{})
	}
	t.touchedStorage[addr][key] = struct{}{}
}

// Finalize compares pre/post state for every touched address and produces
// the state_diff map, eliding any field whose before/after values are
// identical down to a Same marker rather than omitting the field
// entirely (silkrpc emits an explicit "=" sentinel for unchanged fields).
func (t *StateDiffTracer) Finalize(before, after StateAccessor) map[common.Address]AccountDiff {
	out := make(map[common.Address]AccountDiff, len(t.touched))
	for addr := range t.touched {
		diff := AccountDiff{
			Balance:       diffUint256(before.Balance(addr), after.Balance(addr)),
			BalanceReason: t.balanceReasons[addr],
			Nonce:         diffUint64(before.Nonce(addr), after.Nonce(addr)),
			Code:          diffBytes(before.Code(addr), after.Code(addr)),
		}
		if keys := t.touchedStorage[addr]; len(keys) > 0 {
			diff.Storage = make(map[common.Hash]DiffValue, len(keys))
			for key := range keys {
				b, a := before.Storage(addr, key), after.Storage(addr, key)
				diff.Storage[key] = diffBytes(b.Bytes(), a.Bytes())
			}
		}
		out[addr] = diff
	}
	return out
}

func diffUint256(before, after *uint256.Int) DiffValue {
	if before == nil {
		before = uint256.NewInt(0)
	}
	if after == nil {
		after = uint256.NewInt(0)
	}
	return diffBytes(before.Bytes(), after.Bytes())
}

func diffUint64(before, after uint64) DiffValue {
	if before == after {
		return DiffValue{Same: true}
	}
	return DiffValue{Before: uint64ToBytes(before), After: uint64ToBytes(after)}
}

func uint64ToBytes(v uint64) []byte {
	return uint256.NewInt(v).Bytes()
}

func diffBytes(before, after []byte) DiffValue {
	if bytesEqual(before, after) {
		return DiffValue{Same: true}
	}
	if len(before) == 0 {
		return DiffValue{Born: true, After: after}
	}
	if len(after) == 0 {
		return DiffValue{Died: true, Before: before}
	}
	return DiffValue{Before: before, After: after}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
