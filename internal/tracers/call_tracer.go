package tracers

import (
	"github.com/erigontech/rpcdaemon/internal/rpctypes"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type callFrame struct {
	trace    *rpctypes.Trace
	children int
}

// CallTracer builds the trace_* family's flat Trace list: one entry per
// call/create frame plus synthetic reward entries, each carrying its
// trace_address path and a running sub_traces count on its parent.
// Grounded on evm_trace.cpp's TraceTracer.
type CallTracer struct {
	noopHooks

	stack   []*callFrame
	results []rpctypes.Trace

	blockHash   common.Hash
	blockNumber uint64
	txHash      *common.Hash
	txPosition  *int
}

// NewCallTracer starts a tracer scoped to one transaction (or the
// synthetic block-reward pseudo-transaction, whose txHash is nil).
func NewCallTracer(blockHash common.Hash, blockNumber uint64, txHash *common.Hash, txPosition *int) *CallTracer {
	return &CallTracer{blockHash: blockHash, blockNumber: blockNumber, txHash: txHash, txPosition: txPosition}
}

// Traces returns every frame recorded so far, in emission order.
func (t *CallTracer) Traces() []rpctypes.Trace { return t.results }

func (t *CallTracer) currentAddress() []int {
	if len(t.stack) == 0 {
		return nil
	}
	parent := t.stack[len(t.stack)-1]
	addr := make([]int, 0, len(t.pathOf(parent))+1)
	addr = append(addr, t.pathOf(parent)...)
	addr = append(addr, parent.children)
	return addr
}

func (t *CallTracer) pathOf(f *callFrame) []int {
	if f == nil || f.trace == nil {
		return nil
	}
	return f.trace.TraceAddress
}

// OnExecutionStart opens a new call/create frame, assigning it the next
// trace_address under its parent and incrementing the parent's sub_traces
// (spec §4.9 "trace_address").
func (t *CallTracer) OnExecutionStart(depth int, kind CallKind, from, to common.Address, gas uint64, value *uint256.Int, input []byte) {
	path := t.currentAddress()

	callType := kind.String()
	action := &rpctypes.TraceAction{
		From:  from,
		Gas:   gas,
		Value: *value,
	}
	if kind.isCreate() {
		action.Init = input
	} else {
		action.CallType = &callType
		action.To = &to
		action.Input = input
	}

	trace := &rpctypes.Trace{
		Type:                traceType(kind),
		Action:              action,
		TraceAddress:        path,
		BlockHash:           t.blockHash,
		BlockNumber:         t.blockNumber,
		TransactionHash:     t.txHash,
		TransactionPosition: t.txPosition,
	}
	t.results = append(t.results, *trace)

	if len(t.stack) > 0 {
		t.stack[len(t.stack)-1].children++
	}
	t.stack = append(t.stack, &callFrame{trace: trace})
}

func traceType(kind CallKind) string {
	if kind.isCreate() {
		return "create"
	}
	return "call"
}

// OnExecutionEnd closes the current frame, recording either a result or an
// error string (spec §4.9 "Error mapping").
func (t *CallTracer) OnExecutionEnd(depth int, gasUsed uint64, output []byte, status Status) {
	if len(t.stack) == 0 {
		return
	}
	frame := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]

	idx := t.indexOf(frame.trace)
	if idx < 0 {
		return
	}
	trace := &t.results[idx]
	trace.SubTraces = frame.children
	if status == StatusSuccess {
		trace.Result = &rpctypes.TraceResult{Output: output, GasUsed: gasUsed}
	} else {
		trace.Error = status.ErrorString()
	}
}

func (t *CallTracer) indexOf(target *rpctypes.Trace) int {
	for i := range t.results {
		if &t.results[i] == target {
			return i
		}
	}
	// target is the frame's own Trace and results holds a copy of it, so
	// the pointer comparison above does not find it; match on its trace
	// address instead, which is unique within one trace.
	for i := range t.results {
		if pathsEqual(t.results[i].TraceAddress, target.TraceAddress) {
			return i
		}
	}
	return -1
}

func pathsEqual(a, b []int) bool {
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

// OnCreationCompleted records the deployed address and final code against
// the still-open create frame.
func (t *CallTracer) OnCreationCompleted(addr common.Address, code []byte) {
	if len(t.stack) == 0 {
		return
	}
	frame := t.stack[len(t.stack)-1]
	idx := t.indexOf(frame.trace)
	if idx < 0 {
		return
	}
	t.results[idx].Result = &rpctypes.TraceResult{Address: &addr, Code: code}
}

// OnRewardGranted appends a synthetic block-reward frame with no
// trace_address, matching original_source's placement of miner/uncle
// rewards alongside ordinary call traces (supplemented feature).
func (t *CallTracer) OnRewardGranted(author common.Address, rewardType string, value *uint256.Int) {
	t.results = append(t.results, rpctypes.Trace{
		Type:        "reward",
		Reward:      &rpctypes.RewardAction{Author: author, RewardType: rewardType, Value: *value},
		BlockHash:   t.blockHash,
		BlockNumber: t.blockNumber,
	})
}
