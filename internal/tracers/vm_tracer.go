package tracers

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// VmTraceOp is one decoded instruction step within a VmTrace (trace_call's
// "vmTrace" result, spec §4.9). Cost is derived by subtracting the gas
// remaining at the next instruction boundary from the gas remaining when
// this one started, since the EVM collaborator reports gas-remaining, not
// gas-consumed, at each hook (evm_trace.cpp's VmTraceTracer).
type VmTraceOp struct {
	PC   uint64
	Cost int
	Sub  *VmTrace
}

// VmTrace is one call/create frame's instruction trace, nested under its
// parent frame's triggering CALL/CREATE op.
type VmTrace struct {
	Ops []VmTraceOp
}

// vmFrame is one call/create level's in-progress trace plus the pending
// op awaiting its gas cost. Pending state lives per frame, not globally:
// a CALL's own cost is only known once execution returns to its depth,
// which may be arbitrarily many instructions after entering the subcall.
type vmFrame struct {
	trace       *VmTrace
	pendingOp   *VmTraceOp
	pendingGas  uint64
	havePending bool
}

// VmTracer builds the nested VmTrace tree. Frames are pushed on
// OnExecutionStart and popped on OnExecutionEnd, mirroring the call
// stack's own nesting exactly.
type VmTracer struct {
	noopHooks

	root  *VmTrace
	stack []*vmFrame
}

// NewVmTracer starts a tracer for one top-level call/create.
func NewVmTracer() *VmTracer {
	root := &VmTrace{}
	return &VmTracer{root: root, stack: []*vmFrame{{trace: root}}}
}

// Root returns the completed trace tree.
func (t *VmTracer) Root() *VmTrace { return t.root }

func (t *VmTracer) current() *vmFrame { return t.stack[len(t.stack)-1] }

// OnInstructionStart closes out this frame's previous pending op's gas
// cost (by subtraction) and opens a new pending op for the instruction
// about to execute.
func (t *VmTracer) OnInstructionStart(ictx InstructionContext) {
	cur := t.current()
	if cur.havePending {
		cur.pendingOp.Cost = int(cur.pendingGas) - int(ictx.Gas)
	}
	cur.trace.Ops = append(cur.trace.Ops, VmTraceOp{PC: ictx.PC})
	cur.pendingOp = &cur.trace.Ops[len(cur.trace.Ops)-1]
	cur.pendingGas = ictx.Gas
	cur.havePending = true
}

// OnExecutionStart, for anything past the outermost frame, opens a nested
// VmTrace attached to the instruction (CALL/CREATE/…) that triggered it.
// STATICCALL and DELEGATECALL carry no value transfer but still nest like
// any other call, matching evm_trace.cpp's uniform treatment of the four
// call opcodes plus CREATE/CREATE2.
func (t *VmTracer) OnExecutionStart(depth int, kind CallKind, from, to common.Address, gas uint64, value *uint256.Int, input []byte) {
	if depth == 0 {
		return
	}
	sub := &VmTrace{}
	parent := t.current()
	if parent.havePending {
		parent.pendingOp.Sub = sub
	}
	t.stack = append(t.stack, &vmFrame{trace: sub})
}

// OnExecutionEnd pops the current frame unless it is the outermost one:
// the parent frame's pending CALL op is left exactly as it was, and will
// have its cost filled in by the parent's next OnInstructionStart.
func (t *VmTracer) OnExecutionEnd(depth int, gasUsed uint64, output []byte, status Status) {
	if depth == 0 {
		return
	}
	if len(t.stack) > 1 {
		t.stack = t.stack[:len(t.stack)-1]
	}
}
