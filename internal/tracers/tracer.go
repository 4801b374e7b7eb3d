// Package tracers implements the EVM tracer hook contract and its four
// concrete tracers (spec §4.9, C9): call trace, VM trace, state diff and
// intra-block state. The EVM itself is an external collaborator — these
// tracers only ever react to the six lifecycle hooks it invokes; they
// never step the interpreter themselves. Grounded on silkworm/silkrpc's
// core/evm_trace.cpp.
package tracers

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// CallKind identifies how a nested execution was entered.
type CallKind int

const (
	KindCall CallKind = iota
	KindCallCode
	KindDelegateCall
	KindStaticCall
	KindCreate
	KindCreate2
)

func (k CallKind) String() string {
	switch k {
	case KindCallCode:
		return "callcode"
	case KindDelegateCall:
		return "delegatecall"
	case KindStaticCall:
		return "staticcall"
	case KindCreate:
		return "create"
	case KindCreate2:
		return "create2"
	default:
		return "call"
	}
}

func (k CallKind) isCreate() bool { return k == KindCreate || k == KindCreate2 }

// Status is the terminal condition an execution hook reports.
type Status int

const (
	StatusSuccess Status = iota
	StatusRevert
	StatusOutOfGas
	StatusStackOverflow
	StatusUndefinedInstruction
	StatusInvalidInstruction
	StatusStackUnderflow
	StatusBadJumpDestination
	StatusOther
)

// ErrorString renders a non-success status the way silkrpc's trace output
// does, literal strings carried over from evmc_status_code (spec §4.9
// "Error mapping").
func (s Status) ErrorString() string {
	switch s {
	case StatusRevert:
		return "Reverted"
	case StatusOutOfGas, StatusStackOverflow:
		return "Out of gas"
	case StatusUndefinedInstruction, StatusInvalidInstruction:
		return "Bad instruction"
	case StatusStackUnderflow:
		return "Stack underflow"
	case StatusBadJumpDestination:
		return "Bad jump destination"
	case StatusOther:
		return "Internal error"
	default:
		return ""
	}
}

// InstructionContext is the state visible at one instruction boundary.
type InstructionContext struct {
	PC      uint64
	Op      byte
	OpName  string
	Gas     uint64
	Depth   int
	Stack   []uint256.Int
	Memory  []byte
}

// Hooks is the six-method lifecycle contract every tracer implements. The
// trace executor (C10) invokes these directly from the external EVM
// collaborator's callback points; a tracer that doesn't care about a hook
// still must implement it (Go has no default-method interfaces), so every
// tracer embeds noopHooks and overrides only what it needs.
type Hooks interface {
	OnExecutionStart(depth int, kind CallKind, from, to common.Address, gas uint64, value *uint256.Int, input []byte)
	OnInstructionStart(ictx InstructionContext)
	OnExecutionEnd(depth int, gasUsed uint64, output []byte, status Status)
	OnPrecompiledRun(addr common.Address, gas uint64, success bool)
	OnCreationCompleted(addr common.Address, code []byte)
	OnRewardGranted(author common.Address, rewardType string, value *uint256.Int)
}

type noopHooks struct{}

func (noopHooks) OnExecutionStart(int, CallKind, common.Address, common.Address, uint64, *uint256.Int, []byte) {
}
func (noopHooks) OnInstructionStart(InstructionContext)                      {}
func (noopHooks) OnExecutionEnd(int, uint64, []byte, Status)                 {}
func (noopHooks) OnPrecompiledRun(common.Address, uint64, bool)              {}
func (noopHooks) OnCreationCompleted(common.Address, []byte)                 {}
func (noopHooks) OnRewardGranted(common.Address, string, *uint256.Int)       {}
