package tracers

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// accountSnapshot is one address's carried-forward view within a block.
type accountSnapshot struct {
	balance *uint256.Int
	nonce   uint64
	code    []byte
}

// IntraBlockStateTracer threads account state across a block's
// transactions in execution order: balance/nonce/code mutations from
// transaction N are visible to transaction N+1 within the same block,
// without a round trip back to the database (spec §4.9
// "intra_block_state"), so state the block itself already mutated is not
// re-read. Grounded on
// evm_trace.cpp's StateAddresses helper, generalized to carry state
// across the whole block rather than one call.
type IntraBlockStateTracer struct {
	noopHooks

	base     StateAccessor
	overlay  map[common.Address]*accountSnapshot
}

// NewIntraBlockStateTracer wraps base, the state as of the block's parent.
func NewIntraBlockStateTracer(base StateAccessor) *IntraBlockStateTracer {
	return &IntraBlockStateTracer{base: base, overlay: make(map[common.Address]*accountSnapshot)}
}

func (t *IntraBlockStateTracer) snapshot(addr common.Address) *accountSnapshot {
	if s, ok := t.overlay[addr]; ok {
		return s
	}
	s := &accountSnapshot{balance: t.base.Balance(addr), nonce: t.base.Nonce(addr), code: t.base.Code(addr)}
	t.overlay[addr] = s
	return s
}

// Balance, Nonce and Code answer from the overlay if a prior transaction
// in this block touched addr, falling back to the parent-block state
// otherwise. This makes IntraBlockStateTracer itself a StateAccessor,
// suitable as the "before" view for the next transaction's StateDiffTracer.
func (t *IntraBlockStateTracer) Balance(addr common.Address) *uint256.Int { return t.snapshot(addr).balance }
func (t *IntraBlockStateTracer) Nonce(addr common.Address) uint64        { return t.snapshot(addr).nonce }
func (t *IntraBlockStateTracer) Code(addr common.Address) []byte         { return t.snapshot(addr).code }
func (t *IntraBlockStateTracer) Storage(addr common.Address, key common.Hash) common.Hash {
	return t.base.Storage(addr, key)
}

// SetBalance, SetNonce and SetCode apply a completed transaction's effects
// to the overlay, called by whoever drives the block once it has computed
// the transaction's post-state (this tracer does not itself execute the EVM
// or decode receipts).
func (t *IntraBlockStateTracer) SetBalance(addr common.Address, balance *uint256.Int) {
	t.snapshot(addr).balance = balance
}

func (t *IntraBlockStateTracer) SetNonce(addr common.Address, nonce uint64) {
	t.snapshot(addr).nonce = nonce
}

func (t *IntraBlockStateTracer) SetCode(addr common.Address, code []byte) {
	t.snapshot(addr).code = code
}
