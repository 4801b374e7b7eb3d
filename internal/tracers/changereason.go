package tracers

// BalanceChangeReason classifies why a touched account's balance changed,
// adapted from clydemeng-bsc's tracing.BalanceChangeReason (there used to
// annotate go-ethereum's core/tracing.Hooks callbacks; the REVM-specific
// reasons that package added do not apply to this daemon, which never
// embeds a VM, so they are dropped here).
type BalanceChangeReason int

const (
	BalanceChangeUnspecified BalanceChangeReason = iota
	BalanceChangeNativeTransfer
	BalanceChangePrecompCost
	BalanceChangeReward
	BalanceChangeFee
	BalanceChangeRefund
)

func (r BalanceChangeReason) String() string {
	switch r {
	case BalanceChangeNativeTransfer:
		return "native_transfer"
	case BalanceChangePrecompCost:
		return "precomp_cost"
	case BalanceChangeReward:
		return "reward"
	case BalanceChangeFee:
		return "fee"
	case BalanceChangeRefund:
		return "refund"
	default:
		return "unspecified"
	}
}
