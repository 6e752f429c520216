package swap

// SubTxID identifies one of the native-chain sub-transactions that make up
// a swap, or the default/top-level partition of the Parameter Store.
type SubTxID uint8

const (
	// SubTxDefault is the top-level partition holding swap-wide
	// parameters not scoped to any single sub-tx.
	SubTxDefault SubTxID = iota

	// SubTxNativeLock is the sub-tx that funds the shared 2-of-2 output.
	SubTxNativeLock

	// SubTxNativeRedeem is the sub-tx that spends the shared output to
	// its recipient after cooperation.
	SubTxNativeRedeem

	// SubTxNativeRefund is the sub-tx that spends the shared output back
	// to its funder after the Lock's MaxHeight.
	SubTxNativeRefund
)

// String returns the log/debug name of the sub-tx id.
func (s SubTxID) String() string {
	switch s {
	case SubTxDefault:
		return "Default"
	case SubTxNativeLock:
		return "NativeLock"
	case SubTxNativeRedeem:
		return "NativeRedeem"
	case SubTxNativeRefund:
		return "NativeRefund"
	default:
		return "Unknown"
	}
}

// SubTxState is the construction/broadcast progress of a single sub-tx,
// tracked independently of the top-level swap state (see design note in
// spec §9: state/sub-state composition is never collapsed).
type SubTxState uint8

const (
	// SubTxStateInit means no construction has started.
	SubTxStateInit SubTxState = iota

	// SubTxStateConstructed means the transaction bytes exist locally
	// but its kernel signature is not yet a valid aggregate (this is
	// where an unrevealed Redeem sits on the native side, see §4.3).
	SubTxStateConstructed

	// SubTxStateSigExchanged means both partial signatures have been
	// exchanged and validated.
	SubTxStateSigExchanged

	// SubTxStateRegistered means the transaction was submitted to the
	// node gateway.
	SubTxStateRegistered

	// SubTxStateConfirmed means the kernel has a proof at some height.
	SubTxStateConfirmed

	// SubTxStateFailed means construction or registration failed and
	// will not be retried.
	SubTxStateFailed
)

// String returns the log/debug name of the sub-tx state.
func (s SubTxState) String() string {
	switch s {
	case SubTxStateInit:
		return "Init"
	case SubTxStateConstructed:
		return "Constructed"
	case SubTxStateSigExchanged:
		return "SigExchanged"
	case SubTxStateRegistered:
		return "Registered"
	case SubTxStateConfirmed:
		return "Confirmed"
	case SubTxStateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// RegistrationCode mirrors the node gateway's TransactionRegistered report
// (spec §6.3).
type RegistrationCode uint8

const (
	// RegUnspecified means the gateway has not yet reported a code.
	RegUnspecified RegistrationCode = iota

	// RegOk means the kernel was accepted into the mempool/mined.
	RegOk

	// RegInvalidContext means the kernel was rejected as invalid given
	// current chain state. Whether this fails the sub-tx depends on
	// whether the kernel was previously seen unconfirmed (§6.3).
	RegInvalidContext

	// RegOther is any other non-Ok code, which fails the sub-tx
	// immediately.
	RegOther
)

// Status is the user-visible swap status (spec §7).
type Status uint8

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusCanceled
	StatusFailed
)

// String returns the display name of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "InProgress"
	case StatusCompleted:
		return "Completed"
	case StatusCanceled:
		return "Canceled"
	case StatusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}
