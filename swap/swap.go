package swap

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

// TopState is the top-level state of the swap state machine (spec §4.5).
// It is kept as a plain string type here, rather than importing the fsm
// engine, so the data model has no dependency on how it is driven; the
// swapfsm package maps these one-to-one onto fsm.StateType values.
type TopState string

const (
	StateInitial                 TopState = "Initial"
	StateBuildingNativeLockTx    TopState = "BuildingNativeLockTx"
	StateBuildingNativeRefundTx  TopState = "BuildingNativeRefundTx"
	StateBuildingNativeRedeemTx  TopState = "BuildingNativeRedeemTx"
	StateHandlingContractTx      TopState = "HandlingContractTx"
	StateSendingNativeLockTx     TopState = "SendingNativeLockTx"
	StateSendingNativeRedeemTx   TopState = "SendingNativeRedeemTx"
	StateSendingRedeemTX         TopState = "SendingRedeemTX"
	StateSendingRefundTX         TopState = "SendingRefundTX"
	StateSendingNativeRefundTx   TopState = "SendingNativeRefundTx"
	StateCompleteSwap            TopState = "CompleteSwap"
	StateCanceled                TopState = "Canceled"
	StateFailed                  TopState = "Failed"
	StateRefunded                TopState = "Refunded"
)

// IsTerminal reports whether the state is one the swap never leaves (spec
// §3 invariant 1).
func (s TopState) IsTerminal() bool {
	switch s {
	case StateCompleteSwap, StateCanceled, StateFailed, StateRefunded:
		return true
	default:
		return false
	}
}

// Swap is the long-lived entity a swap coordinator advances turn by turn.
// Every field here is also mirrored into the Parameter Store so a crash can
// resume from persisted state (§3, "Lifecycle"); Swap itself is the
// in-memory working copy the state machine and builders operate on.
type Swap struct {
	// ID is this swap's unique identifier.
	ID ID

	// Role determines which chain this party owns and whether it
	// proposed the swap.
	Role Role

	// NativeAmount is the amount, in native-chain base units, moving on
	// the native chain.
	NativeAmount btcutil.Amount

	// ForeignAmount is the amount, in foreign-chain base units, moving
	// on the foreign chain.
	ForeignAmount btcutil.Amount

	// Fee is the native-chain transaction fee for the Lock/Redeem/Refund
	// sub-txs.
	Fee btcutil.Amount

	// MyID and PeerID are transport addresses, opaque to this package.
	MyID   string
	PeerID string

	// MinHeight is the native-chain height at which this swap's windows
	// start.
	MinHeight uint32

	// PeerResponseWindow is the number of native blocks the peer has to
	// answer before timeout.
	PeerResponseWindow uint32

	// NativeLockHeight is the height after which the shared output may
	// be refunded.
	NativeLockHeight uint32

	// ForeignLockTime is the unix timestamp after which the foreign HTLC
	// may be refunded.
	ForeignLockTime int64

	// TopState is the current top-level state machine state.
	TopState TopState

	// SubTxState is the construction/broadcast progress of each native
	// sub-tx, kept independently of TopState (spec §9 design note).
	SubTxState map[SubTxID]SubTxState

	// SecretPublicKey is the adaptor point S = s*G, known to both
	// parties once the Redeem construction round completes.
	SecretPublicKey *btcec.PublicKey

	// SecretPrivateKey is the adaptor scalar s. It starts out known only
	// to whichever party chose it (the foreign-side party) and is filled
	// in on the other side only once recovered from the preimage revealed
	// by the foreign HTLC redeem (spec invariant 5: never sent on the
	// wire).
	SecretPrivateKey *btcec.PrivateKey

	// AtomicSwapCoin names the foreign chain/coin, used to select an
	// Adapter from the registry.
	AtomicSwapCoin string

	// ProtoVersion is the negotiated peer protocol version.
	ProtoVersion ProtoVersion

	// Status is the user-visible summary of TopState.
	Status Status
}

// PeerResponseHeight is min_height + peer_response_window (spec §3).
func (s *Swap) PeerResponseHeight() uint32 {
	return s.MinHeight + s.PeerResponseWindow
}

// NewSwap constructs a Swap in its Initial state with empty sub-tx state.
func NewSwap(id ID, role Role) *Swap {
	return &Swap{
		ID:       id,
		Role:     role,
		TopState: StateInitial,
		Status:   StatusPending,
		SubTxState: map[SubTxID]SubTxState{
			SubTxNativeLock:   SubTxStateInit,
			SubTxNativeRedeem: SubTxStateInit,
			SubTxNativeRefund: SubTxStateInit,
		},
	}
}

// SubState returns the construction state of the given sub-tx, defaulting
// to SubTxStateInit if never set.
func (s *Swap) SubState(id SubTxID) SubTxState {
	if s.SubTxState == nil {
		return SubTxStateInit
	}

	return s.SubTxState[id]
}

// SetSubState records the construction state of the given sub-tx.
func (s *Swap) SetSubState(id SubTxID, state SubTxState) {
	if s.SubTxState == nil {
		s.SubTxState = make(map[SubTxID]SubTxState)
	}

	s.SubTxState[id] = state
}
