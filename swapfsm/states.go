package swapfsm

import (
	"github.com/mwswap/swapd/fsm"
	"github.com/mwswap/swapd/swap"
)

// Events. EvUpdate is the generic "something may have changed, re-evaluate
// the current state" tick shared by every non-terminal state (spec §5:
// UpdateOnNextTip, update_async, and message delivery all reduce to this).
const (
	EvUpdate fsm.EventType = "Update"

	EvHandshakeDone     fsm.EventType = "HandshakeDone"
	EvLockConstructed   fsm.EventType = "LockConstructed"
	EvRefundConstructed fsm.EventType = "RefundConstructed"
	EvRedeemConstructed fsm.EventType = "RedeemConstructed"
	EvContractHandled   fsm.EventType = "ContractHandled"

	// EvLockConfirmed is returned by SendingNativeLockTx's action for
	// the native-side owner once its own Lock kernel confirms.
	EvLockConfirmed fsm.EventType = "LockConfirmed"

	// EvForeignSideLockConfirmed is the same observation, returned
	// instead for the foreign-side party, so the two roles can be
	// routed to different next states from the same source state.
	EvForeignSideLockConfirmed fsm.EventType = "ForeignSideLockConfirmed"

	// EvRedeemSent fires once a Redeem sub-tx (native or foreign)
	// confirms.
	EvRedeemSent fsm.EventType = "RedeemSent"

	// EvForeignRedeemObserved fires once the foreign-side party's own
	// foreign redeem has been broadcast, moving it into its confirming
	// sub-state.
	EvForeignRedeemObserved fsm.EventType = "ForeignRedeemObserved"

	// EvNativeLockExpired fires when the native-side owner's wait for
	// the foreign-side party's secret reveal runs past MaxHeight.
	EvNativeLockExpired fsm.EventType = "NativeLockExpired"

	// EvNativeRefundSent fires once the native Refund kernel confirms.
	EvNativeRefundSent fsm.EventType = "NativeRefundSent"

	EvCancel fsm.EventType = "Cancel"

	// EvFailToFailed is the generic failure route: no unwind is
	// possible or necessary, go straight to Failed (spec §4.5.3).
	EvFailToFailed fsm.EventType = "FailToFailed"

	// EvFailToNativeRefund routes a failure to the native-side owner's
	// already-finalized Refund kernel instead of abandoning the swap
	// outright (spec §4.5.3).
	EvFailToNativeRefund fsm.EventType = "FailToNativeRefund"

	// EvRollbackToNativeLock rewinds a swap whose Lock kernel proof was
	// invalidated by a reorg back to SendingNativeLockTx (spec §4.5.2).
	EvRollbackToNativeLock fsm.EventType = "RollbackToNativeLock"

	// EvRollbackToNativeRefund rewinds a swap whose Refund kernel proof
	// was invalidated by a reorg back to SendingNativeRefundTx (spec
	// §4.5.2).
	EvRollbackToNativeRefund fsm.EventType = "RollbackToNativeRefund"

	// EvFailToForeignRedeem routes an OnFailed call against the
	// foreign-side party while it is still waiting on the native lock's
	// confirmation: its own foreign funds are already exposed, so it
	// moves on to claim them rather than abandoning the swap outright
	// (spec §4.5.3).
	EvFailToForeignRedeem fsm.EventType = "FailToForeignRedeem"
)

// topStates translates every swap.TopState into its fsm.StateType, a pure
// relabeling since swap.TopState already carries the diagram's literal
// names (spec §4.5).
func topState(s swap.TopState) fsm.StateType {
	return fsm.StateType(s)
}

// buildStates assembles the full state diagram (spec §4.5) for one FSM
// instance. It is built per-instance, not package level, because each
// state's Action closes over f.
func (f *FSM) buildStates() fsm.States {
	nonTerminalCancel := fsm.Transitions{EvCancel: topState(swap.StateCanceled)}

	states := fsm.States{
		topState(swap.StateInitial): {
			Action: f.actionInitial,
			Transitions: merge(nonTerminalCancel, fsm.Transitions{
				EvUpdate:        topState(swap.StateInitial),
				EvHandshakeDone: topState(swap.StateBuildingNativeLockTx),
				EvFailToFailed:  topState(swap.StateFailed),
			}),
		},
		topState(swap.StateBuildingNativeLockTx): {
			Action: f.actionBuildingNativeLockTx,
			Transitions: merge(nonTerminalCancel, fsm.Transitions{
				EvUpdate:          topState(swap.StateBuildingNativeLockTx),
				EvLockConstructed: topState(swap.StateBuildingNativeRefundTx),
				EvFailToFailed:    topState(swap.StateFailed),
			}),
		},
		topState(swap.StateBuildingNativeRefundTx): {
			Action: f.actionBuildingNativeRefundTx,
			Transitions: merge(nonTerminalCancel, fsm.Transitions{
				EvUpdate:            topState(swap.StateBuildingNativeRefundTx),
				EvRefundConstructed: topState(swap.StateBuildingNativeRedeemTx),
				EvFailToFailed:      topState(swap.StateFailed),
			}),
		},
		topState(swap.StateBuildingNativeRedeemTx): {
			Action: f.actionBuildingNativeRedeemTx,
			Transitions: merge(nonTerminalCancel, fsm.Transitions{
				EvUpdate:            topState(swap.StateBuildingNativeRedeemTx),
				EvRedeemConstructed: topState(swap.StateHandlingContractTx),
				EvFailToFailed:      topState(swap.StateFailed),
			}),
		},
		topState(swap.StateHandlingContractTx): {
			// Cancellation of this state is honored only for the
			// foreign-side party (spec §4.5.1); Cancel enforces
			// this before ever sending EvCancel, so the
			// transition itself is unconditional.
			Action: f.actionHandlingContractTx,
			Transitions: merge(nonTerminalCancel, fsm.Transitions{
				EvUpdate:          topState(swap.StateHandlingContractTx),
				EvContractHandled: topState(swap.StateSendingNativeLockTx),
				EvFailToFailed:    topState(swap.StateFailed),
			}),
		},
		topState(swap.StateSendingNativeLockTx): {
			Action: f.actionSendingNativeLockTx,
			Transitions: fsm.Transitions{
				EvUpdate:                   topState(swap.StateSendingNativeLockTx),
				EvLockConfirmed:            topState(swap.StateSendingNativeRedeemTx),
				EvForeignSideLockConfirmed: topState(swap.StateSendingRefundTX),
				EvFailToFailed:             topState(swap.StateFailed),
				EvFailToForeignRedeem:      topState(swap.StateSendingRefundTX),
			},
		},
		topState(swap.StateSendingNativeRedeemTx): {
			Action: f.actionSendingNativeRedeemTx,
			Transitions: fsm.Transitions{
				EvUpdate:               topState(swap.StateSendingNativeRedeemTx),
				EvRedeemSent:           topState(swap.StateCompleteSwap),
				EvNativeLockExpired:    topState(swap.StateSendingNativeRefundTx),
				EvFailToFailed:         topState(swap.StateFailed),
				EvFailToNativeRefund:   topState(swap.StateSendingNativeRefundTx),
				EvRollbackToNativeLock: topState(swap.StateSendingNativeLockTx),
			},
		},
		topState(swap.StateSendingRefundTX): {
			Action: f.actionSendingRefundTX,
			Transitions: fsm.Transitions{
				EvUpdate:                topState(swap.StateSendingRefundTX),
				EvForeignRedeemObserved: topState(swap.StateSendingRedeemTX),
				EvFailToFailed:          topState(swap.StateFailed),
			},
		},
		topState(swap.StateSendingRedeemTX): {
			Action: f.actionSendingRedeemTX,
			Transitions: fsm.Transitions{
				EvUpdate:       topState(swap.StateSendingRedeemTX),
				EvRedeemSent:   topState(swap.StateCompleteSwap),
				EvFailToFailed: topState(swap.StateFailed),
			},
		},
		topState(swap.StateSendingNativeRefundTx): {
			Action: f.actionSendingNativeRefundTx,
			Transitions: fsm.Transitions{
				EvUpdate:               topState(swap.StateSendingNativeRefundTx),
				EvNativeRefundSent:     topState(swap.StateRefunded),
				EvFailToFailed:         topState(swap.StateFailed),
				EvRollbackToNativeLock: topState(swap.StateSendingNativeLockTx),
			},
		},
		topState(swap.StateCompleteSwap): {
			Action: fsm.NoOpAction,
			Transitions: fsm.Transitions{
				EvRollbackToNativeLock: topState(swap.StateSendingNativeLockTx),
			},
		},
		topState(swap.StateCanceled): {
			Action:      fsm.NoOpAction,
			Transitions: fsm.Transitions{},
		},
		topState(swap.StateFailed): {
			Action:      fsm.NoOpAction,
			Transitions: fsm.Transitions{},
		},
		topState(swap.StateRefunded): {
			Action: fsm.NoOpAction,
			Transitions: fsm.Transitions{
				EvRollbackToNativeLock:   topState(swap.StateSendingNativeLockTx),
				EvRollbackToNativeRefund: topState(swap.StateSendingNativeRefundTx),
			},
		},
	}

	return states
}

func merge(base fsm.Transitions, more fsm.Transitions) fsm.Transitions {
	out := make(fsm.Transitions, len(base)+len(more))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range more {
		out[k] = v
	}

	return out
}
