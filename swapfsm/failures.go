package swapfsm

import (
	"github.com/mwswap/swapd/fsm"
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/peermsg"
	"github.com/mwswap/swapd/swap"
)

// OnFailed routes a failure to the correct terminal or semi-terminal state
// for the swap's current top state (spec §4.5.3), notifying the peer first
// if notify is set. It is the single point every failure path — internal
// (CheckSubTxFailures) or peer-reported (CheckExternalFailures) — funnels
// through.
func (f *FSM) OnFailed(reason swap.ErrorKind, notify bool) error {
	if notify {
		f.send(KindFailureNotification, mustBundle(&peermsg.FailureNotification{
			SubTx:         swap.SubTxDefault,
			FailureReason: reason,
		}))
	}

	ev, ignored := f.failEvent()
	if ignored {
		f.Infof("failure %v ignored in %v: no safe unwind from here, "+
			"already committed", reason, f.CurrentState())
		return nil
	}

	return f.SendEvent(ev, nil)
}

// OnSubTxFailed is OnFailed's sub-tx-scoped counterpart: it de-duplicates
// against the sub-tx's already-recorded InternalFailureReason (spec §7) and,
// for a new failure, persists it, optionally notifies the peer with the
// sub-tx attached, and then applies the same top-state routing as OnFailed.
// Only safe to call from outside a running action (CheckSubTxFailures, the
// scheduler's pre-tick poll). See recordSubTxFailure for the
// action-reentrant equivalent, needed because SendEvent's mutex is not
// reentrant.
func (f *FSM) OnSubTxFailed(reason swap.ErrorKind, sub swap.SubTxID, notify bool) error {
	ev, err := f.recordSubTxFailure(reason, sub, notify)
	if err != nil {
		return err
	}
	if ev == fsm.NoOp {
		return nil
	}

	return f.SendEvent(ev, nil)
}

// recordSubTxFailure is OnSubTxFailed's body minus the final SendEvent: it
// de-duplicates, persists, and optionally notifies, then returns the event
// the caller should itself return from its action rather than dispatching
// it. Actions already run inside SendEvent's call chain, and SendEvent's
// mutex is not reentrant.
func (f *FSM) recordSubTxFailure(reason swap.ErrorKind, sub swap.SubTxID, notify bool) (fsm.EventType, error) {
	existing, ok, err := getParam(f, sub, swap.ParamInternalFailureReason, paramstore.ErrorKindCodec)
	if err != nil {
		return fsm.NoOp, err
	}
	if ok && existing == reason {
		return fsm.NoOp, nil
	}

	if err := setOne(f, sub, swap.ParamInternalFailureReason, reason, paramstore.ErrorKindCodec); err != nil {
		return fsm.NoOp, err
	}

	if notify {
		f.send(KindFailureNotification, mustBundle(&peermsg.FailureNotification{
			SubTx:         sub,
			FailureReason: reason,
		}))
	}

	ev, ignored := f.failEvent()
	if ignored {
		f.Infof("sub-tx failure %v/%v ignored in %v: no safe unwind from here",
			sub, reason, f.CurrentState())
		return fsm.NoOp, nil
	}

	return ev, nil
}

// CheckSubTxFailures polls sub's InternalFailureReason and raises it through
// OnSubTxFailed if present. The scheduler's tick polls it only for the
// native Lock, resolving the open question of spec §9's "LOCK_TX" label: it
// names the native Lock sub-tx, not a legacy alias for the foreign lock,
// which has no Parameter Store sub-tx partition of its own (SPEC_FULL §9).
// The withdraw sub-txs' registration failures are recorded by their own
// actions through failSubTx, and take the non-notify path per spec §6.3.
func (f *FSM) CheckSubTxFailures(sub swap.SubTxID) error {
	reason, ok, err := getParam(f, sub, swap.ParamInternalFailureReason, paramstore.ErrorKindCodec)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	notify := sub == swap.SubTxNativeLock

	return f.OnSubTxFailed(reason, sub, notify)
}

// CheckExternalFailures polls sub's peer-reported FailureReason (applied to
// the Parameter Store by Deliver's KindFailureNotification case) and routes
// it through OnFailed if present. notify is always false here: the peer
// that reported the failure already knows about it.
func (f *FSM) CheckExternalFailures(sub swap.SubTxID) error {
	reason, ok, err := getParam(f, sub, swap.ParamFailureReason, paramstore.ErrorKindCodec)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	return f.OnFailed(reason, false)
}

// failEvent maps the swap's current top state and role to the transition
// OnFailed/OnSubTxFailed should request, per spec §4.5.3. The second return
// value is true for a state with no safe unwind at all, in which case the
// failure is logged and otherwise ignored rather than forced into an
// incorrect transition.
func (f *FSM) failEvent() (ev fsm.EventType, ignored bool) {
	switch swap.TopState(f.CurrentState()) {
	case swap.StateInitial,
		swap.StateBuildingNativeLockTx,
		swap.StateBuildingNativeRefundTx,
		swap.StateBuildingNativeRedeemTx,
		swap.StateHandlingContractTx:

		// Nothing has reached either chain yet; abandon outright.
		return EvFailToFailed, false

	case swap.StateSendingNativeLockTx:
		if f.Swap.Role.IsNativeSide() {
			return EvFailToFailed, false
		}
		// The foreign-side party's own foreign lock is already live;
		// it moves on to claim its funds rather than abandon them.
		return EvFailToForeignRedeem, false

	case swap.StateSendingNativeRedeemTx:
		// Always the native-side owner in this implementation (spec
		// §4.5: only the native-side owner's EvLockConfirmed reaches
		// this state). The native Lock is already confirmed, so the
		// safe unwind is the already-finalized Refund path, the same
		// route an internal registration failure already takes.
		return EvFailToNativeRefund, false

	default:
		// SendingRefundTX, SendingRedeemTX, SendingNativeRefundTx, and
		// every terminal state: by this point a party's own
		// half of the swap is already broadcast or finalizing, with
		// no unwind left that wouldn't risk double-spending or losing
		// funds outright. Log and ignore, per spec §4.5.3's treatment
		// of the symmetric "unexpected" cases.
		return "", true
	}
}
