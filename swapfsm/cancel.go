package swapfsm

import "github.com/mwswap/swapd/swap"

// Cancel honors a local user's cancellation request, subject to the
// state-gated policy of spec §4.5.1: cancellation is only safe while no
// value has been committed on either chain. It returns nil whether or not
// the request was actually honored — an ignored cancellation is logged, not
// an error, since the caller's only alternative at that point is to wait
// for the refund machinery anyway.
func (f *FSM) Cancel() error {
	state := swap.TopState(f.CurrentState())

	switch state {
	case swap.StateInitial,
		swap.StateBuildingNativeLockTx,
		swap.StateBuildingNativeRefundTx,
		swap.StateBuildingNativeRedeemTx:

		// Always honored: nothing has been sent to either chain yet.

	case swap.StateHandlingContractTx:
		// Honored only for the foreign-side party: the native side has
		// nothing on-chain yet either, but it is this state's action
		// that drives the foreign-side party's own foreign lock
		// broadcast, so only that party can still back out cleanly.
		if f.Swap.Role.IsNativeSide() {
			f.Infof("cancel ignored in %v (native side has nothing to unwind, "+
				"but the foreign side may already have broadcast its lock)", state)
			return nil
		}

	default:
		f.Infof("cancel ignored in %v: value already committed, use the refund path", state)
		return nil
	}

	if err := f.SendEvent(EvCancel, nil); err != nil {
		return err
	}

	f.Infof("swap canceled by local request in %v", state)

	return nil
}
