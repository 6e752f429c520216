package swapfsm

import (
	"github.com/mwswap/swapd/fsm"
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/swap"
)

// Rollback rewinds any sub-tx whose recorded kernel proof height exceeds
// toHeight, undoing the effect of a native-chain reorg (spec §4.5.2). The
// Parameter Store has no delete; "clearing" a proof height means
// overwriting it with the zero value, which FetchConfirmationHeight's
// callers treat the same as "never confirmed".
//
// Only the native-side owner persists a kernel proof height at all (Lock,
// Redeem and Refund; see actionSendingNativeLockTx,
// actionSendingNativeRedeemTx and actionSendingNativeRefundTx); Rollback
// inspects the Lock and Refund proof heights only.
// The foreign-side party never does: it re-polls its own foreign-chain
// adapter fresh on every tick (ConfirmRedeemTx/ConfirmRefundTx), so a reorg
// on its side is already reflected on the next poll without an explicit
// rollback. Rollback is therefore a no-op for the foreign-side party.
func (f *FSM) Rollback(toHeight uint32) error {
	if !f.Swap.Role.IsNativeSide() {
		return nil
	}

	rolledBack, err := f.rollbackSub(swap.SubTxNativeRefund, toHeight, EvRollbackToNativeRefund)
	if err != nil {
		return err
	}
	if rolledBack {
		return nil
	}

	_, err = f.rollbackSub(swap.SubTxNativeLock, toHeight, EvRollbackToNativeLock)
	return err
}

// rollbackSub clears sub's kernel proof heights and requests ev if its
// recorded proof height exceeds toHeight. It reports false, not an error,
// when the current top state has no transition for ev (the sub-tx's Sending
// state has already moved on, or was never reached) or when the sub-tx's
// proof height does not exceed toHeight (nothing to roll back).
func (f *FSM) rollbackSub(sub swap.SubTxID, toHeight uint32, ev fsm.EventType) (bool, error) {
	height, ok, err := getParam(f, sub, swap.ParamKernelProofHeight, paramstore.Uint32Codec)
	if err != nil {
		return false, err
	}
	if !ok || height <= toHeight {
		return false, nil
	}

	batch := f.Cfg.Store.NewBatch(f.Swap.ID)
	if err := setAll(batch, sub,
		set(swap.ParamKernelProofHeight, uint32(0), paramstore.Uint32Codec),
		set(swap.ParamKernelUnconfirmedHeight, uint32(0), paramstore.Uint32Codec),
	); err != nil {
		batch.Discard()
		return false, err
	}
	if err := batch.Commit(); err != nil {
		return false, err
	}

	f.Swap.SetSubState(sub, swap.SubTxStateSigExchanged)

	if err := f.SendEvent(ev, nil); err != nil {
		f.Warnf("rollback of %v past height %d: %v (sub-tx state has already moved on)",
			sub, toHeight, err)
		return false, nil
	}

	f.Infof("rolled back %v: proof height %d exceeded reorg height %d", sub, height, toHeight)

	return true, nil
}
