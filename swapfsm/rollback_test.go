package swapfsm

import (
	"testing"

	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/swap"
	"github.com/stretchr/testify/require"
)

func TestRollbackNoOpForForeignSide(t *testing.T) {
	f, _ := newTestFSM(t, swap.NewRole(false, true), swap.StateSendingRefundTX)

	// The foreign-side party never persists a kernel proof height at all;
	// Rollback must bail out on the role check before even looking.
	require.NoError(t, f.Rollback(10))
	require.Equal(t, topState(swap.StateSendingRefundTX), f.CurrentState())
}

func TestRollbackNoOpWhenNothingExceedsHeight(t *testing.T) {
	f, _ := newTestFSM(t, swap.NewRole(true, true), swap.StateSendingNativeRedeemTx)

	require.NoError(t, setOne(f, swap.SubTxNativeLock, swap.ParamKernelProofHeight,
		uint32(100), paramstore.Uint32Codec))

	require.NoError(t, f.Rollback(500))
	require.Equal(t, topState(swap.StateSendingNativeRedeemTx), f.CurrentState())
}

func TestRollbackClearsLockProofAndRewinds(t *testing.T) {
	f, rec := newTestFSM(t, swap.NewRole(true, true), swap.StateSendingNativeRedeemTx)

	require.NoError(t, setOne(f, swap.SubTxNativeLock, swap.ParamKernelProofHeight,
		uint32(500), paramstore.Uint32Codec))

	require.NoError(t, f.Rollback(100))

	first := rec.first()
	require.Equal(t, EvRollbackToNativeLock, first.Event)
	require.Equal(t, topState(swap.StateSendingNativeLockTx), first.NextState)

	height, ok, err := getParam(f, swap.SubTxNativeLock, swap.ParamKernelProofHeight,
		paramstore.Uint32Codec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(0), height)

	require.Equal(t, swap.SubTxStateSigExchanged, f.Swap.SubState(swap.SubTxNativeLock))
}

func TestRollbackPrefersRefundOverLock(t *testing.T) {
	// Only StateRefunded has transitions wired for both rollback events
	// (spec §4.5.2); every other reachable state only rewinds as far as
	// its own sub-tx's proof, which rollbackSub reports as "nothing to
	// roll back here" rather than a hard error when no transition exists.
	f, rec := newTestFSM(t, swap.NewRole(true, true), swap.StateRefunded)

	require.NoError(t, setOne(f, swap.SubTxNativeLock, swap.ParamKernelProofHeight,
		uint32(500), paramstore.Uint32Codec))
	require.NoError(t, setOne(f, swap.SubTxNativeRefund, swap.ParamKernelProofHeight,
		uint32(500), paramstore.Uint32Codec))

	require.NoError(t, f.Rollback(100))

	first := rec.first()
	require.Equal(t, EvRollbackToNativeRefund, first.Event)
	require.Equal(t, topState(swap.StateSendingNativeRefundTx), first.NextState)

	// The Lock proof height is left untouched: Refund rolling back is
	// reported as the completed rollback for this tick, matching
	// Rollback's early return once one sub-tx has been rolled back.
	height, ok, err := getParam(f, swap.SubTxNativeLock, swap.ParamKernelProofHeight,
		paramstore.Uint32Codec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint32(500), height)
}
