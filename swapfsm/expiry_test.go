package swapfsm

import (
	"testing"

	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/swap"
	"github.com/stretchr/testify/require"
)

func TestCheckExpiredFallsBackToPeerResponseHeightBeforeLockProposed(t *testing.T) {
	f, _ := newTestFSM(t, swap.NewRole(true, true), swap.StateBuildingNativeLockTx)

	// newTestFSM sets MinHeight=100, PeerResponseWindow=50.
	require.False(t, f.CheckExpired(150))
	require.True(t, f.CheckExpired(151))
}

func TestCheckExpiredBeforeRegisteredUsesStrictCompare(t *testing.T) {
	f, _ := newTestFSM(t, swap.NewRole(true, true), swap.StateSendingNativeLockTx)

	require.NoError(t, setOne(f, swap.SubTxNativeLock, swap.ParamMaxHeight,
		uint32(1000), paramstore.Uint32Codec))
	f.Swap.SetSubState(swap.SubTxNativeLock, swap.SubTxStateSigExchanged)

	require.False(t, f.CheckExpired(1000))
	require.True(t, f.CheckExpired(1001))
}

func TestCheckExpiredRegisteredButUnconfirmedUsesInclusiveCompare(t *testing.T) {
	f, _ := newTestFSM(t, swap.NewRole(true, true), swap.StateSendingNativeLockTx)

	require.NoError(t, setOne(f, swap.SubTxNativeLock, swap.ParamMaxHeight,
		uint32(1000), paramstore.Uint32Codec))
	f.Swap.SetSubState(swap.SubTxNativeLock, swap.SubTxStateRegistered)

	require.False(t, f.CheckExpired(999))
	require.True(t, f.CheckExpired(1000))
}

func TestCheckExpiredFalseOnceConfirmed(t *testing.T) {
	f, _ := newTestFSM(t, swap.NewRole(true, true), swap.StateSendingNativeRedeemTx)

	require.NoError(t, setOne(f, swap.SubTxNativeLock, swap.ParamMaxHeight,
		uint32(1000), paramstore.Uint32Codec))
	f.Swap.SetSubState(swap.SubTxNativeLock, swap.SubTxStateConfirmed)

	require.False(t, f.CheckExpired(9999))
}
