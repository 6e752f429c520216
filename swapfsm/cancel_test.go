package swapfsm

import (
	"testing"

	"github.com/mwswap/swapd/swap"
	"github.com/stretchr/testify/require"
)

func TestCancelHonoredBeforeAnyChainCommitment(t *testing.T) {
	states := []swap.TopState{
		swap.StateInitial,
		swap.StateBuildingNativeLockTx,
		swap.StateBuildingNativeRefundTx,
		swap.StateBuildingNativeRedeemTx,
	}

	for _, start := range states {
		f, _ := newTestFSM(t, swap.NewRole(true, true), start)

		require.NoError(t, f.Cancel())
		require.Equal(t, topState(swap.StateCanceled), f.CurrentState())
	}
}

func TestCancelHandlingContractTxForeignSideHonored(t *testing.T) {
	f, _ := newTestFSM(t, swap.NewRole(false, true), swap.StateHandlingContractTx)

	require.NoError(t, f.Cancel())
	require.Equal(t, topState(swap.StateCanceled), f.CurrentState())
}

func TestCancelHandlingContractTxNativeSideIgnored(t *testing.T) {
	f, _ := newTestFSM(t, swap.NewRole(true, true), swap.StateHandlingContractTx)

	require.NoError(t, f.Cancel())
	require.Equal(t, topState(swap.StateHandlingContractTx), f.CurrentState())
}

func TestCancelIgnoredOnceValueCommitted(t *testing.T) {
	states := []swap.TopState{
		swap.StateSendingNativeLockTx,
		swap.StateSendingNativeRedeemTx,
		swap.StateSendingRefundTX,
		swap.StateSendingRedeemTX,
		swap.StateSendingNativeRefundTx,
		swap.StateCompleteSwap,
		swap.StateRefunded,
	}

	for _, start := range states {
		f, _ := newTestFSM(t, swap.NewRole(true, true), start)

		require.NoError(t, f.Cancel())
		require.Equal(t, topState(start), f.CurrentState())
	}
}
