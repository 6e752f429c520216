package swapfsm

import (
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/swap"
)

// CheckExpired reports whether the swap should be considered expired at the
// given native-chain tip (spec §4.5.4). It is a pure read against the
// Parameter Store: callers that get true back are expected to follow up
// with OnFailed(swap.KindTransactionExpired, false) themselves, exactly as
// they would for any other internally-detected failure.
//
// Expiry only has meaning before the native Lock confirms: once it has,
// the swap's remaining failure modes (the foreign-side party disappearing,
// a registration rejection) are each covered by their own state-specific
// check (EvNativeLockExpired, CheckSubTxFailures), so CheckExpired reports
// false from SendingNativeRedeemTx onward.
func (f *FSM) CheckExpired(tip uint32) bool {
	sub := swap.SubTxNativeLock

	maxHeight, hasMaxHeight, err := getParam(f, sub, swap.ParamMaxHeight, paramstore.Uint32Codec)
	if err != nil {
		f.Errorf("check expired: %v", err)
		return false
	}

	if !hasMaxHeight {
		// The Lock invitation hasn't even been proposed yet; fall back
		// to the handshake-level deadline.
		return tip > f.Swap.PeerResponseHeight()
	}

	switch {
	case f.Swap.SubState(sub) < swap.SubTxStateRegistered:
		return tip > maxHeight

	case f.Swap.SubState(sub) < swap.SubTxStateConfirmed:
		// Registered but the gateway has not reported it confirmed;
		// spec §4.5.4 treats reaching MaxHeight itself as expiry here,
		// not just exceeding it.
		return tip >= maxHeight

	default:
		return false
	}
}
