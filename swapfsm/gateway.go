package swapfsm

import (
	"context"

	"github.com/mwswap/swapd/nativetx"
	"github.com/mwswap/swapd/swap"
)

// NativeGateway is the native chain's node, collapsing publishing and
// confirmation tracking into the polled shape the state machine drives
// everything else through. Connecting this to a real native-chain node is
// out of scope for this coordinator (spec §1's node gateway collaborator).
type NativeGateway interface {
	// CurrentHeight returns the native chain's current tip height.
	CurrentHeight(ctx context.Context) (uint32, error)

	// RegisterKernel submits an assembled, self-validated sub-tx,
	// returning the gateway's registration code and, if the kernel has
	// ever been observed unconfirmed in the chain's mempool, the height
	// it was last seen at (0 if never observed). A RegInvalidContext
	// code paired with a nonzero height fails the sub-tx outright rather
	// than retrying (spec §6.3).
	RegisterKernel(ctx context.Context, id swap.ID,
		tx *nativetx.Transaction) (code swap.RegistrationCode, unconfirmedHeight uint32, err error)

	// FetchConfirmationHeight returns the sub-tx's kernel proof height,
	// or ok=false if it has not yet been mined.
	FetchConfirmationHeight(ctx context.Context, id swap.ID,
		sub swap.SubTxID) (height uint32, ok bool, err error)
}
