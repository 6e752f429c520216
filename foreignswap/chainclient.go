package foreignswap

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// ChainClient is the foreign chain's node gateway, collapsing broadcast and
// confirmation tracking from a streaming/callback API to the polled model
// spec §4.4 requires of every Adapter method. A real deployment backs this
// with an RPC client against a Bitcoin-family node; connecting to one is
// out of scope for this coordinator (spec §1's "foreign-chain side adapter
// ... broadcast and confirmation" collaborator).
type ChainClient interface {
	// CurrentHeight returns the chain's current tip height.
	CurrentHeight(ctx context.Context) (int32, error)

	// PublishTransaction broadcasts tx.
	PublishTransaction(ctx context.Context, tx *wire.MsgTx) error

	// Confirmations returns the confirmation depth of txid, or 0 if it
	// is unconfirmed or unknown.
	Confirmations(ctx context.Context, txid *chainhash.Hash) (int32, error)

	// FetchRedeemWitness returns the witness stack of the input at
	// outpoint's spend, if it has been spent, so the adapter can pull
	// the preimage out of a confirmed redeem. Returns ok=false if the
	// output is unspent as of the current tip.
	FetchRedeemWitness(ctx context.Context, txid *chainhash.Hash,
		outputIndex uint32) (witness wire.TxWitness, ok bool, err error)
}
