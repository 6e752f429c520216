package nativetx

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mwswap/swapd/swap"
)

// Transaction is the assembled result of one sub-tx's interactive
// construction: an aggregate kernel signature over an aggregate excess,
// valid from MinHeight and, for Lock/Refund, only spendable/consumed up to
// MaxHeight. Serializing this into the native chain's actual wire format is
// the node gateway's concern (out of scope, spec §1); this coordinator only
// needs to know the sub-tx is internally consistent before handing it off.
type Transaction struct {
	SubTx           swap.SubTxID
	Kernel          KernelSignature
	AggregateExcess *btcec.PublicKey
	MinHeight       uint32
	MaxHeight       uint32
}

// NewTransaction validates the kernel signature against the aggregate
// excess and message before returning the assembled Transaction, matching
// spec §4.2's "the caller validates it against a context with
// height.min = min_height".
func NewTransaction(sub swap.SubTxID, kernel KernelSignature,
	aggregateExcess *btcec.PublicKey, minHeight, maxHeight uint32,
	msg KernelMessage) (*Transaction, error) {

	if !IsKernelSignatureValid(kernel, aggregateExcess, msg) {
		return nil, swap.NewError(swap.KindInvalidTransaction, nil)
	}

	return &Transaction{
		SubTx:           sub,
		Kernel:          kernel,
		AggregateExcess: aggregateExcess,
		MinHeight:       minHeight,
		MaxHeight:       maxHeight,
	}, nil
}
