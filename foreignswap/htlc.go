package foreignswap

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// HtlcV1 is the canonical CLTV+hash HTLC this coordinator drives: pay to
// receiverPKH given the 32-byte preimage of secretHash, or pay back to
// senderPKH after cltvExpiry. It is the direct Bitcoin analogue of the
// native chain's shared output: whichever party learns the preimage first
// can redeem, exactly as whichever party learns the adaptor scalar first
// can redeem the native side.
//
// The teacher's own HTLC family (segwit v0/NP2WSH/taproot, multiple script
// versions) is a straightforward extension of this type; this coordinator
// only ever drives the one version above, so only it is built out.
type HtlcV1 struct {
	CltvExpiry  int64
	SecretHash  [32]byte
	ReceiverPKH [20]byte
	SenderPKH   [20]byte

	ChainParams *chaincfg.Params
}

// Script returns the raw redeem script.
func (h *HtlcV1) Script() ([]byte, error) {
	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_SHA256)
	builder.AddData(h.SecretHash[:])
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(h.ReceiverPKH[:])
	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(h.CltvExpiry)
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(h.SenderPKH[:])
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_CHECKSIG)

	script, err := builder.Script()
	if err != nil {
		return nil, fmt.Errorf("build htlc script: %w", err)
	}

	return script, nil
}

// Address returns the P2WSH address committing to Script().
func (h *HtlcV1) Address() (btcutil.Address, error) {
	script, err := h.Script()
	if err != nil {
		return nil, err
	}

	scriptHash := sha256.Sum256(script)

	return btcutil.NewAddressWitnessScriptHash(scriptHash[:], h.ChainParams)
}

// PkScript returns the P2WSH scriptPubKey for this HTLC's output.
func (h *HtlcV1) PkScript() ([]byte, error) {
	addr, err := h.Address()
	if err != nil {
		return nil, err
	}

	return txscript.PayToAddrScript(addr)
}

// RedeemWitness returns the witness stack that spends this HTLC along the
// redeem (preimage-known) branch.
func RedeemWitness(sig, pubKey, preimage, script []byte) wire.TxWitness {
	return wire.TxWitness{sig, pubKey, preimage, []byte{1}, script}
}

// RefundWitness returns the witness stack that spends this HTLC along the
// refund (timeout) branch.
func RefundWitness(sig, pubKey, script []byte) wire.TxWitness {
	return wire.TxWitness{sig, pubKey, nil, script}
}
