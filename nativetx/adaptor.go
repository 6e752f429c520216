package nativetx

import "fmt"

// SecretFromPreimage derives the adaptor secret from a Bitcoin HTLC's
// revealed preimage. This coordinator's foreign chain adapter (see
// foreignswap) uses a plain hash-lock rather than a Schnorr adaptor
// signature, so the secret this package's Redeem builder needs is not
// extracted from a foreign kernel signature at all: the preimage itself,
// read as a big-endian scalar, is the scalar s whose point S = s*G was
// committed to on the native side and whose hash was committed to in the
// HTLC script. A preimage at or above the curve order is rejected by
// ScalarFromBytes, not reduced.
func SecretFromPreimage(preimage []byte) (Scalar, error) {
	if len(preimage) != 32 {
		return Scalar{}, fmt.Errorf(
			"htlc preimage must be 32 bytes, got %d", len(preimage),
		)
	}

	return ScalarFromBytes(preimage)
}

// AdaptPartialSignature returns the foreign-side party's adapted partial
// contribution sigma' = sigma + s to a Redeem kernel (spec §4.3). The
// adapted value is indistinguishable from a normal partial signature to
// anyone who does not know secret; IsPartialSignatureValid deliberately
// fails against it, which is how the native side knows to hold the sub-tx
// at SubTxStateConstructed instead of finalizing.
func AdaptPartialSignature(partial PartialSignature, secret Scalar) PartialSignature {
	return PartialSignature{
		Excess: partial.Excess,
		Nonce:  partial.Nonce,
		Sig:    partial.Sig.Add(secret),
	}
}

// SecretPoint returns S = s*G, the public commitment both parties agree on
// before either partial signature is exchanged.
func SecretPoint(secret Scalar) []byte {
	return ScalarBaseMult(secret).SerializeCompressed()
}

// FinalizeAdaptedSignature completes a Redeem kernel once the native side
// has learned the adaptor secret independently (spec §4.3: by observing the
// foreign-side party's own redeem on the foreign chain). myTrue is this
// party's own, un-adapted partial signature; peerAdapted is the broken
// contribution recorded earlier at SubTxStateConstructed.
func FinalizeAdaptedSignature(myTrue, peerAdapted PartialSignature,
	secret Scalar) (KernelSignature, error) {

	peerTrue := PartialSignature{
		Excess: peerAdapted.Excess,
		Nonce:  peerAdapted.Nonce,
		Sig:    peerAdapted.Sig.Sub(secret),
	}

	return FinalizeSignature(myTrue, peerTrue)
}

// ExtractSecret recovers the adaptor secret from a fully valid, published
// kernel signature and the two partial contributions that went into it
// (spec §9 design note: "a single cryptographic primitive with a clear
// signature extract_secret(kernel_signature, my_partial, peer_partial) ->
// scalar"). It is the algebraic inverse of FinalizeAdaptedSignature and is
// exercised directly by this package's tests; the coordinator's actual
// Bitcoin HTLC adapter instead recovers the secret from a witness preimage
// via SecretFromPreimage, since a hash-lock adapter never publishes an
// adapted kernel signature of its own. This primitive remains here as the
// documented extension point for a future adapter built on a
// Schnorr-adaptor-signature foreign chain instead of a hash lock.
func ExtractSecret(total KernelSignature, myPartial,
	peerPartialAdapted PartialSignature) (Scalar, error) {

	aggregateNonce, err := AddPoints(myPartial.Nonce, peerPartialAdapted.Nonce)
	if err != nil {
		return Scalar{}, fmt.Errorf("aggregate nonce: %w", err)
	}

	if !total.Nonce.IsEqual(aggregateNonce) {
		return Scalar{}, fmt.Errorf("kernel signature nonce does not match the given partials")
	}

	// total.Sig = myPartial.Sig + (peerPartialAdapted.Sig - secret)
	// => secret = peerPartialAdapted.Sig + myPartial.Sig - total.Sig
	secret := peerPartialAdapted.Sig.Add(myPartial.Sig).Sub(total.Sig)

	return secret, nil
}
