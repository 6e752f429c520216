package nativetx

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// KernelMessage is the byte string a kernel's aggregate signature commits
// to: here, the sub-tx id and the shared output's serialized excess, in the
// same spirit as a MimbleWimble kernel signing over its own fee and
// lock-height fields.
type KernelMessage []byte

// PartialSignature is one party's contribution to an aggregate kernel
// signature. Excess is that party's public blinding excess (x*G) for this
// sub-tx, Nonce is its public signing nonce (k*G), and Sig is its scalar
// contribution, valid only once both Excess and Nonce values have been
// exchanged and the shared challenge is known.
type PartialSignature struct {
	Excess *btcec.PublicKey
	Nonce  *btcec.PublicKey
	Sig    Scalar
}

// KernelSignature is the fully aggregated, on-chain kernel signature: the
// sum of both parties' nonces and both parties' scalar contributions.
type KernelSignature struct {
	Nonce *btcec.PublicKey
	Sig   Scalar
}

// KernelChallenge computes the Schnorr challenge e = H(R || P || m) shared
// by both partial signers and by verification, where R is the aggregate
// nonce and P is the aggregate excess.
func KernelChallenge(aggregateNonce, aggregateExcess *btcec.PublicKey,
	msg KernelMessage) Scalar {

	h := sha256.New()
	h.Write(aggregateNonce.SerializeCompressed())
	h.Write(aggregateExcess.SerializeCompressed())
	h.Write(msg)

	return scalarFromDigest(h.Sum(nil))
}

// SignPartial produces this party's partial signature over msg, given its
// own excess/nonce scalars and the peer's public excess/nonce (needed to
// compute the shared aggregate values the challenge depends on).
func SignPartial(myExcess, myNonce Scalar, peerExcess,
	peerNonce *btcec.PublicKey, msg KernelMessage) (PartialSignature, error) {

	myExcessPoint := ScalarBaseMult(myExcess)
	myNoncePoint := ScalarBaseMult(myNonce)

	aggregateExcess, err := AddPoints(myExcessPoint, peerExcess)
	if err != nil {
		return PartialSignature{}, fmt.Errorf("aggregate excess: %w", err)
	}

	aggregateNonce, err := AddPoints(myNoncePoint, peerNonce)
	if err != nil {
		return PartialSignature{}, fmt.Errorf("aggregate nonce: %w", err)
	}

	e := KernelChallenge(aggregateNonce, aggregateExcess, msg)

	// s_i = k_i + e*x_i
	sig := myNonce.Add(e.Mul(myExcess))

	return PartialSignature{
		Excess: myExcessPoint,
		Nonce:  myNoncePoint,
		Sig:    sig,
	}, nil
}

// IsPartialSignatureValid verifies a partial signature against the
// signature equation s*G = R + e*P, where e is computed over the aggregate
// nonce/excess of partial and counterpart.
func IsPartialSignatureValid(partial, counterpart PartialSignature,
	msg KernelMessage) (bool, error) {

	aggregateExcess, err := AddPoints(partial.Excess, counterpart.Excess)
	if err != nil {
		return false, fmt.Errorf("aggregate excess: %w", err)
	}

	aggregateNonce, err := AddPoints(partial.Nonce, counterpart.Nonce)
	if err != nil {
		return false, fmt.Errorf("aggregate nonce: %w", err)
	}

	e := KernelChallenge(aggregateNonce, aggregateExcess, msg)

	lhs := ScalarBaseMult(partial.Sig)

	rhsPoint, err := AddPoints(partial.Nonce, ScalarMultPoint(e, partial.Excess))
	if err != nil {
		return false, fmt.Errorf("compute rhs: %w", err)
	}

	return lhs.IsEqual(rhsPoint), nil
}

// FinalizeSignature aggregates two partial signatures (already each
// verified with IsPartialSignatureValid) into the on-chain kernel
// signature.
func FinalizeSignature(a, b PartialSignature) (KernelSignature, error) {
	nonce, err := AddPoints(a.Nonce, b.Nonce)
	if err != nil {
		return KernelSignature{}, fmt.Errorf("aggregate nonce: %w", err)
	}

	return KernelSignature{
		Nonce: nonce,
		Sig:   a.Sig.Add(b.Sig),
	}, nil
}

// IsKernelSignatureValid verifies a fully aggregated kernel signature
// against the total excess (the shared output's own commitment point).
func IsKernelSignatureValid(sig KernelSignature, aggregateExcess *btcec.PublicKey,
	msg KernelMessage) bool {

	e := KernelChallenge(sig.Nonce, aggregateExcess, msg)

	lhs := ScalarBaseMult(sig.Sig)

	rhsPoint, err := AddPoints(sig.Nonce, ScalarMultPoint(e, aggregateExcess))
	if err != nil {
		return false
	}

	return lhs.IsEqual(rhsPoint)
}
