package nativetx

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/swap"
)

// WithdrawBuilder builds a Redeem or Refund sub-tx spending the Lock's
// shared output (spec §4.3). Its operations mirror LockBuilder except that
// there is no input selection (the single shared commitment is the only
// input) and no range-proof round (the destination output is a normal,
// owner-only coin).
type WithdrawBuilder struct {
	Store *paramstore.Store
	Keys  KeySource
}

// LoadSharedParameters derives this party's excess and nonce scalars for
// the given withdraw sub-tx (NativeRedeem or NativeRefund).
func (b *WithdrawBuilder) LoadSharedParameters(sw *swap.Swap,
	sub swap.SubTxID) (excess, nonce Scalar, err error) {

	excess, err = b.Keys.DeriveScalar(sw.ID, sub, PurposeExcess)
	if err != nil {
		return Scalar{}, Scalar{}, fmt.Errorf("derive excess: %w", err)
	}

	nonce, err = b.Keys.DeriveScalar(sw.ID, sub, PurposeNonce)
	if err != nil {
		return Scalar{}, Scalar{}, fmt.Errorf("derive nonce: %w", err)
	}

	return excess, nonce, nil
}

// CreateKernel produces this party's plain (non-adapted) partial signature,
// used unconditionally for Refund and used for Redeem by whichever party is
// not carrying the adaptor secret.
func (b *WithdrawBuilder) CreateKernel(myExcess, myNonce Scalar, peerExcess,
	peerNonce *btcec.PublicKey, msg KernelMessage) (PartialSignature, error) {

	partial, err := SignPartial(myExcess, myNonce, peerExcess, peerNonce, msg)
	if err != nil {
		return PartialSignature{}, swap.NewError(swap.KindFailedToCreateMultiSig, err)
	}

	return partial, nil
}

// SignAdaptedRedeemPartial produces the foreign-side party's broken
// Redeem contribution sigma' = sigma + s (spec §4.3), sent to the native
// side instead of a normal partial signature.
func (b *WithdrawBuilder) SignAdaptedRedeemPartial(myExcess, myNonce Scalar,
	peerExcess, peerNonce *btcec.PublicKey, msg KernelMessage,
	secret Scalar) (PartialSignature, error) {

	partial, err := b.CreateKernel(myExcess, myNonce, peerExcess, peerNonce, msg)
	if err != nil {
		return PartialSignature{}, err
	}

	return AdaptPartialSignature(partial, secret), nil
}

// VerifyAdaptedRedeemCommitment checks that an adapted partial signature
// commits to the previously-advertised secret point S, without needing to
// know s (spec §4.3: "verifying that this equals a point committed to by
// the foreign side earlier"). It follows directly from the signature
// equation: s*G = sigma'*G - R - e*P.
func VerifyAdaptedRedeemCommitment(adapted PartialSignature,
	counterpart PartialSignature, msg KernelMessage,
	expectedSecretPoint *btcec.PublicKey) error {

	aggregateExcess, err := AddPoints(adapted.Excess, counterpart.Excess)
	if err != nil {
		return fmt.Errorf("aggregate excess: %w", err)
	}

	aggregateNonce, err := AddPoints(adapted.Nonce, counterpart.Nonce)
	if err != nil {
		return fmt.Errorf("aggregate nonce: %w", err)
	}

	e := KernelChallenge(aggregateNonce, aggregateExcess, msg)

	sigPoint := ScalarBaseMult(adapted.Sig)

	rhs, err := AddPoints(adapted.Nonce, ScalarMultPoint(e, adapted.Excess))
	if err != nil {
		return fmt.Errorf("compute rhs: %w", err)
	}

	derivedSecretPoint, err := AddPoints(sigPoint, negatePoint(rhs))
	if err != nil {
		return fmt.Errorf("derive secret point: %w", err)
	}

	if !derivedSecretPoint.IsEqual(expectedSecretPoint) {
		return swap.NewError(swap.KindInvalidPeerSignature, fmt.Errorf(
			"adapted partial does not commit to advertised secret",
		))
	}

	return nil
}

// negatePoint returns -P (the point with the same x-coordinate and negated
// y-coordinate).
func negatePoint(p *btcec.PublicKey) *btcec.PublicKey {
	zero := Scalar{}
	return ScalarMultPoint(zero.Sub(scalarOne()), p)
}

func scalarOne() Scalar {
	one, _ := ScalarFromBytes(append(make([]byte, 31), 1))
	return one
}

// FinalizeRedeem completes the Redeem kernel once the native side has
// learned the adaptor secret (spec §4.3).
func (b *WithdrawBuilder) FinalizeRedeem(myTrue, peerAdapted PartialSignature,
	secret Scalar) (KernelSignature, error) {

	sig, err := FinalizeAdaptedSignature(myTrue, peerAdapted, secret)
	if err != nil {
		return KernelSignature{}, swap.NewError(swap.KindFailedToCreateMultiSig, err)
	}

	return sig, nil
}

// FinalizeRefund aggregates a plain (non-adapted) Refund kernel.
func (b *WithdrawBuilder) FinalizeRefund(mine, peer PartialSignature) (KernelSignature, error) {
	sig, err := FinalizeSignature(mine, peer)
	if err != nil {
		return KernelSignature{}, swap.NewError(swap.KindFailedToCreateMultiSig, err)
	}

	return sig, nil
}

// IsPeerSignatureValid verifies a plain (non-adapted) partial signature,
// used for Refund and for the non-adaptor-carrying side of Redeem.
func (b *WithdrawBuilder) IsPeerSignatureValid(mine, peer PartialSignature,
	msg KernelMessage) error {

	ok, err := IsPartialSignatureValid(peer, mine, msg)
	if err != nil {
		return swap.NewError(swap.KindInvalidPeerSignature, err)
	}
	if !ok {
		return swap.NewError(swap.KindInvalidPeerSignature, nil)
	}

	return nil
}
