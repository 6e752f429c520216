package nativetx

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/swap"
)

// Input is one native-chain output selected to fund the Lock transaction.
// The wallet database that actually owns UTXOs is out of scope for this
// coordinator (spec §1); Input is the shape InputSource hands back.
type Input struct {
	ID    [32]byte
	Value btcutil.Amount
	Blind Scalar
}

// InputSource selects native-chain inputs summing to at least amount, the
// coordinator's seam into the out-of-scope wallet database.
type InputSource interface {
	SelectInputs(ctx context.Context, id swap.ID,
		amount btcutil.Amount) (inputs []Input, change btcutil.Amount, err error)
}

// LockBuilder builds the native chain's Lock transaction: the interactive,
// two-party construction of the shared 2-of-2 output (spec §4.2).
type LockBuilder struct {
	Store *paramstore.Store
	Keys  KeySource
	Inputs InputSource

	// MinLockWindow is the smallest acceptable (native_lock_height -
	// peer_response_height) gap; update_max_height fails
	// MaxHeightUnacceptable below it.
	MinLockWindow uint32
}

// LockOutputs is the assembled shared output plus, for the funding party,
// its own change.
type LockOutputs struct {
	SharedExcess *btcec.PublicKey
	Change       btcutil.Amount
}

// SelectInputs picks inputs on the funding party's side only. A responder
// on a swap where it is not the native-side funder returns a nil, no-op
// result; the operation is a facade, so calling it from the wrong role is
// a caller bug rather than something this builder silently fixes up.
func (b *LockBuilder) SelectInputs(ctx context.Context, sw *swap.Swap) ([]Input,
	btcutil.Amount, error) {

	if !sw.Role.IsNativeSide() {
		return nil, 0, nil
	}

	needed := sw.NativeAmount + sw.Fee

	inputs, change, err := b.Inputs.SelectInputs(ctx, sw.ID, needed)
	if err != nil {
		return nil, 0, fmt.Errorf("select inputs: %w", err)
	}

	return inputs, change, nil
}

// LoadSharedParameters derives this party's excess, nonce, and offset
// scalars for the Lock sub-tx and returns the scalars themselves; callers
// take their public points with ScalarBaseMult before placing them into a
// Lock invitation or confirmation bundle.
func (b *LockBuilder) LoadSharedParameters(sw *swap.Swap) (excess, nonce,
	offset Scalar, err error) {

	excess, err = b.Keys.DeriveScalar(sw.ID, swap.SubTxNativeLock, PurposeExcess)
	if err != nil {
		return Scalar{}, Scalar{}, Scalar{}, fmt.Errorf("derive excess: %w", err)
	}

	nonce, err = b.Keys.DeriveScalar(sw.ID, swap.SubTxNativeLock, PurposeNonce)
	if err != nil {
		return Scalar{}, Scalar{}, Scalar{}, fmt.Errorf("derive nonce: %w", err)
	}

	offset, err = b.Keys.DeriveScalar(sw.ID, swap.SubTxNativeLock, PurposeOffset)
	if err != nil {
		return Scalar{}, Scalar{}, Scalar{}, fmt.Errorf("derive offset: %w", err)
	}

	return excess, nonce, offset, nil
}

// UpdateMaxHeight computes the Lock kernel's MaxHeight from
// peer_response_height and lifetime, failing with KindMaxHeightUnacceptable
// if the resulting window is too short (spec §4.2).
func (b *LockBuilder) UpdateMaxHeight(sw *swap.Swap, lifetime uint32) (uint32, error) {
	maxHeight := sw.PeerResponseHeight() + lifetime

	if maxHeight < sw.PeerResponseHeight()+b.MinLockWindow {
		return 0, swap.NewError(swap.KindMaxHeightUnacceptable, fmt.Errorf(
			"lock window %d shorter than floor %d", lifetime, b.MinLockWindow,
		))
	}

	return maxHeight, nil
}

// CreateOutputs combines both parties' public excesses into the shared
// output's aggregate commitment. The Pedersen-commitment value-hiding math
// itself (value*H + blind*G) is the out-of-scope curve-primitives
// collaborator's concern (spec §1); this coordinator only ever needs the
// blinding-excess side of that commitment, since it is what the kernel
// signature is checked against.
func (b *LockBuilder) CreateOutputs(myExcess, peerExcess *btcec.PublicKey) (*LockOutputs, error) {
	shared, err := AddPoints(myExcess, peerExcess)
	if err != nil {
		return nil, fmt.Errorf("combine shared excess: %w", err)
	}

	return &LockOutputs{SharedExcess: shared}, nil
}

// RangeProofPart2 is this party's contribution to round 2 of the 3-round
// interactive bulletproof (spec §4.2). The bulletproof math itself is out
// of scope (spec §1); this coordinator treats it as an opaque blob produced
// and verified by the injected curve/range-proof collaborator, and only
// orchestrates its exchange through the Parameter Store.
type RangeProofPart2 []byte

// RangeProofPart3 is the final round, combining both parties' round-2
// contributions.
type RangeProofPart3 []byte

// RangeProofProver is the out-of-scope collaborator that actually performs
// bulletproof construction/verification.
type RangeProofProver interface {
	Round2(ctx context.Context, id swap.ID) (RangeProofPart2, error)
	Round3(ctx context.Context, id swap.ID, peerPart2 RangeProofPart2) (RangeProofPart3, error)
	Verify(ctx context.Context, id swap.ID, myPart3, peerPart3 RangeProofPart3) error
}

// CreateSharedRangeProof runs round 3 of the interactive bulletproof against
// prover, from the peer's round-2 part; round 2 itself is requested from
// prover directly by the caller. It persists nothing itself: the parts are
// carried in the Lock invitation/confirmation bundles by peermsg, and
// prover is responsible for its own state between rounds.
func (b *LockBuilder) CreateSharedRangeProof(ctx context.Context, sw *swap.Swap,
	prover RangeProofProver, peerPart2 RangeProofPart2) (RangeProofPart3, error) {

	myPart3, err := prover.Round3(ctx, sw.ID, peerPart2)
	if err != nil {
		return nil, swap.NewError(swap.KindFailedToCreateMultiSig, err)
	}

	return myPart3, nil
}

// CreateKernel produces this party's partial signature over the Lock
// kernel, delegating to the shared Schnorr math in kernel.go.
func (b *LockBuilder) CreateKernel(myExcess, myNonce Scalar, peerExcess,
	peerNonce *btcec.PublicKey, msg KernelMessage) (PartialSignature, error) {

	partial, err := SignPartial(myExcess, myNonce, peerExcess, peerNonce, msg)
	if err != nil {
		return PartialSignature{}, swap.NewError(swap.KindFailedToCreateMultiSig, err)
	}

	return partial, nil
}

// IsPeerSignatureValid verifies the peer's partial Lock signature.
func (b *LockBuilder) IsPeerSignatureValid(mine, peer PartialSignature,
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

// FinalizeSignature aggregates both parties' Lock partials into the
// on-chain kernel signature.
func (b *LockBuilder) FinalizeSignature(mine, peer PartialSignature) (KernelSignature, error) {
	sig, err := FinalizeSignature(mine, peer)
	if err != nil {
		return KernelSignature{}, swap.NewError(swap.KindFailedToCreateMultiSig, err)
	}

	return sig, nil
}
