package peermsg

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/mwswap/swapd/foreignswap"
	"github.com/mwswap/swapd/nativetx"
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/swap"
)

// Invitation is the initiator's swap proposal (spec §6.1). IsSender and
// AtomicSwapIsNativeSide travel inverted on the wire: the initiator's own
// "I am the sender"/"I hold the native side" is the responder's opposite,
// so encoding the negation here means UnmarshalInvitation always hands the
// receiving party its own perspective directly.
type Invitation struct {
	Amount                     btcutil.Amount
	Fee                        btcutil.Amount
	IsSender                   bool
	Lifetime                   int64
	AtomicSwapAmount           btcutil.Amount
	AtomicSwapCoin             string
	AtomicSwapPeerPublicKey    *btcec.PublicKey
	AtomicSwapExternalLockTime int64
	AtomicSwapIsNativeSide     bool
	PeerProtoVersion           swap.ProtoVersion
}

// MarshalParams encodes the invitation into its wire bundle.
func (m *Invitation) MarshalParams() (*Bundle, error) {
	b := NewBundle(swap.SubTxDefault)

	for _, err := range []error{
		put(b, swap.ParamAmount, m.Amount, paramstore.AmountCodec),
		put(b, swap.ParamFee, m.Fee, paramstore.AmountCodec),
		put(b, swap.ParamIsSender, !m.IsSender, paramstore.BoolCodec),
		put(b, swap.ParamLifetime, m.Lifetime, paramstore.Int64Codec),
		put(b, swap.ParamAtomicSwapAmount, m.AtomicSwapAmount, paramstore.AmountCodec),
		put(b, swap.ParamAtomicSwapCoin, m.AtomicSwapCoin, paramstore.StringCodec),
		put(b, swap.ParamAtomicSwapPeerPublicKey, m.AtomicSwapPeerPublicKey, paramstore.PubKeyCodec),
		put(b, swap.ParamAtomicSwapExternalLockTime, m.AtomicSwapExternalLockTime, paramstore.Int64Codec),
		put(b, swap.ParamAtomicSwapIsNativeSide, !m.AtomicSwapIsNativeSide, paramstore.BoolCodec),
		put(b, swap.ParamPeerProtoVersion, m.PeerProtoVersion, paramstore.ProtoVersionCodec),
	} {
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

// UnmarshalInvitation decodes an invitation bundle, flipping IsSender and
// AtomicSwapIsNativeSide back from the wire's inverted encoding.
func UnmarshalInvitation(b *Bundle) (*Invitation, error) {
	m := &Invitation{}

	var (
		wireIsSender, wireIsNative bool
		err                        error
	)

	if m.Amount, err = get(b, swap.ParamAmount, paramstore.AmountCodec); err != nil {
		return nil, err
	}
	if m.Fee, err = get(b, swap.ParamFee, paramstore.AmountCodec); err != nil {
		return nil, err
	}
	if wireIsSender, err = get(b, swap.ParamIsSender, paramstore.BoolCodec); err != nil {
		return nil, err
	}
	m.IsSender = !wireIsSender

	if m.Lifetime, err = get(b, swap.ParamLifetime, paramstore.Int64Codec); err != nil {
		return nil, err
	}
	if m.AtomicSwapAmount, err = get(b, swap.ParamAtomicSwapAmount, paramstore.AmountCodec); err != nil {
		return nil, err
	}
	if m.AtomicSwapCoin, err = get(b, swap.ParamAtomicSwapCoin, paramstore.StringCodec); err != nil {
		return nil, err
	}
	if m.AtomicSwapPeerPublicKey, err = get(
		b, swap.ParamAtomicSwapPeerPublicKey, paramstore.PubKeyCodec,
	); err != nil {
		return nil, err
	}
	if m.AtomicSwapExternalLockTime, err = get(
		b, swap.ParamAtomicSwapExternalLockTime, paramstore.Int64Codec,
	); err != nil {
		return nil, err
	}
	if wireIsNative, err = get(b, swap.ParamAtomicSwapIsNativeSide, paramstore.BoolCodec); err != nil {
		return nil, err
	}
	m.AtomicSwapIsNativeSide = !wireIsNative

	if m.PeerProtoVersion, err = get(
		b, swap.ParamPeerProtoVersion, paramstore.ProtoVersionCodec,
	); err != nil {
		return nil, err
	}

	return m, nil
}

// ExternalTxDetails carries the foreign-side party's adapter-defined lock
// identifiers to the native side (spec §6.1).
type ExternalTxDetails struct {
	Details *foreignswap.TxDetails
}

// MarshalParams encodes the details into their wire bundle.
func (m *ExternalTxDetails) MarshalParams() (*Bundle, error) {
	b := NewBundle(swap.SubTxDefault)

	raw, err := m.Details.Marshal()
	if err != nil {
		return nil, err
	}

	if err := put(b, swap.ParamExternalTxDetails, raw, paramstore.BytesCodec); err != nil {
		return nil, err
	}

	return b, nil
}

// UnmarshalExternalTxDetails decodes an external tx details bundle.
func UnmarshalExternalTxDetails(b *Bundle) (*ExternalTxDetails, error) {
	raw, err := get(b, swap.ParamExternalTxDetails, paramstore.BytesCodec)
	if err != nil {
		return nil, err
	}

	details, err := foreignswap.UnmarshalTxDetails(raw)
	if err != nil {
		return nil, err
	}

	return &ExternalTxDetails{Details: details}, nil
}

// LockInvitation is the native-side party's proposal to fund the shared
// output, sub = SubTxNativeLock (spec §6.1). PeerMaxHeight is only present
// when PeerProtoVersion >= swap.ProtoVersion1.
type LockInvitation struct {
	PeerProtoVersion               swap.ProtoVersion
	AtomicSwapPeerPublicKey        *btcec.PublicKey
	Fee                            btcutil.Amount
	PeerMaxHeight                  uint32
	PeerPublicExcess               *btcec.PublicKey
	PeerPublicNonce                *btcec.PublicKey
	PeerSharedBulletProofPart2     []byte
	PeerPublicSharedBlindingFactor *btcec.PublicKey
}

// MarshalParams encodes the invitation into its wire bundle.
func (m *LockInvitation) MarshalParams() (*Bundle, error) {
	b := NewBundle(swap.SubTxNativeLock)

	for _, err := range []error{
		put(b, swap.ParamPeerProtoVersion, m.PeerProtoVersion, paramstore.ProtoVersionCodec),
		put(b, swap.ParamAtomicSwapPeerPublicKey, m.AtomicSwapPeerPublicKey, paramstore.PubKeyCodec),
		put(b, swap.ParamFee, m.Fee, paramstore.AmountCodec),
		put(b, swap.ParamPeerPublicExcess, m.PeerPublicExcess, paramstore.PubKeyCodec),
		put(b, swap.ParamPeerPublicNonce, m.PeerPublicNonce, paramstore.PubKeyCodec),
		put(b, swap.ParamPeerSharedBulletProofPart2, m.PeerSharedBulletProofPart2, paramstore.BytesCodec),
		put(b, swap.ParamPeerPublicSharedBlindingFactor, m.PeerPublicSharedBlindingFactor, paramstore.PubKeyCodec),
	} {
		if err != nil {
			return nil, err
		}
	}

	if m.PeerProtoVersion >= swap.ProtoVersion1 {
		if err := put(b, swap.ParamPeerMaxHeight, m.PeerMaxHeight, paramstore.Uint32Codec); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// UnmarshalLockInvitation decodes a lock invitation bundle.
func UnmarshalLockInvitation(b *Bundle) (*LockInvitation, error) {
	m := &LockInvitation{}

	var err error
	if m.PeerProtoVersion, err = get(
		b, swap.ParamPeerProtoVersion, paramstore.ProtoVersionCodec,
	); err != nil {
		return nil, err
	}
	if m.AtomicSwapPeerPublicKey, err = get(
		b, swap.ParamAtomicSwapPeerPublicKey, paramstore.PubKeyCodec,
	); err != nil {
		return nil, err
	}
	if m.Fee, err = get(b, swap.ParamFee, paramstore.AmountCodec); err != nil {
		return nil, err
	}
	if m.PeerPublicExcess, err = get(b, swap.ParamPeerPublicExcess, paramstore.PubKeyCodec); err != nil {
		return nil, err
	}
	if m.PeerPublicNonce, err = get(b, swap.ParamPeerPublicNonce, paramstore.PubKeyCodec); err != nil {
		return nil, err
	}
	if m.PeerSharedBulletProofPart2, err = get(
		b, swap.ParamPeerSharedBulletProofPart2, paramstore.BytesCodec,
	); err != nil {
		return nil, err
	}
	if m.PeerPublicSharedBlindingFactor, err = get(
		b, swap.ParamPeerPublicSharedBlindingFactor, paramstore.PubKeyCodec,
	); err != nil {
		return nil, err
	}

	m.PeerMaxHeight, _, err = getOptional(b, swap.ParamPeerMaxHeight, paramstore.Uint32Codec)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// LockConfirmation is the foreign-side party's reply completing the Lock
// sub-tx's interactive signing round, sub = SubTxNativeLock (spec §6.1).
// PeerPublicExcess/PeerPublicNonce are included alongside the signature
// because the native side never sees the foreign-side party's public points
// any other way: LockInvitation only carries the native side's own.
type LockConfirmation struct {
	PeerPublicExcess           *btcec.PublicKey
	PeerPublicNonce            *btcec.PublicKey
	PeerSignature              nativetx.Scalar
	PeerOffset                 nativetx.Scalar
	PeerSharedBulletProofPart3 []byte
}

// MarshalParams encodes the confirmation into its wire bundle.
func (m *LockConfirmation) MarshalParams() (*Bundle, error) {
	b := NewBundle(swap.SubTxNativeLock)

	for _, err := range []error{
		put(b, swap.ParamPeerPublicExcess, m.PeerPublicExcess, paramstore.PubKeyCodec),
		put(b, swap.ParamPeerPublicNonce, m.PeerPublicNonce, paramstore.PubKeyCodec),
		put(b, swap.ParamPeerSignature, m.PeerSignature, nativetx.ScalarCodec),
		put(b, swap.ParamPeerOffset, m.PeerOffset, nativetx.ScalarCodec),
		put(b, swap.ParamPeerSharedBulletProofPart3, m.PeerSharedBulletProofPart3, paramstore.BytesCodec),
	} {
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

// UnmarshalLockConfirmation decodes a lock confirmation bundle.
func UnmarshalLockConfirmation(b *Bundle) (*LockConfirmation, error) {
	m := &LockConfirmation{}

	var err error
	if m.PeerPublicExcess, err = get(b, swap.ParamPeerPublicExcess, paramstore.PubKeyCodec); err != nil {
		return nil, err
	}
	if m.PeerPublicNonce, err = get(b, swap.ParamPeerPublicNonce, paramstore.PubKeyCodec); err != nil {
		return nil, err
	}
	if m.PeerSignature, err = get(b, swap.ParamPeerSignature, nativetx.ScalarCodec); err != nil {
		return nil, err
	}
	if m.PeerOffset, err = get(b, swap.ParamPeerOffset, nativetx.ScalarCodec); err != nil {
		return nil, err
	}
	if m.PeerSharedBulletProofPart3, err = get(
		b, swap.ParamPeerSharedBulletProofPart3, paramstore.BytesCodec,
	); err != nil {
		return nil, err
	}

	return m, nil
}

// WithdrawInvitation is the shared-withdraw invitation for either the
// Redeem or Refund sub-tx (spec §6.1); SubTx picks which.
type WithdrawInvitation struct {
	SubTx             swap.SubTxID
	Amount            btcutil.Amount
	Fee               btcutil.Amount
	MinHeight         uint32
	PeerPublicExcess  *btcec.PublicKey
	PeerPublicNonce   *btcec.PublicKey
}

// MarshalParams encodes the invitation into its wire bundle.
func (m *WithdrawInvitation) MarshalParams() (*Bundle, error) {
	b := NewBundle(m.SubTx)

	for _, err := range []error{
		put(b, swap.ParamAmount, m.Amount, paramstore.AmountCodec),
		put(b, swap.ParamFee, m.Fee, paramstore.AmountCodec),
		put(b, swap.ParamMinHeight, m.MinHeight, paramstore.Uint32Codec),
		put(b, swap.ParamPeerPublicExcess, m.PeerPublicExcess, paramstore.PubKeyCodec),
		put(b, swap.ParamPeerPublicNonce, m.PeerPublicNonce, paramstore.PubKeyCodec),
	} {
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

// UnmarshalWithdrawInvitation decodes a shared-withdraw invitation bundle.
func UnmarshalWithdrawInvitation(b *Bundle) (*WithdrawInvitation, error) {
	m := &WithdrawInvitation{SubTx: b.SubTx}

	var err error
	if m.Amount, err = get(b, swap.ParamAmount, paramstore.AmountCodec); err != nil {
		return nil, err
	}
	if m.Fee, err = get(b, swap.ParamFee, paramstore.AmountCodec); err != nil {
		return nil, err
	}
	if m.MinHeight, err = get(b, swap.ParamMinHeight, paramstore.Uint32Codec); err != nil {
		return nil, err
	}
	if m.PeerPublicExcess, err = get(b, swap.ParamPeerPublicExcess, paramstore.PubKeyCodec); err != nil {
		return nil, err
	}
	if m.PeerPublicNonce, err = get(b, swap.ParamPeerPublicNonce, paramstore.PubKeyCodec); err != nil {
		return nil, err
	}

	return m, nil
}

// WithdrawConfirmation completes a shared-withdraw's interactive signing
// round (spec §6.1). On the Redeem sub-tx, when sent by the foreign-side
// party, PeerSignature carries the adapted signature σ' = σ + s rather than
// a plain partial signature — see nativetx.AdaptPartialSignature.
// PeerSecretPublicKey is only set (and only marshaled) on the Redeem sub-tx:
// it is the adaptor point S = s*G the native side checks the adapted
// signature against in nativetx.VerifyAdaptedRedeemCommitment, and has no
// meaning on a Refund confirmation. PeerPublicExcess/PeerPublicNonce mirror
// LockConfirmation: the native side never derives the foreign-side party's
// excess/nonce any other way, so without these it could never recompute the
// aggregate output or challenge its own finalizeRedeem/finalizeRefund need.
type WithdrawConfirmation struct {
	SubTx               swap.SubTxID
	PeerSignature       nativetx.Scalar
	PeerOffset          nativetx.Scalar
	PeerPublicExcess    *btcec.PublicKey
	PeerPublicNonce     *btcec.PublicKey
	PeerSecretPublicKey *btcec.PublicKey
}

// MarshalParams encodes the confirmation into its wire bundle.
func (m *WithdrawConfirmation) MarshalParams() (*Bundle, error) {
	b := NewBundle(m.SubTx)

	for _, err := range []error{
		put(b, swap.ParamPeerSignature, m.PeerSignature, nativetx.ScalarCodec),
		put(b, swap.ParamPeerOffset, m.PeerOffset, nativetx.ScalarCodec),
		put(b, swap.ParamPeerPublicExcess, m.PeerPublicExcess, paramstore.PubKeyCodec),
		put(b, swap.ParamPeerPublicNonce, m.PeerPublicNonce, paramstore.PubKeyCodec),
	} {
		if err != nil {
			return nil, err
		}
	}

	if m.SubTx == swap.SubTxNativeRedeem {
		if err := put(
			b, swap.ParamAtomicSwapSecretPublicKey, m.PeerSecretPublicKey, paramstore.PubKeyCodec,
		); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// UnmarshalWithdrawConfirmation decodes a shared-withdraw confirmation
// bundle.
func UnmarshalWithdrawConfirmation(b *Bundle) (*WithdrawConfirmation, error) {
	m := &WithdrawConfirmation{SubTx: b.SubTx}

	var err error
	if m.PeerSignature, err = get(b, swap.ParamPeerSignature, nativetx.ScalarCodec); err != nil {
		return nil, err
	}
	if m.PeerOffset, err = get(b, swap.ParamPeerOffset, nativetx.ScalarCodec); err != nil {
		return nil, err
	}
	if m.PeerPublicExcess, err = get(b, swap.ParamPeerPublicExcess, paramstore.PubKeyCodec); err != nil {
		return nil, err
	}
	if m.PeerPublicNonce, err = get(b, swap.ParamPeerPublicNonce, paramstore.PubKeyCodec); err != nil {
		return nil, err
	}

	if b.SubTx == swap.SubTxNativeRedeem {
		m.PeerSecretPublicKey, _, err = getOptional(
			b, swap.ParamAtomicSwapSecretPublicKey, paramstore.PubKeyCodec,
		)
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

// FailureNotification reports a peer-observed failure (spec §6.1,
// §4.5.3's CheckExternalFailures).
type FailureNotification struct {
	SubTx         swap.SubTxID
	FailureReason swap.ErrorKind
}

// MarshalParams encodes the notification into its wire bundle.
func (m *FailureNotification) MarshalParams() (*Bundle, error) {
	b := NewBundle(m.SubTx)

	if err := put(b, swap.ParamFailureReason, m.FailureReason, paramstore.ErrorKindCodec); err != nil {
		return nil, err
	}

	return b, nil
}

// UnmarshalFailureNotification decodes a failure notification bundle.
func UnmarshalFailureNotification(b *Bundle) (*FailureNotification, error) {
	reason, err := get(b, swap.ParamFailureReason, paramstore.ErrorKindCodec)
	if err != nil {
		return nil, err
	}

	return &FailureNotification{SubTx: b.SubTx, FailureReason: reason}, nil
}
