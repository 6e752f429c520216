package swapfsm

import (
	"fmt"

	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/peermsg"
	"github.com/mwswap/swapd/swap"
)

// MessageKind names which peer message a wire frame carries. Framing
// messages with an explicit kind ahead of the bundle bytes is the
// transport's concern (out of scope, spec §1); Deliver only needs to know
// which peermsg.Unmarshal* function applies once the bytes are in hand.
type MessageKind uint8

const (
	KindInvitation MessageKind = iota
	KindExternalTxDetails
	KindLockInvitation
	KindLockConfirmation
	KindWithdrawInvitation
	KindWithdrawConfirmation
	KindFailureNotification
)

// Deliver applies an incoming peer message bundle to the Parameter Store
// and wakes the state machine, satisfying spec §5's "delivery of a peer
// message" wakeup source.
func (f *FSM) Deliver(kind MessageKind, raw []byte) error {
	b, err := peermsg.UnmarshalBundle(raw)
	if err != nil {
		return fmt.Errorf("unmarshal bundle: %w", err)
	}

	batch := f.Cfg.Store.NewBatch(f.Swap.ID)

	if err := applyBundle(batch, b, kind); err != nil {
		batch.Discard()
		return err
	}

	if err := batch.Commit(); err != nil {
		return fmt.Errorf("commit delivered bundle: %w", err)
	}

	f.Infof("delivered %v bundle for sub-tx %v", kind, b.SubTx)

	if kind == KindFailureNotification {
		return f.CheckExternalFailures(b.SubTx)
	}

	return f.SendEvent(EvUpdate, b)
}

// String returns the log name of the message kind.
func (k MessageKind) String() string {
	switch k {
	case KindInvitation:
		return "Invitation"
	case KindExternalTxDetails:
		return "ExternalTxDetails"
	case KindLockInvitation:
		return "LockInvitation"
	case KindLockConfirmation:
		return "LockConfirmation"
	case KindWithdrawInvitation:
		return "WithdrawInvitation"
	case KindWithdrawConfirmation:
		return "WithdrawConfirmation"
	case KindFailureNotification:
		return "FailureNotification"
	default:
		return "Unknown"
	}
}

func applyBundle(batch *paramstore.Batch, b *peermsg.Bundle, kind MessageKind) error {
	switch kind {
	case KindInvitation:
		m, err := peermsg.UnmarshalInvitation(b)
		if err != nil {
			return err
		}
		return setAll(batch, swap.SubTxDefault,
			set(swap.ParamAmount, m.Amount, paramstore.AmountCodec),
			set(swap.ParamFee, m.Fee, paramstore.AmountCodec),
			set(swap.ParamIsSender, m.IsSender, paramstore.BoolCodec),
			set(swap.ParamLifetime, m.Lifetime, paramstore.Int64Codec),
			set(swap.ParamAtomicSwapAmount, m.AtomicSwapAmount, paramstore.AmountCodec),
			set(swap.ParamAtomicSwapCoin, m.AtomicSwapCoin, paramstore.StringCodec),
			set(swap.ParamAtomicSwapPeerPublicKey, m.AtomicSwapPeerPublicKey, paramstore.PubKeyCodec),
			set(swap.ParamAtomicSwapExternalLockTime, m.AtomicSwapExternalLockTime, paramstore.Int64Codec),
			set(swap.ParamAtomicSwapIsNativeSide, m.AtomicSwapIsNativeSide, paramstore.BoolCodec),
			set(swap.ParamPeerProtoVersion, m.PeerProtoVersion, paramstore.ProtoVersionCodec),
		)

	case KindExternalTxDetails:
		m, err := peermsg.UnmarshalExternalTxDetails(b)
		if err != nil {
			return err
		}
		raw, err := m.Details.Marshal()
		if err != nil {
			return err
		}
		return setAll(batch, swap.SubTxDefault,
			set(swap.ParamExternalTxDetails, raw, paramstore.BytesCodec),
		)

	case KindLockInvitation:
		m, err := peermsg.UnmarshalLockInvitation(b)
		if err != nil {
			return err
		}
		return setAll(batch, swap.SubTxNativeLock,
			set(swap.ParamAtomicSwapPeerPublicKey, m.AtomicSwapPeerPublicKey, paramstore.PubKeyCodec),
			set(swap.ParamFee, m.Fee, paramstore.AmountCodec),
			set(swap.ParamPeerMaxHeight, m.PeerMaxHeight, paramstore.Uint32Codec),
			set(swap.ParamPeerPublicExcess, m.PeerPublicExcess, paramstore.PubKeyCodec),
			set(swap.ParamPeerPublicNonce, m.PeerPublicNonce, paramstore.PubKeyCodec),
			set(swap.ParamPeerSharedBulletProofPart2, m.PeerSharedBulletProofPart2, paramstore.BytesCodec),
			set(swap.ParamPeerPublicSharedBlindingFactor, m.PeerPublicSharedBlindingFactor, paramstore.PubKeyCodec),
		)

	case KindLockConfirmation:
		m, err := peermsg.UnmarshalLockConfirmation(b)
		if err != nil {
			return err
		}
		return setAll(batch, swap.SubTxNativeLock,
			set(swap.ParamPeerPublicExcess, m.PeerPublicExcess, paramstore.PubKeyCodec),
			set(swap.ParamPeerPublicNonce, m.PeerPublicNonce, paramstore.PubKeyCodec),
			setScalar(swap.ParamPeerSignature, m.PeerSignature),
			setScalar(swap.ParamPeerOffset, m.PeerOffset),
			set(swap.ParamPeerSharedBulletProofPart3, m.PeerSharedBulletProofPart3, paramstore.BytesCodec),
		)

	case KindWithdrawInvitation:
		m, err := peermsg.UnmarshalWithdrawInvitation(b)
		if err != nil {
			return err
		}
		return setAll(batch, m.SubTx,
			set(swap.ParamAmount, m.Amount, paramstore.AmountCodec),
			set(swap.ParamFee, m.Fee, paramstore.AmountCodec),
			set(swap.ParamMinHeight, m.MinHeight, paramstore.Uint32Codec),
			set(swap.ParamPeerPublicExcess, m.PeerPublicExcess, paramstore.PubKeyCodec),
			set(swap.ParamPeerPublicNonce, m.PeerPublicNonce, paramstore.PubKeyCodec),
		)

	case KindWithdrawConfirmation:
		m, err := peermsg.UnmarshalWithdrawConfirmation(b)
		if err != nil {
			return err
		}
		writes := []pendingWrite{
			setScalar(swap.ParamPeerSignature, m.PeerSignature),
			setScalar(swap.ParamPeerOffset, m.PeerOffset),
			set(swap.ParamPeerPublicExcess, m.PeerPublicExcess, paramstore.PubKeyCodec),
			set(swap.ParamPeerPublicNonce, m.PeerPublicNonce, paramstore.PubKeyCodec),
		}
		if m.SubTx == swap.SubTxNativeRedeem {
			writes = append(writes, set(
				swap.ParamAtomicSwapSecretPublicKey, m.PeerSecretPublicKey, paramstore.PubKeyCodec,
			))
		}
		return setAll(batch, m.SubTx, writes...)

	case KindFailureNotification:
		m, err := peermsg.UnmarshalFailureNotification(b)
		if err != nil {
			return err
		}
		return setAll(batch, m.SubTx,
			set(swap.ParamFailureReason, m.FailureReason, paramstore.ErrorKindCodec),
		)

	default:
		return fmt.Errorf("unknown message kind %v", kind)
	}
}
