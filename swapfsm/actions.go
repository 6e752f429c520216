package swapfsm

import (
	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/mwswap/swapd/fsm"
	"github.com/mwswap/swapd/nativetx"
	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/peermsg"
	"github.com/mwswap/swapd/swap"
)

// kernelMsg builds the byte string a sub-tx's aggregate kernel signature
// commits to: the sub-tx id and the shared output's serialized excess
// (nativetx.KernelMessage's doc comment).
func kernelMsg(sub swap.SubTxID, aggregateExcess *btcec.PublicKey) nativetx.KernelMessage {
	return append([]byte{byte(sub)}, aggregateExcess.SerializeCompressed()...)
}

func (f *FSM) lockBuilder() *nativetx.LockBuilder {
	return &nativetx.LockBuilder{
		Store:         f.Cfg.Store,
		Keys:          f.Cfg.Keys,
		Inputs:        f.Cfg.Inputs,
		MinLockWindow: f.Cfg.MinLockWindow,
	}
}

func (f *FSM) withdrawBuilder() *nativetx.WithdrawBuilder {
	return &nativetx.WithdrawBuilder{
		Store: f.Cfg.Store,
		Keys:  f.Cfg.Keys,
	}
}

// fail logs err and routes the swap to Failed. Every action reachable before
// a sub-tx is registered with the node gateway ends here: there is nothing
// yet on chain to unwind.
func (f *FSM) fail(err error) fsm.EventType {
	f.Errorf("%v", err)
	return EvFailToFailed
}

// failSubTx routes a sub-tx-scoped failure (spec §7) through
// recordSubTxFailure and returns the event it should produce, for use at an
// action's own return statement.
func (f *FSM) failSubTx(reason swap.ErrorKind, sub swap.SubTxID, notify bool) fsm.EventType {
	ev, err := f.recordSubTxFailure(reason, sub, notify)
	if err != nil {
		return f.fail(err)
	}
	return ev
}

// registrationOutcome is the routing decision derived from polling the
// node gateway's RegisterKernel report for a sub-tx (spec §6.3).
type registrationOutcome int

const (
	regRetry registrationOutcome = iota
	regProceed
	regFail
)

// classifyRegistration turns a RegisterKernel poll result into a routing
// decision, persisting the gateway's unconfirmed-height observation along
// the way. RegOther always fails. RegInvalidContext only fails once the
// kernel has also been observed unconfirmed at a height > 0, a sticky fact
// once seen: a later poll reporting unconfirmedHeight==0 after the kernel
// was evicted from the mempool does not retract it. Otherwise it is
// treated as a stale submission worth retrying.
func (f *FSM) classifyRegistration(sub swap.SubTxID, code swap.RegistrationCode,
	unconfirmedHeight uint32) (registrationOutcome, error) {

	if unconfirmedHeight > 0 {
		if err := setOne(f, sub, swap.ParamKernelUnconfirmedHeight,
			unconfirmedHeight, paramstore.Uint32Codec); err != nil {

			return regRetry, err
		}
	}

	switch code {
	case swap.RegOk:
		return regProceed, nil
	case swap.RegOther:
		return regFail, nil
	case swap.RegInvalidContext:
		seenHeight, ok, err := getParam(f, sub, swap.ParamKernelUnconfirmedHeight, paramstore.Uint32Codec)
		if err != nil {
			return regRetry, err
		}
		if ok && seenHeight > 0 {
			return regFail, nil
		}
		return regRetry, nil
	default:
		return regRetry, nil
	}
}

func (f *FSM) send(kind MessageKind, b *peermsg.Bundle) {
	if err := f.Cfg.Transport.Send(f.Swap.PeerID, kind, b); err != nil {
		f.Warnf("send %v: %v", kind, err)
	}
}

// actionInitial waits for the peer's handshake to be recorded (delivered by
// Deliver on the responder, or written directly by whatever accepted or
// proposed the swap on the initiator) before moving on to construction.
func (f *FSM) actionInitial(_ fsm.EventContext) fsm.EventType {
	_, ok, err := getParam(f, swap.SubTxDefault, swap.ParamAtomicSwapPeerPublicKey, paramstore.PubKeyCodec)
	if err != nil {
		return f.fail(err)
	}
	if !ok {
		return fsm.NoOp
	}

	return EvHandshakeDone
}

// actionBuildingNativeLockTx drives the Lock sub-tx's interactive
// construction (spec §4.2). The native-side owner proposes with a Lock
// invitation; the foreign-side party confirms with its own partial
// signature. Each side considers its own participation complete once it has
// done what its role requires; only the native side ever aggregates and
// validates the full kernel signature, since only it will ever register the
// result with the node gateway.
func (f *FSM) actionBuildingNativeLockTx(_ fsm.EventContext) fsm.EventType {
	sub := swap.SubTxNativeLock

	excess, nonce, offset, err := f.lockBuilder().LoadSharedParameters(f.Swap)
	if err != nil {
		return f.fail(err)
	}
	myExcessPoint := nativetx.ScalarBaseMult(excess)
	myNoncePoint := nativetx.ScalarBaseMult(nonce)

	peerExcess, havePeerExcess, err := getParam(f, sub, swap.ParamPeerPublicExcess, paramstore.PubKeyCodec)
	if err != nil {
		return f.fail(err)
	}
	peerNonce, havePeerNonce, err := getParam(f, sub, swap.ParamPeerPublicNonce, paramstore.PubKeyCodec)
	if err != nil {
		return f.fail(err)
	}

	if f.Swap.Role.IsNativeSide() {
		if _, _, err := f.lockBuilder().SelectInputs(f.ctx, f.Swap); err != nil {
			return f.fail(err)
		}

		if !havePeerExcess || !havePeerNonce {
			if err := f.proposeLockInvitation(excess, nonce); err != nil {
				return f.fail(err)
			}
			return fsm.NoOp
		}

		peerSig, havePeerSig, err := getParam(f, sub, swap.ParamPeerSignature, nativetx.ScalarCodec)
		if err != nil {
			return f.fail(err)
		}
		if !havePeerSig {
			return fsm.NoOp
		}

		outputs, err := f.lockBuilder().CreateOutputs(myExcessPoint, peerExcess)
		if err != nil {
			return f.fail(err)
		}
		msg := kernelMsg(sub, outputs.SharedExcess)

		myPartial, err := f.lockBuilder().CreateKernel(excess, nonce, peerExcess, peerNonce, msg)
		if err != nil {
			return f.fail(err)
		}
		peerPartial := nativetx.PartialSignature{Excess: peerExcess, Nonce: peerNonce, Sig: peerSig}

		if err := f.lockBuilder().IsPeerSignatureValid(myPartial, peerPartial, msg); err != nil {
			return f.fail(err)
		}
		if _, err := f.lockBuilder().FinalizeSignature(myPartial, peerPartial); err != nil {
			return f.fail(err)
		}

		return EvLockConstructed
	}

	// Foreign-side party: wait for the native side's invitation, then
	// confirm with our own partial signature and range-proof part.
	peerPart2, havePart2, err := getParam(f, sub, swap.ParamPeerSharedBulletProofPart2, paramstore.BytesCodec)
	if err != nil {
		return f.fail(err)
	}
	if !havePeerExcess || !havePeerNonce || !havePart2 {
		return fsm.NoOp
	}

	outputs, err := f.lockBuilder().CreateOutputs(myExcessPoint, peerExcess)
	if err != nil {
		return f.fail(err)
	}
	msg := kernelMsg(sub, outputs.SharedExcess)

	myPartial, err := f.lockBuilder().CreateKernel(excess, nonce, peerExcess, peerNonce, msg)
	if err != nil {
		return f.fail(err)
	}

	myPart3, err := f.lockBuilder().CreateSharedRangeProof(
		f.ctx, f.Swap, f.Cfg.RangeProofProver, nativetx.RangeProofPart2(peerPart2),
	)
	if err != nil {
		return f.fail(err)
	}

	f.send(KindLockConfirmation, mustBundle(&peermsg.LockConfirmation{
		PeerPublicExcess:           myExcessPoint,
		PeerPublicNonce:            myNoncePoint,
		PeerSignature:              myPartial.Sig,
		PeerOffset:                 offset,
		PeerSharedBulletProofPart3: myPart3,
	}))

	return EvLockConstructed
}

// proposeLockInvitation sends (idempotently) the native side's Lock
// invitation. It is safe to call on every tick: DeriveScalar is
// deterministic, so repeating the send carries identical values.
func (f *FSM) proposeLockInvitation(excess, nonce nativetx.Scalar) error {
	sub := swap.SubTxNativeLock

	lifetime, err := requireParam(f, swap.SubTxDefault, swap.ParamLifetime, paramstore.Int64Codec)
	if err != nil {
		return err
	}
	maxHeight, err := f.lockBuilder().UpdateMaxHeight(f.Swap, uint32(lifetime))
	if err != nil {
		return err
	}
	if err := setOne(f, sub, swap.ParamMaxHeight, maxHeight, paramstore.Uint32Codec); err != nil {
		return err
	}

	myPubKey, err := requireParam(f, swap.SubTxDefault, swap.ParamAtomicSwapPublicKey, paramstore.PubKeyCodec)
	if err != nil {
		return err
	}

	part2, err := f.Cfg.RangeProofProver.Round2(f.ctx, f.Swap.ID)
	if err != nil {
		return err
	}

	excessPoint := nativetx.ScalarBaseMult(excess)

	f.send(KindLockInvitation, mustBundle(&peermsg.LockInvitation{
		PeerProtoVersion:               swap.ProtoVersion1,
		AtomicSwapPeerPublicKey:        myPubKey,
		Fee:                            f.Swap.Fee,
		PeerMaxHeight:                  maxHeight,
		PeerPublicExcess:               excessPoint,
		PeerPublicNonce:                nativetx.ScalarBaseMult(nonce),
		PeerSharedBulletProofPart2:     part2,
		PeerPublicSharedBlindingFactor: excessPoint,
	}))

	return nil
}

// actionBuildingNativeRefundTx mirrors the Lock round for the Refund sub-tx:
// no adaptor secret is involved, both partials are plain.
func (f *FSM) actionBuildingNativeRefundTx(_ fsm.EventContext) fsm.EventType {
	return f.buildWithdraw(swap.SubTxNativeRefund, false)
}

// actionBuildingNativeRedeemTx mirrors the Lock round for the Redeem sub-tx.
// The foreign-side party generates the adaptor secret the first time this
// action runs for it, and confirms with an adapted partial signature
// (spec §4.3) instead of a plain one.
func (f *FSM) actionBuildingNativeRedeemTx(_ fsm.EventContext) fsm.EventType {
	return f.buildWithdraw(swap.SubTxNativeRedeem, true)
}

// buildWithdraw drives one withdraw sub-tx's construction round. The
// native-side owner proposes; the foreign-side party confirms. adapted
// selects whether the foreign-side party's confirmation carries an adapted
// (Redeem) or plain (Refund) partial signature.
func (f *FSM) buildWithdraw(sub swap.SubTxID, adapted bool) fsm.EventType {
	wb := f.withdrawBuilder()

	excess, nonce, err := wb.LoadSharedParameters(f.Swap, sub)
	if err != nil {
		return f.fail(err)
	}
	myExcessPoint := nativetx.ScalarBaseMult(excess)
	myNoncePoint := nativetx.ScalarBaseMult(nonce)

	peerExcess, havePeerExcess, err := getParam(f, sub, swap.ParamPeerPublicExcess, paramstore.PubKeyCodec)
	if err != nil {
		return f.fail(err)
	}
	peerNonce, havePeerNonce, err := getParam(f, sub, swap.ParamPeerPublicNonce, paramstore.PubKeyCodec)
	if err != nil {
		return f.fail(err)
	}

	if f.Swap.Role.IsNativeSide() {
		// Unlike the Lock round, nothing the native side needs here is
		// awaited in this state: the foreign-side party's excess, nonce
		// and signature come back in WithdrawConfirmation and are only
		// read later. The invitation send is idempotent (DeriveScalar is
		// deterministic),
		// and construction on the native side is done once it has gone
		// out. Whether the peer's signature (and, for Redeem, the secret
		// point) has arrived yet is checked by the Sending* states,
		// which is where the adaptor is actually resolved (spec §4.3).
		f.send(KindWithdrawInvitation, mustBundle(&peermsg.WithdrawInvitation{
			SubTx:            sub,
			Amount:           f.Swap.NativeAmount,
			Fee:              f.Swap.Fee,
			MinHeight:        f.Swap.MinHeight,
			PeerPublicExcess: myExcessPoint,
			PeerPublicNonce:  myNoncePoint,
		}))

		return nextBuildingEvent(sub)
	}

	if !havePeerExcess || !havePeerNonce {
		return fsm.NoOp
	}

	outputs, err := nativetx.AddPoints(myExcessPoint, peerExcess)
	if err != nil {
		return f.fail(err)
	}
	msg := kernelMsg(sub, outputs)

	if !adapted {
		myPartial, err := wb.CreateKernel(excess, nonce, peerExcess, peerNonce, msg)
		if err != nil {
			return f.fail(err)
		}

		f.send(KindWithdrawConfirmation, mustBundle(&peermsg.WithdrawConfirmation{
			SubTx:            sub,
			PeerSignature:    myPartial.Sig,
			PeerOffset:       nonce,
			PeerPublicExcess: myExcessPoint,
			PeerPublicNonce:  myNoncePoint,
		}))

		return nextBuildingEvent(sub)
	}

	secret, err := f.foreignSecret()
	if err != nil {
		return f.fail(err)
	}

	adaptedPartial, err := wb.SignAdaptedRedeemPartial(excess, nonce, peerExcess, peerNonce, msg, secret)
	if err != nil {
		return f.fail(err)
	}

	f.send(KindWithdrawConfirmation, mustBundle(&peermsg.WithdrawConfirmation{
		SubTx:               sub,
		PeerSignature:       adaptedPartial.Sig,
		PeerOffset:          nonce,
		PeerPublicExcess:    myExcessPoint,
		PeerPublicNonce:     myNoncePoint,
		PeerSecretPublicKey: nativetx.ScalarBaseMult(secret),
	}))

	return nextBuildingEvent(sub)
}

// nextBuildingEvent names the event that advances past sub's Building state,
// keeping buildWithdraw usable for both Refund and Redeem.
func nextBuildingEvent(sub swap.SubTxID) fsm.EventType {
	if sub == swap.SubTxNativeRefund {
		return EvRefundConstructed
	}
	return EvRedeemConstructed
}

// foreignSecret returns the foreign-side party's adaptor secret, generating
// and persisting it the first time it is needed (spec §4.3, §4.4: the
// foreign-side party is the one who chooses s and advertises S = s*G before
// either partial signature is exchanged). Invariant 5 (spec §3) is why this
// value is only ever written to the Parameter Store, never marshaled by a
// peermsg type: WithdrawConfirmation carries the public point, not this
// scalar.
func (f *FSM) foreignSecret() (nativetx.Scalar, error) {
	if priv, ok, err := getParam(f, swap.SubTxNativeRedeem,
		swap.ParamAtomicSwapSecretPrivateKey, paramstore.PrivKeyCodec); err != nil {

		return nativetx.Scalar{}, err
	} else if ok {
		return nativetx.ScalarFromPrivateKey(priv), nil
	}

	secret, err := nativetx.NewRandomScalar()
	if err != nil {
		return nativetx.Scalar{}, err
	}

	batch := f.Cfg.Store.NewBatch(f.Swap.ID)
	if err := setAll(batch, swap.SubTxNativeRedeem,
		set(swap.ParamAtomicSwapSecretPrivateKey, secret.PrivateKey(), paramstore.PrivKeyCodec),
		set(swap.ParamAtomicSwapSecretPublicKey, nativetx.ScalarBaseMult(secret), paramstore.PubKeyCodec),
	); err != nil {
		batch.Discard()
		return nativetx.Scalar{}, err
	}
	if err := batch.Commit(); err != nil {
		return nativetx.Scalar{}, err
	}

	return secret, nil
}

// actionHandlingContractTx drives the foreign chain's HTLC lifecycle up to
// the point where both parties trust it exists (spec §4.4). The
// foreign-side party owns broadcasting; the native side only ever consumes
// AddTxDetails once it has been notified.
func (f *FSM) actionHandlingContractTx(_ fsm.EventContext) fsm.EventType {
	ready, err := f.Adapter.Initialize(f.ctx)
	if err != nil {
		return f.fail(err)
	}
	if !ready {
		return fsm.NoOp
	}

	if !f.Swap.Role.IsNativeSide() {
		enough, err := f.Adapter.HasEnoughTimeToProcessLockTx(f.ctx)
		if err != nil {
			return f.fail(err)
		}
		if !enough {
			return f.fail(swap.NewError(swap.KindNotEnoughTimeToFinishForeignTx, nil))
		}

		sent, err := f.Adapter.SendLockTx(f.ctx)
		if err != nil {
			return f.fail(err)
		}
		if !sent {
			return fsm.NoOp
		}

		confirmed, err := f.Adapter.ConfirmLockTx(f.ctx)
		if err != nil {
			return f.fail(err)
		}
		if !confirmed {
			return fsm.NoOp
		}

		details, err := f.Adapter.AddTxDetails(f.ctx)
		if err != nil {
			return f.fail(err)
		}

		f.send(KindExternalTxDetails, mustBundle(&peermsg.ExternalTxDetails{Details: details}))

		return EvContractHandled
	}

	// Native side: wait until the foreign-side party's lock details have
	// been delivered (peermsg.ExternalTxDetails, applied by Deliver).
	if _, ok, err := getParam(f, swap.SubTxDefault, swap.ParamExternalTxDetails, paramstore.BytesCodec); err != nil {
		return f.fail(err)
	} else if !ok {
		return fsm.NoOp
	}

	return EvContractHandled
}

// actionSendingNativeLockTx registers the Lock kernel (native-side owner
// only) and waits for it to confirm, branching by role once it does (spec
// §4.5: SendingNativeLockTx's two outgoing edges).
func (f *FSM) actionSendingNativeLockTx(_ fsm.EventContext) fsm.EventType {
	sub := swap.SubTxNativeLock

	if f.Swap.Role.IsNativeSide() {
		if f.Swap.SubState(sub) < swap.SubTxStateRegistered {
			tx, err := f.assembleLockTransaction()
			if err != nil {
				return f.fail(err)
			}

			code, unconfirmedHeight, err := f.Cfg.Gateway.RegisterKernel(f.ctx, f.Swap.ID, tx)
			if err != nil {
				return f.fail(err)
			}
			outcome, err := f.classifyRegistration(sub, code, unconfirmedHeight)
			if err != nil {
				return f.fail(err)
			}
			switch outcome {
			case regFail:
				return f.failSubTx(swap.KindFailedToRegister, sub, sub == swap.SubTxNativeLock)
			case regRetry:
				return fsm.NoOp
			}

			f.Swap.SetSubState(sub, swap.SubTxStateRegistered)
		}

		height, confirmed, err := f.Cfg.Gateway.FetchConfirmationHeight(f.ctx, f.Swap.ID, sub)
		if err != nil {
			return f.fail(err)
		}
		if !confirmed {
			return fsm.NoOp
		}

		if err := setOne(f, sub, swap.ParamKernelProofHeight, height, paramstore.Uint32Codec); err != nil {
			return f.fail(err)
		}

		f.Swap.SetSubState(sub, swap.SubTxStateConfirmed)
		f.Infof("native lock confirmed at height %d", height)

		return EvLockConfirmed
	}

	// Foreign-side party: it has nothing to register, only to wait for
	// the same confirmation, which it polls from its own Gateway's
	// FetchConfirmationHeight. It persists no proof height of its own.
	height, confirmed, err := f.Cfg.Gateway.FetchConfirmationHeight(f.ctx, f.Swap.ID, sub)
	if err != nil {
		return f.fail(err)
	}
	if !confirmed {
		return fsm.NoOp
	}

	f.Infof("observed native lock confirmed at height %d", height)

	return EvForeignSideLockConfirmed
}

// assembleLockTransaction recomputes the Lock sub-tx's aggregate kernel
// signature from both parties' persisted partials. Nothing about the
// interactive round is re-run: every value it needs was derived
// deterministically or already exchanged during BuildingNativeLockTx.
func (f *FSM) assembleLockTransaction() (*nativetx.Transaction, error) {
	sub := swap.SubTxNativeLock
	lb := f.lockBuilder()

	excess, nonce, _, err := lb.LoadSharedParameters(f.Swap)
	if err != nil {
		return nil, err
	}
	myExcessPoint := nativetx.ScalarBaseMult(excess)

	peerExcess, err := requireParam(f, sub, swap.ParamPeerPublicExcess, paramstore.PubKeyCodec)
	if err != nil {
		return nil, err
	}
	peerNonce, err := requireParam(f, sub, swap.ParamPeerPublicNonce, paramstore.PubKeyCodec)
	if err != nil {
		return nil, err
	}
	peerSig, err := requireParam(f, sub, swap.ParamPeerSignature, nativetx.ScalarCodec)
	if err != nil {
		return nil, err
	}
	maxHeight, err := requireParam(f, sub, swap.ParamMaxHeight, paramstore.Uint32Codec)
	if err != nil {
		return nil, err
	}

	outputs, err := lb.CreateOutputs(myExcessPoint, peerExcess)
	if err != nil {
		return nil, err
	}
	msg := kernelMsg(sub, outputs.SharedExcess)

	myPartial, err := lb.CreateKernel(excess, nonce, peerExcess, peerNonce, msg)
	if err != nil {
		return nil, err
	}
	peerPartial := nativetx.PartialSignature{Excess: peerExcess, Nonce: peerNonce, Sig: peerSig}

	kernel, err := lb.FinalizeSignature(myPartial, peerPartial)
	if err != nil {
		return nil, err
	}

	return nativetx.NewTransaction(sub, kernel, outputs.SharedExcess, f.Swap.MinHeight, maxHeight, msg)
}

// actionSendingNativeRedeemTx is the native-side owner's wait for the
// foreign-side party's own foreign redeem to reveal the adaptor secret
// (spec §4.3), after which it finalizes and registers the Redeem kernel.
func (f *FSM) actionSendingNativeRedeemTx(_ fsm.EventContext) fsm.EventType {
	sub := swap.SubTxNativeRedeem

	if f.Swap.SubState(sub) < swap.SubTxStateRegistered {
		expired, err := f.lockExpired()
		if err != nil {
			return f.fail(err)
		}
		if expired {
			return EvNativeLockExpired
		}

		revealed, err := f.Adapter.ConfirmRedeemTx(f.ctx)
		if err != nil {
			return f.fail(err)
		}
		if !revealed {
			return fsm.NoOp
		}

		preimage, err := f.Adapter.ExtractRedeemSecret(f.ctx)
		if err != nil {
			return f.fail(err)
		}
		secret, err := nativetx.SecretFromPreimage(preimage[:])
		if err != nil {
			return f.fail(err)
		}

		tx, err := f.finalizeRedeem(secret)
		if err != nil {
			return f.fail(err)
		}

		code, unconfirmedHeight, err := f.Cfg.Gateway.RegisterKernel(f.ctx, f.Swap.ID, tx)
		if err != nil {
			return f.fail(err)
		}
		outcome, err := f.classifyRegistration(sub, code, unconfirmedHeight)
		if err != nil {
			return f.fail(err)
		}
		switch outcome {
		case regFail:
			return f.failSubTx(swap.KindFailedToRegister, sub, sub == swap.SubTxNativeLock)
		case regRetry:
			return fsm.NoOp
		}

		f.Swap.SetSubState(sub, swap.SubTxStateRegistered)
	}

	height, confirmed, err := f.Cfg.Gateway.FetchConfirmationHeight(f.ctx, f.Swap.ID, sub)
	if err != nil {
		return f.fail(err)
	}
	if !confirmed {
		return fsm.NoOp
	}

	if err := setOne(f, sub, swap.ParamKernelProofHeight, height, paramstore.Uint32Codec); err != nil {
		return f.fail(err)
	}

	f.Swap.SetSubState(sub, swap.SubTxStateConfirmed)

	return EvRedeemSent
}

// lockExpired reports whether the Lock's MaxHeight has passed without the
// foreign-side party revealing the secret.
func (f *FSM) lockExpired() (bool, error) {
	maxHeight, err := requireParam(f, swap.SubTxNativeLock, swap.ParamMaxHeight, paramstore.Uint32Codec)
	if err != nil {
		return false, err
	}

	tip, err := f.Cfg.Gateway.CurrentHeight(f.ctx)
	if err != nil {
		return false, err
	}

	return tip >= maxHeight, nil
}

// finalizeRedeem reassembles the native-side owner's own plain Redeem
// partial and combines it with the foreign-side party's adapted partial
// (persisted at BuildingNativeRedeemTx) and the now-known secret.
func (f *FSM) finalizeRedeem(secret nativetx.Scalar) (*nativetx.Transaction, error) {
	sub := swap.SubTxNativeRedeem
	wb := f.withdrawBuilder()

	excess, nonce, err := wb.LoadSharedParameters(f.Swap, sub)
	if err != nil {
		return nil, err
	}
	myExcessPoint := nativetx.ScalarBaseMult(excess)

	peerExcess, err := requireParam(f, sub, swap.ParamPeerPublicExcess, paramstore.PubKeyCodec)
	if err != nil {
		return nil, err
	}
	peerNonce, err := requireParam(f, sub, swap.ParamPeerPublicNonce, paramstore.PubKeyCodec)
	if err != nil {
		return nil, err
	}
	peerAdaptedSig, err := requireParam(f, sub, swap.ParamPeerSignature, nativetx.ScalarCodec)
	if err != nil {
		return nil, err
	}
	secretPoint, err := requireParam(f, sub, swap.ParamAtomicSwapSecretPublicKey, paramstore.PubKeyCodec)
	if err != nil {
		return nil, err
	}

	outputs, err := nativetx.AddPoints(myExcessPoint, peerExcess)
	if err != nil {
		return nil, err
	}
	msg := kernelMsg(sub, outputs)

	myPartial, err := wb.CreateKernel(excess, nonce, peerExcess, peerNonce, msg)
	if err != nil {
		return nil, err
	}
	peerAdapted := nativetx.PartialSignature{Excess: peerExcess, Nonce: peerNonce, Sig: peerAdaptedSig}

	if err := nativetx.VerifyAdaptedRedeemCommitment(peerAdapted, myPartial, msg, secretPoint); err != nil {
		return nil, err
	}

	kernel, err := wb.FinalizeRedeem(myPartial, peerAdapted, secret)
	if err != nil {
		return nil, err
	}

	lockMaxHeight, err := requireParam(f, swap.SubTxNativeLock, swap.ParamMaxHeight, paramstore.Uint32Codec)
	if err != nil {
		return nil, err
	}

	return nativetx.NewTransaction(sub, kernel, outputs, f.Swap.MinHeight, lockMaxHeight, msg)
}

// actionSendingRefundTX is the foreign-side party's own redemption of the
// foreign lock, terminology aside ("Refund" here names the branch of the
// diagram taken when the native lock's window has room for the swap to
// still complete; the actual on-chain operation is the foreign-side
// party's redeem, spec §4.5).
func (f *FSM) actionSendingRefundTX(_ fsm.EventContext) fsm.EventType {
	enough, err := f.Adapter.HasEnoughTimeToProcessLockTx(f.ctx)
	if err != nil {
		return f.fail(err)
	}
	if !enough {
		return f.fail(swap.NewError(swap.KindNotEnoughTimeToFinishForeignTx, nil))
	}

	secret, err := f.foreignSecret()
	if err != nil {
		return f.fail(err)
	}
	var secretArr [32]byte
	b := secret.Bytes()
	copy(secretArr[:], b[:])

	sent, err := f.Adapter.SendRedeem(f.ctx, secretArr)
	if err != nil {
		return f.fail(err)
	}
	if !sent {
		return fsm.NoOp
	}

	return EvForeignRedeemObserved
}

// actionSendingRedeemTX confirms the foreign-side party's own foreign
// redeem.
func (f *FSM) actionSendingRedeemTX(_ fsm.EventContext) fsm.EventType {
	confirmed, err := f.Adapter.ConfirmRedeemTx(f.ctx)
	if err != nil {
		return f.fail(err)
	}
	if !confirmed {
		return fsm.NoOp
	}

	return EvRedeemSent
}

// actionSendingNativeRefundTx finalizes and registers the native Refund
// kernel, always driven by the native-side owner (only it has gateway
// access); the foreign-side party has no action here beyond waiting for its
// own foreign refund path, driven separately by CheckExpired/OnFailed.
func (f *FSM) actionSendingNativeRefundTx(_ fsm.EventContext) fsm.EventType {
	sub := swap.SubTxNativeRefund

	if !f.Swap.Role.IsNativeSide() {
		refunded, err := f.Adapter.ConfirmRefundTx(f.ctx)
		if err != nil {
			return f.fail(err)
		}
		if !refunded {
			return fsm.NoOp
		}
		return EvNativeRefundSent
	}

	if f.Swap.SubState(sub) < swap.SubTxStateRegistered {
		tx, err := f.finalizeRefund()
		if err != nil {
			return f.fail(err)
		}

		code, unconfirmedHeight, err := f.Cfg.Gateway.RegisterKernel(f.ctx, f.Swap.ID, tx)
		if err != nil {
			return f.fail(err)
		}
		outcome, err := f.classifyRegistration(sub, code, unconfirmedHeight)
		if err != nil {
			return f.fail(err)
		}
		switch outcome {
		case regFail:
			return f.failSubTx(swap.KindFailedToRegister, sub, sub == swap.SubTxNativeLock)
		case regRetry:
			return fsm.NoOp
		}

		f.Swap.SetSubState(sub, swap.SubTxStateRegistered)
	}

	height, confirmed, err := f.Cfg.Gateway.FetchConfirmationHeight(f.ctx, f.Swap.ID, sub)
	if err != nil {
		return f.fail(err)
	}
	if !confirmed {
		return fsm.NoOp
	}

	if err := setOne(f, sub, swap.ParamKernelProofHeight, height, paramstore.Uint32Codec); err != nil {
		return f.fail(err)
	}

	f.Swap.SetSubState(sub, swap.SubTxStateConfirmed)

	return EvNativeRefundSent
}

func (f *FSM) finalizeRefund() (*nativetx.Transaction, error) {
	sub := swap.SubTxNativeRefund
	wb := f.withdrawBuilder()

	excess, nonce, err := wb.LoadSharedParameters(f.Swap, sub)
	if err != nil {
		return nil, err
	}
	myExcessPoint := nativetx.ScalarBaseMult(excess)

	peerExcess, err := requireParam(f, sub, swap.ParamPeerPublicExcess, paramstore.PubKeyCodec)
	if err != nil {
		return nil, err
	}
	peerNonce, err := requireParam(f, sub, swap.ParamPeerPublicNonce, paramstore.PubKeyCodec)
	if err != nil {
		return nil, err
	}
	peerSig, err := requireParam(f, sub, swap.ParamPeerSignature, nativetx.ScalarCodec)
	if err != nil {
		return nil, err
	}

	outputs, err := nativetx.AddPoints(myExcessPoint, peerExcess)
	if err != nil {
		return nil, err
	}
	msg := kernelMsg(sub, outputs)

	myPartial, err := wb.CreateKernel(excess, nonce, peerExcess, peerNonce, msg)
	if err != nil {
		return nil, err
	}
	peerPartial := nativetx.PartialSignature{Excess: peerExcess, Nonce: peerNonce, Sig: peerSig}

	kernel, err := wb.FinalizeRefund(myPartial, peerPartial)
	if err != nil {
		return nil, err
	}

	lockMaxHeight, err := requireParam(f, swap.SubTxNativeLock, swap.ParamMaxHeight, paramstore.Uint32Codec)
	if err != nil {
		return nil, err
	}

	return nativetx.NewTransaction(sub, kernel, outputs, lockMaxHeight, 0, msg)
}

// mustBundle marshals a peermsg type, logging and returning an empty bundle
// on failure rather than panicking: send is best-effort and Deliver on the
// peer's side will simply time out waiting for a bundle that never arrived
// correctly.
func mustBundle(m interface {
	MarshalParams() (*peermsg.Bundle, error)
}) *peermsg.Bundle {

	b, err := m.MarshalParams()
	if err != nil {
		log.Errorf("marshal outgoing bundle: %v", err)
		return peermsg.NewBundle(swap.SubTxDefault)
	}

	return b
}
