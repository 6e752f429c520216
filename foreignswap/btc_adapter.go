package foreignswap

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/mwswap/swapd/swap"
)

// UTXO is a single Bitcoin-family input this adapter may spend to fund its
// lock transaction.
type UTXO struct {
	Outpoint wire.OutPoint
	PkScript []byte
	Value    btcutil.Amount
}

// FundingSource selects Bitcoin-family inputs, the coordinator's seam into
// the out-of-scope foreign-chain wallet.
type FundingSource interface {
	SelectUTXO(ctx context.Context, amount btcutil.Amount) (UTXO, error)
}

// Signer produces a signature over the HTLC's redeem script for one of
// this adapter's own transactions, the coordinator's seam into the
// out-of-scope foreign-chain wallet's key material.
type Signer interface {
	SignHtlc(ctx context.Context, tx *wire.MsgTx, inputIndex int,
		script []byte, amount btcutil.Amount) ([]byte, error)
	PubKey() *btcec.PublicKey
}

// BtcAdapterConfig configures one swap's Bitcoin HTLC adapter.
type BtcAdapterConfig struct {
	ChainParams      *chaincfg.Params
	Chain            ChainClient
	Funding          FundingSource
	Signer           Signer
	IsInitiator      bool
	SecretHash       [32]byte
	ReceiverPKH      [20]byte
	SenderPKH        [20]byte
	Amount           btcutil.Amount
	MinConfirmations int32
	CltvSafetyMargin int64
}

// BtcAdapter is the concrete Adapter (spec §4.4) for a Bitcoin-family
// foreign chain, built on the canonical CLTV+hash HtlcV1 script.
type BtcAdapter struct {
	cfg BtcAdapterConfig

	htlc         *HtlcV1
	lockTx       *wire.MsgTx
	lockOutIndex uint32
	redeemTx     *wire.MsgTx
	refundTx     *wire.MsgTx
}

// NewBtcAdapter constructs an adapter; it does not touch the chain client
// until Initialize is polled.
func NewBtcAdapter(cfg BtcAdapterConfig) *BtcAdapter {
	return &BtcAdapter{cfg: cfg}
}

// NewBtcAdapterFactory builds an AdapterFactory that closes over the shared
// chain plumbing (chain client, funding source, signer, chain params).
// Callers register the result under whichever AtomicSwapCoin name they use
// for Bitcoin (for example "BTC") via RegisterFactory; each call produces a
// fresh *BtcAdapter for one swap, filling in that swap's own secret hash
// and the sender/receiver key hashes implied by its role.
func NewBtcAdapterFactory(chainParams *chaincfg.Params, chain ChainClient,
	funding FundingSource, signer Signer, minConfirmations int32,
	cltvSafetyMargin int64) AdapterFactory {

	return func(params AdapterParams) (Adapter, error) {
		myPKH := btcutil.Hash160(signer.PubKey().SerializeCompressed())
		peerPKH := btcutil.Hash160(params.CounterpartyKey)

		var receiverPKH, senderPKH [20]byte
		if params.IsInitiator {
			copy(senderPKH[:], myPKH)
			copy(receiverPKH[:], peerPKH)
		} else {
			copy(receiverPKH[:], myPKH)
			copy(senderPKH[:], peerPKH)
		}

		return NewBtcAdapter(BtcAdapterConfig{
			ChainParams:      chainParams,
			Chain:            chain,
			Funding:          funding,
			Signer:           signer,
			IsInitiator:      params.IsInitiator,
			SecretHash:       params.SecretHash,
			ReceiverPKH:      receiverPKH,
			SenderPKH:        senderPKH,
			Amount:           params.Amount,
			MinConfirmations: minConfirmations,
			CltvSafetyMargin: cltvSafetyMargin,
		}), nil
	}
}

// Initialize reports whether the HTLC has been built, which InitLockTime or
// ValidateLockTime does once a CltvExpiry is set; it builds nothing itself.
func (a *BtcAdapter) Initialize(ctx context.Context) (bool, error) {
	if a.htlc == nil {
		return false, nil
	}

	return true, nil
}

// InitLockTime sets foreign_lock_time to the foreign chain's current height
// plus safetyMargin and builds the HTLC with it as CltvExpiry. nativeLockHeight
// is not used: the result is not checked against the native chain's own lock
// height.
func (a *BtcAdapter) InitLockTime(ctx context.Context, nativeLockHeight uint32,
	safetyMargin int64) (int64, error) {

	height, err := a.cfg.Chain.CurrentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("current height: %w", err)
	}

	expiry := int64(height) + safetyMargin
	a.setCltvExpiry(expiry)

	return expiry, nil
}

// ValidateLockTime accepts a peer-proposed foreign_lock_time that is at
// least the foreign chain's current height plus safetyMargin, and builds the
// HTLC with it. nativeLockHeight is not used: the proposal is not compared
// with the native chain's lock height, so this check alone does not rule out
// both refund paths being open at the same time.
func (a *BtcAdapter) ValidateLockTime(ctx context.Context, foreignLockTime int64,
	nativeLockHeight uint32, safetyMargin int64) (bool, error) {

	height, err := a.cfg.Chain.CurrentHeight(ctx)
	if err != nil {
		return false, fmt.Errorf("current height: %w", err)
	}

	if foreignLockTime < int64(height)+safetyMargin {
		return false, nil
	}

	a.setCltvExpiry(foreignLockTime)

	return true, nil
}

func (a *BtcAdapter) setCltvExpiry(expiry int64) {
	a.htlc = &HtlcV1{
		CltvExpiry:  expiry,
		SecretHash:  a.cfg.SecretHash,
		ReceiverPKH: a.cfg.ReceiverPKH,
		SenderPKH:   a.cfg.SenderPKH,
		ChainParams: a.cfg.ChainParams,
	}
}

// HasEnoughTimeToProcessLockTx is the foreign-side party's pre-flight
// check: it refuses to broadcast a lock so close to expiry that a
// subsequent redeem cannot realistically confirm in time.
func (a *BtcAdapter) HasEnoughTimeToProcessLockTx(ctx context.Context) (bool, error) {
	if a.htlc == nil {
		return false, nil
	}

	height, err := a.cfg.Chain.CurrentHeight(ctx)
	if err != nil {
		return false, fmt.Errorf("current height: %w", err)
	}

	const minRemainingBlocks = 6

	return a.htlc.CltvExpiry-int64(height) >= minRemainingBlocks, nil
}

// SendLockTx broadcasts the HTLC funding transaction.
func (a *BtcAdapter) SendLockTx(ctx context.Context) (bool, error) {
	if a.lockTx != nil {
		return true, nil
	}
	if a.htlc == nil {
		return false, nil
	}

	utxo, err := a.cfg.Funding.SelectUTXO(ctx, a.cfg.Amount)
	if err != nil {
		return false, fmt.Errorf("select utxo: %w", err)
	}

	pkScript, err := a.htlc.PkScript()
	if err != nil {
		return false, fmt.Errorf("build htlc pkscript: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&utxo.Outpoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(a.cfg.Amount), pkScript))

	sig, err := a.cfg.Signer.SignHtlc(ctx, tx, 0, utxo.PkScript, utxo.Value)
	if err != nil {
		return false, fmt.Errorf("sign lock tx: %w", err)
	}
	tx.TxIn[0].Witness = wire.TxWitness{sig, a.cfg.Signer.PubKey().SerializeCompressed()}

	if err := a.cfg.Chain.PublishTransaction(ctx, tx); err != nil {
		return false, swap.NewError(swap.KindFailedToRegister, err)
	}

	a.lockTx = tx
	a.lockOutIndex = 0

	return true, nil
}

// ConfirmLockTx polls for the lock's confirmation depth.
func (a *BtcAdapter) ConfirmLockTx(ctx context.Context) (bool, error) {
	if a.lockTx == nil {
		return false, nil
	}

	return a.confirmed(ctx, a.lockTx)
}

func (a *BtcAdapter) confirmed(ctx context.Context, tx *wire.MsgTx) (bool, error) {
	txid := tx.TxHash()

	confs, err := a.cfg.Chain.Confirmations(ctx, &txid)
	if err != nil {
		return false, fmt.Errorf("confirmations: %w", err)
	}

	return confs >= a.cfg.MinConfirmations, nil
}

// IsLockTimeExpired reports whether the HTLC's CLTV height has passed.
func (a *BtcAdapter) IsLockTimeExpired(ctx context.Context) (bool, error) {
	if a.htlc == nil {
		return false, nil
	}

	height, err := a.cfg.Chain.CurrentHeight(ctx)
	if err != nil {
		return false, fmt.Errorf("current height: %w", err)
	}

	return int64(height) >= a.htlc.CltvExpiry, nil
}

// SendRefund broadcasts the timeout-branch spend, returnable only by
// cfg.SenderPKH's owner.
func (a *BtcAdapter) SendRefund(ctx context.Context) (bool, error) {
	if a.refundTx != nil {
		return true, nil
	}
	if a.lockTx == nil {
		return false, nil
	}

	script, err := a.htlc.Script()
	if err != nil {
		return false, fmt.Errorf("htlc script: %w", err)
	}

	lockTxHash := a.lockTx.TxHash()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.LockTime = uint32(a.htlc.CltvExpiry)

	in := wire.NewTxIn(wire.NewOutPoint(&lockTxHash, a.lockOutIndex), nil, nil)
	in.Sequence = wire.MaxTxInSequenceNum - 1
	tx.AddTxIn(in)

	sig, err := a.cfg.Signer.SignHtlc(ctx, tx, 0, script, a.cfg.Amount)
	if err != nil {
		return false, fmt.Errorf("sign refund: %w", err)
	}
	tx.TxIn[0].Witness = RefundWitness(sig, a.cfg.Signer.PubKey().SerializeCompressed(), script)

	if err := a.cfg.Chain.PublishTransaction(ctx, tx); err != nil {
		return false, fmt.Errorf("publish refund: %w", err)
	}

	a.refundTx = tx

	return true, nil
}

// ConfirmRefundTx polls for the refund's confirmation depth.
func (a *BtcAdapter) ConfirmRefundTx(ctx context.Context) (bool, error) {
	if a.refundTx == nil {
		return false, nil
	}

	return a.confirmed(ctx, a.refundTx)
}

// SendRedeem broadcasts the preimage-branch spend, revealing secret on
// chain — the event the native side watches for (spec §4.3).
func (a *BtcAdapter) SendRedeem(ctx context.Context, secret [32]byte) (bool, error) {
	if a.redeemTx != nil {
		return true, nil
	}
	if a.lockTx == nil {
		return false, nil
	}

	script, err := a.htlc.Script()
	if err != nil {
		return false, fmt.Errorf("htlc script: %w", err)
	}

	lockTxHash := a.lockTx.TxHash()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&lockTxHash, a.lockOutIndex), nil, nil))

	sig, err := a.cfg.Signer.SignHtlc(ctx, tx, 0, script, a.cfg.Amount)
	if err != nil {
		return false, fmt.Errorf("sign redeem: %w", err)
	}
	tx.TxIn[0].Witness = RedeemWitness(
		sig, a.cfg.Signer.PubKey().SerializeCompressed(), secret[:], script,
	)

	if err := a.cfg.Chain.PublishTransaction(ctx, tx); err != nil {
		return false, fmt.Errorf("publish redeem: %w", err)
	}

	a.redeemTx = tx

	return true, nil
}

// ConfirmRedeemTx polls for the redeem's confirmation depth. Once a redeem
// has been observed — whether this party's own or, via the shared lock
// output, the counterparty's — ExtractRedeemSecret becomes callable.
func (a *BtcAdapter) ConfirmRedeemTx(ctx context.Context) (bool, error) {
	if a.redeemTx != nil {
		confirmed, err := a.confirmed(ctx, a.redeemTx)
		if err != nil || confirmed {
			return confirmed, err
		}
	}
	if a.lockTx == nil {
		return false, nil
	}

	lockTxHash := a.lockTx.TxHash()

	witness, ok, err := a.cfg.Chain.FetchRedeemWitness(ctx, &lockTxHash, a.lockOutIndex)
	if err != nil {
		return false, fmt.Errorf("fetch redeem witness: %w", err)
	}

	return ok && len(witness) > 0, nil
}

// ExtractRedeemSecret returns the preimage revealed by a confirmed foreign
// redeem, by inspecting the witness stack of whoever spent the lock output.
func (a *BtcAdapter) ExtractRedeemSecret(ctx context.Context) ([32]byte, error) {
	var secret [32]byte

	if a.lockTx == nil {
		return secret, fmt.Errorf("no lock transaction observed yet")
	}

	lockTxHash := a.lockTx.TxHash()

	witness, ok, err := a.cfg.Chain.FetchRedeemWitness(ctx, &lockTxHash, a.lockOutIndex)
	if err != nil {
		return secret, fmt.Errorf("fetch redeem witness: %w", err)
	}
	if !ok {
		return secret, fmt.Errorf("htlc output not yet spent")
	}

	// RedeemWitness lays out {sig, pubKey, preimage, true, script}.
	const preimagePos = 2
	if len(witness) <= preimagePos || len(witness[preimagePos]) != 32 {
		return secret, fmt.Errorf("spend witness is not a redeem (refund path taken)")
	}

	copy(secret[:], witness[preimagePos])

	return secret, nil
}

// AddTxDetails fills in the peer-observable identifiers of the foreign
// lock (spec §6.1's "External tx details" bundle).
func (a *BtcAdapter) AddTxDetails(ctx context.Context) (*TxDetails, error) {
	if a.lockTx == nil {
		return nil, fmt.Errorf("lock transaction not yet sent")
	}

	script, err := a.htlc.Script()
	if err != nil {
		return nil, fmt.Errorf("htlc script: %w", err)
	}

	txid := a.lockTx.TxHash()

	return &TxDetails{
		LockTxID:        txid[:],
		LockOutputIndex: a.lockOutIndex,
		LockScript:      script,
	}, nil
}

var _ Adapter = (*BtcAdapter)(nil)
