// Package foreignswap implements the Foreign Side Adapter contract (spec
// §4.4): the capability set the swap state machine uses to drive the
// foreign chain's half of a swap without knowing anything about that
// chain's transaction format. The interface itself is the coordinator's
// concern; a concrete Bitcoin-family hash-timelock-contract implementation
// lives alongside it in this package as the coordinator's actual foreign
// chain today.
package foreignswap

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// TxDetails carries the adapter-defined, peer-observable identifiers of the
// foreign lock, filled in by AddTxDetails and carried in the "External tx
// details" peer message bundle (spec §6.1). Its fields are opaque to the
// swap state machine; only the adapter that produced them interprets them.
type TxDetails struct {
	// LockTxID identifies the foreign lock transaction.
	LockTxID []byte

	// LockOutputIndex is the output within LockTxID holding the HTLC.
	LockOutputIndex uint32

	// LockScript is the adapter's serialized HTLC script, needed by the
	// counterparty to verify the lock before trusting it.
	LockScript []byte
}

// Marshal serializes TxDetails for the "External tx details" peer message
// bundle (spec §6.1): each field length-prefixed, since an adapter's
// identifiers are opaque, variable-length byte strings to everyone but
// itself.
func (d *TxDetails) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	for _, field := range [][]byte{d.LockTxID, d.LockScript} {
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		if _, err := buf.Write(field); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.BigEndian, d.LockOutputIndex); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// UnmarshalTxDetails parses the bytes produced by TxDetails.Marshal.
func UnmarshalTxDetails(data []byte) (*TxDetails, error) {
	r := bytes.NewReader(data)
	d := &TxDetails{}

	for _, field := range []*[]byte{&d.LockTxID, &d.LockScript} {
		var length uint16
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, fmt.Errorf("read field length: %w", err)
		}

		*field = make([]byte, length)
		if _, err := io.ReadFull(r, *field); err != nil {
			return nil, fmt.Errorf("read field value: %w", err)
		}
	}

	if err := binary.Read(r, binary.BigEndian, &d.LockOutputIndex); err != nil {
		return nil, fmt.Errorf("read lock output index: %w", err)
	}

	return d, nil
}

// Adapter is the capability set the swap state machine drives the foreign
// chain through (spec §4.4). Every method is polled: a false return means
// "not yet, try again on the next tip" rather than an error, and no method
// blocks.
type Adapter interface {
	// Initialize is idempotent and may return false while waiting for
	// the peer's public key; it must become true eventually or the
	// caller times out the init state.
	Initialize(ctx context.Context) (bool, error)

	// InitLockTime is called by the initiator only: it chooses
	// foreign_lock_time respecting the safety margin against the
	// native chain's lock height.
	InitLockTime(ctx context.Context, nativeLockHeight uint32,
		safetyMargin int64) (foreignLockTime int64, err error)

	// ValidateLockTime is called by the responder only: it rejects a
	// peer-proposed foreign_lock_time that violates the safety margin.
	ValidateLockTime(ctx context.Context, foreignLockTime int64,
		nativeLockHeight uint32, safetyMargin int64) (bool, error)

	// HasEnoughTimeToProcessLockTx is the foreign-side party's
	// pre-flight check before committing to broadcast.
	HasEnoughTimeToProcessLockTx(ctx context.Context) (bool, error)

	// SendLockTx broadcasts the foreign lock, returning false until it
	// has been submitted.
	SendLockTx(ctx context.Context) (bool, error)

	// ConfirmLockTx returns true once the foreign lock has the
	// adapter's required confirmation depth.
	ConfirmLockTx(ctx context.Context) (bool, error)

	// IsLockTimeExpired reports whether the foreign lock's timeout has
	// passed on the foreign chain's own clock/height.
	IsLockTimeExpired(ctx context.Context) (bool, error)

	// SendRefund broadcasts the foreign refund path.
	SendRefund(ctx context.Context) (bool, error)

	// ConfirmRefundTx returns true once the refund is sufficiently
	// confirmed.
	ConfirmRefundTx(ctx context.Context) (bool, error)

	// SendRedeem broadcasts the foreign redeem, revealing secret in its
	// witness data.
	SendRedeem(ctx context.Context, secret [32]byte) (bool, error)

	// ConfirmRedeemTx returns true once the redeem is sufficiently
	// confirmed, and is also how the counterparty's redeem is observed:
	// see ExtractRedeemSecret.
	ConfirmRedeemTx(ctx context.Context) (bool, error)

	// ExtractRedeemSecret returns the secret revealed by a confirmed
	// foreign redeem, once ConfirmRedeemTx has observed one. This is
	// the coordinator's concrete bridge for the adaptor-secret
	// mechanism (spec §4.3, §9): the native side calls this instead of
	// deriving s from a foreign "kernel signature", since this
	// adapter's foreign chain is a plain hash-lock rather than a
	// Schnorr-adaptor-signature chain.
	ExtractRedeemSecret(ctx context.Context) ([32]byte, error)

	// AddTxDetails fills in the peer-observable identifiers of the
	// foreign lock once it exists.
	AddTxDetails(ctx context.Context) (*TxDetails, error)
}
