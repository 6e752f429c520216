package nativetx

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/mwswap/swapd/swap"
)

// Purpose distinguishes the three scalars a party derives for one native
// sub-tx: its blinding excess, its signing nonce, and its kernel offset.
type Purpose uint8

const (
	PurposeExcess Purpose = iota
	PurposeNonce
	PurposeOffset
)

func (p Purpose) String() string {
	switch p {
	case PurposeExcess:
		return "Excess"
	case PurposeNonce:
		return "Nonce"
	case PurposeOffset:
		return "Offset"
	default:
		return "Unknown"
	}
}

// KeySource derives the local scalars a native sub-tx needs. Key
// derivation and storage are out of scope for this coordinator (spec §1);
// KeySource is the seam a real wallet's keychain plugs into. Because
// derivation is deterministic in (id, sub, purpose), the coordinator never
// needs to persist these scalars itself: generate_offset/generate_nonce
// "persisting" (spec §4.2) is satisfied by the wallet's own key derivation
// index bookkeeping, not by the Parameter Store.
type KeySource interface {
	DeriveScalar(id swap.ID, sub swap.SubTxID, purpose Purpose) (Scalar, error)
}

// DeterministicKeySource is a reference KeySource, deriving each scalar as
// HMAC-SHA256(seed, id || sub || purpose) with its top bit cleared. It
// stands in for a real wallet's BIP32-style keychain (the teacher's own
// KeyFamily/KeyLocator convention) so this coordinator has a working,
// testable default; production deployments inject their wallet's own
// KeySource instead.
type DeterministicKeySource struct {
	Seed [32]byte
}

// DeriveScalar implements KeySource.
func (d DeterministicKeySource) DeriveScalar(id swap.ID, sub swap.SubTxID,
	purpose Purpose) (Scalar, error) {

	mac := hmac.New(sha256.New, d.Seed[:])
	mac.Write(id[:])
	mac.Write([]byte{byte(sub)})
	mac.Write([]byte{byte(purpose)})

	return ScalarFromBytes(reduceToScalar(mac.Sum(nil)))
}

// reduceToScalar is a thin adapter so DeriveScalar can reuse the strict
// ScalarFromBytes parser: it clears the top bit of every 32-byte HMAC output,
// not only of one that would exceed the group order, which keeps the result
// below the order and is still uniform enough for key-derivation purposes.
func reduceToScalar(b []byte) []byte {
	out := append([]byte(nil), b...)
	out[0] &= 0x7f

	return out
}
