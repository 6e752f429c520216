package swap

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// ID is the opaque 128-bit identifier of a swap (spec §3, SwapId).
type ID [16]byte

// NewID generates a fresh random swap id, used by InitNewSwap.
func NewID() ID {
	var id ID
	u := uuid.New()
	copy(id[:], u[:])

	return id
}

// IDFromBytes parses a swap id from its 16-byte wire form, used by
// AcceptSwap when the initiator's invitation names the id.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != len(id) {
		return id, NewError(KindMissingParameter, nil)
	}

	copy(id[:], b)

	return id, nil
}

// String returns the canonical UUID-style hex representation.
func (id ID) String() string {
	return uuid.UUID(id).String()
}

// ShortString returns a short hex prefix suitable for log lines.
func (id ID) ShortString() string {
	return hex.EncodeToString(id[:3])
}
