package nativetx

import (
	"fmt"

	"github.com/mwswap/swapd/paramstore"
)

// ScalarCodec encodes a Scalar in its canonical 32-byte form, used for the
// PeerSignature and PeerOffset parameter store slots.
var ScalarCodec = paramstore.Codec[Scalar]{
	Encode: func(v Scalar) ([]byte, error) {
		b := v.Bytes()
		return b[:], nil
	},
	Decode: func(b []byte) (Scalar, error) {
		s, err := ScalarFromBytes(b)
		if err != nil {
			return Scalar{}, fmt.Errorf("decode scalar: %w", err)
		}
		return s, nil
	},
}
