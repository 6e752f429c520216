// Package paramstore implements the per-swap typed key/value bag described
// in spec §4.1: a dictionary keyed by (sub_tx_id, parameter_id) that backs
// every swap's crash-resumable state.
package paramstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/mwswap/swapd/swap"
)

// byteOrder is used for every fixed-width value this package encodes,
// matching the convention the wallet database's own contract/state codecs
// use.
var byteOrder = binary.BigEndian

// Codec describes how to turn a Go value of type T into the bytes stored
// under a parameter id, and back. Pairing a ParamID with the wrong Codec is
// a programmer error caught at the call site, not at rest: the store itself
// holds untyped bytes, exactly as the wallet database does, but every
// accessor in this package is generated against exactly one Codec.
type Codec[T any] struct {
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

// Uint32Codec encodes a big-endian uint32.
var Uint32Codec = Codec[uint32]{
	Encode: func(v uint32) ([]byte, error) {
		b := make([]byte, 4)
		byteOrder.PutUint32(b, v)
		return b, nil
	},
	Decode: func(b []byte) (uint32, error) {
		if len(b) != 4 {
			return 0, fmt.Errorf("bad uint32 length %d", len(b))
		}
		return byteOrder.Uint32(b), nil
	},
}

// Uint64Codec encodes a big-endian uint64.
var Uint64Codec = Codec[uint64]{
	Encode: func(v uint64) ([]byte, error) {
		b := make([]byte, 8)
		byteOrder.PutUint64(b, v)
		return b, nil
	},
	Decode: func(b []byte) (uint64, error) {
		if len(b) != 8 {
			return 0, fmt.Errorf("bad uint64 length %d", len(b))
		}
		return byteOrder.Uint64(b), nil
	},
}

// Int64Codec encodes a big-endian int64, used for timestamps and amounts.
var Int64Codec = Codec[int64]{
	Encode: func(v int64) ([]byte, error) {
		b := make([]byte, 8)
		byteOrder.PutUint64(b, uint64(v))
		return b, nil
	},
	Decode: func(b []byte) (int64, error) {
		if len(b) != 8 {
			return 0, fmt.Errorf("bad int64 length %d", len(b))
		}
		return int64(byteOrder.Uint64(b)), nil
	},
}

// AmountCodec encodes a btcutil.Amount, used for Amount/Fee/AtomicSwapAmount.
var AmountCodec = Codec[btcutil.Amount]{
	Encode: func(v btcutil.Amount) ([]byte, error) {
		return Int64Codec.Encode(int64(v))
	},
	Decode: func(b []byte) (btcutil.Amount, error) {
		v, err := Int64Codec.Decode(b)
		return btcutil.Amount(v), err
	},
}

// BoolCodec encodes a single-byte boolean.
var BoolCodec = Codec[bool]{
	Encode: func(v bool) ([]byte, error) {
		if v {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	},
	Decode: func(b []byte) (bool, error) {
		if len(b) != 1 {
			return false, fmt.Errorf("bad bool length %d", len(b))
		}
		return b[0] != 0, nil
	},
}

// BytesCodec passes raw bytes through unchanged, used for opaque wire
// payloads such as kernel bytes.
var BytesCodec = Codec[[]byte]{
	Encode: func(v []byte) ([]byte, error) {
		out := make([]byte, len(v))
		copy(out, v)
		return out, nil
	},
	Decode: func(b []byte) ([]byte, error) {
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil
	},
}

// StringCodec encodes a UTF-8 string verbatim.
var StringCodec = Codec[string]{
	Encode: func(v string) ([]byte, error) { return []byte(v), nil },
	Decode: func(b []byte) (string, error) { return string(b), nil },
}

// PubKeyCodec encodes a curve point in 33-byte compressed form.
var PubKeyCodec = Codec[*btcec.PublicKey]{
	Encode: func(v *btcec.PublicKey) ([]byte, error) {
		if v == nil {
			return nil, fmt.Errorf("nil public key")
		}
		return v.SerializeCompressed(), nil
	},
	Decode: func(b []byte) (*btcec.PublicKey, error) {
		return btcec.ParsePubKey(b)
	},
}

// PrivKeyCodec encodes a scalar in 32-byte canonical form. The only user in
// the module is swapfsm's foreignSecret, which stores the foreign-side
// party's adaptor secret in the Parameter Store — invariant 5 in spec §3
// forbids ever routing a ParamAtomicSwapSecretPrivateKey value through a
// peer message Marshal/Unmarshal pair.
var PrivKeyCodec = Codec[*btcec.PrivateKey]{
	Encode: func(v *btcec.PrivateKey) ([]byte, error) {
		if v == nil {
			return nil, fmt.Errorf("nil private key")
		}
		return v.Serialize(), nil
	},
	Decode: func(b []byte) (*btcec.PrivateKey, error) {
		priv, _ := btcec.PrivKeyFromBytes(b)
		return priv, nil
	},
}

// ErrorKindCodec encodes a swap.ErrorKind as a single byte.
var ErrorKindCodec = Codec[swap.ErrorKind]{
	Encode: func(v swap.ErrorKind) ([]byte, error) { return []byte{byte(v)}, nil },
	Decode: func(b []byte) (swap.ErrorKind, error) {
		if len(b) != 1 {
			return swap.KindUnknown, fmt.Errorf("bad ErrorKind length")
		}
		return swap.ErrorKind(b[0]), nil
	},
}

// TopStateCodec encodes a swap.TopState as its raw string bytes, with no
// length prefix.
var TopStateCodec = Codec[swap.TopState]{
	Encode: func(v swap.TopState) ([]byte, error) { return []byte(v), nil },
	Decode: func(b []byte) (swap.TopState, error) { return swap.TopState(b), nil },
}

// SubTxStateCodec encodes a swap.SubTxState as a single byte.
var SubTxStateCodec = Codec[swap.SubTxState]{
	Encode: func(v swap.SubTxState) ([]byte, error) { return []byte{byte(v)}, nil },
	Decode: func(b []byte) (swap.SubTxState, error) {
		if len(b) != 1 {
			return 0, fmt.Errorf("bad SubTxState length")
		}
		return swap.SubTxState(b[0]), nil
	},
}

// StatusCodec encodes a swap.Status as a single byte.
var StatusCodec = Codec[swap.Status]{
	Encode: func(v swap.Status) ([]byte, error) { return []byte{byte(v)}, nil },
	Decode: func(b []byte) (swap.Status, error) {
		if len(b) != 1 {
			return 0, fmt.Errorf("bad Status length")
		}
		return swap.Status(b[0]), nil
	},
}

// ProtoVersionCodec encodes a swap.ProtoVersion as a single byte.
var ProtoVersionCodec = Codec[swap.ProtoVersion]{
	Encode: func(v swap.ProtoVersion) ([]byte, error) { return []byte{byte(v)}, nil },
	Decode: func(b []byte) (swap.ProtoVersion, error) {
		if len(b) != 1 {
			return 0, fmt.Errorf("bad ProtoVersion length")
		}
		return swap.ProtoVersion(b[0]), nil
	},
}

// RegistrationCodeCodec encodes a swap.RegistrationCode as a single byte.
var RegistrationCodeCodec = Codec[swap.RegistrationCode]{
	Encode: func(v swap.RegistrationCode) ([]byte, error) { return []byte{byte(v)}, nil },
	Decode: func(b []byte) (swap.RegistrationCode, error) {
		if len(b) != 1 {
			return 0, fmt.Errorf("bad RegistrationCode length")
		}
		return swap.RegistrationCode(b[0]), nil
	},
}

// key builds the bbolt key for a parameter id: two bytes, big-endian.
func key(id swap.ParamID) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, byteOrder, uint16(id))
	return buf.Bytes()
}
