// Package peermsg implements the peer wire message bundles of spec §6.1:
// typed structs whose MarshalParams/UnmarshalParams pair round-trips
// through the same binary encodings the Parameter Store uses at rest
// (paramstore.Codec), so a value read off the wire and a value read from
// disk are byte-identical.
package peermsg

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mwswap/swapd/paramstore"
	"github.com/mwswap/swapd/swap"
)

// wireOrder matches paramstore's own byte order, so a value that happens to
// be both persisted and sent on the wire has one canonical encoding.
var wireOrder = binary.BigEndian

// entry is one (parameter_id, value) pair as it appears on the wire.
type entry struct {
	id  swap.ParamID
	raw []byte
}

// Bundle is the wire form of one peer message: a SubTxID-scoped set of
// (parameter_id, value) pairs (spec §6.1). Every concrete message type in
// this package is a typed view over a Bundle.
type Bundle struct {
	SubTx   swap.SubTxID
	Entries []entry
}

// NewBundle starts an empty bundle scoped to sub.
func NewBundle(sub swap.SubTxID) *Bundle {
	return &Bundle{SubTx: sub}
}

// put encodes v with codec and appends it to the bundle under id, failing
// callers if a value cannot be represented on the wire at all (for example
// a nil public key) rather than silently sending truncated bytes.
func put[T any](b *Bundle, id swap.ParamID, v T, codec paramstore.Codec[T]) error {
	raw, err := codec.Encode(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}

	b.Entries = append(b.Entries, entry{id: id, raw: raw})

	return nil
}

// get decodes the value stored under id, failing if the bundle does not
// carry it — every field a message struct declares is required unless the
// message's Unmarshal method calls getOptional for it instead.
func get[T any](b *Bundle, id swap.ParamID, codec paramstore.Codec[T]) (T, error) {
	for _, e := range b.Entries {
		if e.id == id {
			v, err := codec.Decode(e.raw)
			if err != nil {
				return v, fmt.Errorf("decode %s: %w", id, err)
			}

			return v, nil
		}
	}

	var zero T

	return zero, fmt.Errorf("bundle missing required parameter %s", id)
}

// getOptional decodes the value stored under id if present, used for
// protocol-version-gated fields such as PeerMaxHeight (spec §6.1).
func getOptional[T any](b *Bundle, id swap.ParamID,
	codec paramstore.Codec[T]) (T, bool, error) {

	for _, e := range b.Entries {
		if e.id == id {
			v, err := codec.Decode(e.raw)
			return v, true, err
		}
	}

	var zero T

	return zero, false, nil
}

// Marshal serializes the bundle to bytes: one byte SubTxID, a two-byte
// entry count, then each entry as (id uint16, length uint16, raw bytes).
func (b *Bundle) Marshal() ([]byte, error) {
	var buf bytes.Buffer

	if err := buf.WriteByte(byte(b.SubTx)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, wireOrder, uint16(len(b.Entries))); err != nil {
		return nil, err
	}

	for _, e := range b.Entries {
		if err := binary.Write(&buf, wireOrder, uint16(e.id)); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, wireOrder, uint16(len(e.raw))); err != nil {
			return nil, err
		}
		if _, err := buf.Write(e.raw); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalBundle parses the bytes produced by Bundle.Marshal.
func UnmarshalBundle(data []byte) (*Bundle, error) {
	r := bytes.NewReader(data)

	subByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read sub-tx id: %w", err)
	}

	var count uint16
	if err := binary.Read(r, wireOrder, &count); err != nil {
		return nil, fmt.Errorf("read entry count: %w", err)
	}

	b := &Bundle{SubTx: swap.SubTxID(subByte)}

	for i := 0; i < int(count); i++ {
		var id, length uint16
		if err := binary.Read(r, wireOrder, &id); err != nil {
			return nil, fmt.Errorf("read entry %d id: %w", i, err)
		}
		if err := binary.Read(r, wireOrder, &length); err != nil {
			return nil, fmt.Errorf("read entry %d length: %w", i, err)
		}

		raw := make([]byte, length)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("read entry %d value: %w", i, err)
		}

		b.Entries = append(b.Entries, entry{id: swap.ParamID(id), raw: raw})
	}

	return b, nil
}
