package elements

import (
	"io"

	"github.com/btcsuite/btcd/wire"
)

// Compact-size integers use the Bitcoin encoding shared by Elements:
//
//	< 0xfd           1 byte
//	0xfd || u16le    3 bytes
//	0xfe || u32le    5 bytes
//	0xff || u64le    9 bytes
//
// Non-canonical encodings are rejected by wire.ReadVarInt.

// ReadCompactSize reads a compact-size integer from r.
func ReadCompactSize(r io.Reader) (uint64, error) {
	return wire.ReadVarInt(r, 0)
}

// CompactSizeLen returns the number of bytes needed to encode v.
func CompactSizeLen(v uint64) int {
	return wire.VarIntSerializeSize(v)
}

// WriteCompactSize writes v as a compact-size integer.
func WriteCompactSize(w io.Writer, v uint64) error {
	return wire.WriteVarInt(w, 0, v)
}

// WriteVarBytes writes a compact-size length followed by b.
func WriteVarBytes(w io.Writer, b []byte) error {
	return wire.WriteVarBytes(w, 0, b)
}

// VarBytesLen returns the serialized size of a length-prefixed byte string.
func VarBytesLen(b []byte) int {
	return CompactSizeLen(uint64(len(b))) + len(b)
}
