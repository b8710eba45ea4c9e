package elements

import (
	"bytes"
	"fmt"
)

// Lengths of the fixed-size output fields.
const (
	AssetLen = 33 // tag || asset id or generator
	NonceLen = 33 // tag || ecdh public key
)

// OutputWitness holds the proofs attached to a confidential output.
type OutputWitness struct {
	RangeProof      []byte
	SurjectionProof []byte
}

// Serialize returns varslice(range proof) || varslice(surjection proof).
func (w *OutputWitness) Serialize() []byte {
	var buf bytes.Buffer
	_ = WriteVarBytes(&buf, w.RangeProof)
	_ = WriteVarBytes(&buf, w.SurjectionProof)
	return buf.Bytes()
}

// IsEmpty reports whether neither proof is present.
func (w *OutputWitness) IsEmpty() bool {
	return len(w.RangeProof) == 0 && len(w.SurjectionProof) == 0
}

// TxOutput is an Elements transaction output.
//
// Asset is always 33 bytes (explicit 0x01 || id, or a blinded generator).
// Nonce is the 33-byte ECDH public key, or nil when the nonce is null.
type TxOutput struct {
	Asset        []byte
	Value        Commitment
	Nonce        []byte
	ScriptPubKey []byte
	Witness      OutputWitness
}

// ExplicitAsset returns the 33-byte explicit encoding of an asset id.
func ExplicitAsset(id [32]byte) []byte {
	return append([]byte{TagExplicit}, id[:]...)
}

// IsConfidential reports whether the asset or the value is blinded.
func (out *TxOutput) IsConfidential() bool {
	return out.Value.IsBlinded() || (len(out.Asset) > 0 && KindOf(out.Asset[0]) == CommitmentBlinded)
}

// Serialize returns asset || value || nonce || varslice(script), the form
// committed to by the outputs hash. The witness is not included.
func (out *TxOutput) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(out.Asset)
	buf.Write(out.Value.Serialize())
	if len(out.Nonce) == 0 {
		buf.WriteByte(TagNull)
	} else {
		buf.Write(out.Nonce)
	}
	_ = WriteVarBytes(&buf, out.ScriptPubKey)
	return buf.Bytes()
}

// Validate checks field lengths and tags.
func (out *TxOutput) Validate() error {
	if len(out.Asset) != AssetLen {
		return fmt.Errorf("asset must be %d bytes, got %d", AssetLen, len(out.Asset))
	}
	if out.Asset[0] == TagNull {
		return fmt.Errorf("asset cannot be null")
	}
	if out.Value.IsNull() {
		return fmt.Errorf("value cannot be null")
	}
	if len(out.Nonce) != 0 && len(out.Nonce) != NonceLen {
		return fmt.Errorf("nonce must be empty or %d bytes, got %d", NonceLen, len(out.Nonce))
	}
	return nil
}

// ReadTxOutput parses one output of an unsigned transaction (no witness)
// at the cursor.
func ReadTxOutput(c *Cursor) (*TxOutput, error) {
	out := &TxOutput{}

	off := c.Pos()
	asset, err := c.ReadN(AssetLen)
	if err != nil {
		return nil, fmt.Errorf("reading asset: %w", err)
	}
	if asset[0] == TagNull {
		return nil, &FormatError{Offset: off, Message: "output asset cannot be null"}
	}
	out.Asset = asset

	off = c.Pos()
	if out.Value, err = ReadCommitment(c); err != nil {
		return nil, fmt.Errorf("reading value: %w", err)
	}
	if out.Value.IsNull() {
		return nil, &FormatError{Offset: off, Message: "output value cannot be null"}
	}

	tag, err := c.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("reading nonce: %w", err)
	}
	if tag != TagNull {
		rest, err := c.ReadN(NonceLen - 1)
		if err != nil {
			return nil, fmt.Errorf("reading nonce: %w", err)
		}
		out.Nonce = append([]byte{tag}, rest...)
	}

	if out.ScriptPubKey, err = c.ReadVarSlice(); err != nil {
		return nil, fmt.Errorf("reading scriptPubKey: %w", err)
	}
	return out, nil
}
