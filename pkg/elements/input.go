package elements

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Outpoint index flags. The two top bits of the serialized vout carry
// input-level flags and are never part of the referenced output index.
const (
	OutpointIssuanceFlag uint32 = 1 << 31
	OutpointPeginFlag    uint32 = 1 << 30
	OutpointIndexMask    uint32 = 0x3fffffff

	// NullIndex marks a null prevout; it carries no flags.
	NullIndex uint32 = 0xffffffff

	// DefaultSequence is used when an input does not specify a sequence.
	DefaultSequence uint32 = 0xffffffff
)

// Fixed lengths of the unsigned input layout.
const (
	txidLen           = 32
	voutLen           = 4
	emptyScriptSeqLen = 5  // 0x00 script length + 4-byte sequence
	issuanceFixedLen  = 64 // blinding nonce + asset entropy

	// MinInputLen is the size of an input without issuance.
	MinInputLen = txidLen + voutLen + emptyScriptSeqLen
)

// Issuance is the asset issuance attached to an input.
type Issuance struct {
	BlindingNonce [32]byte
	AssetEntropy  [32]byte
	Amount        Commitment
	InflationKeys Commitment
}

// Serialize returns nonce || entropy || amount || inflation keys.
func (is *Issuance) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(is.BlindingNonce[:])
	buf.Write(is.AssetEntropy[:])
	buf.Write(is.Amount.Serialize())
	buf.Write(is.InflationKeys.Serialize())
	return buf.Bytes()
}

// TxInput is an input of the unsigned global transaction.
//
// Txid is kept in wire byte order (chainhash convention); TxidString
// returns the usual reversed hex. Vout is always the real output index:
// the issuance and pegin flags are masked out and surfaced in HasIssuance
// and IsPegin.
type TxInput struct {
	Txid        chainhash.Hash
	Vout        uint32
	Sequence    uint32
	IsPegin     bool
	HasIssuance bool
	Issuance    *Issuance
}

// TxidString returns the previous txid in display (reversed) order.
func (in *TxInput) TxidString() string {
	return in.Txid.String()
}

// OutpointBytes returns txid (wire order) || vout (u32le).
func (in *TxInput) OutpointBytes() []byte {
	b := make([]byte, txidLen+voutLen)
	copy(b, in.Txid[:])
	binary.LittleEndian.PutUint32(b[txidLen:], in.Vout)
	return b
}

// SerializedVout returns the vout as it appears on the wire, flags included.
func (in *TxInput) SerializedVout() uint32 {
	if in.Vout == NullIndex {
		return NullIndex
	}
	v := in.Vout & OutpointIndexMask
	if in.HasIssuance {
		v |= OutpointIssuanceFlag
	}
	if in.IsPegin {
		v |= OutpointPeginFlag
	}
	return v
}

// Serialize returns the unsigned-transaction encoding of the input.
func (in *TxInput) Serialize() []byte {
	var buf bytes.Buffer
	buf.Write(in.Txid[:])
	_ = binary.Write(&buf, binary.LittleEndian, in.SerializedVout())
	buf.WriteByte(0x00)
	_ = binary.Write(&buf, binary.LittleEndian, in.Sequence)
	if in.HasIssuance && in.Issuance != nil {
		buf.Write(in.Issuance.Serialize())
	}
	return buf.Bytes()
}

// ReadTxInput parses one input of an unsigned transaction at the cursor.
func ReadTxInput(c *Cursor) (*TxInput, error) {
	in := &TxInput{}

	txid, err := c.ReadN(txidLen)
	if err != nil {
		return nil, fmt.Errorf("reading prevout txid: %w", err)
	}
	copy(in.Txid[:], txid)

	vout, err := c.ReadUint32LE()
	if err != nil {
		return nil, fmt.Errorf("reading prevout index: %w", err)
	}

	if err := readEmptyScriptSig(c); err != nil {
		return nil, err
	}

	in.Sequence, err = c.ReadUint32LE()
	if err != nil {
		return nil, fmt.Errorf("reading sequence: %w", err)
	}

	in.Vout = vout
	if vout == NullIndex {
		return in, nil
	}
	in.HasIssuance = vout&OutpointIssuanceFlag != 0
	in.IsPegin = vout&OutpointPeginFlag != 0
	in.Vout = vout & OutpointIndexMask

	if in.HasIssuance {
		in.Issuance, err = readIssuance(c)
		if err != nil {
			return nil, err
		}
	}
	return in, nil
}

func readIssuance(c *Cursor) (*Issuance, error) {
	is := &Issuance{}
	nonce, err := c.ReadN(32)
	if err != nil {
		return nil, fmt.Errorf("reading issuance blinding nonce: %w", err)
	}
	copy(is.BlindingNonce[:], nonce)
	entropy, err := c.ReadN(32)
	if err != nil {
		return nil, fmt.Errorf("reading issuance asset entropy: %w", err)
	}
	copy(is.AssetEntropy[:], entropy)
	if is.Amount, err = ReadCommitment(c); err != nil {
		return nil, fmt.Errorf("reading issuance amount: %w", err)
	}
	if is.InflationKeys, err = ReadCommitment(c); err != nil {
		return nil, fmt.Errorf("reading issuance inflation keys: %w", err)
	}
	return is, nil
}

// readEmptyScriptSig consumes the script length byte and rejects anything
// but an empty script. Every offset after the first input depends on it.
func readEmptyScriptSig(c *Cursor) error {
	off := c.Pos()
	l, err := c.ReadByte()
	if err != nil {
		return fmt.Errorf("reading scriptSig length: %w", err)
	}
	if l != 0x00 {
		return &FormatError{Offset: off, Message: fmt.Sprintf("unsigned input has non-empty scriptSig (length byte 0x%02x)", l)}
	}
	return nil
}
