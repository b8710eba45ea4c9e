package elements

import (
	"encoding/binary"
	"fmt"
)

// CommitmentKind discriminates the three encodings of a confidential field.
type CommitmentKind uint8

const (
	CommitmentNone     CommitmentKind = iota // tag 0x00, no payload
	CommitmentExplicit                       // tag 0x01, 8-byte amount
	CommitmentBlinded                        // any other tag, 32-byte commitment
)

// Commitment tags and encoded lengths.
const (
	TagNull     = 0x00
	TagExplicit = 0x01

	NullCommitmentLen     = 1
	ExplicitCommitmentLen = 9
	BlindedCommitmentLen  = 33
)

func (k CommitmentKind) String() string {
	switch k {
	case CommitmentNone:
		return "none"
	case CommitmentExplicit:
		return "explicit"
	case CommitmentBlinded:
		return "blinded"
	default:
		return fmt.Sprintf("CommitmentKind(%d)", uint8(k))
	}
}

// KindOf maps a tag byte to its commitment kind. Tags other than 0x00 and
// 0x01 are treated as blinded (0x08/0x09 for values, 0x0a/0x0b for assets,
// 0x02/0x03 for nonces).
func KindOf(tag byte) CommitmentKind {
	switch tag {
	case TagNull:
		return CommitmentNone
	case TagExplicit:
		return CommitmentExplicit
	default:
		return CommitmentBlinded
	}
}

// EncodedLen returns the number of bytes, tag included, a field of this
// kind occupies.
func (k CommitmentKind) EncodedLen() int {
	switch k {
	case CommitmentNone:
		return NullCommitmentLen
	case CommitmentExplicit:
		return ExplicitCommitmentLen
	default:
		return BlindedCommitmentLen
	}
}

// Commitment is a confidential value field: absent, an explicit amount, or
// a 33-byte blinded commitment. The zero value is the absent commitment.
type Commitment struct {
	kind    CommitmentKind
	amount  uint64
	blinded []byte // tag || 32 bytes, only for CommitmentBlinded
}

// NullCommitment returns the absent commitment.
func NullCommitment() Commitment {
	return Commitment{}
}

// ExplicitValue returns an unblinded amount.
func ExplicitValue(amount uint64) Commitment {
	return Commitment{kind: CommitmentExplicit, amount: amount}
}

// BlindedCommitment wraps a 33-byte commitment (tag included).
func BlindedCommitment(b []byte) (Commitment, error) {
	if len(b) != BlindedCommitmentLen {
		return Commitment{}, fmt.Errorf("blinded commitment must be %d bytes, got %d", BlindedCommitmentLen, len(b))
	}
	if KindOf(b[0]) != CommitmentBlinded {
		return Commitment{}, fmt.Errorf("invalid blinded commitment tag 0x%02x", b[0])
	}
	c := Commitment{kind: CommitmentBlinded, blinded: make([]byte, len(b))}
	copy(c.blinded, b)
	return c, nil
}

// ParseCommitment decodes a complete serialized commitment.
func ParseCommitment(b []byte) (Commitment, error) {
	if len(b) == 0 {
		return Commitment{}, fmt.Errorf("empty commitment")
	}
	kind := KindOf(b[0])
	if len(b) != kind.EncodedLen() {
		return Commitment{}, fmt.Errorf("%s commitment must be %d bytes, got %d", kind, kind.EncodedLen(), len(b))
	}
	switch kind {
	case CommitmentNone:
		return NullCommitment(), nil
	case CommitmentExplicit:
		return ExplicitValue(binary.BigEndian.Uint64(b[1:])), nil
	default:
		return BlindedCommitment(b)
	}
}

// Kind returns the commitment kind.
func (c Commitment) Kind() CommitmentKind { return c.kind }

// IsNull reports whether the commitment is absent.
func (c Commitment) IsNull() bool { return c.kind == CommitmentNone }

// IsBlinded reports whether the commitment hides its amount.
func (c Commitment) IsBlinded() bool { return c.kind == CommitmentBlinded }

// Amount returns the explicit amount. ok is false for absent or blinded
// commitments.
func (c Commitment) Amount() (amount uint64, ok bool) {
	return c.amount, c.kind == CommitmentExplicit
}

// Serialize returns the wire encoding. Explicit amounts are big-endian.
func (c Commitment) Serialize() []byte {
	switch c.kind {
	case CommitmentExplicit:
		b := make([]byte, ExplicitCommitmentLen)
		b[0] = TagExplicit
		binary.BigEndian.PutUint64(b[1:], c.amount)
		return b
	case CommitmentBlinded:
		b := make([]byte, len(c.blinded))
		copy(b, c.blinded)
		return b
	default:
		return []byte{TagNull}
	}
}

func (c Commitment) String() string {
	switch c.kind {
	case CommitmentExplicit:
		return fmt.Sprintf("explicit(%d)", c.amount)
	case CommitmentBlinded:
		return fmt.Sprintf("blinded(%x)", c.blinded)
	default:
		return "none"
	}
}

// DecodeOrSkip reads one tag byte and seeks over the payload it announces.
// It returns the kind and the number of bytes consumed (1, 9 or 33).
func DecodeOrSkip(c *Cursor) (CommitmentKind, int, error) {
	tag, err := c.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	kind := KindOf(tag)
	if kind == CommitmentNone {
		return kind, NullCommitmentLen, nil
	}
	if err := c.Skip(int64(kind.EncodedLen() - 1)); err != nil {
		return 0, 0, err
	}
	return kind, kind.EncodedLen(), nil
}

// ReadCommitment reads one commitment at the cursor.
func ReadCommitment(c *Cursor) (Commitment, error) {
	off := c.Pos()
	tag, err := c.ReadByte()
	if err != nil {
		return Commitment{}, err
	}
	kind := KindOf(tag)
	if kind == CommitmentNone {
		return NullCommitment(), nil
	}
	payload, err := c.ReadN(kind.EncodedLen() - 1)
	if err != nil {
		return Commitment{}, err
	}
	if kind == CommitmentExplicit {
		return ExplicitValue(binary.BigEndian.Uint64(payload)), nil
	}
	cm, err := BlindedCommitment(append([]byte{tag}, payload...))
	if err != nil {
		return Commitment{}, &FormatError{Offset: off, Message: "reading commitment", Cause: err}
	}
	return cm, nil
}
