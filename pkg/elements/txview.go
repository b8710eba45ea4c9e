package elements

import (
	"fmt"
	"io"
)

// NumVinOffset is the offset of the input count inside the unsigned
// transaction: a 4-byte version followed by the 1-byte witness flag.
const NumVinOffset = 5

// minTxLen is version + flag + two empty counts + locktime.
const minTxLen = 4 + 1 + 1 + 1 + 4

// minOutputLen is explicit asset + explicit value + null nonce + empty script.
const minOutputLen = AssetLen + ExplicitCommitmentLen + 1 + 1

// GlobalTxView is a read-only view of the unsigned global transaction
// embedded in a PSET. It never deserializes the whole transaction: inputs
// and outputs are located by skipping over the preceding records, and the
// positions of the input and output vectors are memoized on first use.
//
// All offsets returned by the view are relative to the start of the
// transaction. A GlobalTxView is not safe for concurrent use.
type GlobalTxView struct {
	cur *Cursor

	version       *uint32
	locktime      *uint32
	numVin        *int
	numVoutOffset *int64
	numVout       *int
	vout0Offset   *int64
}

// NewGlobalTxView returns a view over the length bytes of rs starting at
// the absolute offset off. The witness flag must be zero.
func NewGlobalTxView(rs io.ReadSeeker, off, length int64) (*GlobalTxView, error) {
	if length < minTxLen {
		return nil, &FormatError{Offset: off, Message: fmt.Sprintf("unsigned transaction too short: %d bytes", length)}
	}
	cur, err := NewCursor(rs, off, off+length)
	if err != nil {
		return nil, err
	}
	if err := cur.SeekTo(off + 4); err != nil {
		return nil, err
	}
	flag, err := cur.ReadByte()
	if err != nil {
		return nil, err
	}
	if flag != 0x00 {
		return nil, &FormatError{Offset: off + 4, Message: fmt.Sprintf("unsigned transaction has witness flag 0x%02x", flag)}
	}
	return &GlobalTxView{cur: cur}, nil
}

// Len returns the size of the transaction in bytes.
func (v *GlobalTxView) Len() int64 {
	return v.cur.End() - v.cur.Start()
}

func (v *GlobalTxView) seek(rel int64) error {
	return v.cur.SeekTo(v.cur.Start() + rel)
}

// Version returns the transaction version.
func (v *GlobalTxView) Version() (uint32, error) {
	if v.version == nil {
		if err := v.seek(0); err != nil {
			return 0, err
		}
		ver, err := v.cur.ReadUint32LE()
		if err != nil {
			return 0, fmt.Errorf("reading tx version: %w", err)
		}
		v.version = &ver
	}
	return *v.version, nil
}

// Locktime returns the transaction locktime, stored in the last 4 bytes.
func (v *GlobalTxView) Locktime() (uint32, error) {
	if v.locktime == nil {
		if err := v.seek(v.Len() - 4); err != nil {
			return 0, err
		}
		lt, err := v.cur.ReadUint32LE()
		if err != nil {
			return 0, fmt.Errorf("reading tx locktime: %w", err)
		}
		v.locktime = &lt
	}
	return *v.locktime, nil
}

// NumVin returns the number of inputs.
func (v *GlobalTxView) NumVin() (int, error) {
	if v.numVin == nil {
		if err := v.seek(NumVinOffset); err != nil {
			return 0, err
		}
		n, err := v.readCount("input", MinInputLen)
		if err != nil {
			return 0, err
		}
		v.numVin = &n
	}
	return *v.numVin, nil
}

// Vin0Offset returns the offset of the first input.
func (v *GlobalTxView) Vin0Offset() (int64, error) {
	n, err := v.NumVin()
	if err != nil {
		return 0, err
	}
	return NumVinOffset + int64(CompactSizeLen(uint64(n))), nil
}

// Vin returns input i.
func (v *GlobalTxView) Vin(i int) (*TxInput, error) {
	n, err := v.NumVin()
	if err != nil {
		return nil, err
	}
	if err := CheckIndex("input", i, n); err != nil {
		return nil, err
	}
	off, err := v.Vin0Offset()
	if err != nil {
		return nil, err
	}
	if err := v.seek(off); err != nil {
		return nil, err
	}
	for j := 0; j < i; j++ {
		if _, err := v.skipInput(); err != nil {
			return nil, fmt.Errorf("skipping input %d: %w", j, err)
		}
	}
	in, err := ReadTxInput(v.cur)
	if err != nil {
		return nil, fmt.Errorf("reading input %d: %w", i, err)
	}
	return in, nil
}

// Inputs reads every input in a single forward pass.
func (v *GlobalTxView) Inputs() ([]*TxInput, error) {
	n, err := v.NumVin()
	if err != nil {
		return nil, err
	}
	off, err := v.Vin0Offset()
	if err != nil {
		return nil, err
	}
	if err := v.seek(off); err != nil {
		return nil, err
	}
	inputs := make([]*TxInput, n)
	for i := range inputs {
		if inputs[i], err = ReadTxInput(v.cur); err != nil {
			return nil, fmt.Errorf("reading input %d: %w", i, err)
		}
	}
	return inputs, nil
}

// skipInput seeks over one input and returns the number of bytes consumed.
func (v *GlobalTxView) skipInput() (int64, error) {
	consumed := int64(MinInputLen)
	if err := v.cur.Skip(txidLen); err != nil {
		return 0, err
	}
	vout, err := v.cur.ReadUint32LE()
	if err != nil {
		return 0, err
	}
	if err := readEmptyScriptSig(v.cur); err != nil {
		return 0, err
	}
	if err := v.cur.Skip(4); err != nil { // sequence
		return 0, err
	}
	if vout == NullIndex || vout&OutpointIssuanceFlag == 0 {
		return consumed, nil
	}
	if err := v.cur.Skip(issuanceFixedLen); err != nil {
		return 0, err
	}
	consumed += issuanceFixedLen
	for k := 0; k < 2; k++ { // amount, inflation keys
		_, n, err := DecodeOrSkip(v.cur)
		if err != nil {
			return 0, err
		}
		consumed += int64(n)
	}
	return consumed, nil
}

// NumVoutOffset returns the offset of the output count, found by skipping
// over every input once.
func (v *GlobalTxView) NumVoutOffset() (int64, error) {
	if v.numVoutOffset == nil {
		n, err := v.NumVin()
		if err != nil {
			return 0, err
		}
		off, err := v.Vin0Offset()
		if err != nil {
			return 0, err
		}
		if err := v.seek(off); err != nil {
			return 0, err
		}
		for i := 0; i < n; i++ {
			consumed, err := v.skipInput()
			if err != nil {
				return 0, fmt.Errorf("skipping input %d: %w", i, err)
			}
			off += consumed
		}
		v.numVoutOffset = &off
	}
	return *v.numVoutOffset, nil
}

// NumVout returns the number of outputs.
func (v *GlobalTxView) NumVout() (int, error) {
	if v.numVout == nil {
		off, err := v.NumVoutOffset()
		if err != nil {
			return 0, err
		}
		if err := v.seek(off); err != nil {
			return 0, err
		}
		n, err := v.readCount("output", minOutputLen)
		if err != nil {
			return 0, err
		}
		v.numVout = &n
	}
	return *v.numVout, nil
}

// Vout0Offset returns the offset of the first output.
func (v *GlobalTxView) Vout0Offset() (int64, error) {
	if v.vout0Offset == nil {
		off, err := v.NumVoutOffset()
		if err != nil {
			return 0, err
		}
		n, err := v.NumVout()
		if err != nil {
			return 0, err
		}
		off += int64(CompactSizeLen(uint64(n)))
		v.vout0Offset = &off
	}
	return *v.vout0Offset, nil
}

// Vout returns output i. The witness is always empty: the unsigned
// transaction carries no proofs.
func (v *GlobalTxView) Vout(i int) (*TxOutput, error) {
	n, err := v.NumVout()
	if err != nil {
		return nil, err
	}
	if err := CheckIndex("output", i, n); err != nil {
		return nil, err
	}
	off, err := v.Vout0Offset()
	if err != nil {
		return nil, err
	}
	if err := v.seek(off); err != nil {
		return nil, err
	}
	for j := 0; j < i; j++ {
		if _, err := v.skipOutput(); err != nil {
			return nil, fmt.Errorf("skipping output %d: %w", j, err)
		}
	}
	out, err := ReadTxOutput(v.cur)
	if err != nil {
		return nil, fmt.Errorf("reading output %d: %w", i, err)
	}
	return out, nil
}

// skipOutput seeks over one output and returns the number of bytes consumed.
func (v *GlobalTxView) skipOutput() (int64, error) {
	start := v.cur.Pos()

	tag, err := v.cur.ReadByte()
	if err != nil {
		return 0, err
	}
	if tag == TagNull {
		return 0, &FormatError{Offset: start, Message: "output asset cannot be null"}
	}
	if err := v.cur.Skip(AssetLen - 1); err != nil {
		return 0, err
	}

	off := v.cur.Pos()
	tag, err = v.cur.ReadByte()
	if err != nil {
		return 0, err
	}
	switch tag {
	case TagNull:
		// Stricter than skipping 32 bytes for every non-explicit tag: a
		// null value is one byte long and would shift every later offset.
		return 0, &FormatError{Offset: off, Message: "output value cannot be null"}
	case TagExplicit:
		err = v.cur.Skip(ExplicitCommitmentLen - 1)
	default:
		err = v.cur.Skip(BlindedCommitmentLen - 1)
	}
	if err != nil {
		return 0, err
	}

	tag, err = v.cur.ReadByte()
	if err != nil {
		return 0, err
	}
	if tag != TagNull {
		if err := v.cur.Skip(NonceLen - 1); err != nil {
			return 0, err
		}
	}

	if _, err := v.cur.SkipVarSlice(); err != nil {
		return 0, err
	}
	return v.cur.Pos() - start, nil
}

// readCount reads a record count and rejects counts that cannot fit in the
// rest of the transaction.
func (v *GlobalTxView) readCount(kind string, minRecordLen int64) (int, error) {
	off := v.cur.Pos()
	n, err := v.cur.ReadCompactSize()
	if err != nil {
		return 0, fmt.Errorf("reading %s count: %w", kind, err)
	}
	if n > uint64(v.cur.Remaining()/minRecordLen) {
		return 0, &FormatError{Offset: off, Message: fmt.Sprintf("%s count %d exceeds transaction size", kind, n)}
	}
	return int(n), nil
}
