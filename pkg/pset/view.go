// Package pset reads Partially Signed Elements Transactions straight from
// a seekable stream and computes the Elements segwit v0 signature hash.
//
// Parse only scans the global scope. Input and output scopes, and the
// records inside the unsigned transaction, are located on demand and only
// their byte offsets are remembered. Digests that are shared by every input
// (prevouts, sequences, issuances, outputs, range proofs) are computed once
// per View.
//
// Two layouts are supported:
//   - version 0: the global scope carries the unsigned transaction (key 0x00)
//     and inputs and outputs are read from it through elements.GlobalTxView;
//   - version 2: the transaction is spread over the per-input and per-output
//     scopes (BIP-370 with the Elements proprietary fields).
//
// A View borrows the stream for its whole lifetime and is not safe for
// concurrent use; independent views over independent streams are.
package pset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/suffix-labs/liquid-pset/pkg/elements"
)

// Option configures a View.
type Option func(*View)

// WithLogger sets the logger used for debug output. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// View is a lazily evaluated PSET.
type View struct {
	cur    *elements.Cursor
	tx     *elements.GlobalTxView
	logger *zap.Logger

	psbtVersion      uint32
	txVersion        uint32
	fallbackLocktime *uint32
	numInputs        int
	numOutputs       int

	// scopes[k] is the offset of scope k: inputs first, then outputs.
	scopes []int64

	locktime        *uint32
	hashPrevouts    *chainhash.Hash
	hashSequence    *chainhash.Hash
	hashIssuances   *chainhash.Hash
	hashOutputs     *chainhash.Hash
	hashRangeproofs *chainhash.Hash
}

// Parse reads the magic and the global scope of a PSET.
func Parse(rs io.ReadSeeker, opts ...Option) (*View, error) {
	cur, err := elements.NewStreamCursor(rs)
	if err != nil {
		return nil, err
	}
	magic, err := cur.ReadN(len(Magic))
	if err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, &elements.FormatError{Offset: 0, Message: fmt.Sprintf("invalid magic %x", magic)}
	}

	v := &View{cur: cur, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(v)
	}

	if err := v.readGlobals(rs); err != nil {
		return nil, err
	}

	v.logger.Debug("parsed pset globals",
		zap.Uint32("psbt_version", v.psbtVersion),
		zap.Bool("global_tx", v.tx != nil),
		zap.Int("inputs", v.numInputs),
		zap.Int("outputs", v.numOutputs),
	)
	return v, nil
}

func (v *View) readGlobals(rs io.ReadSeeker) error {
	globals := make(map[byte]pair)
	for {
		p, ok, err := readPair(v.cur)
		if err != nil {
			return fmt.Errorf("reading global scope: %w", err)
		}
		if !ok {
			break
		}
		if len(p.key) != 1 {
			continue // key data or proprietary fields
		}
		if _, dup := globals[p.key[0]]; dup {
			return &elements.FormatError{Offset: p.valueOff, Message: fmt.Sprintf("duplicate global key 0x%02x", p.key[0])}
		}
		globals[p.key[0]] = p
	}
	v.scopes = []int64{v.cur.Pos()}

	if p, ok := globals[GlobalVersion]; ok {
		b, err := readFixed(v.cur, p, 4, "psbt version")
		if err != nil {
			return err
		}
		v.psbtVersion = binary.LittleEndian.Uint32(b)
	}

	if p, ok := globals[GlobalUnsignedTx]; ok {
		if v.psbtVersion != 0 {
			return &elements.FormatError{Offset: p.valueOff, Message: fmt.Sprintf("unsigned tx not allowed in version %d", v.psbtVersion)}
		}
		return v.attachTx(rs, p)
	}

	if v.psbtVersion != 2 {
		return &elements.FormatError{Offset: v.cur.Pos(), Message: fmt.Sprintf("no unsigned tx and version %d is not 2", v.psbtVersion)}
	}

	p, ok := globals[GlobalTxVersion]
	if !ok {
		return &elements.FormatError{Offset: v.cur.Pos(), Message: "missing global tx version"}
	}
	b, err := readFixed(v.cur, p, 4, "tx version")
	if err != nil {
		return err
	}
	v.txVersion = binary.LittleEndian.Uint32(b)

	if p, ok := globals[GlobalFallbackLocktime]; ok {
		b, err := readFixed(v.cur, p, 4, "fallback locktime")
		if err != nil {
			return err
		}
		lt := binary.LittleEndian.Uint32(b)
		v.fallbackLocktime = &lt
	}

	if v.numInputs, err = readCountField(v.cur, globals, GlobalInputCount, "input count"); err != nil {
		return err
	}
	if v.numOutputs, err = readCountField(v.cur, globals, GlobalOutputCount, "output count"); err != nil {
		return err
	}
	return nil
}

func (v *View) attachTx(rs io.ReadSeeker, p pair) error {
	tx, err := elements.NewGlobalTxView(rs, p.valueOff, p.valueLen)
	if err != nil {
		return fmt.Errorf("unsigned tx: %w", err)
	}
	if v.numInputs, err = tx.NumVin(); err != nil {
		return fmt.Errorf("unsigned tx: %w", err)
	}
	if v.numOutputs, err = tx.NumVout(); err != nil {
		return fmt.Errorf("unsigned tx: %w", err)
	}
	v.tx = tx
	return nil
}

// Tx returns the unsigned global transaction view, or nil for version 2.
func (v *View) Tx() *elements.GlobalTxView { return v.tx }

// Version returns the PSBT version (0 or 2).
func (v *View) Version() uint32 { return v.psbtVersion }

// NumInputs returns the number of inputs.
func (v *View) NumInputs() int { return v.numInputs }

// NumOutputs returns the number of outputs.
func (v *View) NumOutputs() int { return v.numOutputs }

// TxVersion returns the transaction version.
func (v *View) TxVersion() (uint32, error) {
	if v.tx != nil {
		return v.tx.Version()
	}
	return v.txVersion, nil
}

// Locktime returns the transaction locktime. For version 2 it is derived
// from the per-input requirements and the fallback locktime (BIP-370).
func (v *View) Locktime() (uint32, error) {
	if v.tx != nil {
		return v.tx.Locktime()
	}
	if v.locktime == nil {
		lt, err := v.computeLocktime()
		if err != nil {
			return 0, err
		}
		v.locktime = &lt
	}
	return *v.locktime, nil
}

func (v *View) computeLocktime() (uint32, error) {
	var maxHeight, maxTime uint32
	var anyRequirement bool
	heightOK, timeOK := true, true
	for i := 0; i < v.numInputs; i++ {
		vals, err := v.inputValues(i, Key(InRequiredTimeLocktime), Key(InRequiredHeightLocktime))
		if err != nil {
			return 0, err
		}
		t, hasTime, err := uint32Field(vals, Key(InRequiredTimeLocktime), "required time locktime")
		if err != nil {
			return 0, err
		}
		h, hasHeight, err := uint32Field(vals, Key(InRequiredHeightLocktime), "required height locktime")
		if err != nil {
			return 0, err
		}
		if !hasTime && !hasHeight {
			continue
		}
		anyRequirement = true
		if hasTime {
			maxTime = max(maxTime, t)
		} else {
			timeOK = false
		}
		if hasHeight {
			maxHeight = max(maxHeight, h)
		} else {
			heightOK = false
		}
	}

	switch {
	case !anyRequirement:
		if v.fallbackLocktime != nil {
			return *v.fallbackLocktime, nil
		}
		return 0, nil
	case heightOK:
		return maxHeight, nil
	case timeOK:
		return maxTime, nil
	default:
		return 0, &elements.FormatError{Message: "inputs require incompatible locktime types"}
	}
}

// scopeOffset returns the offset of scope k, scanning forward from the
// last known scope when needed.
func (v *View) scopeOffset(k int) (int64, error) {
	for len(v.scopes) <= k {
		last := len(v.scopes) - 1
		if err := v.cur.SeekTo(v.scopes[last]); err != nil {
			return 0, err
		}
		if err := skipScope(v.cur); err != nil {
			return 0, fmt.Errorf("skipping scope %d: %w", last, err)
		}
		v.scopes = append(v.scopes, v.cur.Pos())
	}
	return v.scopes[k], nil
}

func (v *View) inputValues(i int, keys ...[]byte) (map[string][]byte, error) {
	off, err := v.scopeOffset(i)
	if err != nil {
		return nil, err
	}
	vals, err := collect(v.cur, off, keys...)
	if err != nil {
		return nil, fmt.Errorf("input scope %d: %w", i, err)
	}
	return vals, nil
}

func (v *View) outputValues(i int, keys ...[]byte) (map[string][]byte, error) {
	off, err := v.scopeOffset(v.numInputs + i)
	if err != nil {
		return nil, err
	}
	vals, err := collect(v.cur, off, keys...)
	if err != nil {
		return nil, fmt.Errorf("output scope %d: %w", i, err)
	}
	return vals, nil
}

func readFixed(c *elements.Cursor, p pair, n int64, name string) ([]byte, error) {
	if p.valueLen != n {
		return nil, &elements.FormatError{Offset: p.valueOff, Message: fmt.Sprintf("%s must be %d bytes, got %d", name, n, p.valueLen)}
	}
	return readValue(c, p)
}

func readCountField(c *elements.Cursor, globals map[byte]pair, key byte, name string) (int, error) {
	p, ok := globals[key]
	if !ok {
		return 0, &elements.FormatError{Offset: c.Pos(), Message: "missing global " + name}
	}
	b, err := readValue(c, p)
	if err != nil {
		return 0, err
	}
	r := bytes.NewReader(b)
	n, err := elements.ReadCompactSize(r)
	if err != nil || r.Len() != 0 {
		return 0, &elements.FormatError{Offset: p.valueOff, Message: "malformed global " + name, Cause: err}
	}
	// Every scope takes at least its separator byte.
	if n > uint64(c.End()) {
		return 0, &elements.FormatError{Offset: p.valueOff, Message: fmt.Sprintf("%s %d exceeds document size", name, n)}
	}
	return int(n), nil
}

func uint32Field(vals map[string][]byte, key []byte, name string) (uint32, bool, error) {
	b, ok := vals[string(key)]
	if !ok {
		return 0, false, nil
	}
	if len(b) != 4 {
		return 0, false, &elements.FormatError{Message: fmt.Sprintf("%s must be 4 bytes, got %d", name, len(b))}
	}
	return binary.LittleEndian.Uint32(b), true, nil
}

func uint64Field(vals map[string][]byte, key []byte, name string) (uint64, bool, error) {
	b, ok := vals[string(key)]
	if !ok {
		return 0, false, nil
	}
	if len(b) != 8 {
		return 0, false, &elements.FormatError{Message: fmt.Sprintf("%s must be 8 bytes, got %d", name, len(b))}
	}
	return binary.LittleEndian.Uint64(b), true, nil
}
