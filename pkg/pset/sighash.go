package pset

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"go.uber.org/zap"

	"github.com/suffix-labs/liquid-pset/pkg/elements"
)

// Elements sighash flags on top of the Bitcoin ones.
const (
	// SigHashRangeProof commits to the range and surjection proofs of the
	// outputs.
	SigHashRangeProof uint32 = 0x40

	// SigHashAllRangeProof is the default flag used by Liquid wallets.
	SigHashAllRangeProof = uint32(txscript.SigHashAll) | SigHashRangeProof
)

var (
	// ErrInvalidSighashType is returned for flags outside
	// {DEFAULT, ALL, NONE, SINGLE} | ANYONECANPAY | RANGEPROOF.
	ErrInvalidSighashType = errors.New("invalid sighash type")

	// ErrNullValue is returned when the spent output value is absent.
	ErrNullValue = errors.New("spent output value cannot be null")
)

// DecodeSighashType splits a raw sighash value into its base type and the
// ANYONECANPAY and RANGEPROOF bits.
func DecodeSighashType(flags uint32) (base txscript.SigHashType, anyoneCanPay, rangeProof bool, err error) {
	anyoneCanPay = flags&uint32(txscript.SigHashAnyOneCanPay) != 0
	rangeProof = flags&SigHashRangeProof != 0
	rest := flags &^ (uint32(txscript.SigHashAnyOneCanPay) | SigHashRangeProof)
	switch txscript.SigHashType(rest) {
	case txscript.SigHashDefault, txscript.SigHashAll, txscript.SigHashNone, txscript.SigHashSingle:
		return txscript.SigHashType(rest), anyoneCanPay, rangeProof, nil
	default:
		return 0, false, false, fmt.Errorf("%w: 0x%x", ErrInvalidSighashType, flags)
	}
}

// SighashSegwit computes the Elements segwit v0 signature hash of input
// inputIndex. scriptCode is the script committed to for the spent output
// and value its amount or value commitment.
func (v *View) SighashSegwit(inputIndex int, scriptCode []byte, value elements.Commitment, sighashType uint32) (chainhash.Hash, error) {
	if err := elements.CheckIndex("input", inputIndex, v.numInputs); err != nil {
		return chainhash.Hash{}, err
	}
	if value.IsNull() {
		return chainhash.Hash{}, ErrNullValue
	}
	base, anyoneCanPay, rangeProof, err := DecodeSighashType(sighashType)
	if err != nil {
		return chainhash.Hash{}, err
	}

	in, err := v.Vin(inputIndex)
	if err != nil {
		return chainhash.Hash{}, err
	}
	version, err := v.TxVersion()
	if err != nil {
		return chainhash.Hash{}, err
	}
	locktime, err := v.Locktime()
	if err != nil {
		return chainhash.Hash{}, err
	}

	var zero [chainhash.HashSize]byte
	h := sha256.New()
	writeUint32(h, version)

	if anyoneCanPay {
		h.Write(zero[:])
	} else {
		hp, err := v.HashPrevouts()
		if err != nil {
			return chainhash.Hash{}, err
		}
		h.Write(chainhash.HashB(hp[:]))
	}

	if anyoneCanPay || base == txscript.SigHashNone || base == txscript.SigHashSingle {
		h.Write(zero[:])
	} else {
		hs, err := v.HashSequence()
		if err != nil {
			return chainhash.Hash{}, err
		}
		h.Write(chainhash.HashB(hs[:]))
	}

	hi, err := v.HashIssuances()
	if err != nil {
		return chainhash.Hash{}, err
	}
	h.Write(chainhash.HashB(hi[:]))

	h.Write(in.OutpointBytes())
	_ = elements.WriteVarBytes(h, scriptCode)
	h.Write(value.Serialize())
	writeUint32(h, in.Sequence)

	switch {
	case base != txscript.SigHashNone && base != txscript.SigHashSingle:
		ho, err := v.HashOutputs()
		if err != nil {
			return chainhash.Hash{}, err
		}
		h.Write(chainhash.HashB(ho[:]))
		if rangeProof {
			hr, err := v.HashRangeproofs()
			if err != nil {
				return chainhash.Hash{}, err
			}
			h.Write(chainhash.HashB(hr[:]))
		}
	case base == txscript.SigHashSingle && inputIndex < v.numOutputs:
		out, err := v.BlindedVout(inputIndex)
		if err != nil {
			return chainhash.Hash{}, err
		}
		h.Write(chainhash.DoubleHashB(out.Serialize()))
		if rangeProof {
			h.Write(chainhash.DoubleHashB(out.Witness.Serialize()))
		}
	default:
		h.Write(zero[:])
	}

	writeUint32(h, locktime)
	writeUint32(h, sighashType)

	digest := chainhash.HashH(h.Sum(nil))
	v.logger.Debug("computed segwit sighash",
		zap.Int("input", inputIndex),
		zap.Uint32("sighash_type", sighashType),
		zap.String("sighash", fmt.Sprintf("%x", digest[:])),
	)
	return digest, nil
}

// SighashInput computes the segwit signature hash of input i from the
// fields of its own scope: the witness utxo, and the witness or redeem
// script when present. A P2WPKH script code is expanded to its P2PKH form.
func (v *View) SighashInput(i int, sighashType uint32) (chainhash.Hash, error) {
	utxo, ok, err := v.WitnessUtxo(i)
	if err != nil {
		return chainhash.Hash{}, err
	}
	if !ok {
		return chainhash.Hash{}, &elements.FormatError{Message: fmt.Sprintf("input %d has no witness utxo", i)}
	}
	scriptCode, err := v.scriptCode(i, utxo.ScriptPubKey)
	if err != nil {
		return chainhash.Hash{}, err
	}
	return v.SighashSegwit(i, scriptCode, utxo.Value, sighashType)
}

func (v *View) scriptCode(i int, scriptPubKey []byte) ([]byte, error) {
	script := scriptPubKey
	if ws, ok, err := v.WitnessScript(i); err != nil {
		return nil, err
	} else if ok {
		script = ws
	} else if rs, ok, err := v.RedeemScript(i); err != nil {
		return nil, err
	} else if ok {
		script = rs
	}

	if !txscript.IsPayToWitnessPubKeyHash(script) {
		return script, nil
	}
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(script[2:]).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
}

// RedeemScript returns the P2SH redeem script of input i, if any.
func (v *View) RedeemScript(i int) ([]byte, bool, error) {
	return v.inputField(i, Key(InRedeemScript))
}

// SighashLegacy is not available for Elements transactions.
func (v *View) SighashLegacy(inputIndex int, scriptPubKey []byte, sighashType uint32) (chainhash.Hash, error) {
	return chainhash.Hash{}, &elements.UnsupportedError{Operation: "legacy sighash"}
}

// SighashTaproot is not available for Elements transactions.
func (v *View) SighashTaproot(inputIndex int, sighashType uint32) (chainhash.Hash, error) {
	return chainhash.Hash{}, &elements.UnsupportedError{Operation: "taproot sighash"}
}

func writeUint32(h hash.Hash, x uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], x)
	h.Write(b[:])
}
