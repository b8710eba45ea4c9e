package pset

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/suffix-labs/liquid-pset/pkg/elements"
)

var inputKeys = [][]byte{
	Key(InPreviousTxid),
	Key(InOutputIndex),
	Key(InSequence),
	ElementsKey(InIssuanceValue),
	ElementsKey(InIssuanceValueCommitment),
	ElementsKey(InIssuanceInflationKeys),
	ElementsKey(InIssuanceInflationKeysCommitment),
	ElementsKey(InIssuanceBlindingNonce),
	ElementsKey(InIssuanceAssetEntropy),
	ElementsKey(InPeginTx),
	ElementsKey(InPeginValue),
}

// Vin returns input i. With a global transaction it is read from the
// transaction; otherwise it is assembled from the input scope.
func (v *View) Vin(i int) (*elements.TxInput, error) {
	if err := elements.CheckIndex("input", i, v.numInputs); err != nil {
		return nil, err
	}
	if v.tx != nil {
		return v.tx.Vin(i)
	}

	vals, err := v.inputValues(i, inputKeys...)
	if err != nil {
		return nil, err
	}
	in, err := inputFromFields(vals)
	if err != nil {
		return nil, fmt.Errorf("input %d: %w", i, err)
	}
	return in, nil
}

// inputs returns every input in order, in a single pass when the global
// transaction is present.
func (v *View) inputs() ([]*elements.TxInput, error) {
	if v.tx != nil {
		return v.tx.Inputs()
	}
	ins := make([]*elements.TxInput, 0, v.numInputs)
	for i := 0; i < v.numInputs; i++ {
		in, err := v.Vin(i)
		if err != nil {
			return nil, err
		}
		ins = append(ins, in)
	}
	return ins, nil
}

func inputFromFields(vals map[string][]byte) (*elements.TxInput, error) {
	in := &elements.TxInput{Sequence: elements.DefaultSequence}

	txid, ok := vals[string(Key(InPreviousTxid))]
	if !ok {
		return nil, &elements.FormatError{Message: "missing previous txid"}
	}
	if len(txid) != len(in.Txid) {
		return nil, &elements.FormatError{Message: fmt.Sprintf("previous txid must be 32 bytes, got %d", len(txid))}
	}
	copy(in.Txid[:], txid)

	vout, ok, err := uint32Field(vals, Key(InOutputIndex), "output index")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &elements.FormatError{Message: "missing output index"}
	}
	in.Vout = vout

	if seq, ok, err := uint32Field(vals, Key(InSequence), "sequence"); err != nil {
		return nil, err
	} else if ok {
		in.Sequence = seq
	}

	_, hasPeginTx := vals[string(ElementsKey(InPeginTx))]
	_, hasPeginValue := vals[string(ElementsKey(InPeginValue))]
	in.IsPegin = hasPeginTx || hasPeginValue

	is, err := issuanceFromFields(vals)
	if err != nil {
		return nil, err
	}
	if is != nil {
		in.HasIssuance = true
		in.Issuance = is
	}
	return in, nil
}

// issuanceFromFields returns nil when the scope carries neither an issuance
// amount nor inflation keys.
func issuanceFromFields(vals map[string][]byte) (*elements.Issuance, error) {
	amount, err := confidentialField(vals, InIssuanceValueCommitment, InIssuanceValue, "issuance value")
	if err != nil {
		return nil, err
	}
	keys, err := confidentialField(vals, InIssuanceInflationKeysCommitment, InIssuanceInflationKeys, "inflation keys")
	if err != nil {
		return nil, err
	}
	if amount.IsNull() && keys.IsNull() {
		return nil, nil
	}

	is := &elements.Issuance{Amount: amount, InflationKeys: keys}
	if b, ok := vals[string(ElementsKey(InIssuanceBlindingNonce))]; ok {
		if len(b) != len(is.BlindingNonce) {
			return nil, &elements.FormatError{Message: fmt.Sprintf("issuance blinding nonce must be 32 bytes, got %d", len(b))}
		}
		copy(is.BlindingNonce[:], b)
	}
	if b, ok := vals[string(ElementsKey(InIssuanceAssetEntropy))]; ok {
		if len(b) != len(is.AssetEntropy) {
			return nil, &elements.FormatError{Message: fmt.Sprintf("issuance asset entropy must be 32 bytes, got %d", len(b))}
		}
		copy(is.AssetEntropy[:], b)
	}
	return is, nil
}

// confidentialField reads a value that is stored either as a 33-byte
// commitment or as an explicit little-endian uint64. The commitment wins
// when both are present.
func confidentialField(vals map[string][]byte, commitmentSubtype, explicitSubtype byte, name string) (elements.Commitment, error) {
	if b, ok := vals[string(ElementsKey(commitmentSubtype))]; ok {
		c, err := elements.BlindedCommitment(b)
		if err != nil {
			return elements.Commitment{}, &elements.FormatError{Message: name + " commitment", Cause: err}
		}
		return c, nil
	}
	amount, ok, err := uint64Field(vals, ElementsKey(explicitSubtype), name)
	if err != nil || !ok {
		return elements.NullCommitment(), err
	}
	return elements.ExplicitValue(amount), nil
}

// WitnessUtxo returns the output spent by input i, if the input scope
// carries it.
func (v *View) WitnessUtxo(i int) (*elements.TxOutput, bool, error) {
	b, ok, err := v.inputField(i, Key(InWitnessUtxo))
	if err != nil || !ok {
		return nil, false, err
	}
	c, err := elements.NewStreamCursor(bytes.NewReader(b))
	if err != nil {
		return nil, false, err
	}
	out, err := elements.ReadTxOutput(c)
	if err != nil {
		return nil, false, fmt.Errorf("input %d witness utxo: %w", i, err)
	}
	if c.Remaining() != 0 {
		return nil, false, &elements.FormatError{Message: fmt.Sprintf("input %d witness utxo has %d trailing bytes", i, c.Remaining())}
	}
	return out, true, nil
}

// SighashType returns the sighash type requested by input i, if any.
func (v *View) SighashType(i int) (uint32, bool, error) {
	b, ok, err := v.inputField(i, Key(InSighashType))
	if err != nil || !ok {
		return 0, false, err
	}
	if len(b) != 4 {
		return 0, false, &elements.FormatError{Message: fmt.Sprintf("input %d sighash type must be 4 bytes, got %d", i, len(b))}
	}
	return binary.LittleEndian.Uint32(b), true, nil
}

// WitnessScript returns the witness script of input i, if any.
func (v *View) WitnessScript(i int) ([]byte, bool, error) {
	return v.inputField(i, Key(InWitnessScript))
}

func (v *View) inputField(i int, key []byte) ([]byte, bool, error) {
	if err := elements.CheckIndex("input", i, v.numInputs); err != nil {
		return nil, false, err
	}
	vals, err := v.inputValues(i, key)
	if err != nil {
		return nil, false, err
	}
	b, ok := vals[string(key)]
	return b, ok, nil
}
