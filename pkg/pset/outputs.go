package pset

import (
	"fmt"

	"github.com/suffix-labs/liquid-pset/pkg/elements"
)

var outputKeys = [][]byte{
	Key(OutAmount),
	Key(OutScript),
	ElementsKey(OutValueCommitment),
	ElementsKey(OutAsset),
	ElementsKey(OutAssetCommitment),
	ElementsKey(OutValueRangeproof),
	ElementsKey(OutAssetSurjectionProof),
	ElementsKey(OutEcdhPubkey),
}

// Vout returns output i with its explicit asset and amount. With a global
// transaction the record is returned as serialized there.
func (v *View) Vout(i int) (*elements.TxOutput, error) {
	if err := elements.CheckIndex("output", i, v.numOutputs); err != nil {
		return nil, err
	}
	if v.tx != nil {
		return v.tx.Vout(i)
	}
	vals, err := v.outputValues(i, outputKeys...)
	if err != nil {
		return nil, err
	}
	out, err := outputFromFields(vals, false)
	if err != nil {
		return nil, fmt.Errorf("output %d: %w", i, err)
	}
	return out, nil
}

// BlindedVout returns output i as it is committed to by the signature hash:
// commitments are preferred over explicit values and the range and
// surjection proofs of the output scope are attached. With a global
// transaction, commitments in the output scope override its record.
func (v *View) BlindedVout(i int) (*elements.TxOutput, error) {
	if err := elements.CheckIndex("output", i, v.numOutputs); err != nil {
		return nil, err
	}
	if v.tx != nil {
		out, err := v.tx.Vout(i)
		if err != nil {
			return nil, err
		}
		vals, err := v.outputValues(i, outputKeys...)
		if err != nil {
			return nil, err
		}
		if err := overlayCommitments(out, vals); err != nil {
			return nil, fmt.Errorf("output %d: %w", i, err)
		}
		return out, nil
	}
	vals, err := v.outputValues(i, outputKeys...)
	if err != nil {
		return nil, err
	}
	out, err := outputFromFields(vals, true)
	if err != nil {
		return nil, fmt.Errorf("output %d: %w", i, err)
	}
	return out, nil
}

func outputFromFields(vals map[string][]byte, blinded bool) (*elements.TxOutput, error) {
	out := &elements.TxOutput{}

	script, ok := vals[string(Key(OutScript))]
	if !ok {
		return nil, &elements.FormatError{Message: "missing output script"}
	}
	out.ScriptPubKey = script

	var err error
	if blinded {
		out.Value, err = confidentialOutputField(vals, OutValueCommitment, "value")
	} else {
		out.Value, err = explicitAmountField(vals)
	}
	if err != nil {
		return nil, err
	}
	if out.Value.IsNull() {
		return nil, &elements.FormatError{Message: "missing output amount"}
	}

	if out.Asset, err = assetField(vals, blinded); err != nil {
		return nil, err
	}

	if blinded {
		if nonce, ok := vals[string(ElementsKey(OutEcdhPubkey))]; ok {
			if len(nonce) != elements.NonceLen {
				return nil, &elements.FormatError{Message: fmt.Sprintf("ecdh pubkey must be %d bytes, got %d", elements.NonceLen, len(nonce))}
			}
			out.Nonce = nonce
		}
		out.Witness = witnessFromFields(vals)
	}
	if err := out.Validate(); err != nil {
		return nil, &elements.FormatError{Message: "invalid output", Cause: err}
	}
	return out, nil
}

// overlayCommitments replaces the explicit fields of a global transaction
// output with the commitments and proofs found in its scope.
func overlayCommitments(out *elements.TxOutput, vals map[string][]byte) error {
	if b, ok := vals[string(ElementsKey(OutValueCommitment))]; ok {
		c, err := elements.BlindedCommitment(b)
		if err != nil {
			return &elements.FormatError{Message: "value commitment", Cause: err}
		}
		out.Value = c
	}
	if _, ok := vals[string(ElementsKey(OutAssetCommitment))]; ok {
		asset, err := assetField(vals, true)
		if err != nil {
			return err
		}
		out.Asset = asset
	}
	if nonce, ok := vals[string(ElementsKey(OutEcdhPubkey))]; ok {
		if len(nonce) != elements.NonceLen {
			return &elements.FormatError{Message: fmt.Sprintf("ecdh pubkey must be %d bytes, got %d", elements.NonceLen, len(nonce))}
		}
		out.Nonce = nonce
	}
	out.Witness = witnessFromFields(vals)
	if err := out.Validate(); err != nil {
		return &elements.FormatError{Message: "invalid output", Cause: err}
	}
	return nil
}

func explicitAmountField(vals map[string][]byte) (elements.Commitment, error) {
	amount, ok, err := uint64Field(vals, Key(OutAmount), "amount")
	if err != nil || !ok {
		return elements.NullCommitment(), err
	}
	return elements.ExplicitValue(amount), nil
}

func confidentialOutputField(vals map[string][]byte, commitmentSubtype byte, name string) (elements.Commitment, error) {
	if b, ok := vals[string(ElementsKey(commitmentSubtype))]; ok {
		c, err := elements.BlindedCommitment(b)
		if err != nil {
			return elements.Commitment{}, &elements.FormatError{Message: name + " commitment", Cause: err}
		}
		return c, nil
	}
	return explicitAmountField(vals)
}

func assetField(vals map[string][]byte, blinded bool) ([]byte, error) {
	if blinded {
		if b, ok := vals[string(ElementsKey(OutAssetCommitment))]; ok {
			if len(b) != elements.AssetLen || elements.KindOf(b[0]) != elements.CommitmentBlinded {
				return nil, &elements.FormatError{Message: fmt.Sprintf("invalid asset commitment %x", b)}
			}
			return b, nil
		}
	}
	b, ok := vals[string(ElementsKey(OutAsset))]
	if !ok {
		return nil, &elements.FormatError{Message: "missing output asset"}
	}
	var id [32]byte
	if len(b) != len(id) {
		return nil, &elements.FormatError{Message: fmt.Sprintf("asset must be 32 bytes, got %d", len(b))}
	}
	copy(id[:], b)
	return elements.ExplicitAsset(id), nil
}

func witnessFromFields(vals map[string][]byte) elements.OutputWitness {
	return elements.OutputWitness{
		RangeProof:      vals[string(ElementsKey(OutValueRangeproof))],
		SurjectionProof: vals[string(ElementsKey(OutAssetSurjectionProof))],
	}
}
