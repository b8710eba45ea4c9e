package pset

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"
)

// The shared digests are single SHA-256 values. The signature hash applies
// the second round when it absorbs them.

// HashPrevouts returns SHA256 over txid || vout of every input.
func (v *View) HashPrevouts() (chainhash.Hash, error) {
	if v.hashPrevouts == nil {
		if err := v.hashInputs(); err != nil {
			return chainhash.Hash{}, err
		}
	}
	return *v.hashPrevouts, nil
}

// HashSequence returns SHA256 over the sequence of every input.
func (v *View) HashSequence() (chainhash.Hash, error) {
	if v.hashSequence == nil {
		if err := v.hashInputs(); err != nil {
			return chainhash.Hash{}, err
		}
	}
	return *v.hashSequence, nil
}

// HashIssuances returns SHA256 over, per input, 0x00 when the input issues
// nothing and the serialized issuance otherwise.
func (v *View) HashIssuances() (chainhash.Hash, error) {
	if v.hashIssuances == nil {
		if err := v.hashInputs(); err != nil {
			return chainhash.Hash{}, err
		}
	}
	return *v.hashIssuances, nil
}

// HashOutputs returns SHA256 over every blinded output.
func (v *View) HashOutputs() (chainhash.Hash, error) {
	if v.hashOutputs == nil {
		if err := v.hashOutputSet(); err != nil {
			return chainhash.Hash{}, err
		}
	}
	return *v.hashOutputs, nil
}

// HashRangeproofs returns SHA256 over varslice(range proof) ||
// varslice(surjection proof) of every output.
func (v *View) HashRangeproofs() (chainhash.Hash, error) {
	if v.hashRangeproofs == nil {
		if err := v.hashOutputSet(); err != nil {
			return chainhash.Hash{}, err
		}
	}
	return *v.hashRangeproofs, nil
}

// hashInputs fills the three input digests in one pass over the inputs.
func (v *View) hashInputs() error {
	ins, err := v.inputs()
	if err != nil {
		return err
	}

	prevouts, sequences, issuances := sha256.New(), sha256.New(), sha256.New()
	var seq [4]byte
	for _, in := range ins {
		prevouts.Write(in.OutpointBytes())
		binary.LittleEndian.PutUint32(seq[:], in.Sequence)
		sequences.Write(seq[:])
		if in.HasIssuance && in.Issuance != nil {
			issuances.Write(in.Issuance.Serialize())
		} else {
			issuances.Write([]byte{0x00})
		}
	}

	hp, hs, hi := sum(prevouts.Sum(nil)), sum(sequences.Sum(nil)), sum(issuances.Sum(nil))
	v.hashPrevouts, v.hashSequence, v.hashIssuances = &hp, &hs, &hi
	v.logger.Debug("hashed inputs",
		zap.Int("inputs", len(ins)),
		zap.Stringer("hash_prevouts", hp),
		zap.Stringer("hash_sequence", hs),
		zap.Stringer("hash_issuances", hi),
	)
	return nil
}

// hashOutputSet fills the outputs and range proof digests in one pass.
func (v *View) hashOutputSet() error {
	outputs, proofs := sha256.New(), sha256.New()
	for i := 0; i < v.numOutputs; i++ {
		out, err := v.BlindedVout(i)
		if err != nil {
			return err
		}
		outputs.Write(out.Serialize())
		proofs.Write(out.Witness.Serialize())
	}

	ho, hr := sum(outputs.Sum(nil)), sum(proofs.Sum(nil))
	v.hashOutputs, v.hashRangeproofs = &ho, &hr
	v.logger.Debug("hashed outputs",
		zap.Int("outputs", v.numOutputs),
		zap.Stringer("hash_outputs", ho),
		zap.Stringer("hash_rangeproofs", hr),
	)
	return nil
}

func sum(b []byte) chainhash.Hash {
	var h chainhash.Hash
	copy(h[:], b)
	return h
}
