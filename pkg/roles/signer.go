// Package roles implements the PSET roles that act on a parsed view.
package roles

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"go.uber.org/zap"

	"github.com/suffix-labs/liquid-pset/pkg/crypto"
	"github.com/suffix-labs/liquid-pset/pkg/pset"
)

// PartialSignature is a signature ready to be stored under the input's
// partial signature key (0x02 || pubkey).
type PartialSignature struct {
	Input     int
	PubKey    [33]byte
	Signature []byte // DER || sighash type byte
	Sighash   chainhash.Hash
}

// Signer computes segwit v0 signature hashes and signs them.
//
// The Signer role:
//   - Reads the spent output from the input's witness utxo
//   - Honors a sighash type pinned by the input, refusing to sign with another
//   - Produces DER signatures with the sighash type byte appended
//
// It never writes to the PSET; callers add the partial signatures.
type Signer struct {
	view   *pset.View
	logger *zap.Logger
}

// NewSigner creates a new Signer.
func NewSigner(view *pset.View, logger *zap.Logger) *Signer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Signer{view: view, logger: logger}
}

// SignInput signs input inputIndex with key.
//
// Returns an error if:
//   - Input index is out of bounds
//   - The input has no witness utxo
//   - The input pins a different sighash type
//   - Sighash computation fails
func (s *Signer) SignInput(inputIndex int, key *crypto.PrivateKey, sighashType uint32) (*PartialSignature, error) {
	if _, _, _, err := pset.DecodeSighashType(sighashType); err != nil {
		return nil, err
	}
	pinned, ok, err := s.view.SighashType(inputIndex)
	if err != nil {
		return nil, err
	}
	if ok && pinned != sighashType {
		return nil, fmt.Errorf("input %d requires sighash type 0x%02x, got 0x%02x", inputIndex, pinned, sighashType)
	}

	sighash, err := s.view.SighashInput(inputIndex, sighashType)
	if err != nil {
		return nil, fmt.Errorf("failed to compute sighash: %w", err)
	}

	// Sighash types that decode are at most 0xc3 and fit in one byte.
	signature := append(key.Sign(sighash), byte(sighashType))

	ps := &PartialSignature{
		Input:     inputIndex,
		PubKey:    key.PublicKey().SerializeCompressed(),
		Signature: signature,
		Sighash:   sighash,
	}
	s.logger.Debug("signed input",
		zap.Int("input", inputIndex),
		zap.String("pubkey", fmt.Sprintf("%x", ps.PubKey[:])),
		zap.Uint32("sighash_type", sighashType),
	)
	return ps, nil
}

// SignOwned signs every input whose witness utxo pays to the P2WPKH
// program of key. Inputs without a witness utxo are skipped.
func (s *Signer) SignOwned(key *crypto.PrivateKey, sighashType uint32) ([]*PartialSignature, error) {
	program := key.PublicKey().WitnessProgram()

	var sigs []*PartialSignature
	for i := 0; i < s.view.NumInputs(); i++ {
		utxo, ok, err := s.view.WitnessUtxo(i)
		if err != nil {
			return nil, err
		}
		if !ok || !bytes.Equal(utxo.ScriptPubKey, program) {
			continue
		}
		ps, err := s.SignInput(i, key, sighashType)
		if err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		sigs = append(sigs, ps)
	}
	s.logger.Info("signed owned inputs", zap.Int("signed", len(sigs)), zap.Int("inputs", s.view.NumInputs()))
	return sigs, nil
}
