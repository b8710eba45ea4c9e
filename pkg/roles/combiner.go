package roles

import (
	"bytes"
	"fmt"

	"github.com/suffix-labs/liquid-pset/pkg/crypto"
	"github.com/suffix-labs/liquid-pset/pkg/pset"
)

// Combiner merges partial signatures produced by several signers.
//
// The Combiner role enables parallel signing workflows:
//   - Multiple parties sign different inputs of the same PSET
//   - Each party hands back its partial signatures
//   - The Combiner checks every signature against the view and merges them
//
// The result is keyed by input index, then by compressed public key.
type Combiner struct {
	view *pset.View
}

// NewCombiner creates a new Combiner over the PSET every signature must
// commit to.
func NewCombiner(view *pset.View) *Combiner {
	return &Combiner{view: view}
}

// Combine merges the given signature sets.
//
// Returns an error if:
//   - A signature names an input the PSET does not have
//   - A signature does not verify against the input's sighash
//   - Two signatures for the same input and key differ
func (c *Combiner) Combine(sets ...[]*PartialSignature) (map[int]map[[33]byte][]byte, error) {
	merged := make(map[int]map[[33]byte][]byte)
	for n, set := range sets {
		for _, ps := range set {
			if err := c.verify(ps); err != nil {
				return nil, fmt.Errorf("set %d: %w", n, err)
			}
			sigs, ok := merged[ps.Input]
			if !ok {
				sigs = make(map[[33]byte][]byte)
				merged[ps.Input] = sigs
			}
			if existing, ok := sigs[ps.PubKey]; ok {
				if !bytes.Equal(existing, ps.Signature) {
					return nil, fmt.Errorf("set %d: conflicting signatures for input %d key %x", n, ps.Input, ps.PubKey[:])
				}
				continue
			}
			sigs[ps.PubKey] = ps.Signature
		}
	}
	return merged, nil
}

// verify recomputes the sighash of the signed input from the sighash type
// byte and checks the DER signature against it.
func (c *Combiner) verify(ps *PartialSignature) error {
	if len(ps.Signature) < 2 {
		return fmt.Errorf("input %d: signature too short", ps.Input)
	}
	der, sighashType := ps.Signature[:len(ps.Signature)-1], uint32(ps.Signature[len(ps.Signature)-1])

	sighash, err := c.view.SighashInput(ps.Input, sighashType)
	if err != nil {
		return fmt.Errorf("input %d: %w", ps.Input, err)
	}
	pub, err := crypto.ParsePublicKey(ps.PubKey[:])
	if err != nil {
		return fmt.Errorf("input %d: %w", ps.Input, err)
	}
	if !crypto.VerifySignature(pub, sighash, der) {
		return fmt.Errorf("input %d: signature by %x does not verify", ps.Input, ps.PubKey[:])
	}
	return nil
}
