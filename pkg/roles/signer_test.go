package roles

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/suffix-labs/liquid-pset/pkg/crypto"
	"github.com/suffix-labs/liquid-pset/pkg/elements"
	"github.com/suffix-labs/liquid-pset/pkg/pset"
)

func writePair(buf *bytes.Buffer, key, value []byte) {
	_ = elements.WriteVarBytes(buf, key)
	_ = elements.WriteVarBytes(buf, value)
}

func le32(x uint32) []byte { return binary.LittleEndian.AppendUint32(nil, x) }

// buildPSET returns a version 2 document whose inputs spend the given
// scripts. Input 0 pins SIGHASH_ALL|RANGEPROOF.
func buildPSET(t *testing.T, scripts ...[]byte) []byte {
	t.Helper()
	var asset [32]byte
	asset[0] = 0x6f

	var buf bytes.Buffer
	buf.WriteString(pset.Magic)
	writePair(&buf, pset.Key(pset.GlobalVersion), le32(2))
	writePair(&buf, pset.Key(pset.GlobalTxVersion), le32(2))
	writePair(&buf, pset.Key(pset.GlobalInputCount), []byte{byte(len(scripts))})
	writePair(&buf, pset.Key(pset.GlobalOutputCount), []byte{1})
	buf.WriteByte(0x00)

	for i, script := range scripts {
		utxo := &elements.TxOutput{
			Asset:        elements.ExplicitAsset(asset),
			Value:        elements.ExplicitValue(uint64(10_000 * (i + 1))),
			ScriptPubKey: script,
		}
		txid := bytes.Repeat([]byte{byte(0x10 + i)}, 32)
		writePair(&buf, pset.Key(pset.InPreviousTxid), txid)
		writePair(&buf, pset.Key(pset.InOutputIndex), le32(uint32(i)))
		writePair(&buf, pset.Key(pset.InWitnessUtxo), utxo.Serialize())
		if i == 0 {
			writePair(&buf, pset.Key(pset.InSighashType), le32(pset.SigHashAllRangeProof))
		}
		buf.WriteByte(0x00)
	}

	writePair(&buf, pset.Key(pset.OutAmount), binary.LittleEndian.AppendUint64(nil, 9_000))
	writePair(&buf, pset.Key(pset.OutScript), []byte{0x51})
	writePair(&buf, pset.ElementsKey(pset.OutAsset), asset[:])
	buf.WriteByte(0x00)
	return buf.Bytes()
}

func testKey(t *testing.T, b byte) *crypto.PrivateKey {
	t.Helper()
	raw := bytes.Repeat([]byte{b}, 32)
	key, err := crypto.PrivateKeyFromBytes(raw)
	require.NoError(t, err)
	return key
}

func TestSignInput(t *testing.T) {
	key := testKey(t, 0x01)
	doc := buildPSET(t, key.PublicKey().WitnessProgram())
	view, err := pset.Parse(bytes.NewReader(doc))
	require.NoError(t, err)

	ps, err := NewSigner(view, zap.NewNop()).SignInput(0, key, pset.SigHashAllRangeProof)
	require.NoError(t, err)

	want, err := view.SighashInput(0, pset.SigHashAllRangeProof)
	require.NoError(t, err)
	assert.Equal(t, want, ps.Sighash)
	assert.Equal(t, key.PublicKey().SerializeCompressed(), ps.PubKey)
	require.NotEmpty(t, ps.Signature)
	assert.Equal(t, byte(pset.SigHashAllRangeProof), ps.Signature[len(ps.Signature)-1])

	pub, err := btcec.ParsePubKey(ps.PubKey[:])
	require.NoError(t, err)
	sig, err := btcecdsa.ParseDERSignature(ps.Signature[:len(ps.Signature)-1])
	require.NoError(t, err)
	assert.True(t, sig.Verify(ps.Sighash[:], pub))
}

func TestSignInputRejectsOtherSighashType(t *testing.T) {
	key := testKey(t, 0x01)
	view, err := pset.Parse(bytes.NewReader(buildPSET(t, key.PublicKey().WitnessProgram())))
	require.NoError(t, err)

	_, err = NewSigner(view, nil).SignInput(0, key, 0x01)
	assert.Error(t, err)

	_, err = NewSigner(view, nil).SignInput(0, key, 0x05)
	assert.ErrorIs(t, err, pset.ErrInvalidSighashType)

	_, err = NewSigner(view, nil).SignInput(3, key, pset.SigHashAllRangeProof)
	var ierr *elements.IndexError
	assert.ErrorAs(t, err, &ierr)
}

func TestSignOwned(t *testing.T) {
	mine := testKey(t, 0x01)
	theirs := testKey(t, 0x02)
	doc := buildPSET(t,
		mine.PublicKey().WitnessProgram(),
		theirs.PublicKey().WitnessProgram(),
		mine.PublicKey().WitnessProgram(),
	)
	view, err := pset.Parse(bytes.NewReader(doc))
	require.NoError(t, err)

	sigs, err := NewSigner(view, zap.NewNop()).SignOwned(mine, pset.SigHashAllRangeProof)
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.Equal(t, 0, sigs[0].Input)
	assert.Equal(t, 2, sigs[1].Input)
	assert.NotEqual(t, sigs[0].Sighash, sigs[1].Sighash)

	for _, ps := range sigs {
		der := ps.Signature[:len(ps.Signature)-1]
		assert.True(t, crypto.VerifySignature(mine.PublicKey(), ps.Sighash, der))
	}
}
