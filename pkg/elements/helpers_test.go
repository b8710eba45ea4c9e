package elements

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// countingReadSeeker records every Read and Seek issued against the
// underlying stream.
type countingReadSeeker struct {
	rs    io.ReadSeeker
	reads int
	seeks int
}

func (c *countingReadSeeker) Read(p []byte) (int, error) {
	c.reads++
	return c.rs.Read(p)
}

func (c *countingReadSeeker) Seek(off int64, whence int) (int64, error) {
	c.seeks++
	return c.rs.Seek(off, whence)
}

func (c *countingReadSeeker) reset() {
	c.reads, c.seeks = 0, 0
}

// buildTx serializes an unsigned transaction the way the global PSET
// transaction is laid out: version, zero flag, inputs, outputs, locktime.
func buildTx(version uint32, ins []*TxInput, outs []*TxOutput, locktime uint32) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, version)
	buf.WriteByte(0x00)
	_ = WriteCompactSize(&buf, uint64(len(ins)))
	for _, in := range ins {
		buf.Write(in.Serialize())
	}
	_ = WriteCompactSize(&buf, uint64(len(outs)))
	for _, out := range outs {
		buf.Write(out.Serialize())
	}
	_ = binary.Write(&buf, binary.LittleEndian, locktime)
	return buf.Bytes()
}

func fillHash(b byte) chainhash.Hash {
	var h chainhash.Hash
	for i := range h {
		h[i] = b + byte(i)
	}
	return h
}

func fill32(b byte) [32]byte {
	var a [32]byte
	for i := range a {
		a[i] = b
	}
	return a
}

func blinded(t *testing.T, tag, fill byte) Commitment {
	t.Helper()
	raw := bytes.Repeat([]byte{fill}, BlindedCommitmentLen)
	raw[0] = tag
	c, err := BlindedCommitment(raw)
	require.NoError(t, err)
	return c
}

func explicitOutput(assetFill byte, amount uint64, script []byte) *TxOutput {
	return &TxOutput{
		Asset:        ExplicitAsset(fill32(assetFill)),
		Value:        ExplicitValue(amount),
		ScriptPubKey: script,
	}
}

func confidentialOutput(t *testing.T, fill byte, script []byte) *TxOutput {
	t.Helper()
	nonce := bytes.Repeat([]byte{fill}, NonceLen)
	nonce[0] = 0x02
	asset := bytes.Repeat([]byte{fill}, AssetLen)
	asset[0] = 0x0a
	return &TxOutput{
		Asset:        asset,
		Value:        blinded(t, 0x08, fill),
		Nonce:        nonce,
		ScriptPubKey: script,
	}
}

// sampleInputs covers a plain input, an issuance, a pegin and a null prevout.
func sampleInputs(t *testing.T) []*TxInput {
	t.Helper()
	return []*TxInput{
		{Txid: fillHash(0x10), Vout: 1, Sequence: 0xfffffffe},
		{
			Txid:        fillHash(0x20),
			Vout:        7,
			Sequence:    0xffffffff,
			HasIssuance: true,
			Issuance: &Issuance{
				BlindingNonce: fill32(0x00),
				AssetEntropy:  fill32(0x33),
				Amount:        ExplicitValue(1_000_000),
				InflationKeys: blinded(t, 0x09, 0x44),
			},
		},
		{Txid: fillHash(0x30), Vout: 2, Sequence: 0, IsPegin: true},
		{Txid: fillHash(0x40), Vout: NullIndex, Sequence: 0xffffffff},
	}
}
