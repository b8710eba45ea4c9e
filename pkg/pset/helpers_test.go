package pset

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/suffix-labs/liquid-pset/pkg/elements"
)

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

type kv struct {
	key, value []byte
}

type scope []kv

func (s *scope) add(key, value []byte) {
	*s = append(*s, kv{key: key, value: value})
}

// psetBuilder lays out a document as magic, the global scope, then every
// input scope and every output scope.
type psetBuilder struct {
	globals scope
	inputs  []scope
	outputs []scope
}

func (b *psetBuilder) bytes() []byte {
	var buf bytes.Buffer
	buf.WriteString(Magic)
	writeScope(&buf, b.globals)
	for _, s := range b.inputs {
		writeScope(&buf, s)
	}
	for _, s := range b.outputs {
		writeScope(&buf, s)
	}
	return buf.Bytes()
}

func writeScope(buf *bytes.Buffer, s scope) {
	for _, p := range s {
		_ = elements.WriteVarBytes(buf, p.key)
		_ = elements.WriteVarBytes(buf, p.value)
	}
	buf.WriteByte(0x00)
}

func le32(x uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, x)
}

func le64(x uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, x)
}

func compactSize(n int) []byte {
	var buf bytes.Buffer
	_ = elements.WriteCompactSize(&buf, uint64(n))
	return buf.Bytes()
}

func serializeTx(version uint32, ins []*elements.TxInput, outs []*elements.TxOutput, locktime uint32) []byte {
	var buf bytes.Buffer
	buf.Write(le32(version))
	buf.WriteByte(0x00)
	buf.Write(compactSize(len(ins)))
	for _, in := range ins {
		buf.Write(in.Serialize())
	}
	buf.Write(compactSize(len(outs)))
	for _, out := range outs {
		buf.Write(out.Serialize())
	}
	buf.Write(le32(locktime))
	return buf.Bytes()
}

func fill(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func tagged(tag, b byte, n int) []byte {
	return append([]byte{tag}, fill(b, n-1)...)
}

func fill32(b byte) [32]byte {
	var a [32]byte
	copy(a[:], fill(b, 32))
	return a
}

func p2wpkh(b byte) []byte {
	return append([]byte{0x00, 0x14}, fill(b, 20)...)
}

func p2pkh(b byte) []byte {
	s := append([]byte{0x76, 0xa9, 0x14}, fill(b, 20)...)
	return append(s, 0x88, 0xac)
}

// fixtureOutput is an output in its committed (blinded) form together with
// the explicit amount and asset a version 2 scope also carries.
type fixtureOutput struct {
	out     *elements.TxOutput
	amount  uint64
	assetID [32]byte
}

// fixture is a two-input, three-output transaction. Output 1 is
// confidential and carries proofs; output 2 is the fee.
type fixture struct {
	version  uint32
	locktime uint32
	ins      []*elements.TxInput
	outs     []fixtureOutput
	utxo     *elements.TxOutput // spent by input 0
}

const (
	fixtureSpentAmount = 100_000
	fixtureSighash     = SigHashAllRangeProof
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lbtc := fill32(0x6f)
	confValue, err := elements.BlindedCommitment(tagged(0x08, 0x44, 33))
	require.NoError(t, err)

	return &fixture{
		version: 2,
		ins: []*elements.TxInput{
			{Txid: chainhash.Hash(fill32(0x11)), Vout: 1, Sequence: 0xfffffffe},
			{Txid: chainhash.Hash(fill32(0x22)), Vout: 0, Sequence: elements.DefaultSequence},
		},
		outs: []fixtureOutput{
			{
				out: &elements.TxOutput{
					Asset:        elements.ExplicitAsset(lbtc),
					Value:        elements.ExplicitValue(50_000),
					ScriptPubKey: p2wpkh(0xaa),
				},
				amount:  50_000,
				assetID: lbtc,
			},
			{
				out: &elements.TxOutput{
					Asset:        tagged(0x0a, 0x33, 33),
					Value:        confValue,
					Nonce:        tagged(0x02, 0x55, 33),
					ScriptPubKey: p2wpkh(0xbb),
					Witness: elements.OutputWitness{
						RangeProof:      fill(0x66, 80),
						SurjectionProof: fill(0x77, 40),
					},
				},
				amount:  1_000,
				assetID: lbtc,
			},
			{
				out: &elements.TxOutput{
					Asset: elements.ExplicitAsset(lbtc),
					Value: elements.ExplicitValue(250),
				},
				amount:  250,
				assetID: lbtc,
			},
		},
		utxo: &elements.TxOutput{
			Asset:        elements.ExplicitAsset(lbtc),
			Value:        elements.ExplicitValue(fixtureSpentAmount),
			ScriptPubKey: p2wpkh(0xcc),
		},
	}
}

func (f *fixture) txOutputs() []*elements.TxOutput {
	outs := make([]*elements.TxOutput, len(f.outs))
	for i, o := range f.outs {
		outs[i] = o.out
	}
	return outs
}

func (f *fixture) inputScope(i int) scope {
	var s scope
	if i == 0 {
		s.add(Key(InWitnessUtxo), f.utxo.Serialize())
		s.add(Key(InSighashType), le32(fixtureSighash))
	}
	return s
}

// v0 encodes the fixture with a global unsigned transaction.
func (f *fixture) v0() []byte {
	return f.v0Layout(f.txOutputs(), nil)
}

// v0ScopeCommitments encodes the fixture with explicit outputs in the global
// transaction and the commitments of blinded outputs in their scopes.
func (f *fixture) v0ScopeCommitments() []byte {
	outs := make([]*elements.TxOutput, len(f.outs))
	extra := make([]scope, len(f.outs))
	for i, o := range f.outs {
		if !o.out.Value.IsBlinded() {
			outs[i] = o.out
			continue
		}
		outs[i] = &elements.TxOutput{
			Asset:        elements.ExplicitAsset(o.assetID),
			Value:        elements.ExplicitValue(o.amount),
			ScriptPubKey: o.out.ScriptPubKey,
		}
		extra[i].add(ElementsKey(OutValueCommitment), o.out.Value.Serialize())
		extra[i].add(ElementsKey(OutAssetCommitment), o.out.Asset)
		extra[i].add(ElementsKey(OutEcdhPubkey), o.out.Nonce)
	}
	return f.v0Layout(outs, extra)
}

func (f *fixture) v0Layout(txOuts []*elements.TxOutput, extra []scope) []byte {
	b := &psetBuilder{}
	b.globals.add(Key(GlobalUnsignedTx), serializeTx(f.version, f.ins, txOuts, f.locktime))
	b.globals.add(Key(GlobalVersion), le32(0))
	b.globals.add(ElementsKey(0x01), []byte("ignored"))
	for i := range f.ins {
		b.inputs = append(b.inputs, f.inputScope(i))
	}
	for i, o := range f.outs {
		var s scope
		if extra != nil {
			s = append(s, extra[i]...)
		}
		if len(o.out.Witness.RangeProof) > 0 {
			s.add(ElementsKey(OutValueRangeproof), o.out.Witness.RangeProof)
		}
		if len(o.out.Witness.SurjectionProof) > 0 {
			s.add(ElementsKey(OutAssetSurjectionProof), o.out.Witness.SurjectionProof)
		}
		b.outputs = append(b.outputs, s)
	}
	return b.bytes()
}

// v2 encodes the fixture with per-input and per-output fields only.
func (f *fixture) v2() []byte {
	b := &psetBuilder{}
	b.globals.add(Key(GlobalTxVersion), le32(f.version))
	b.globals.add(Key(GlobalInputCount), compactSize(len(f.ins)))
	b.globals.add(Key(GlobalOutputCount), compactSize(len(f.outs)))
	b.globals.add(Key(GlobalVersion), le32(2))

	for i, in := range f.ins {
		s := f.inputScope(i)
		s.add(Key(InPreviousTxid), in.Txid[:])
		s.add(Key(InOutputIndex), le32(in.Vout))
		if in.Sequence != elements.DefaultSequence {
			s.add(Key(InSequence), le32(in.Sequence))
		}
		b.inputs = append(b.inputs, s)
	}

	for _, o := range f.outs {
		var s scope
		s.add(Key(OutAmount), le64(o.amount))
		s.add(Key(OutScript), o.out.ScriptPubKey)
		s.add(ElementsKey(OutAsset), o.assetID[:])
		if o.out.Value.IsBlinded() {
			s.add(ElementsKey(OutValueCommitment), o.out.Value.Serialize())
		}
		if elements.KindOf(o.out.Asset[0]) == elements.CommitmentBlinded {
			s.add(ElementsKey(OutAssetCommitment), o.out.Asset)
		}
		if len(o.out.Nonce) > 0 {
			s.add(ElementsKey(OutEcdhPubkey), o.out.Nonce)
		}
		if len(o.out.Witness.RangeProof) > 0 {
			s.add(ElementsKey(OutValueRangeproof), o.out.Witness.RangeProof)
		}
		if len(o.out.Witness.SurjectionProof) > 0 {
			s.add(ElementsKey(OutAssetSurjectionProof), o.out.Witness.SurjectionProof)
		}
		b.outputs = append(b.outputs, s)
	}
	return b.bytes()
}

// layouts returns every encoding of the fixture; every test that runs over
// them expects identical results.
func (f *fixture) layouts() map[string][]byte {
	return map[string][]byte{
		"v0":                   f.v0(),
		"v0/scope-commitments": f.v0ScopeCommitments(),
		"v2":                   f.v2(),
	}
}

func parse(t *testing.T, doc []byte) *View {
	t.Helper()
	v, err := Parse(bytes.NewReader(doc))
	require.NoError(t, err)
	return v
}
