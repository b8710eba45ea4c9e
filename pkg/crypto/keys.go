// Package crypto implements secp256k1 ECDSA keys and signatures for
// Liquid segwit inputs.
//
// Key formats:
//   - Private keys: WIF (Liquid mainnet 0x80, testnet/regtest 0xef) or raw 32 bytes
//   - Public keys: compressed 33-byte format
//   - Signatures: DER-encoded, low-S, RFC 6979 nonces
package crypto

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcutil/base58"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// WIF version bytes.
const (
	WIFMainnet byte = 0x80
	WIFTestnet byte = 0xef
)

var (
	// ErrInvalidWIF is returned for keys that fail WIF decoding.
	ErrInvalidWIF = errors.New("invalid WIF")
)

// PrivateKey wraps a secp256k1 private key
type PrivateKey struct {
	key        *secp256k1.PrivateKey
	compressed bool
}

// PublicKey wraps a secp256k1 public key
type PublicKey struct {
	key *secp256k1.PublicKey
}

// ParsePrivateKeyWIF parses a WIF-encoded private key.
//
// Layout: version || key (32) || [0x01 if compressed] || checksum (4)
func ParsePrivateKeyWIF(wif string) (*PrivateKey, error) {
	payload, version, err := base58.CheckDecode(wif)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWIF, err)
	}
	if version != WIFMainnet && version != WIFTestnet {
		return nil, fmt.Errorf("%w: version byte 0x%02x", ErrInvalidWIF, version)
	}

	switch {
	case len(payload) == 32:
		return &PrivateKey{key: secp256k1.PrivKeyFromBytes(payload)}, nil
	case len(payload) == 33 && payload[32] == 0x01:
		return &PrivateKey{key: secp256k1.PrivKeyFromBytes(payload[:32]), compressed: true}, nil
	default:
		return nil, fmt.Errorf("%w: payload length %d", ErrInvalidWIF, len(payload))
	}
}

// PrivateKeyFromBytes creates a compressed-pubkey private key from raw bytes
func PrivateKeyFromBytes(keyBytes []byte) (*PrivateKey, error) {
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(keyBytes))
	}
	return &PrivateKey{key: secp256k1.PrivKeyFromBytes(keyBytes), compressed: true}, nil
}

// EncodeWIF encodes the key with the given version byte
func (pk *PrivateKey) EncodeWIF(version byte) string {
	payload := pk.key.Serialize()
	if pk.compressed {
		payload = append(payload, 0x01)
	}
	return base58.CheckEncode(payload, version)
}

// Sign returns the DER encoding of an ECDSA signature over hash
func (pk *PrivateKey) Sign(hash [32]byte) []byte {
	return ecdsa.Sign(pk.key, hash[:]).Serialize()
}

// Compressed reports whether the WIF flagged a compressed public key
func (pk *PrivateKey) Compressed() bool {
	return pk.compressed
}

// PublicKey returns the key whose compressed form keys partial signatures
// and whose hash160 is matched against P2WPKH witness utxos.
func (pk *PrivateKey) PublicKey() *PublicKey {
	return &PublicKey{key: pk.key.PubKey()}
}

// Bytes returns the 32-byte scalar carried in a WIF payload.
func (pk *PrivateKey) Bytes() []byte {
	return pk.key.Serialize()
}

// SerializeCompressed returns the key as it appears in a Liquid witness
// stack next to the signature.
func (pub *PublicKey) SerializeCompressed() [33]byte {
	var out [33]byte
	copy(out[:], pub.key.SerializeCompressed())
	return out
}

// Hash160 returns RIPEMD160(SHA256(compressed pubkey)), the P2WPKH program
func (pub *PublicKey) Hash160() []byte {
	return btcutil.Hash160(pub.key.SerializeCompressed())
}

// WitnessProgram returns the P2WPKH scriptPubKey of the key
func (pub *PublicKey) WitnessProgram() []byte {
	return append([]byte{0x00, 0x14}, pub.Hash160()...)
}

// ParsePublicKey parses the 33-byte key of a partial signature. Liquid
// segwit v0 spends only carry compressed keys.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	if len(b) != 33 {
		return nil, fmt.Errorf("witness public key must be 33 bytes, got %d", len(b))
	}
	key, err := secp256k1.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("parsing witness public key: %w", err)
	}
	return &PublicKey{key: key}, nil
}

// VerifySignature checks a DER signature, without its trailing sighash type
// byte, against a segwit sighash.
func VerifySignature(pub *PublicKey, sighash [32]byte, der []byte) bool {
	sig, err := ecdsa.ParseDERSignature(der)
	if err != nil {
		return false
	}
	return sig.Verify(sighash[:], pub.key)
}
