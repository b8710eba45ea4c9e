package pset

// Magic is the PSET file prefix.
const Magic = "pset\xff"

// Global key types.
const (
	GlobalUnsignedTx       = 0x00
	GlobalXpub             = 0x01
	GlobalTxVersion        = 0x02
	GlobalFallbackLocktime = 0x03
	GlobalInputCount       = 0x04
	GlobalOutputCount      = 0x05
	GlobalTxModifiable     = 0x06
	GlobalVersion          = 0xfb
	ProprietaryType        = 0xfc
)

// Input key types.
const (
	InNonWitnessUtxo         = 0x00
	InWitnessUtxo            = 0x01
	InPartialSig             = 0x02
	InSighashType            = 0x03
	InRedeemScript           = 0x04
	InWitnessScript          = 0x05
	InPreviousTxid           = 0x0e
	InOutputIndex            = 0x0f
	InSequence               = 0x10
	InRequiredTimeLocktime   = 0x11
	InRequiredHeightLocktime = 0x12
)

// Elements proprietary input subtypes.
const (
	InIssuanceValue                   = 0x00
	InIssuanceValueCommitment         = 0x01
	InIssuanceValueRangeproof         = 0x02
	InIssuanceKeysRangeproof          = 0x03
	InPeginTx                         = 0x04
	InPeginTxoutProof                 = 0x05
	InPeginGenesis                    = 0x06
	InPeginClaimScript                = 0x07
	InPeginValue                      = 0x08
	InPeginWitness                    = 0x09
	InIssuanceInflationKeys           = 0x0a
	InIssuanceInflationKeysCommitment = 0x0b
	InIssuanceBlindingNonce           = 0x0c
	InIssuanceAssetEntropy            = 0x0d
)

// Output key types.
const (
	OutRedeemScript  = 0x00
	OutWitnessScript = 0x01
	OutBip32         = 0x02
	OutAmount        = 0x03
	OutScript        = 0x04
)

// Elements proprietary output subtypes.
const (
	OutValueCommitment      = 0x01
	OutAsset                = 0x02
	OutAssetCommitment      = 0x03
	OutValueRangeproof      = 0x04
	OutAssetSurjectionProof = 0x05
	OutBlindingPubkey       = 0x06
	OutEcdhPubkey           = 0x07
	OutBlinderIndex         = 0x08
)

// proprietaryPrefix is the identifier of Elements proprietary keys.
const proprietaryPrefix = "pset"

// Key returns the key bytes of a standard field with no key data.
func Key(keyType byte) []byte {
	return []byte{keyType}
}

// ElementsKey returns the key bytes of an Elements proprietary field with
// no key data: 0xfc || varslice("pset") || subtype.
func ElementsKey(subtype byte) []byte {
	k := make([]byte, 0, 2+len(proprietaryPrefix)+1)
	k = append(k, ProprietaryType, byte(len(proprietaryPrefix)))
	k = append(k, proprietaryPrefix...)
	return append(k, subtype)
}
