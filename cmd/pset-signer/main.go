// pset-signer computes the segwit signature hash of a Liquid PSET input
// and optionally signs it.
//
// Example usage:
//
//	# Sighash of input 0 from its witness utxo
//	pset-signer --pset tx.pset --input 0
//
//	# Explicit spent output, base64 document, SIGHASH_ALL
//	pset-signer --pset tx.b64 --base64 --input 1 --script-pubkey 76a9...88ac --value 100000 --sighash 1
//
//	# Sign every input paying to the key
//	pset-signer --pset tx.pset --wif cMzL... --owned
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"

	"github.com/suffix-labs/liquid-pset/pkg/crypto"
	"github.com/suffix-labs/liquid-pset/pkg/elements"
	"github.com/suffix-labs/liquid-pset/pkg/pset"
	"github.com/suffix-labs/liquid-pset/pkg/roles"
)

type config struct {
	PSET            string  `long:"pset" env:"PSET_SIGNER_PSET" description:"path to the PSET document" required:"true"`
	Base64          bool    `long:"base64" env:"PSET_SIGNER_BASE64" description:"the document is base64 encoded"`
	Input           int     `long:"input" env:"PSET_SIGNER_INPUT" description:"input index" default:"0"`
	ScriptPubKey    string  `long:"script-pubkey" env:"PSET_SIGNER_SCRIPT_PUBKEY" description:"hex script code of the spent output; defaults to the witness utxo"`
	Value           *uint64 `long:"value" env:"PSET_SIGNER_VALUE" description:"explicit amount of the spent output"`
	ValueCommitment string  `long:"value-commitment" env:"PSET_SIGNER_VALUE_COMMITMENT" description:"hex 33-byte value commitment of the spent output"`
	Sighash         uint32  `long:"sighash" env:"PSET_SIGNER_SIGHASH" description:"sighash type" default:"65"`
	WIF             string  `long:"wif" env:"PSET_SIGNER_WIF" description:"WIF private key to sign with"`
	Owned           bool    `long:"owned" env:"PSET_SIGNER_OWNED" description:"sign every input whose witness utxo pays to the key"`
	Debug           bool    `long:"debug" env:"PSET_SIGNER_DEBUG" description:"log parser and sighash internals"`
}

func main() {
	var cfg config
	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(cfg, logger, os.Stdout); err != nil {
		logger.Fatal("pset-signer failed", zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}

func run(cfg config, logger *zap.Logger, out io.Writer) error {
	rs, closeFn, err := openDocument(cfg.PSET, cfg.Base64)
	if err != nil {
		return err
	}
	defer closeFn()

	view, err := pset.Parse(rs, pset.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("parse %s: %w", cfg.PSET, err)
	}
	logger.Info("parsed pset",
		zap.String("path", cfg.PSET),
		zap.Uint32("version", view.Version()),
		zap.Int("inputs", view.NumInputs()),
		zap.Int("outputs", view.NumOutputs()),
	)

	if cfg.Owned {
		return signOwned(cfg, view, logger, out)
	}

	sighash, err := computeSighash(cfg, view)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "sighash: %x\n", sighash[:])

	if cfg.WIF == "" {
		return nil
	}
	key, err := crypto.ParsePrivateKeyWIF(cfg.WIF)
	if err != nil {
		return err
	}
	sig := append(key.Sign(sighash), byte(cfg.Sighash))
	pub := key.PublicKey().SerializeCompressed()
	fmt.Fprintf(out, "pubkey: %x\nsignature: %x\n", pub[:], sig)
	return nil
}

func computeSighash(cfg config, view *pset.View) ([32]byte, error) {
	if cfg.ScriptPubKey == "" {
		return view.SighashInput(cfg.Input, cfg.Sighash)
	}
	script, err := hex.DecodeString(cfg.ScriptPubKey)
	if err != nil {
		return [32]byte{}, fmt.Errorf("--script-pubkey: %w", err)
	}
	value, err := spentValue(cfg)
	if err != nil {
		return [32]byte{}, err
	}
	return view.SighashSegwit(cfg.Input, script, value, cfg.Sighash)
}

func spentValue(cfg config) (elements.Commitment, error) {
	switch {
	case cfg.ValueCommitment != "" && cfg.Value != nil:
		return elements.Commitment{}, errors.New("--value and --value-commitment are mutually exclusive")
	case cfg.ValueCommitment != "":
		b, err := hex.DecodeString(cfg.ValueCommitment)
		if err != nil {
			return elements.Commitment{}, fmt.Errorf("--value-commitment: %w", err)
		}
		return elements.BlindedCommitment(b)
	case cfg.Value != nil:
		return elements.ExplicitValue(*cfg.Value), nil
	default:
		return elements.Commitment{}, errors.New("--script-pubkey needs --value or --value-commitment")
	}
}

func signOwned(cfg config, view *pset.View, logger *zap.Logger, out io.Writer) error {
	if cfg.WIF == "" {
		return errors.New("--owned needs --wif")
	}
	key, err := crypto.ParsePrivateKeyWIF(cfg.WIF)
	if err != nil {
		return err
	}
	sigs, err := roles.NewSigner(view, logger).SignOwned(key, cfg.Sighash)
	if err != nil {
		return err
	}
	for _, ps := range sigs {
		fmt.Fprintf(out, "input %d\n  sighash: %x\n  pubkey: %x\n  signature: %x\n", ps.Input, ps.Sighash[:], ps.PubKey[:], ps.Signature)
	}
	return nil
}

// openDocument returns a seekable reader over the document. Binary files
// are read in place; base64 documents are decoded into memory.
func openDocument(path string, b64 bool) (io.ReadSeeker, func(), error) {
	if !b64 {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return f, func() { _ = f.Close() }, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, nil, fmt.Errorf("decode base64 %s: %w", path, err)
	}
	return bytes.NewReader(doc), func() {}, nil
}
