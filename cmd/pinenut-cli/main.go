// Command pinenut-cli is the minimal external adapter described in the
// specification's external-interfaces section: generate a long-term key
// pair, extract a time range out of a domain's logfiles, and convert a
// binary logfile to text. Grounded on the teacher's cmd/loadtest/main.go
// for its flag-parsing and logrus-based diagnostic-output conventions.
package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kenneth/pinenut/internal/crypto"
	"github.com/kenneth/pinenut/internal/extract"
	"github.com/kenneth/pinenut/internal/logger"
	"github.com/kenneth/pinenut/internal/parse"
)

var log = logrus.StandardLogger()

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "gen-keys":
		err = runGenKeys(os.Args[2:])
	case "parse":
		err = runParse(os.Args[2:])
	case "extract":
		err = runExtract(os.Args[2:])
	case "wrap-key":
		err = runWrapKey(os.Args[2:])
	case "unwrap-key":
		err = runUnwrapKey(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: pinenut-cli gen-keys | parse <path> [-o out] [-s secret] | extract <directory> <identifier> -start <RFC3339> -end <RFC3339> -o out | wrap-key -s secret -p passphrase | unwrap-key -e envelope -p passphrase")
}

func runGenKeys(args []string) error {
	secret, public, err := crypto.GenerateSecretKey()
	if err != nil {
		return fmt.Errorf("gen-keys: %w", err)
	}
	pubBytes := public
	fmt.Printf("secret: %s\n", base64.StdEncoding.EncodeToString(secret.Bytes()))
	fmt.Printf("public: %s\n", base64.StdEncoding.EncodeToString(pubBytes[:]))
	return nil
}

func runParse(args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	out := fs.String("o", "", "output path (default: <path>.log)")
	secretB64 := fs.String("s", "", "base64-encoded secret key, required if the file is encrypted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("parse: missing <path>")
	}
	path := fs.Arg(0)
	dest := *out
	if dest == "" {
		dest = path + ".log"
	}

	var secretKey *crypto.SecretKey
	if *secretB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(*secretB64)
		if err != nil {
			return fmt.Errorf("parse: decode secret: %w", err)
		}
		sk, err := crypto.ParseSecretKey(raw)
		if err != nil {
			return fmt.Errorf("parse: %w", err)
		}
		secretKey = &sk
	}

	if err := parse.ToFile(path, secretKey, dest, parse.DefaultFormatter{}); err != nil {
		if ce, ok := err.(*parse.ChunkErrors); ok {
			for _, e := range ce.Errors {
				log.Warnf("parse: %v", e)
			}
			return nil
		}
		return fmt.Errorf("parse: %w", err)
	}
	return nil
}

func runExtract(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	start := fs.String("start", "", "range start, RFC3339")
	end := fs.String("end", "", "range end, RFC3339")
	out := fs.String("o", "", "output path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 || *start == "" || *end == "" || *out == "" {
		return fmt.Errorf("extract: usage: extract <directory> <identifier> -start <RFC3339> -end <RFC3339> -o out")
	}

	startT, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("extract: parse -start: %w", err)
	}
	endT, err := time.Parse(time.RFC3339, *end)
	if err != nil {
		return fmt.Errorf("extract: parse -end: %w", err)
	}

	domain := logger.Domain{Directory: fs.Arg(0), Identifier: fs.Arg(1)}
	r := extract.Range{Start: startT, End: endT}
	return extract.Extract(context.Background(), domain, r, *out)
}

// wrappedKey is the portable, JSON-then-base64-encoded form of a
// crypto.KeyEnvelope this command prints/accepts on the command line.
type wrappedKey struct {
	Provider   string `json:"provider"`
	KeyVersion int    `json:"key_version"`
	Ciphertext string `json:"ciphertext"`
}

// runWrapKey seals a long-term ECDH secret key at rest under an
// operator-supplied passphrase, so the raw scalar produced by gen-keys
// never has to be stored in plaintext on disk.
func runWrapKey(args []string) error {
	fs := flag.NewFlagSet("wrap-key", flag.ExitOnError)
	secretB64 := fs.String("s", "", "base64-encoded secret key, from gen-keys")
	passphrase := fs.String("p", "", "passphrase to wrap the secret key with")
	version := fs.Int("v", 0, "key version recorded in the envelope")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secretB64 == "" || *passphrase == "" {
		return fmt.Errorf("wrap-key: -s and -p are required")
	}
	raw, err := base64.StdEncoding.DecodeString(*secretB64)
	if err != nil {
		return fmt.Errorf("wrap-key: decode secret: %w", err)
	}

	km, err := crypto.NewPassphraseKeyManager(crypto.PassphraseKeyManagerOptions{
		Passphrase: []byte(*passphrase),
		Version:    *version,
	})
	if err != nil {
		return fmt.Errorf("wrap-key: %w", err)
	}
	envelope, err := km.WrapKey(context.Background(), raw, nil)
	if err != nil {
		return fmt.Errorf("wrap-key: %w", err)
	}

	out, err := json.Marshal(wrappedKey{
		Provider:   envelope.Provider,
		KeyVersion: envelope.KeyVersion,
		Ciphertext: base64.StdEncoding.EncodeToString(envelope.Ciphertext),
	})
	if err != nil {
		return fmt.Errorf("wrap-key: encode envelope: %w", err)
	}
	fmt.Printf("envelope: %s\n", base64.StdEncoding.EncodeToString(out))
	return nil
}

// runUnwrapKey reverses runWrapKey, printing the base64-encoded secret
// key gen-keys originally produced.
func runUnwrapKey(args []string) error {
	fs := flag.NewFlagSet("unwrap-key", flag.ExitOnError)
	envelopeB64 := fs.String("e", "", "base64-encoded envelope, from wrap-key")
	passphrase := fs.String("p", "", "passphrase the secret key was wrapped with")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *envelopeB64 == "" || *passphrase == "" {
		return fmt.Errorf("unwrap-key: -e and -p are required")
	}

	raw, err := base64.StdEncoding.DecodeString(*envelopeB64)
	if err != nil {
		return fmt.Errorf("unwrap-key: decode envelope: %w", err)
	}
	var wk wrappedKey
	if err := json.Unmarshal(raw, &wk); err != nil {
		return fmt.Errorf("unwrap-key: decode envelope: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(wk.Ciphertext)
	if err != nil {
		return fmt.Errorf("unwrap-key: decode ciphertext: %w", err)
	}

	km, err := crypto.NewPassphraseKeyManager(crypto.PassphraseKeyManagerOptions{
		Passphrase: []byte(*passphrase),
		Version:    wk.KeyVersion,
	})
	if err != nil {
		return fmt.Errorf("unwrap-key: %w", err)
	}
	plaintext, err := km.UnwrapKey(context.Background(), &crypto.KeyEnvelope{
		Provider:   wk.Provider,
		KeyVersion: wk.KeyVersion,
		Ciphertext: ciphertext,
	}, nil)
	if err != nil {
		return fmt.Errorf("unwrap-key: %w", err)
	}
	fmt.Printf("secret: %s\n", base64.StdEncoding.EncodeToString(plaintext))
	return nil
}
