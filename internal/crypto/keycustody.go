package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

// PassphraseKeyManager is a local, offline KeyManager: it derives a wrapping
// key from an operator-supplied passphrase via PBKDF2 (grounded on
// hkessock-encryptor/crypto.go's identical derive-then-seal pattern) and
// seals the plaintext secret key with AES-256-GCM. It needs no KMS, which
// makes it the right default for a client application embedding Pinenut
// without its own key-management infrastructure.
type PassphraseKeyManager struct {
	passphrase []byte
	iterations int
	version    int
}

// PassphraseKeyManagerOptions configures a PassphraseKeyManager.
type PassphraseKeyManagerOptions struct {
	Passphrase []byte
	// Iterations is the PBKDF2 round count. Defaults to 200_000 if zero.
	Iterations int
	// Version is reported as the envelope's key version, letting callers
	// roll the passphrase and still unwrap keys sealed under an older one
	// by keeping multiple PassphraseKeyManagers around.
	Version int
}

const (
	pbkdf2SaltLen = 16
	pbkdf2KeyLen  = 32 // AES-256
	defaultPBKDF2Iterations = 200_000
)

// NewPassphraseKeyManager builds a PassphraseKeyManager from opts.
func NewPassphraseKeyManager(opts PassphraseKeyManagerOptions) (*PassphraseKeyManager, error) {
	if len(opts.Passphrase) == 0 {
		return nil, fmt.Errorf("crypto: passphrase must not be empty")
	}
	iterations := opts.Iterations
	if iterations == 0 {
		iterations = defaultPBKDF2Iterations
	}
	return &PassphraseKeyManager{passphrase: opts.Passphrase, iterations: iterations, version: opts.Version}, nil
}

// Provider reports the manager's identifier.
func (m *PassphraseKeyManager) Provider() string { return "passphrase-pbkdf2" }

// WrapKey derives a per-call key from a fresh random salt and seals
// plaintext with AES-256-GCM; the salt and nonce are prepended to the
// envelope ciphertext so UnwrapKey is self-contained.
func (m *PassphraseKeyManager) WrapKey(_ context.Context, plaintext []byte, _ map[string]string) (*KeyEnvelope, error) {
	salt := make([]byte, pbkdf2SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("crypto: generate salt: %w", err)
	}
	gcm, err := m.gcmFor(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)

	ciphertext := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	ciphertext = append(ciphertext, salt...)
	ciphertext = append(ciphertext, nonce...)
	ciphertext = append(ciphertext, sealed...)

	return &KeyEnvelope{Provider: m.Provider(), KeyVersion: m.version, Ciphertext: ciphertext}, nil
}

// UnwrapKey reverses WrapKey.
func (m *PassphraseKeyManager) UnwrapKey(_ context.Context, envelope *KeyEnvelope, _ map[string]string) ([]byte, error) {
	if envelope == nil || len(envelope.Ciphertext) < pbkdf2SaltLen {
		return nil, fmt.Errorf("crypto: malformed envelope")
	}
	salt := envelope.Ciphertext[:pbkdf2SaltLen]
	rest := envelope.Ciphertext[pbkdf2SaltLen:]

	gcm, err := m.gcmFor(salt)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("crypto: malformed envelope")
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: unwrap: %w", err)
	}
	return plaintext, nil
}

// ActiveKeyVersion returns the configured version; a PassphraseKeyManager
// has exactly one active key at a time.
func (m *PassphraseKeyManager) ActiveKeyVersion(context.Context) (int, error) { return m.version, nil }

// HealthCheck is always nil: there is no remote service to reach.
func (m *PassphraseKeyManager) HealthCheck(context.Context) error { return nil }

// Close is a no-op.
func (m *PassphraseKeyManager) Close(context.Context) error { return nil }

func (m *PassphraseKeyManager) gcmFor(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(m.passphrase, salt, m.iterations, pbkdf2KeyLen, sha3.New256)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
