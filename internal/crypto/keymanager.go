package crypto

import "context"

// KeyManager abstracts key custody backends that wrap and unwrap a
// Logger's long-term ECDH SecretKey at rest, so the raw scalar is never
// written to disk unprotected.
//
// Implementations must never expose the plaintext secret key outside of
// WrapKey/UnwrapKey and must ensure any remote calls (to a KMIP server, a
// cloud KMS, Vault Transit) happen entirely inside the implementation.
//
// Current implementations:
//   - PassphraseKeyManager: local, PBKDF2-derived wrapping key, no external
//     service required (see keycustody.go).
//
// Planned implementations:
//   - KMIP (ovh/kmip-go): deferred until a reachable KMIP test server is
//     available in CI; the interface is shaped so dropping one in later
//     doesn't touch call sites. See DESIGN.md.
type KeyManager interface {
	// Provider returns a short identifier (e.g. "passphrase-pbkdf2") used for diagnostics and metadata.
	Provider() string

	// WrapKey encrypts the provided plaintext secret key scalar and returns an envelope suitable for
	// persisting alongside the key's metadata (e.g. the logger's public key and domain identifier).
	WrapKey(ctx context.Context, plaintext []byte, metadata map[string]string) (*KeyEnvelope, error)

	// UnwrapKey decrypts the ciphertext contained in the given envelope and returns the plaintext secret key scalar.
	UnwrapKey(ctx context.Context, envelope *KeyEnvelope, metadata map[string]string) ([]byte, error)

	// ActiveKeyVersion returns the version identifier of the primary wrapping key.
	ActiveKeyVersion(ctx context.Context) (int, error)

	// HealthCheck verifies that the key custody backend is accessible and operational.
	// Returns an error if it is unavailable or unhealthy.
	// This should be a lightweight operation that doesn't perform actual encryption/decryption.
	HealthCheck(ctx context.Context) error

	// Close releases any underlying resources.
	Close(ctx context.Context) error
}

// KeyEnvelope captures the information required to unwrap a secret key.
type KeyEnvelope struct {
	KeyID      string
	KeyVersion int
	Provider   string
	Ciphertext []byte
}

// MetaKeyVersion is stored alongside a wrapped secret key to record which
// wrapping key protected it.
const (
	MetaKeyVersion = "x-pinenut-meta-key-version"
)
