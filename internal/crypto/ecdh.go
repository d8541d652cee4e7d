package crypto

import (
	"crypto/ecdh"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"
)

// PublicKeyLen is the size of a compressed NIST P-256 public key: one sign
// byte plus a 32-byte X coordinate, matching
// original_source/pinenut/src/encrypt.rs's ecdh::PUBLIC_KEY_LEN.
const PublicKeyLen = 33

// SecretKeyLen is the size of a raw P-256 scalar.
const SecretKeyLen = 32

// EncryptionKeyLen is the size of the AES-128 key derived from an ECDH
// shared secret.
const EncryptionKeyLen = 16

// PublicKey is a compressed NIST P-256 point.
type PublicKey [PublicKeyLen]byte

// EmptyPublicKey is the sentinel embedded in a chunk header when no
// recipient key was configured, matching ecdh::EMPTY_PUBLIC_KEY.
var EmptyPublicKey PublicKey

// EncryptionKey is the symmetric AES-128 key derived from an ECDH shared
// secret: its first EncryptionKeyLen bytes, matching the original's
// ecdh::Keys::new, which takes "the first 16 bytes of the raw shared
// secret" rather than running it through a KDF. This is intentional and
// must not be "improved" with HKDF et al.: it is part of the wire
// contract between this Logger and any peer decrypting its logs.
type EncryptionKey [EncryptionKeyLen]byte

// SecretKey is a long-term P-256 private key, the recipient side of the
// scheme: whoever holds it can derive the EncryptionKey for any chunk
// embedding a compatible ephemeral PublicKey.
type SecretKey struct {
	priv *ecdh.PrivateKey
}

// GenerateSecretKey creates a new random long-term P-256 key pair, used by
// the gen-keys CLI command.
func GenerateSecretKey() (SecretKey, PublicKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return SecretKey{}, PublicKey{}, fmt.Errorf("crypto: generate key: %w", err)
	}
	pub, err := compress(priv.PublicKey())
	if err != nil {
		return SecretKey{}, PublicKey{}, err
	}
	return SecretKey{priv: priv}, pub, nil
}

// Bytes returns the raw 32-byte scalar, for persisting to disk (the CLI's
// gen-keys command writes it base64-encoded).
func (s SecretKey) Bytes() []byte { return s.priv.Bytes() }

// ParseSecretKey reconstructs a SecretKey from raw scalar bytes previously
// returned by Bytes.
func ParseSecretKey(raw []byte) (SecretKey, error) {
	priv, err := ecdh.P256().NewPrivateKey(raw)
	if err != nil {
		return SecretKey{}, fmt.Errorf("crypto: parse secret key: %w", err)
	}
	return SecretKey{priv: priv}, nil
}

// PublicKey returns the public key corresponding to s.
func (s SecretKey) PublicKey() (PublicKey, error) { return compress(s.priv.PublicKey()) }

// DerivedKeys bundles an ephemeral public key with the symmetric key
// derived alongside it: the pair a Logger embeds in, and encrypts, every
// chunk it writes.
type DerivedKeys struct {
	PublicKey     PublicKey
	EncryptionKey EncryptionKey
}

// NewEphemeralKeys generates a fresh ephemeral P-256 key pair, performs
// ECDH against peerPublicKey (the long-term recipient key from a Logger's
// Config), and returns the ephemeral public key to embed in chunk headers
// alongside the derived symmetric key. If peerPublicKey is the zero value,
// encryption is disabled and the zero DerivedKeys is returned.
func NewEphemeralKeys(peerPublicKey PublicKey) (DerivedKeys, error) {
	if peerPublicKey == EmptyPublicKey {
		return DerivedKeys{}, nil
	}
	peer, err := decompress(peerPublicKey)
	if err != nil {
		return DerivedKeys{}, err
	}
	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return DerivedKeys{}, fmt.Errorf("crypto: generate ephemeral key: %w", err)
	}
	shared, err := ephemeral.ECDH(peer)
	if err != nil {
		return DerivedKeys{}, fmt.Errorf("crypto: ecdh: %w", err)
	}
	ephemeralPub, err := compress(ephemeral.PublicKey())
	if err != nil {
		return DerivedKeys{}, err
	}
	var key EncryptionKey
	copy(key[:], shared[:EncryptionKeyLen])
	return DerivedKeys{PublicKey: ephemeralPub, EncryptionKey: key}, nil
}

// EncryptionKeyFor is the parser-side reverse of NewEphemeralKeys: given
// the long-term secret key and a chunk's embedded ephemeral public key, it
// rederives the same EncryptionKey the logger used to encrypt that chunk.
func EncryptionKeyFor(secretKey SecretKey, chunkPublicKey PublicKey) (EncryptionKey, error) {
	if chunkPublicKey == EmptyPublicKey {
		return EncryptionKey{}, nil
	}
	peer, err := decompress(chunkPublicKey)
	if err != nil {
		return EncryptionKey{}, err
	}
	shared, err := secretKey.priv.ECDH(peer)
	if err != nil {
		return EncryptionKey{}, fmt.Errorf("crypto: ecdh: %w", err)
	}
	var key EncryptionKey
	copy(key[:], shared[:EncryptionKeyLen])
	return key, nil
}

// compress converts a crypto/ecdh public key (uncompressed SEC1) into the
// 33-byte compressed point embedded on the wire, using crypto/elliptic's
// compression helper since crypto/ecdh itself only exposes uncompressed
// encoding.
func compress(pub *ecdh.PublicKey) (PublicKey, error) {
	raw := pub.Bytes()
	if len(raw) != 65 || raw[0] != 4 {
		return PublicKey{}, fmt.Errorf("crypto: unexpected public key encoding")
	}
	x := new(big.Int).SetBytes(raw[1:33])
	y := new(big.Int).SetBytes(raw[33:65])
	compressed := elliptic.MarshalCompressed(elliptic.P256(), x, y)
	var out PublicKey
	copy(out[:], compressed)
	return out, nil
}

// decompress is the inverse of compress.
func decompress(pub PublicKey) (*ecdh.PublicKey, error) {
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), pub[:])
	if x == nil {
		return nil, fmt.Errorf("crypto: invalid compressed public key")
	}
	raw := make([]byte, 65)
	raw[0] = 4
	x.FillBytes(raw[1:33])
	y.FillBytes(raw[33:65])
	return ecdh.P256().NewPublicKey(raw)
}
