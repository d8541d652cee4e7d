package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"io"
)

// BlockSize is the AES block size in bytes.
const BlockSize = aes.BlockSize

// These two types implement AES-128 in ECB mode with PKCS#7 padding
// applied only when the stream is finalized, matching
// original_source/pinenut/src/encrypt.rs's aes submodule exactly. Go's
// standard library deliberately omits an ECB cipher.BlockMode (it's
// unsafe for general use: identical plaintext blocks produce identical
// ciphertext blocks), so this mode is implemented directly against
// cipher.Block rather than via any third-party library — no library in
// the example pack provides ECB either, and this is not a mode a
// responsible library would expose. See DESIGN.md.
//
// ECB has no chaining and no IV, which is precisely why it's usable here:
// each chunk's payload is read back independently of the others, and the
// scheme's actual confidentiality comes from the per-Logger-instance
// ephemeral ECDH key, not from the block mode. Do not "improve" this into
// CBC or GCM; that would break compatibility with peers decrypting these
// logs.

// Encryptor streams plaintext in (Write, the original's "Input" operation)
// and ciphertext out to sink, padding and finalizing on Close (the
// original's "Flush").
type Encryptor struct {
	block cipher.Block
	buf   []byte
	sink  io.Writer
}

// NewEncryptor builds a streaming AES-128-ECB encryptor writing to sink.
func NewEncryptor(key EncryptionKey, sink io.Writer) (*Encryptor, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	return &Encryptor{block: block, sink: sink}, nil
}

// Write buffers p and encrypts any whole blocks it can without padding,
// holding back a sub-block remainder for the next Write or for Close.
func (e *Encryptor) Write(p []byte) (int, error) {
	e.buf = append(e.buf, p...)
	n := (len(e.buf) / BlockSize) * BlockSize
	if n > 0 {
		out := make([]byte, n)
		ecbCrypt(e.block.Encrypt, out, e.buf[:n])
		if _, err := e.sink.Write(out); err != nil {
			return len(p), err
		}
		e.buf = append([]byte(nil), e.buf[n:]...)
	}
	return len(p), nil
}

// Close pads whatever remains with PKCS#7 (always adding at least one
// byte of padding, even if the remainder is already block-aligned),
// encrypts it, writes it to sink, and finalizes the stream.
func (e *Encryptor) Close() error {
	padded := pkcs7Pad(e.buf, BlockSize)
	out := make([]byte, len(padded))
	ecbCrypt(e.block.Encrypt, out, padded)
	e.buf = nil
	_, err := e.sink.Write(out)
	return err
}

// Decryptor streams ciphertext in and plaintext out to sink, always
// holding back the final block until Close (or until it can prove a block
// isn't final) since that's the only block that might carry PKCS#7
// padding.
type Decryptor struct {
	block cipher.Block
	buf   []byte
	sink  io.Writer
}

// NewDecryptor builds a streaming AES-128-ECB decryptor writing plaintext
// to sink.
func NewDecryptor(key EncryptionKey, sink io.Writer) (*Decryptor, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	return &Decryptor{block: block, sink: sink}, nil
}

// Write buffers p and decrypts whole blocks beyond the last one, since the
// last block may still need PKCS#7 unpadding once the stream ends.
func (d *Decryptor) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	if len(d.buf) <= BlockSize {
		return len(p), nil
	}
	n := len(d.buf) - BlockSize
	n -= n % BlockSize
	if n > 0 {
		out := make([]byte, n)
		ecbCrypt(d.block.Decrypt, out, d.buf[:n])
		if _, err := d.sink.Write(out); err != nil {
			return len(p), err
		}
		d.buf = append([]byte(nil), d.buf[n:]...)
	}
	return len(p), nil
}

// Close finalizes the stream. For a normally-terminated chunk
// (writeback=false) the remaining bytes must be exactly one PKCS#7-padded
// block; a mismatch is a hard error. For a writeback chunk (one abandoned
// mid-write, e.g. by a crash), the remainder may be a truncated partial
// block: any whole blocks left are decrypted with no unpadding applied,
// and a genuinely partial trailing fragment is silently dropped, matching
// the original's reached_to_end-gated NoPadding/Pkcs7 choice.
func (d *Decryptor) Close(writeback bool) error {
	if !writeback {
		if len(d.buf) != BlockSize {
			return fmt.Errorf("crypto: malformed final block: %d bytes pending", len(d.buf))
		}
		out := make([]byte, BlockSize)
		ecbCrypt(d.block.Decrypt, out, d.buf)
		unpadded, err := pkcs7Unpad(out, BlockSize)
		d.buf = nil
		if err != nil {
			return err
		}
		_, err = d.sink.Write(unpadded)
		return err
	}

	n := (len(d.buf) / BlockSize) * BlockSize
	defer func() { d.buf = nil }()
	if n == 0 {
		return nil
	}
	out := make([]byte, n)
	ecbCrypt(d.block.Decrypt, out, d.buf[:n])
	_, err := d.sink.Write(out)
	return err
}

// NullEncryptor is a passthrough used when a Logger's Config carries no
// recipient public key (encryption disabled): plaintext passes straight
// to sink, and there is nothing to finalize.
type NullEncryptor struct{ Sink io.Writer }

// Write copies p straight to Sink.
func (n *NullEncryptor) Write(p []byte) (int, error) { return n.Sink.Write(p) }

// Close is a no-op.
func (n *NullEncryptor) Close() error { return nil }

// NullDecryptor is the inverse passthrough, matching Decryptor's
// writeback-aware Close signature even though it ignores it.
type NullDecryptor struct{ Sink io.Writer }

// Write copies p straight to Sink.
func (n *NullDecryptor) Write(p []byte) (int, error) { return n.Sink.Write(p) }

// Close is a no-op.
func (n *NullDecryptor) Close(writeback bool) error { return nil }

func ecbCrypt(op func(dst, src []byte), dst, src []byte) {
	for i := 0; i < len(src); i += BlockSize {
		op(dst[i:i+BlockSize], src[i:i+BlockSize])
	}
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	out := make([]byte, len(data)+padLen)
	copy(out, data)
	for i := len(data); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("crypto: invalid padded length %d", len(data))
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize || padLen > len(data) {
		return nil, fmt.Errorf("crypto: invalid pkcs7 padding")
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("crypto: invalid pkcs7 padding")
		}
	}
	return data[:len(data)-padLen], nil
}
