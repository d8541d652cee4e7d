// Package chunk implements the on-disk chunk framing used by both the
// logfile format and the mmap-backed write buffer: a fixed 60-byte header
// followed by a compressed-and-encrypted payload. Grounded on
// original_source/pinenut/src/chunk.rs.
package chunk

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Magic identifies a well-formed chunk header, matching the original
// implementation's Header::MAGIC constant.
const Magic uint32 = 0xFEEDCA7C

// FormatVersion is the current on-disk chunk format version.
const FormatVersion uint16 = 1

// HeaderLen is the fixed, packed size of a chunk header in bytes:
// magic(4) + version(2) + length(4) + writeback(1) + time_range(16) + pub_key(33).
const HeaderLen = 4 + 2 + 4 + 1 + 8 + 8 + PublicKeyLen

// PublicKeyLen is the size of the embedded ECDH public key, matching
// encrypt::ecdh::PUBLIC_KEY_LEN in the original implementation (a
// compressed NIST P-256 point: one tag byte plus a 32-byte coordinate).
const PublicKeyLen = 33

// Header is the fixed-size metadata prefixing a chunk's payload.
type Header struct {
	Version   uint16
	Length    uint32 // payload length in bytes
	Writeback bool
	Start     time.Time
	End       time.Time
	PubKey    [PublicKeyLen]byte
}

// ErrBadMagic is returned when a header's magic bytes don't match Magic,
// meaning the reader has reached unwritten (zero) buffer space or garbage.
var ErrBadMagic = fmt.Errorf("chunk: bad magic")

// Marshal encodes h into a freshly allocated HeaderLen-byte slice.
func (h Header) Marshal() []byte {
	b := make([]byte, HeaderLen)
	h.put(b)
	return b
}

// PutInto writes h's packed representation into the first HeaderLen bytes
// of dst, panicking if dst is too small. It lets callers encode directly
// into a chunk's backing slice without an intermediate allocation.
func (h Header) PutInto(dst []byte) { h.put(dst) }

func (h Header) put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], Magic)
	binary.LittleEndian.PutUint16(b[4:6], h.Version)
	binary.LittleEndian.PutUint32(b[6:10], h.Length)
	if h.Writeback {
		b[10] = 1
	} else {
		b[10] = 0
	}
	binary.LittleEndian.PutUint64(b[11:19], uint64(h.Start.Unix()))
	binary.LittleEndian.PutUint64(b[19:27], uint64(h.End.Unix()))
	copy(b[27:27+PublicKeyLen], h.PubKey[:])
}

// UnmarshalHeader decodes a Header from b, which must be at least
// HeaderLen bytes. It returns ErrBadMagic if the magic field doesn't
// match, which callers use to detect the end of written data in a region
// that may contain trailing zero bytes.
func UnmarshalHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, fmt.Errorf("chunk: short header: %d bytes", len(b))
	}
	magic := binary.LittleEndian.Uint32(b[0:4])
	if magic != Magic {
		return Header{}, ErrBadMagic
	}
	var h Header
	h.Version = binary.LittleEndian.Uint16(b[4:6])
	h.Length = binary.LittleEndian.Uint32(b[6:10])
	h.Writeback = b[10] != 0
	h.Start = time.Unix(int64(binary.LittleEndian.Uint64(b[11:19])), 0).UTC()
	h.End = time.Unix(int64(binary.LittleEndian.Uint64(b[19:27])), 0).UTC()
	copy(h.PubKey[:], b[27:27+PublicKeyLen])
	return h, nil
}
