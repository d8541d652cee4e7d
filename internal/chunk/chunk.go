package chunk

import (
	"errors"
	"time"
)

// ErrOverflow is returned by Write when the payload would exceed the
// chunk's capacity, matching the original's Error::Overflow. The caller is
// expected to rotate to a fresh chunk/buffer side and retry.
var ErrOverflow = errors.New("chunk: payload overflow")

// AlmostFullRatio is the fraction of capacity at which IsAlmostFull starts
// reporting true, matching the original implementation's is_almost_full
// heuristic (rotate proactively before hard-overflowing).
const AlmostFullRatio = 0.8

// Chunk is a thin, mutable view over a chunk-sized region of a double
// buffer's physical half: a HeaderLen-byte header immediately followed by
// payload capacity. It never copies or reallocates; all reads and writes
// happen in place against the bound slice.
type Chunk struct {
	buf []byte
}

// Bind wraps buf as a Chunk without validating its contents. Call Header
// to read back what's there, or Initialize to start a new chunk.
func Bind(buf []byte) *Chunk {
	return &Chunk{buf: buf}
}

// Capacity returns the maximum payload length this chunk can hold.
func (c *Chunk) Capacity() int { return len(c.buf) - HeaderLen }

// Header decodes the chunk's current header.
func (c *Chunk) Header() (Header, error) { return UnmarshalHeader(c.buf) }

// StartDateTime returns the chunk's recorded start time.
func (c *Chunk) StartDateTime() (time.Time, error) {
	h, err := c.Header()
	if err != nil {
		return time.Time{}, err
	}
	return h.Start, nil
}

// PayloadLen returns the number of payload bytes currently written, or an
// error if the header is invalid.
func (c *Chunk) PayloadLen() (int, error) {
	h, err := c.Header()
	if err != nil {
		return 0, err
	}
	return int(h.Length), nil
}

// Payload returns the slice of currently-written payload bytes.
func (c *Chunk) Payload() ([]byte, error) {
	n, err := c.PayloadLen()
	if err != nil {
		return nil, err
	}
	return c.buf[HeaderLen : HeaderLen+n], nil
}

// IsAlmostFull reports whether the chunk has used at least AlmostFullRatio
// of its capacity, the signal the logger uses to rotate proactively.
func (c *Chunk) IsAlmostFull() (bool, error) {
	n, err := c.PayloadLen()
	if err != nil {
		return false, err
	}
	return float64(n) >= AlmostFullRatio*float64(c.Capacity()), nil
}

// Initialize writes a fresh header (length zero, writeback false) marking
// this chunk as started at start, encrypted with the given public key.
func (c *Chunk) Initialize(pubKey [PublicKeyLen]byte, start time.Time) {
	h := Header{Version: FormatVersion, Start: start, End: start, PubKey: pubKey}
	h.PutInto(c.buf)
}

// Write appends p to the chunk's payload, failing with ErrOverflow if it
// would not fit. It implements codec.Sink so an AccumulationEncoder can
// flush directly into a chunk.
func (c *Chunk) Write(p []byte) error {
	h, err := c.Header()
	if err != nil {
		return err
	}
	n := int(h.Length)
	if n+len(p) > c.Capacity() {
		return ErrOverflow
	}
	copy(c.buf[HeaderLen+n:], p)
	h.Length = uint32(n + len(p))
	h.PutInto(c.buf)
	return nil
}

// Sink adapts Write to codec.Sink.
func (c *Chunk) Sink(p []byte) error { return c.Write(p) }

// SetWriteback marks the chunk as a writeback (partial, not-yet-rotated)
// chunk, so a parser knows to tolerate a truncated final record.
func (c *Chunk) SetWriteback(writeback bool) error {
	h, err := c.Header()
	if err != nil {
		return err
	}
	h.Writeback = writeback
	h.PutInto(c.buf)
	return nil
}

// SetEndDateTime updates the chunk's recorded end time.
func (c *Chunk) SetEndDateTime(end time.Time) error {
	h, err := c.Header()
	if err != nil {
		return err
	}
	h.End = end
	h.PutInto(c.buf)
	return nil
}

// Clear sets the chunk's payload length back to zero, leaving the rest
// of the header (magic, version, time range, public key) untouched, so
// a subsequent Header/PayloadLen call still reads back a valid
// zero-length chunk instead of failing with ErrBadMagic.
func (c *Chunk) Clear() error {
	h, err := c.Header()
	if err != nil {
		return err
	}
	h.Length = 0
	h.PutInto(c.buf)
	return nil
}
