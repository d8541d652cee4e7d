// Package buffer implements the double buffer described in
// original_source/pinenut/src/buffer.rs: a single backing Memory region
// split into an 8-byte header and two equal-sized physical halves. Two
// logical names, Left and Right, resolve to whichever physical half the
// header currently says holds which; Switch() flips that mapping
// atomically under a lock, so a writer filling one side and a reader
// draining the other never observe torn state.
package buffer

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/kenneth/pinenut/internal/memory"
)

// HeaderLen is the size in bytes of the buffer header stored at the start
// of the backing region: a magic value followed by a 4-byte side tag.
const HeaderLen = 8

// Magic identifies a well-formed buffer header.
const Magic uint32 = 0xFEEDCA7B

// Sentinel values for the header's alpha_side field: which logical side
// (Left or Right) currently occupies the first physical half.
const (
	alphaSideLeft  uint32 = 0x00000ABC
	alphaSideRight uint32 = 0x00000DEF
)

// Side names one of the two logical halves of a Buffer. Unlike the
// physical halves of the backing region, a Side's physical location can
// move: Switch flips which physical half it resolves to.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Buffer owns the backing Memory and coordinates which physical half Left
// and Right currently resolve to.
type Buffer struct {
	mem      memory.Memory
	halfLen  int
	mu       sync.RWMutex
	alphaIs  Side // which logical side currently occupies physical half 0
}

// New wraps mem as a double buffer. mem's length must be more than
// HeaderLen; the remainder is evenly split between the two physical
// halves (an odd remaining byte is dropped). If the header already
// carries a recognized magic and side tag (e.g. recovered mmap state from
// a prior process), that mapping is restored; otherwise the buffer is
// initialized fresh with Left occupying physical half 0.
func New(mem memory.Memory) (*Buffer, error) {
	total := len(mem.Bytes())
	if total <= HeaderLen {
		return nil, fmt.Errorf("buffer: backing memory too small: %d bytes", total)
	}
	body := total - HeaderLen
	if body%2 != 0 {
		body--
	}
	b := &Buffer{mem: mem, halfLen: body / 2}

	h := b.header()
	if binary.LittleEndian.Uint32(h[0:4]) == Magic {
		switch binary.LittleEndian.Uint32(h[4:8]) {
		case alphaSideLeft:
			b.alphaIs = Left
		case alphaSideRight:
			b.alphaIs = Right
		default:
			b.alphaIs = Left
			b.writeHeader()
		}
	} else {
		b.alphaIs = Left
		b.writeHeader()
	}
	return b, nil
}

func (b *Buffer) header() []byte { return b.mem.Bytes()[:HeaderLen] }

func (b *Buffer) writeHeader() {
	h := b.header()
	binary.LittleEndian.PutUint32(h[0:4], Magic)
	v := alphaSideLeft
	if b.alphaIs == Right {
		v = alphaSideRight
	}
	binary.LittleEndian.PutUint32(h[4:8], v)
}

func (b *Buffer) physical(half int) []byte {
	start := HeaderLen + half*b.halfLen
	return b.mem.Bytes()[start : start+b.halfLen]
}

// HalfLen returns the capacity, in bytes, of each logical side.
func (b *Buffer) HalfLen() int { return b.halfLen }

// Bytes returns a byte slice over the requested logical side, resolved
// against the current alpha/beta mapping.
func (b *Buffer) Bytes(side Side) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	half := 0
	if side != b.alphaIs {
		half = 1
	}
	return b.physical(half)
}

// Switch flips which physical half Left and Right resolve to, so that a
// caller who had been writing into Right now sees that same data via
// Left (and vice versa). It holds the write lock only long enough to
// flip the header; it never copies buffer contents.
func (b *Buffer) Switch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.alphaIs == Left {
		b.alphaIs = Right
	} else {
		b.alphaIs = Left
	}
	b.writeHeader()
}

// Close releases the backing memory.
func (b *Buffer) Close() error { return b.mem.Close() }

// Handle is a stable reference to one logical side of a Buffer,
// re-resolving to the correct physical half on every access so it stays
// valid across Switch calls.
type Handle struct {
	buf  *Buffer
	side Side
}

// NewHandle returns a Handle bound to one logical side of buf.
func NewHandle(buf *Buffer, side Side) *Handle {
	return &Handle{buf: buf, side: side}
}

// Bytes returns the current backing slice for this handle's logical side.
func (h *Handle) Bytes() []byte { return h.buf.Bytes(h.side) }
