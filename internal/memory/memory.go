// Package memory provides the backing storage for a double buffer: either a
// plain heap-allocated byte slice, or an mmap-backed region that survives a
// process crash because the kernel page cache (not process memory) owns the
// dirty pages. Grounded on original_source/pinenut/src/mmap.rs, adapted to
// Go's mmap idiom via golang.org/x/sys/unix rather than raw cgo/libc calls.
package memory

import "fmt"

// Memory is a fixed-length, randomly addressable byte region. It is the Go
// analogue of the original's Memory trait: callers get a []byte view over
// it and are responsible for their own synchronization.
type Memory interface {
	// Bytes returns the full backing slice. Its length is fixed for the
	// lifetime of the Memory.
	Bytes() []byte
	// Close releases any OS resources (unmapping an mmap region; a no-op
	// for heap memory).
	Close() error
}

// HeapMemory is a Memory backed by a plain Go byte slice. It offers no
// crash resilience: an unflushed write is lost if the process dies.
type HeapMemory struct {
	buf []byte
}

// NewHeapMemory allocates a zeroed region of the given length.
func NewHeapMemory(length int) *HeapMemory {
	return &HeapMemory{buf: make([]byte, length)}
}

// Bytes returns the backing slice.
func (h *HeapMemory) Bytes() []byte { return h.buf }

// Close is a no-op for heap memory.
func (h *HeapMemory) Close() error { return nil }

// roundUpToPageSize rounds length up to the next multiple of the OS page
// size, matching the original's round_up_page_size.
func roundUpToPageSize(length, pageSize int) int {
	if pageSize <= 0 {
		return length
	}
	if rem := length % pageSize; rem != 0 {
		return length + (pageSize - rem)
	}
	return length
}

// sizeError is returned when a requested mmap length is not positive.
type sizeError struct{ length int }

func (e *sizeError) Error() string {
	return fmt.Sprintf("memory: invalid mmap length %d", e.length)
}
