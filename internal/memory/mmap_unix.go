//go:build unix

package memory

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MmapMemory is a Memory backed by a memory-mapped file. The file is
// created (or reused) at path, resized to a page-aligned length, then
// mapped MAP_SHARED so writes land in the kernel page cache and are
// recoverable after a crash even before an explicit flush reaches disk.
type MmapMemory struct {
	file *os.File
	data []byte
}

// NewMmapMemory creates (or reopens) the file at path, grows it to at
// least length bytes rounded up to the page size, and maps it. The
// returned Memory's Bytes() length is the rounded-up size, matching the
// original implementation's behavior of giving the buffer a page-aligned
// backing store.
func NewMmapMemory(path string, length int) (Memory, error) {
	if length <= 0 {
		return nil, &sizeError{length: length}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	pageSize := os.Getpagesize()
	mapLen := roundUpToPageSize(length, pageSize)

	if err := f.Truncate(int64(mapLen)); err != nil {
		f.Close()
		return nil, err
	}

	data, err := unix.Mmap(int(f.Fd()), 0, mapLen, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}

	// Best-effort advisory: we expect to touch this region again soon
	// and the kernel should keep it resident. Errors are ignored exactly
	// as the original implementation ignores madvise failures.
	_ = unix.Madvise(data, unix.MADV_WILLNEED)

	return &MmapMemory{file: f, data: data}, nil
}

// Bytes returns the mapped region.
func (m *MmapMemory) Bytes() []byte { return m.data }

// Close unmaps the region and closes the backing file descriptor.
func (m *MmapMemory) Close() error {
	var err error
	if m.data != nil {
		err = unix.Munmap(m.data)
		m.data = nil
	}
	if cerr := m.file.Close(); err == nil {
		err = cerr
	}
	return err
}
