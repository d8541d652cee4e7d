//go:build !unix

package memory

// NewMmapMemory falls back to heap-backed memory on platforms where this
// module has no mmap binding wired up. Callers lose crash resilience but
// keep functioning; logger.Config surfaces this via its UseMmap field
// rather than failing outright.
func NewMmapMemory(path string, length int) (Memory, error) {
	return NewHeapMemory(roundUpToPageSize(length, 4096)), nil
}
