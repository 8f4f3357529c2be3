//go:build !linux
// +build !linux

package allocator

import (
	"fmt"
	"sync"
	"unsafe"
)

// fallbackRegions keeps the backing slices ReserveVA hands out alive; without
// it the garbage collector would reclaim the memory as soon as ReserveVA
// returned, since nothing else on the Go side holds a reference to it.
var fallbackRegions = struct {
	mu      sync.Mutex
	regions map[uint64][]byte
}{regions: make(map[uint64][]byte)}

// ReserveVA falls back to a heap-backed byte slice on platforms without the
// PROT_NONE/MAP_NORESERVE reservation trick available through
// golang.org/x/sys/unix. It commits real memory up front, so it is only
// suitable for small test regions, never for the multi-gigabyte reservations
// the real allocators make.
func (osReserver) ReserveVA(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("allocator: reserve zero bytes")
	}
	b := make([]byte, size)
	base := uint64(uintptr(unsafe.Pointer(&b[0])))

	fallbackRegions.mu.Lock()
	fallbackRegions.regions[base] = b
	fallbackRegions.mu.Unlock()

	return base, nil
}

// ReleaseVA drops the keepalive reference installed by ReserveVA, letting
// the garbage collector reclaim the region.
func (osReserver) ReleaseVA(base, size uint64) error {
	fallbackRegions.mu.Lock()
	delete(fallbackRegions.regions, base)
	fallbackRegions.mu.Unlock()
	return nil
}
