package allocator

import "fmt"

// physicalMemoryManager tracks a bounded pool of opaque physical memory
// reservations. It mirrors physical_mem_mgr_t from the original allocator:
// each default allocator owns one manager (the arena allocator uses none),
// and a request is refused once the aggregate of outstanding reservations
// would exceed its cap, regardless of how address space is laid out above it.
type physicalMemoryManager struct {
	totalSize uint64
	usedSize  uint64
	reserver  VAReserver
	live      map[uint64]uint64 // addr -> size, for Free's bookkeeping check
}

func newPhysicalMemoryManager(totalSize uint64, reserver VAReserver) *physicalMemoryManager {
	return &physicalMemoryManager{
		totalSize: totalSize,
		reserver:  reserver,
		live:      make(map[uint64]uint64),
	}
}

// ErrPhysicalMemoryExhausted is returned by Allocate when granting the
// request would push usedSize past totalSize.
var ErrPhysicalMemoryExhausted = fmt.Errorf("allocator: physical memory exhausted")

// Allocate reserves size bytes of backing memory, or fails with
// ErrPhysicalMemoryExhausted if the manager's cap would be exceeded.
func (m *physicalMemoryManager) Allocate(size uint64) (uint64, error) {
	if m.usedSize+size > m.totalSize {
		return 0, ErrPhysicalMemoryExhausted
	}
	addr, err := m.reserver.ReserveVA(size)
	if err != nil {
		return 0, &ErrReservationFailed{Size: size, Err: err}
	}
	m.live[addr] = size
	m.usedSize += size
	return addr, nil
}

// Free releases a reservation previously returned by Allocate. Freeing an
// address this manager never handed out is a contract violation.
func (m *physicalMemoryManager) Free(addr uint64) {
	size, ok := m.live[addr]
	if !ok {
		violate("physmem.Free", "address was never allocated by this manager", addr)
	}
	if err := m.reserver.ReleaseVA(addr, size); err != nil {
		violate("physmem.Free", fmt.Sprintf("release failed: %v", err), addr)
	}
	delete(m.live, addr)
	if m.usedSize < size {
		violate("physmem.Free", "used size underflow", addr)
	}
	m.usedSize -= size
}

func (m *physicalMemoryManager) TotalSize() uint64 { return m.totalSize }
func (m *physicalMemoryManager) UsedSize() uint64  { return m.usedSize }
