package allocator

import "fmt"

// mockReserver is a VAReserver that hands out addresses from a bump
// pointer over a private address space instead of calling into the OS.
// Tests use it so that scenarios spanning the real gigabyte-scale
// constants from spec.md (e.g. the arena tests, which run at the default
// 2^31-byte physical cap) run instantly
// and without committing any real memory, the way osReserver's Linux
// mmap(PROT_NONE) backing would but portably across every test platform.
type mockReserver struct {
	next uint64
	live map[uint64]uint64
}

func newMockReserver() *mockReserver {
	return &mockReserver{next: 1 << 12, live: make(map[uint64]uint64)}
}

func (m *mockReserver) ReserveVA(size uint64) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("mockReserver: reserve zero bytes")
	}
	base := m.next
	m.next += size
	m.live[base] = size
	return base, nil
}

func (m *mockReserver) ReleaseVA(base, size uint64) error {
	got, ok := m.live[base]
	if !ok {
		return fmt.Errorf("mockReserver: release unknown base %#x", base)
	}
	if got != size {
		return fmt.Errorf("mockReserver: release size %d, want %d", size, got)
	}
	delete(m.live, base)
	return nil
}
