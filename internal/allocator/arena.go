package allocator

// arenaClass describes one of the eight fixed size bins arena.go bins
// requests into: maxPerAlloc is the largest request this class serves,
// reservationSize is how much VA each underlying reservation in the class
// spans, and isSlab picks which sub-allocator kind new reservations use.
type arenaClass struct {
	maxPerAlloc     uint64
	reservationSize uint64
	isSlab          bool
}

// defaultArenaTable is the fixed 8-row table from spec.md §4.6. Class 7's
// maxPerAlloc of physicalMemorySize stands in for "infinity": no request the
// arena allocator will ever see (bounded by the physical cap) exceeds it.
func defaultArenaTable(physicalMemorySize uint64) [8]arenaClass {
	return [8]arenaClass{
		{maxPerAlloc: 512, reservationSize: 2 << 20, isSlab: true},
		{maxPerAlloc: 1 << 10, reservationSize: 2 << 20, isSlab: true},
		{maxPerAlloc: 2 << 10, reservationSize: 4 << 20, isSlab: true},
		{maxPerAlloc: 4 << 10, reservationSize: 8 << 20, isSlab: false},
		{maxPerAlloc: 64 << 10, reservationSize: 32 << 20, isSlab: false},
		{maxPerAlloc: 2 << 20, reservationSize: 64 << 20, isSlab: false},
		{maxPerAlloc: 32 << 20, reservationSize: 512 << 20, isSlab: false},
		{maxPerAlloc: physicalMemorySize, reservationSize: physicalMemorySize * 2, isSlab: false},
	}
}

// arenaClassFor returns the index of the smallest class whose maxPerAlloc
// covers size. Callers must already know size fits within the table's last
// entry (doAlloc rejects sizes above that before routing here).
func arenaClassFor(table [8]arenaClass, size uint64) int {
	for i, c := range table {
		if size <= c.maxPerAlloc {
			return i
		}
	}
	return len(table) - 1
}

// reservation is one VA range obtained from the OS primitive, owned by
// exactly one arena class for the allocator's entire lifetime. Its strategy
// is either a slab or a boundary-tag sub-allocator, never both, fixed at
// creation by the owning class's isSlab flag. trackerIdx is this
// reservation's slot in the arena allocator's address tracker (C2), used to
// unregister it at teardown.
type reservation struct {
	addr, size uint64
	class      int
	slabAlloc  *slab
	tagAlloc   *boundaryTag
	next       *reservation
	trackerIdx uint32
}

// arenaAllocator bins requests by size into 8 classes (spec.md §4.6); each
// class holds a singly linked list of reservations, walked head-first on
// every alloc so the most recently created (least fragmented) reservation
// is tried first. Free never walks the list: the address tracker (C2) maps
// any address straight back to its owning reservation in O(log n).
type arenaAllocator struct {
	table    [8]arenaClass
	heads    [8]*reservation
	tracker  *addrTracker
	reserver VAReserver
	nextIdx  uint32
	debug    bool // re-verify every reservation's invariants after each operation
}

func newArenaAllocator(cfg Config) *arenaAllocator {
	return &arenaAllocator{
		table:    defaultArenaTable(cfg.physicalMemorySize),
		tracker:  newAddrTracker(),
		reserver: cfg.reserver,
		debug:    cfg.debug,
	}
}

// verifyAll re-checks every reservation's sub-allocator invariants. Wired
// behind Config.debug.
func (a *arenaAllocator) verifyAll() {
	for _, head := range a.heads {
		for r := head; r != nil; r = r.next {
			if r.slabAlloc != nil {
				r.slabAlloc.verify()
			} else {
				r.tagAlloc.verify()
			}
		}
	}
}

// Alloc routes size to its arena class, tries every existing reservation in
// that class, and creates a new reservation on exhaustion. It returns 0 if
// size is zero, exceeds every class, or the OS reservation primitive fails.
func (a *arenaAllocator) Alloc(size uint64) uint64 {
	addr := a.doAlloc(size)
	if a.debug {
		a.verifyAll()
	}
	return addr
}

func (a *arenaAllocator) doAlloc(size uint64) uint64 {
	if size == 0 || size > a.table[7].maxPerAlloc {
		return 0
	}
	classIdx := arenaClassFor(a.table, size)

	for r := a.heads[classIdx]; r != nil; r = r.next {
		if addr, ok := a.allocFrom(r, size); ok {
			return addr
		}
	}

	r, ok := a.newReservation(classIdx)
	if !ok {
		return 0
	}
	addr, ok := a.allocFrom(r, size)
	if !ok {
		return 0
	}
	return addr
}

func (a *arenaAllocator) allocFrom(r *reservation, size uint64) (uint64, bool) {
	if r.slabAlloc != nil {
		return r.slabAlloc.Alloc(size)
	}
	addr, _, ok := r.tagAlloc.Alloc(size)
	return addr, ok
}

// newReservation reserves a new VA range for classIdx from the OS
// primitive, initializes its strategy, registers it in the address tracker,
// and prepends it to the class's reservation list. Reservations are never
// removed from this list before Close (spec.md §4.6: "Reservations are
// never destroyed before allocator teardown").
func (a *arenaAllocator) newReservation(classIdx int) (*reservation, bool) {
	class := a.table[classIdx]
	addr, err := a.reserver.ReserveVA(class.reservationSize)
	if err != nil {
		return nil, false
	}

	r := &reservation{addr: addr, size: class.reservationSize, class: classIdx}
	if class.isSlab {
		r.slabAlloc = newSlab(addr, class.maxPerAlloc, class.reservationSize)
	} else {
		r.tagAlloc = newBoundaryTag(addr, class.reservationSize)
	}

	a.nextIdx++
	a.tracker.growTo(int(a.nextIdx))
	a.tracker.register(a.nextIdx, addr, class.reservationSize)
	r.trackerIdx = a.nextIdx

	r.next = a.heads[classIdx]
	a.heads[classIdx] = r
	return r, true
}

// reservationByTrackerIdx walks the class lists to find the reservation a tracker
// index names. The arena allocator is sized for at most a few reservations
// per class under the retention policy (spec.md §4.6), so this linear scan
// stays cheap; the tracker itself is what keeps Free's lookup O(log n).
func (a *arenaAllocator) reservationByTrackerIdx(idx uint32) *reservation {
	for _, head := range a.heads {
		for r := head; r != nil; r = r.next {
			if r.trackerIdx == idx {
				return r
			}
		}
	}
	return nil
}

// Free routes addr back to its owning reservation via the address tracker
// and releases it there. An address that no reservation contains is a
// contract violation (spec.md §6): the arena allocator, unlike the default
// allocator, asserts rather than silently ignoring it.
func (a *arenaAllocator) Free(addr uint64) {
	idx := a.tracker.findContaining(addr)
	if idx == 0 {
		violate("arena.Free", "address is not contained in any reservation", addr)
	}
	r := a.reservationByTrackerIdx(idx)
	if r == nil {
		violate("arena.Free", "address tracker entry has no matching reservation", addr)
	}
	if r.slabAlloc != nil {
		r.slabAlloc.Free(addr)
	} else {
		r.tagAlloc.Free(addr)
	}
	if a.debug {
		a.verifyAll()
	}
}

// Flush is a no-op for the arena allocator: spec.md assigns lazy physical
// backing reclamation only to the default allocator (§4.7); arena
// reservations commit no physical backing of their own to reclaim.
func (a *arenaAllocator) Flush() {}

// UsedSize reports the bytes callers asked for, not the bytes their slab
// slots span: a 256-byte allocation in the 512-byte class contributes 256.
// Boundary-tag reservations are byte-exact already; slabs keep a per-slot
// requested-size record to match.
func (a *arenaAllocator) UsedSize() uint64 {
	var used uint64
	for _, head := range a.heads {
		for r := head; r != nil; r = r.next {
			if r.slabAlloc != nil {
				used += r.slabAlloc.UsedBytes()
			} else {
				used += r.tagAlloc.UsedSize()
			}
		}
	}
	return used
}

func (a *arenaAllocator) TotalSize() uint64 {
	var total uint64
	for _, head := range a.heads {
		for r := head; r != nil; r = r.next {
			total += r.size
		}
	}
	return total
}

// Close releases every reservation's OS-backed VA range. Per spec.md
// §4.6's teardown sequence, a slab reservation asserts its bitmap is
// entirely clear first; a boundary-tag reservation is released as it
// stands, without checking for live blocks, the same way the default
// allocator's Close releases its whole region.
func (a *arenaAllocator) Close() {
	for _, head := range a.heads {
		for r := head; r != nil; r = r.next {
			if r.slabAlloc != nil && !r.slabAlloc.IsEmpty() {
				violate("arena.Close", "slab reservation still has live allocations", r.addr)
			}
			_ = a.reserver.ReleaseVA(r.addr, r.size)
		}
	}
}
