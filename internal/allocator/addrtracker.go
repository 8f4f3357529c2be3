package allocator

// addrTracker layers address-range containment queries over avlTree,
// tracking a caller-defined set of [addr, addr+size) ranges keyed by their
// start address. Arena reservations (arena.go) register themselves here so
// the arena allocator's Free can find which reservation, if any, covers a given address in
// O(log n) instead of scanning every reservation linearly.
type addrTracker struct {
	tree  *avlTree
	sizes []uint64 // sizes[idx] is the range length registered at avl index idx
}

func newAddrTracker() *addrTracker {
	return &addrTracker{tree: newAVLTree(), sizes: make([]uint64, 1)}
}

func (a *addrTracker) growTo(n int) {
	a.tree.growTo(n)
	if n < len(a.sizes) {
		return
	}
	grown := make([]uint64, n+1)
	copy(grown, a.sizes)
	a.sizes = grown
}

// register records idx as covering [addr, addr+size). If idx's slot was
// already registered for that address, the existing index is returned
// instead (idempotent registration, mirroring cuiAddrTrackerRegisterNode).
func (a *addrTracker) register(idx uint32, addr, size uint64) uint32 {
	existing := a.tree.insertOrExisting(idx, addr)
	if existing == idx {
		a.sizes[idx] = size
	}
	return existing
}

func (a *addrTracker) unregister(idx uint32) {
	a.tree.remove(idx)
}

// findContaining returns the index of the range containing addr, or 0.
func (a *addrTracker) findContaining(addr uint64) uint32 {
	idx := a.tree.findLEQ(addr)
	if idx == 0 {
		return 0
	}
	start := a.tree.nodes[idx].key
	if addr >= start && addr < start+a.sizes[idx] {
		return idx
	}
	return 0
}

// findFirstInRange returns the index of the first (lowest-addressed) range
// that starts anywhere within [lo, hi), or 0.
func (a *addrTracker) findFirstInRange(lo, hi uint64) uint32 {
	idx := a.tree.findGEQ(lo)
	if idx == 0 {
		return 0
	}
	if a.tree.nodes[idx].key >= hi {
		return 0
	}
	return idx
}

// isEmptyInRange reports whether no registered range overlaps [lo, hi).
func (a *addrTracker) isEmptyInRange(lo, hi uint64) bool {
	if hi == 0 {
		return true
	}
	idx := a.tree.findLEQ(hi - 1)
	if idx == 0 {
		return true
	}
	start := a.tree.nodes[idx].key
	return start+a.sizes[idx] <= lo
}

// next returns the in-order successor of idx, or 0 if idx is the last
// registered range.
func (a *addrTracker) next(idx uint32) uint32 {
	return a.tree.successor(idx)
}

// nextWithLimit returns the in-order successor of idx as long as it starts
// before limit, optionally requiring it to start exactly where idx's range
// ends (adjacentOnly). Mirrors cuiAddrTrackerNodeGetNextWithLimit, which
// free-block coalescing uses to find a merge candidate without walking the
// whole tree.
func (a *addrTracker) nextWithLimit(idx uint32, limit uint64, adjacentOnly bool) uint32 {
	n := a.tree.successor(idx)
	if n == 0 {
		return 0
	}
	nextAddr := a.tree.nodes[n].key
	if nextAddr >= limit {
		return 0
	}
	if adjacentOnly {
		selfAddr := a.tree.nodes[idx].key
		if nextAddr != selfAddr+a.sizes[idx] {
			return 0
		}
	}
	return n
}

func (a *addrTracker) addrOf(idx uint32) uint64 { return a.tree.nodes[idx].key }
func (a *addrTracker) sizeOf(idx uint32) uint64 { return a.sizes[idx] }
