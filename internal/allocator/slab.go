package allocator

// slab is a fixed-block carve of one arena reservation: every allocation it
// hands out is exactly blockSize bytes, occupancy tracked by a bitVector
// with one bit per slot. It backs the three smallest arena classes
// (arena.go), where boundary-tag bookkeeping per allocation would cost more
// than the allocation itself.
type slab struct {
	base, blockSize uint64
	blocksPerSlab   uint64
	occupied        *bitVector
	freeBlocks      uint64
	slotBytes       []uint64 // requested size per occupied slot, 0 when free
	usedBytes       uint64
}

func newSlab(base, blockSize, reservationSize uint64) *slab {
	blocksPerSlab := reservationSize / blockSize
	return &slab{
		base:          base,
		blockSize:     blockSize,
		blocksPerSlab: blocksPerSlab,
		occupied:      newBitVector(blocksPerSlab),
		freeBlocks:    blocksPerSlab,
		slotBytes:     make([]uint64, blocksPerSlab),
	}
}

// Alloc returns the address of a free slot, or (0, false) if the slab is
// full. Every returned slot spans blockSize bytes regardless of requested,
// which only feeds the byte-exact usage accounting (arena.go already
// bucketed the request into this class before reaching here).
func (s *slab) Alloc(requested uint64) (uint64, bool) {
	bit, ok := s.occupied.FindLowestClearBitInRange(0, s.blocksPerSlab)
	if !ok {
		return 0, false
	}
	s.occupied.SetBit(bit)
	s.freeBlocks--
	s.slotBytes[bit] = requested
	s.usedBytes += requested
	return s.base + bit*s.blockSize, true
}

// Free clears the slot addr occupies. addr must lie within this slab's
// reservation and on a blockSize boundary; violating either is a contract
// violation, since it means the caller's bookkeeping (arena.go's address
// tracker) has already misrouted the free.
func (s *slab) Free(addr uint64) {
	if addr < s.base || (addr-s.base)%s.blockSize != 0 {
		violate("slab.Free", "address is not a block boundary within this slab", addr)
	}
	bit := (addr - s.base) / s.blockSize
	if bit >= s.blocksPerSlab || !s.occupied.IsBitSet(bit) {
		violate("slab.Free", "address is not currently allocated in this slab", addr)
	}
	s.occupied.ClearBit(bit)
	s.freeBlocks++
	s.usedBytes -= s.slotBytes[bit]
	s.slotBytes[bit] = 0
}

func (s *slab) IsFull() bool      { return s.freeBlocks == 0 }
func (s *slab) IsEmpty() bool     { return s.freeBlocks == s.blocksPerSlab }
func (s *slab) UsedBytes() uint64 { return s.usedBytes }

// verify checks that the free-block counter agrees with the occupancy
// bitmap and that per-slot byte accounting tracks occupancy exactly.
// Wired behind Config.debug, and called directly by tests.
func (s *slab) verify() {
	if s.freeBlocks != s.blocksPerSlab-s.occupied.popCount() {
		violate("slab.verify", "free-block counter out of sync with occupancy bitmap", s.base)
	}
	var total uint64
	for bit, n := range s.slotBytes {
		if (n != 0) != s.occupied.IsBitSet(uint64(bit)) {
			violate("slab.verify", "slot byte accounting out of sync with occupancy bitmap", s.base)
		}
		total += n
	}
	if total != s.usedBytes {
		violate("slab.verify", "used-byte counter out of sync with slot accounting", s.base)
	}
}
