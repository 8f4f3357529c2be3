package allocator

// defaultPhysicalBlockSize is the granularity at which the default
// allocator attaches and releases physical backing (spec.md §6:
// PHYSICAL_BLOCK_SIZE = 32 MiB).
const defaultPhysicalBlockSize = uint64(32) << 20

// defaultAllocator is a single boundary-tag region spanning
// 2*physicalMemorySize bytes of VA, augmented with a physical-backing
// array: one physical_mem handle slot per physicalBlockSize-sized chunk of
// the region. Physical backing is attached lazily on Alloc and detached
// only by Flush, never by Free (spec.md §4.7).
type defaultAllocator struct {
	bt         *boundaryTag
	phys       *physicalMemoryManager
	reserver   VAReserver
	blockSize  uint64
	physBlocks []uint64 // addr handed out by phys.Allocate for slot i, or 0 if unbacked
	debug      bool     // re-verify the region's invariants after every operation
}

func newDefaultAllocator(cfg Config) (*defaultAllocator, error) {
	regionSize := cfg.physicalMemorySize * 2
	base, err := cfg.reserver.ReserveVA(regionSize)
	if err != nil {
		return nil, &ErrReservationFailed{Size: regionSize, Err: err}
	}
	blockSize := cfg.physicalBlockSize
	return &defaultAllocator{
		bt:         newBoundaryTag(base, regionSize),
		phys:       newPhysicalMemoryManager(cfg.physicalMemorySize, cfg.reserver),
		reserver:   cfg.reserver,
		blockSize:  blockSize,
		physBlocks: make([]uint64, regionSize/blockSize),
		debug:      cfg.debug,
	}, nil
}

// slotRange returns the inclusive [low, high] physical-block slots that
// [start, start+size) overlaps, relative to the region base.
func (d *defaultAllocator) slotRange(start, size uint64) (lo, hi uint64) {
	offset := start - d.bt.base
	lo = offset / d.blockSize
	hi = (offset + size - 1) / d.blockSize
	return lo, hi
}

// Alloc performs the boundary-tag allocation, then walks the physical-block
// slots the new allocation spans, requesting backing for any slot still
// unbacked. If physical backing is exhausted partway through, the VA side
// is rolled back via Free before returning 0 (spec.md §4.7, §5: "the VA
// allocation is rolled back before returning").
func (d *defaultAllocator) Alloc(size uint64) uint64 {
	addr := d.doAlloc(size)
	if d.debug {
		d.bt.verify()
	}
	return addr
}

func (d *defaultAllocator) doAlloc(size uint64) uint64 {
	if size == 0 || size > d.bt.TotalSize() {
		return 0
	}
	addr, _, ok := d.bt.Alloc(size)
	if !ok {
		return 0
	}

	lo, hi := d.slotRange(addr, size)
	for i := lo; i <= hi; i++ {
		if d.physBlocks[i] != 0 {
			continue
		}
		handle, err := d.phys.Allocate(d.blockSize)
		if err != nil {
			d.bt.Free(addr)
			return 0
		}
		d.physBlocks[i] = handle
	}
	return addr
}

// Free returns addr's VA to the boundary-tag pool without releasing any
// physical backing; per spec.md §4.7, only Flush reclaims physical blocks.
// An address this allocator never handed out is a silent no-op here (the
// default allocator's documented contract per spec.md §6), unlike the
// arena allocator's assert.
func (d *defaultAllocator) Free(addr uint64) {
	d.bt.TryFree(addr)
	if d.debug {
		d.bt.verify()
	}
}

// Flush releases physical backing from every slot that lies wholly inside
// a free VA block: the first slot of a free block is skipped if the block
// doesn't start on a blockSize boundary (shared with an allocated left
// neighbor), and the last slot is skipped if the block's size isn't a
// multiple of blockSize (shared with an allocated right neighbor). This
// guarantees a physical block is never released while any live allocation
// still claims a byte of it.
func (d *defaultAllocator) Flush() {
	d.bt.forEachBlock(func(_ uint32, start, size uint64, free bool) {
		if !free {
			return
		}
		lo, hi := d.slotRange(start, size)
		startAligned := (start-d.bt.base)%d.blockSize == 0
		sizeAligned := size%d.blockSize == 0

		for i := lo; i <= hi; i++ {
			if d.physBlocks[i] == 0 {
				continue
			}
			if i == lo && !startAligned {
				continue
			}
			if i == hi && !sizeAligned {
				continue
			}
			d.phys.Free(d.physBlocks[i])
			d.physBlocks[i] = 0
		}
	})
	if d.debug {
		d.bt.verify()
	}
}

func (d *defaultAllocator) TotalSize() uint64        { return d.bt.TotalSize() }
func (d *defaultAllocator) UsedSize() uint64         { return d.bt.UsedSize() }
func (d *defaultAllocator) PhysicalMemUsage() uint64 { return d.phys.UsedSize() }

// Close releases every outstanding physical block and the whole VA
// reservation. Unlike the arena allocator, the default allocator doesn't
// assert every block is free first: the boundary-tag region itself is
// simply released wholesale, matching spec.md §5's per-allocator teardown
// contract (a monolithic reservation has no per-block OS resource to leak).
func (d *defaultAllocator) Close() {
	for _, h := range d.physBlocks {
		if h != 0 {
			d.phys.Free(h)
		}
	}
	_ = d.reserver.ReleaseVA(d.bt.base, d.bt.TotalSize())
}
