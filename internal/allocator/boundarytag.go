package allocator

// boundaryTag is a best-fit allocator over one contiguous [base, base+size)
// address range, the shared engine behind both the default allocator
// (default.go) and the large-object sub-allocator each arena reservation
// uses for requests too big to slab out (arena.go). It keeps every block —
// free or allocated — on an address-ordered doubly linked list, and every
// FREE block additionally indexed by size in a radixTree so Alloc can find
// the smallest block that still fits in O(key width) instead of scanning.
//
// Blocks are addressed by index into bt.blocks, 1-indexed like radixTree's
// own nodes; index 0 is the nil sentinel. A block's index is stable for its
// entire lifetime except when it is absorbed into a neighbor by Free's
// coalescing, at which point it is unlinked and never reused.
type btBlock struct {
	start, size        uint64
	free               bool
	addrNext, addrPrev uint32
}

type boundaryTag struct {
	base, limit uint64
	blocks      []btBlock
	addrHead    uint32
	freeBySize  *radixTree
	addrIndex   map[uint64]uint32
	usedSize    uint64
}

// radixSizeKeyBits matches the 63-bit key width the original allocator uses
// for its size-ordered free-block trees (see DESIGN.md's note on the
// 63-vs-64-bit discrepancy between the two copies of this logic upstream).
const radixSizeKeyBits = 63

func newBoundaryTag(base, size uint64) *boundaryTag {
	bt := &boundaryTag{
		base:       base,
		limit:      base + size,
		blocks:     make([]btBlock, 2),
		freeBySize: newRadixTree(radixSizeKeyBits),
		addrIndex:  make(map[uint64]uint32),
		addrHead:   1,
	}
	bt.freeBySize.growTo(1)
	bt.blocks[1] = btBlock{start: base, size: size, free: true}
	bt.addrIndex[base] = 1
	bt.freeBySize.insert(1, size)
	return bt
}

func (bt *boundaryTag) TotalSize() uint64 { return bt.limit - bt.base }
func (bt *boundaryTag) UsedSize() uint64  { return bt.usedSize }

func (bt *boundaryTag) newBlockRow(start, size uint64, free bool) uint32 {
	idx := uint32(len(bt.blocks))
	bt.blocks = append(bt.blocks, btBlock{start: start, size: size, free: free})
	bt.freeBySize.growTo(int(idx))
	return idx
}

func (bt *boundaryTag) insertAfterAddr(prevIdx, newIdx uint32) {
	next := bt.blocks[prevIdx].addrNext
	bt.blocks[prevIdx].addrNext = newIdx
	bt.blocks[newIdx].addrPrev = prevIdx
	bt.blocks[newIdx].addrNext = next
	if next != 0 {
		bt.blocks[next].addrPrev = newIdx
	}
}

func (bt *boundaryTag) unlinkAddr(idx uint32) {
	prev, next := bt.blocks[idx].addrPrev, bt.blocks[idx].addrNext
	if prev != 0 {
		bt.blocks[prev].addrNext = next
	}
	if next != 0 {
		bt.blocks[next].addrPrev = prev
	}
	if bt.addrHead == idx {
		bt.addrHead = next
	}
}

// Alloc finds the smallest free block that fits size, splits off the
// unused tail as a new free block if the fit isn't exact, and marks the
// (now right-sized) block allocated. ok is false if no free block is large
// enough.
func (bt *boundaryTag) Alloc(size uint64) (addr uint64, idx uint32, ok bool) {
	if size == 0 {
		return 0, 0, false
	}
	found := bt.freeBySize.findGEQ(size)
	if found == 0 {
		return 0, 0, false
	}

	// The found node leaves the size tree only after the tail record exists
	// and is indexed; newBlockRow may reallocate bt.blocks, so the block is
	// re-addressed by index rather than held by pointer across the append.
	if bt.blocks[found].size > size {
		tailStart := bt.blocks[found].start + size
		tailSize := bt.blocks[found].size - size
		tail := bt.newBlockRow(tailStart, tailSize, true)
		bt.insertAfterAddr(found, tail)
		bt.addrIndex[tailStart] = tail
		bt.freeBySize.insert(tail, tailSize)
		bt.blocks[found].size = size
	}
	bt.freeBySize.remove(found)
	bt.blocks[found].free = false
	bt.usedSize += size
	return bt.blocks[found].start, found, true
}

// Free returns the block at addr to the pool, coalescing it with an
// adjacent free block on either side. Freeing an address this region never
// handed out, or one already free, is a contract violation.
func (bt *boundaryTag) Free(addr uint64) {
	idx, ok := bt.addrIndex[addr]
	if !ok {
		violate("boundarytag.Free", "address was never allocated by this region", addr)
	}
	if bt.blocks[idx].free {
		violate("boundarytag.Free", "double free", addr)
	}
	bt.freeBlock(idx)
}

// TryFree behaves like Free but reports failure instead of panicking when
// addr is unknown or already free. The default allocator (spec.md §6) uses
// this: an unknown address is a silent no-op there, whereas the arena
// allocator's Free is expected to assert (and so calls Free directly).
func (bt *boundaryTag) TryFree(addr uint64) bool {
	idx, ok := bt.addrIndex[addr]
	if !ok || bt.blocks[idx].free {
		return false
	}
	bt.freeBlock(idx)
	return true
}

// freeBlock marks the block at idx free and coalesces it with either
// address-adjacent neighbor that is also free.
func (bt *boundaryTag) freeBlock(idx uint32) {
	block := &bt.blocks[idx]
	block.free = true
	bt.usedSize -= block.size

	if next := block.addrNext; next != 0 && bt.blocks[next].free {
		bt.freeBySize.remove(next)
		block.size += bt.blocks[next].size
		delete(bt.addrIndex, bt.blocks[next].start)
		bt.unlinkAddr(next)
	}
	if prev := block.addrPrev; prev != 0 && bt.blocks[prev].free {
		bt.freeBySize.remove(prev)
		bt.blocks[prev].size += block.size
		delete(bt.addrIndex, block.start)
		bt.unlinkAddr(idx)
		idx = prev
		block = &bt.blocks[prev]
	}
	bt.freeBySize.insert(idx, block.size)
}

// inSizeTree reports whether idx's radix node is currently reachable from
// the size tree, either holding a tree slot itself or hanging off another
// node's equal-key sibling ring.
func (bt *boundaryTag) inSizeTree(idx uint32) bool {
	n := bt.freeBySize.nodes[idx]
	return n.linked || (n.next != 0 && n.next != idx)
}

// verify walks the region checking its structural invariants: blocks tile
// [base, limit) exactly with no gaps or overlaps, no two adjacent blocks
// are both free, and a block is indexed by size iff it is free. Wired
// behind Config.debug, and called directly by tests.
func (bt *boundaryTag) verify() {
	expect := bt.base
	prevFree := false
	for idx := bt.addrHead; idx != 0; idx = bt.blocks[idx].addrNext {
		b := bt.blocks[idx]
		if b.start != expect {
			violate("boundarytag.verify", "blocks do not tile the region", b.start)
		}
		if b.size == 0 {
			violate("boundarytag.verify", "zero-size block", b.start)
		}
		if b.free && prevFree {
			violate("boundarytag.verify", "two adjacent free blocks", b.start)
		}
		if b.free != bt.inSizeTree(idx) {
			violate("boundarytag.verify", "size index out of sync with block state", b.start)
		}
		expect = b.start + b.size
		prevFree = b.free
	}
	if expect != bt.limit {
		violate("boundarytag.verify", "blocks do not cover the region end", expect)
	}
}

// forEachBlock walks every block — free and allocated alike — in address
// order, the shape default.go's flush and both allocators' Dump need.
func (bt *boundaryTag) forEachBlock(fn func(idx uint32, start, size uint64, free bool)) {
	for idx := bt.addrHead; idx != 0; idx = bt.blocks[idx].addrNext {
		b := bt.blocks[idx]
		fn(idx, b.start, b.size, b.free)
	}
}
