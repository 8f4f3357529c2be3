package allocator

// Runtime wraps an Allocator with the same auto-reclaim convenience the
// teacher's runtime.go gave every allocator kind via gcEnabled/gcThreshold:
// once the number of bytes freed since the last Flush reaches a threshold,
// the Free that reaches it triggers a Flush automatically instead of making the
// caller remember to call it. This is strictly additive — every method
// still delegates to the wrapped Allocator, so Runtime satisfies Allocator
// too and can be used anywhere a plain allocator is expected.
type Runtime struct {
	Allocator
	flushThreshold uint64
	freedSinceGC   uint64
	stats          RuntimeStats
}

// RuntimeStats mirrors the counters the teacher's GCStats/AllocatorStats
// tracked (allocation/free counts, bytes in flight), scoped to what this
// allocator's Alloc/Free/Flush surface can actually report.
type RuntimeStats struct {
	AllocCount uint64
	FreeCount  uint64
	FlushCount uint64
	BytesUsed  uint64
}

// NewRuntime wraps alloc with auto-flush bookkeeping. A zero
// flushThreshold disables auto-flush entirely (Flush must be called
// explicitly), matching the teacher's gcEnabled=false path.
func NewRuntime(alloc Allocator, flushThreshold uint64) *Runtime {
	return &Runtime{Allocator: alloc, flushThreshold: flushThreshold}
}

func (r *Runtime) Alloc(size uint64) uint64 {
	addr := r.Allocator.Alloc(size)
	if addr != 0 {
		r.stats.AllocCount++
		r.stats.BytesUsed = r.Allocator.UsedSize()
	}
	return addr
}

func (r *Runtime) Free(addr uint64) {
	before := r.Allocator.UsedSize()
	r.Allocator.Free(addr)
	after := r.Allocator.UsedSize()
	r.stats.FreeCount++
	r.stats.BytesUsed = after
	if after < before {
		r.freedSinceGC += before - after
	}

	if r.flushThreshold > 0 && r.freedSinceGC >= r.flushThreshold {
		r.Flush()
	}
}

func (r *Runtime) Flush() {
	r.Allocator.Flush()
	r.stats.FlushCount++
	r.freedSinceGC = 0
}

// Stats returns a snapshot of the counters Runtime has accumulated.
func (r *Runtime) Stats() RuntimeStats { return r.stats }
