package allocator

import (
	"fmt"
	"io"
)

// Kind is declared in config.go alongside the rest of New's tunables.

// Allocator is the uniform operations surface spec.md §4.8 describes as a
// dispatch struct of function pointers plus an opaque implementation
// pointer. Go renders that polymorphism as an interface implemented by
// *defaultAllocator and *arenaAllocator; New picks the concrete type once,
// at construction, and every call after that dispatches statically through
// the interface rather than through a runtime kind check (spec.md §9:
// "dispatch statically where the variant is known at construction").
type Allocator interface {
	// Alloc returns a VA of at least size bytes, or 0 on any failure
	// (size == 0, size exceeds total capacity, no free block fits, or the
	// OS/physical backing is exhausted).
	Alloc(size uint64) uint64
	// Free returns addr, previously returned by Alloc, to the allocator.
	// An unrecognized address is a silent no-op on the default allocator
	// and a contract-violation panic on the arena allocator (spec.md §6).
	Free(addr uint64)
	// Flush reclaims physical backing from VA ranges that are currently
	// free. It is a no-op on the arena allocator, which commits no lazy
	// physical backing of its own.
	Flush()
	TotalSize() uint64
	UsedSize() uint64
	PhysicalMemUsage() uint64
	// Dump writes a diagnostic listing of every block (default allocator)
	// or reservation (arena allocator) to w.
	Dump(w io.Writer)
	// Close releases every OS-backed VA range this allocator holds. The
	// allocator must not be used afterward (spec.md §4.8's destroyed
	// state).
	Close()
}

// New builds an Allocator of the requested kind. It returns (nil,
// ErrUnknownKind) for any kind other than KindDefault/KindArena, and (nil,
// err) if the underlying OS VA reservation fails — the idiomatic Go
// rendering of spec.md §6's "unknown kind -> null; OOM -> null".
func New(kind Kind, opts ...Option) (Allocator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	switch kind {
	case KindDefault:
		d, err := newDefaultAllocator(cfg)
		if err != nil {
			return nil, err
		}
		return &defaultFacade{impl: d}, nil
	case KindArena:
		return &arenaFacade{impl: newArenaAllocator(cfg)}, nil
	default:
		return nil, ErrUnknownKind
	}
}

// defaultFacade and arenaFacade wrap the two concrete strategies with a
// nil-receiver check on every method, so a nil *defaultFacade/*arenaFacade
// (or one wrapping a nil *defaultAllocator/*arenaAllocator) still satisfies
// spec.md §6's "all entry points tolerate null allocator ... by returning
// the neutral value (0) or no-op" rather than panicking on a nil
// dereference — the façade's null-safety contract, rendered as nil method
// receivers instead of a null function-pointer table.
type defaultFacade struct{ impl *defaultAllocator }

func (f *defaultFacade) Alloc(size uint64) uint64 {
	if f == nil || f.impl == nil {
		return 0
	}
	return f.impl.Alloc(size)
}

func (f *defaultFacade) Free(addr uint64) {
	if f == nil || f.impl == nil {
		return
	}
	f.impl.Free(addr)
}

func (f *defaultFacade) Flush() {
	if f == nil || f.impl == nil {
		return
	}
	f.impl.Flush()
}

func (f *defaultFacade) TotalSize() uint64 {
	if f == nil || f.impl == nil {
		return 0
	}
	return f.impl.TotalSize()
}

func (f *defaultFacade) UsedSize() uint64 {
	if f == nil || f.impl == nil {
		return 0
	}
	return f.impl.UsedSize()
}

func (f *defaultFacade) PhysicalMemUsage() uint64 {
	if f == nil || f.impl == nil {
		return 0
	}
	return f.impl.PhysicalMemUsage()
}

// Dump reproduces original_source/src/va_allocator_default.c's
// default_allocator_print format: one line per block in address order.
func (f *defaultFacade) Dump(w io.Writer) {
	if f == nil || f.impl == nil {
		return
	}
	f.impl.bt.forEachBlock(func(_ uint32, start, size uint64, free bool) {
		fmt.Fprintf(w, "start=%#x size=%d free=%t\n", start, size, free)
	})
}

func (f *defaultFacade) Close() {
	if f == nil || f.impl == nil {
		return
	}
	f.impl.Close()
}

type arenaFacade struct{ impl *arenaAllocator }

func (f *arenaFacade) Alloc(size uint64) uint64 {
	if f == nil || f.impl == nil {
		return 0
	}
	return f.impl.Alloc(size)
}

func (f *arenaFacade) Free(addr uint64) {
	if f == nil || f.impl == nil {
		return
	}
	f.impl.Free(addr)
}

func (f *arenaFacade) Flush() {
	if f == nil || f.impl == nil {
		return
	}
	f.impl.Flush()
}

func (f *arenaFacade) TotalSize() uint64 {
	if f == nil || f.impl == nil {
		return 0
	}
	return f.impl.TotalSize()
}

func (f *arenaFacade) UsedSize() uint64 {
	if f == nil || f.impl == nil {
		return 0
	}
	return f.impl.UsedSize()
}

// PhysicalMemUsage: the arena allocator attaches no lazy physical backing
// of its own (every reservation is VA-only, the way the default
// allocator's physical-block array is not), so this always reads 0.
func (f *arenaFacade) PhysicalMemUsage() uint64 { return 0 }

// Dump extends the default allocator's per-block line format to the arena
// allocator, which original_source/src/va_allocator_arenas.c never
// implemented (its print hook is a stub) — one line per reservation, and
// for boundary-tag reservations, one line per block within it.
func (f *arenaFacade) Dump(w io.Writer) {
	if f == nil || f.impl == nil {
		return
	}
	for classIdx, head := range f.impl.heads {
		for r := head; r != nil; r = r.next {
			kind := "tag"
			if r.slabAlloc != nil {
				kind = "slab"
			}
			fmt.Fprintf(w, "reservation class=%d addr=%#x size=%d kind=%s\n", classIdx, r.addr, r.size, kind)
			if r.tagAlloc != nil {
				r.tagAlloc.forEachBlock(func(_ uint32, start, size uint64, free bool) {
					fmt.Fprintf(w, "  start=%#x size=%d free=%t\n", start, size, free)
				})
			}
		}
	}
}

func (f *arenaFacade) Close() {
	if f == nil || f.impl == nil {
		return
	}
	f.impl.Close()
}
