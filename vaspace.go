// Package vaspace hands out byte-addressable ranges of a large, sparse
// virtual-address region backed by a bounded pool of physical memory. Two
// allocation strategies sit behind one interface: a boundary-tag best-fit
// allocator over a single monolithic reservation (KindDefault), and an
// arena allocator that bins requests into eight size classes, carving
// small classes from slab reservations and large ones from per-reservation
// boundary-tag regions (KindArena).
//
// Physical backing is attached lazily by the default allocator and is
// reclaimed only by Flush, so freed ranges keep their physical quota until
// the caller decides reclamation is worth the walk.
//
// Allocators are single-threaded by contract: callers needing concurrent
// access must serialize externally.
package vaspace

import "github.com/orizon-lang/vaspace/internal/allocator"

// The implementation lives in internal/allocator; this package is the
// importable surface, re-exported without any behavior of its own.
type (
	// Allocator is the uniform operations surface shared by both strategies.
	Allocator = allocator.Allocator
	// Kind selects which allocation strategy New builds.
	Kind = allocator.Kind
	// Option mutates the configuration New assembles.
	Option = allocator.Option
	// VAReserver reserves and releases ranges of process address space
	// without committing physical memory to them.
	VAReserver = allocator.VAReserver
	// Runtime wraps an Allocator with stats and threshold-driven auto-flush.
	Runtime = allocator.Runtime
	// RuntimeStats is the counter snapshot Runtime.Stats returns.
	RuntimeStats = allocator.RuntimeStats
	// ContractViolation is the typed panic value raised on programmer
	// errors (double free, misrouted address, broken invariant).
	ContractViolation = allocator.ContractViolation
	// ErrReservationFailed wraps a failed OS virtual-address reservation.
	ErrReservationFailed = allocator.ErrReservationFailed
)

const (
	// KindDefault is the single boundary-tag region with lazy physical
	// backing.
	KindDefault = allocator.KindDefault
	// KindArena is the size-binned arena-of-reservations allocator.
	KindArena = allocator.KindArena
)

var (
	// ErrUnknownKind is returned by New for a Kind it doesn't recognize.
	ErrUnknownKind = allocator.ErrUnknownKind
	// ErrPhysicalMemoryExhausted reports the physical pool's cap was hit.
	ErrPhysicalMemoryExhausted = allocator.ErrPhysicalMemoryExhausted
)

// New builds an Allocator of the requested kind.
func New(kind Kind, opts ...Option) (Allocator, error) {
	return allocator.New(kind, opts...)
}

// NewRuntime wraps a with auto-flush bookkeeping: the Free that brings the
// bytes freed since the last Flush to flushThreshold flushes
// automatically. A zero threshold disables auto-flush.
func NewRuntime(a Allocator, flushThreshold uint64) *Runtime {
	return allocator.NewRuntime(a, flushThreshold)
}

// WithPhysicalMemoryLimit caps the aggregate physical memory the
// allocator will hand out.
func WithPhysicalMemoryLimit(bytes uint64) Option {
	return allocator.WithPhysicalMemoryLimit(bytes)
}

// WithPhysicalBlockSize overrides the granularity at which the default
// allocator attaches and releases physical backing.
func WithPhysicalBlockSize(bytes uint64) Option {
	return allocator.WithPhysicalBlockSize(bytes)
}

// WithVAReserver overrides the primitive used to reserve and release
// virtual address space.
func WithVAReserver(r VAReserver) Option {
	return allocator.WithVAReserver(r)
}

// WithDebug re-verifies the allocator's structural invariants after every
// operation, panicking with a ContractViolation as soon as one breaks.
func WithDebug(enabled bool) Option {
	return allocator.WithDebug(enabled)
}
