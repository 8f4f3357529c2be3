package allocator

// VAReserver reserves and releases ranges of process address space without
// committing physical memory to them. Allocators call ReserveVA once at
// init to stake out their region, then ReleaseVA at Close to give it back.
type VAReserver interface {
	ReserveVA(size uint64) (uint64, error)
	ReleaseVA(base, size uint64) error
}

// osReserver is the VAReserver every allocator uses in production. Its
// actual syscalls live in osva_linux.go / osva_other.go, split the way the
// teacher package splits OS-specific transport code across build tags.
type osReserver struct{}
