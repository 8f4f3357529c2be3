//go:build linux
// +build linux

package allocator

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ReserveVA maps size bytes of PROT_NONE address space: reserved but never
// backed by physical memory until the allocator explicitly asks for it.
// Mirrors the original RESERVE_VA macro's mmap(PROT_NONE, MAP_PRIVATE|
// MAP_ANON|MAP_NORESERVE) call.
func (osReserver) ReserveVA(size uint64) (uint64, error) {
	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
	if err != nil {
		return 0, err
	}
	return uint64(uintptr(unsafe.Pointer(&b[0]))), nil
}

// ReleaseVA unmaps a range previously returned by ReserveVA.
func (osReserver) ReleaseVA(base, size uint64) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(base))), size)
	return unix.Munmap(b)
}
