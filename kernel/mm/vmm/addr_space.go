package vmm

import (
	"kestrel/kernel"
	"kestrel/kernel/mm"
)

const (
	// earlyReserveTop is the first address mapped through the recursive
	// P4 slot. Early reservations grow downwards from it.
	earlyReserveTop = uintptr(0xffffff8000000000)

	// earlyReserveFloor is the start of the canonical higher half.
	earlyReserveFloor = uintptr(0xffff800000000000)
)

var (
	// earlyReserveLastUsed tracks the last reserved page address and is
	// decreased after each allocation request.
	earlyReserveLastUsed = earlyReserveTop

	errEarlyReserveNoSpace = &kernel.Error{Module: "early_reserve", Message: "remaining virtual address space not large enough to satisfy reservation request"}
)

// EarlyReserveRegion reserves a page-aligned contiguous virtual memory region
// with the requested size in the kernel address space and returns its virtual
// address. If size is not a multiple of mm.PageSize it will be automatically
// rounded up. No mappings are established for the region.
//
// Regions are handed out downwards from the recursive mapping window and are
// never released. It should only be used while bootstrapping the Go runtime.
func EarlyReserveRegion(size mm.Size) (uintptr, *kernel.Error) {
	size = (size + (mm.PageSize - 1)) &^ (mm.PageSize - 1)

	if uintptr(size) > earlyReserveLastUsed-earlyReserveFloor {
		return 0, errEarlyReserveNoSpace
	}

	earlyReserveLastUsed -= uintptr(size)
	return earlyReserveLastUsed, nil
}
