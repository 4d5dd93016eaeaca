package vmm

import (
	"kestrel/kernel/mm"
	"unsafe"
)

var (
	// ptePtrFn returns a pointer to the supplied entry address. It is
	// used by tests to override the generated page table entry pointers so
	// walk() can be properly tested. When compiling the kernel this function
	// will be automatically inlined.
	ptePtrFn = func(entryAddr uintptr) unsafe.Pointer {
		return unsafe.Pointer(entryAddr)
	}
)

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and page table entry as its
// arguments. If the function returns false, then the page walk is aborted.
type pageTableWalker func(pteLevel uint8, pte *PageTableEntry) bool

// walk performs a page table walk for the given virtual address using the
// recursive P4 mapping of the active page tables. It calls walkFn with the
// page table entry that corresponds to each page table level.
func walk(virtAddr uintptr, walkFn pageTableWalker) {
	var (
		level                            uint8
		tableAddr, entryAddr, entryIndex uintptr
	)

	// tableAddr starts at the recursively mapped address of the P4; each
	// iteration shifts the address left by one level adding a new level
	// of indirection to the recursive mapping.
	for level, tableAddr = uint8(0), pdtVirtualAddr; level < pageLevels; level, tableAddr = level+1, entryAddr {
		entryIndex = (virtAddr >> pageLevelShifts[level]) & ((1 << pageLevelBits[level]) - 1)
		entryAddr = tableAddr + (entryIndex << mm.PointerShift)

		if !walkFn(level, (*PageTableEntry)(ptePtrFn(entryAddr))) {
			return
		}

		entryAddr <<= pageLevelBits[level]
	}
}
