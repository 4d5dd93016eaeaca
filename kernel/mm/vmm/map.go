package vmm

import (
	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/mm"
	"unsafe"
)

// FrameAllocatorFn is a function that can allocate physical frames.
type FrameAllocatorFn func() (mm.Frame, *kernel.Error)

var (
	frameAllocator FrameAllocatorFn

	// nextAddrFn is used by tests to override the nextTableAddr
	// calculations used by Map. When compiling the kernel this function
	// will be automatically inlined.
	nextAddrFn = func(entryAddr uintptr) uintptr {
		return entryAddr
	}

	// flushTLBEntryFn is used by tests to override calls to flushTLBEntry
	// which will cause a fault if called in user-mode.
	flushTLBEntryFn = cpu.FlushTLBEntry

	mapFn = Map

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
	errNoFrameAllocator  = &kernel.Error{Module: "vmm", Message: "no frame allocator registered"}
	errEmptySegment      = &kernel.Error{Module: "vmm", Message: "segment does not contain any frames"}
)

// SetFrameAllocator registers a frame allocator function that will be used by
// the vmm code when new physical frames need to be allocated.
func SetFrameAllocator(allocFn FrameAllocatorFn) {
	frameAllocator = allocFn
}

// Map establishes a mapping between a virtual page and a physical memory frame
// using the currently active page directory table. Calls to Map will use the
// registered frame allocator to initialize missing page tables at each
// paging level supported by the MMU.
func Map(page mm.Page, frame mm.Frame, flags PageTableEntryFlag) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *PageTableEntry) bool {
		// If we reached the last level all we need to do is to map the
		// frame in place and flag it as present and flush its TLB entry
		if pteLevel == pageLevels-1 {
			*pte = 0
			pte.SetFrame(frame)
			pte.SetFlags(flags)
			flushTLBEntryFn(page.Address())
			return true
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		// Next table does not yet exist; we need to allocate a
		// physical frame for it map it and clear its contents.
		if !pte.HasFlags(FlagPresent) {
			if frameAllocator == nil {
				err = errNoFrameAllocator
				return false
			}

			var newTableFrame mm.Frame
			newTableFrame, err = frameAllocator()
			if err != nil {
				return false
			}

			*pte = 0
			pte.SetFrame(newTableFrame)
			pte.SetFlags(FlagPresent | FlagRW)

			// The next table becomes reachable through the recursive
			// mapping once the entry is present.
			nextTableAddr := uintptr(unsafe.Pointer(pte)) << pageLevelBits[pteLevel+1]
			mm.Memset(nextAddrFn(nextTableAddr), 0, mm.PageSize)
		}

		return true
	})

	return err
}

// Unmap removes a mapping previously installed via a call to Map.
func Unmap(page mm.Page) *kernel.Error {
	var err *kernel.Error

	walk(page.Address(), func(pteLevel uint8, pte *PageTableEntry) bool {
		// If we reached the last level all we need to do is to set the
		// page as non-present and flush its TLB entry
		if pteLevel == pageLevels-1 {
			pte.ClearFlags(FlagPresent)
			flushTLBEntryFn(page.Address())
			return true
		}

		// Next table is not present; this is an invalid mapping
		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		if pte.HasFlags(FlagHugePage) {
			err = errNoHugePageSupport
			return false
		}

		return true
	})

	return err
}

// Translate returns the physical address that corresponds to the supplied
// virtual address or ErrInvalidMapping if the virtual address does not
// correspond to a mapped physical address.
func Translate(virtAddr uintptr) (mm.PhysAddr, *kernel.Error) {
	pte, err := pteForAddress(virtAddr)
	if err != nil {
		return 0, err
	}

	return pte.Frame().Address() + mm.PhysAddr(PageOffset(virtAddr)), nil
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & ((1 << pageLevelShifts[pageLevels-1]) - 1)
}

// SegmentPerm describes the access rights requested for a loaded segment.
type SegmentPerm uint8

// The supported segment permissions. They mirror the p_flags bits of an ELF
// program header.
const (
	PermExecute SegmentPerm = 1 << iota
	PermWrite
	PermRead
)

// Flags converts the permission set into page table entry flags. Every
// segment page is present; write access sets FlagRW and the absence of
// execute access sets FlagNoExecute.
func (p SegmentPerm) Flags() PageTableEntryFlag {
	flags := FlagPresent
	if p&PermWrite != 0 {
		flags |= FlagRW
	}
	if p&PermExecute == 0 {
		flags |= FlagNoExecute
	}
	return flags
}

// MapSegment maps len(frames) consecutive virtual pages starting at start to
// the supplied physical frames using the access rights in perm. It is the
// entry point used by executable loaders to install program segments.
// MapSegment stops at the first page that cannot be mapped and returns the
// error; pages mapped before the failure are left in place.
func MapSegment(start mm.Page, frames []mm.Frame, perm SegmentPerm) *kernel.Error {
	if len(frames) == 0 {
		return errEmptySegment
	}

	flags := perm.Flags()
	for i, frame := range frames {
		if err := mapFn(start+mm.Page(i), frame, flags); err != nil {
			return err
		}
	}

	return nil
}
