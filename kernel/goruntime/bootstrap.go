// Package goruntime contains code for bootstrapping Go runtime features such
// as the memory allocator.
//
// The runtime's OS memory hooks are redirected to the functions in this
// package by tools/redirects, so heap growth is served by frames from the
// boot frame allocator mapped into address space reserved with
// vmm.EarlyReserveRegion.
package goruntime

import (
	"kestrel/kernel"
	"kestrel/kernel/mm"
	"kestrel/kernel/mm/vmm"
	"unsafe"
)

var (
	mapFn                = vmm.Map
	earlyReserveRegionFn = vmm.EarlyReserveRegion
	memsetFn             = mm.Memset
	frameAllocFn         vmm.FrameAllocatorFn
	mallocInitFn         = mallocInit
	algInitFn            = algInit
	modulesInitFn        = modulesInit
	typeLinksInitFn      = typeLinksInit
	itabsInitFn          = itabsInit

	// heapReady is set once Init has completed.
	heapReady bool

	// A seed for the pseudo-random number generator used by readRandom
	prngSeed = 0xdeadc0de

	// clock is the value reported by nanotime1.
	clock int64

	errNoFrameAllocator = &kernel.Error{Module: "goruntime", Message: "no frame allocator provided"}
	errAlreadyReady     = &kernel.Error{Module: "goruntime", Message: "runtime already initialized"}
)

// sysReserveOS reserves address space without allocating any memory or
// establishing any page mappings.
//
// This function replaces runtime.sysReserveOS and is required for
// initializing the Go allocator.
//
//go:redirect-from runtime.sysReserveOS
//go:nosplit
func sysReserveOS(_ unsafe.Pointer, size uintptr) unsafe.Pointer {
	regionStartAddr, err := earlyReserveRegionFn(mm.Size(size))
	if err != nil {
		panic(err)
	}

	return unsafe.Pointer(regionStartAddr)
}

// sysMapOS backs a region previously reserved via sysReserveOS with zeroed
// physical frames.
//
// This function replaces runtime.sysMapOS and is required for initializing
// the Go allocator.
//
//go:redirect-from runtime.sysMapOS
//go:nosplit
func sysMapOS(virtAddr unsafe.Pointer, size uintptr) {
	// We trust the allocator to call sysMapOS with an address inside a reserved region.
	regionStartAddr := (uintptr(virtAddr) + uintptr(mm.PageSize-1)) &^ uintptr(mm.PageSize-1)
	if err := mapRegion(regionStartAddr, mm.Size(size)); err != nil {
		panic(err)
	}
}

// sysAllocOS reserves enough physical frames to satisfy the allocation
// request and establishes a contiguous virtual page mapping for them
// returning back the pointer to the virtual region start.
//
// This function replaces runtime.sysAllocOS and is required for
// initializing the Go allocator.
//
//go:redirect-from runtime.sysAllocOS
//go:nosplit
func sysAllocOS(size uintptr) unsafe.Pointer {
	regionStartAddr, err := earlyReserveRegionFn(mm.Size(size))
	if err != nil {
		return unsafe.Pointer(uintptr(0))
	}

	if err = mapRegion(regionStartAddr, mm.Size(size)); err != nil {
		return unsafe.Pointer(uintptr(0))
	}

	return unsafe.Pointer(regionStartAddr)
}

// mapRegion maps a freshly allocated and zeroed frame to every page of the
// region that starts at the page-aligned address regionStartAddr.
//
//go:nosplit
func mapRegion(regionStartAddr uintptr, size mm.Size) *kernel.Error {
	pageCount := size.Pages()
	if pageCount > 0 && frameAllocFn == nil {
		return errNoFrameAllocator
	}

	mapFlags := vmm.FlagPresent | vmm.FlagNoExecute | vmm.FlagRW
	for page := mm.PageFromAddress(regionStartAddr); pageCount > 0; pageCount, page = pageCount-1, page+1 {
		frame, err := frameAllocFn()
		if err != nil {
			return err
		}

		if err = mapFn(page, frame, mapFlags); err != nil {
			return err
		}

		memsetFn(page.Address(), 0, mm.PageSize)
	}

	return nil
}

// The kernel never returns memory to the frame allocator and has no swap,
// so the remaining memory hooks have nothing to do.

//go:redirect-from runtime.sysUnusedOS
//go:nosplit
func sysUnusedOS(_ unsafe.Pointer, _ uintptr) {}

//go:redirect-from runtime.sysUsedOS
//go:nosplit
func sysUsedOS(_ unsafe.Pointer, _ uintptr) {}

//go:redirect-from runtime.sysHugePageOS
//go:nosplit
func sysHugePageOS(_ unsafe.Pointer, _ uintptr) {}

//go:redirect-from runtime.sysFreeOS
//go:nosplit
func sysFreeOS(_ unsafe.Pointer, _ uintptr) {}

// nanotime1 returns a monotonically increasing clock value. Each call
// advances the clock by one tick until a timer driver exists.
//
// This function replaces runtime.nanotime1 and is invoked by the Go
// allocator when a span allocation is performed.
//
//go:redirect-from runtime.nanotime1
//go:nosplit
func nanotime1() int64 {
	clock++
	return clock
}

// readRandom populates the given slice with random data. The runtime reads
// the auxiliary vector or /dev/urandom which are not available here, so a
// prng is used instead.
//
//go:redirect-from runtime.readRandom
func readRandom(r []byte) int {
	for i := 0; i < len(r); i++ {
		prngSeed = (prngSeed * 58321) + 11113
		r[i] = byte((prngSeed >> 16) & 255)
	}

	return len(r)
}

// Init enables support for various Go runtime features. allocFn supplies
// the physical frames that back the Go heap. After a call to Init the
// following runtime features become available for use:
//   - heap memory allocation (new, make e.t.c)
//   - map primitives
//   - interfaces
func Init(allocFn vmm.FrameAllocatorFn) *kernel.Error {
	if allocFn == nil {
		return errNoFrameAllocator
	}
	if heapReady {
		return errAlreadyReady
	}

	frameAllocFn = allocFn

	mallocInitFn()
	algInitFn()       // setup hash implementation for map keys
	modulesInitFn()   // provides activeModules
	typeLinksInitFn() // uses maps, activeModules
	itabsInitFn()     // uses activeModules

	heapReady = true
	return nil
}

// Ready reports whether Init has completed and Go code may allocate.
func Ready() bool {
	return heapReady
}

func init() {
	// Dummy calls so the compiler does not optimize away the functions in
	// this file.
	zeroPtr := unsafe.Pointer(uintptr(0))

	sysReserveOS(zeroPtr, 0)
	sysMapOS(zeroPtr, 0)
	sysAllocOS(0)
	sysUnusedOS(zeroPtr, 0)
	sysUsedOS(zeroPtr, 0)
	sysHugePageOS(zeroPtr, 0)
	sysFreeOS(zeroPtr, 0)
	readRandom(nil)
	nanotime1()
}
