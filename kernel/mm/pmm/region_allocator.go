// Package pmm contains the bootstrap physical frame allocator.
package pmm

import (
	"io"
	"kestrel/kernel"
	"kestrel/kernel/kfmt"
	"kestrel/kernel/mm"
)

var (
	errOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}
)

// RegionAllocator implements a rudimentary physical frame allocator that
// hands out the frames of a single linker-reserved memory region in
// ascending order. It is used to bootstrap the kernel until a more advanced
// allocator takes over the region.
//
// Frames cannot be freed. Callers that need to reclaim memory obtain the
// allocated range via Allocated and hand it over to their own allocator.
type RegionAllocator struct {
	region mm.Region

	// allocCount tracks the total number of allocated frames.
	allocCount uint64

	firstFrame, lastFrame mm.Frame
}

// Init sets up the allocator to serve frames from the whole frames that fit
// inside region.
func (alloc *RegionAllocator) Init(region mm.Region) {
	alloc.region = region
	alloc.allocCount = 0
	alloc.firstFrame = region.FirstFrame()
	alloc.lastFrame = alloc.firstFrame.Add(region.FrameCount()).Sub(1)
}

// AllocFrame reserves the next available frame. It returns
// mm.InvalidFrame and an error once the region is exhausted.
func (alloc *RegionAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	if alloc.allocCount >= alloc.region.FrameCount() {
		return mm.InvalidFrame, errOutOfMemory
	}

	frame := alloc.firstFrame.Add(alloc.allocCount)
	alloc.allocCount++
	return frame, nil
}

// Allocated returns the number of frames handed out so far.
func (alloc *RegionAllocator) Allocated() uint64 {
	return alloc.allocCount
}

// PrintStats writes a summary of the allocator state to w.
func (alloc *RegionAllocator) PrintStats(w io.Writer) {
	if alloc.region.FrameCount() == 0 {
		kfmt.Fprintf(w, "no frames available in region [0x%x - 0x%x]\n", uint64(alloc.region.Start), uint64(alloc.region.End()))
		return
	}

	kfmt.Fprintf(w, "frames [0x%x - 0x%x], size: %dKb, allocated: %d\n",
		uint64(alloc.firstFrame.Address()),
		uint64(alloc.lastFrame.Address()),
		uint64(alloc.region.FrameCount()*uint64(mm.PageSize/mm.Kb)),
		alloc.allocCount,
	)
}
