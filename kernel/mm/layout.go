package mm

// Region describes a contiguous block of physical memory.
type Region struct {
	Start  PhysAddr
	Length Size
}

// RegionFromBounds returns the region [base, top). A top address below base
// yields an empty region.
func RegionFromBounds(base, top uintptr) Region {
	if top < base {
		return Region{Start: PhysAddr(base)}
	}
	return Region{Start: PhysAddr(base), Length: Size(top - base)}
}

// End returns the first address past the end of the region.
func (r Region) End() PhysAddr {
	return r.Start + PhysAddr(r.Length)
}

// Contains returns true if addr lies within the region.
func (r Region) Contains(addr PhysAddr) bool {
	return addr >= r.Start && addr < r.End()
}

// FirstFrame returns the first frame that lies entirely within the region.
func (r Region) FirstFrame() Frame {
	return FrameFromAddress(PhysAddr(Size(r.Start).AlignUp(PageSize)))
}

// FrameCount returns the number of whole frames that fit in the region
// starting at FirstFrame.
func (r Region) FrameCount() uint64 {
	first := r.FirstFrame().Address()
	if first >= r.End() {
		return 0
	}
	return uint64(r.End()-first) >> PageShift
}

// Split divides the region at the first page boundary at or after
// Start+size. The head ends at that boundary and the tail covers the rest.
// If the boundary lies past the end of the region the head is the whole
// region and the tail is empty.
func (r Region) Split(size Size) (head, tail Region) {
	boundary := PhysAddr((Size(r.Start) + size).AlignUp(PageSize))
	if boundary >= r.End() {
		return r, Region{Start: r.End()}
	}

	return Region{Start: r.Start, Length: Size(boundary - r.Start)},
		Region{Start: boundary, Length: Size(r.End() - boundary)}
}

// LinkerSymbols holds the raw addresses exported by the linker script. The
// boot code reads them once and hands them to NewLayout.
type LinkerSymbols struct {
	// Page-aligned, statically placed page tables (top level first).
	P4, P3, P2, P1 uintptr

	StackBase, StackTop uintptr
	HeapBase, HeapTop   uintptr
}

// Layout describes the memory regions reserved by the linker script. A
// Layout is built once during boot and passed by value to the code that
// needs it; it is never mutated afterwards.
type Layout struct {
	// Tables contains the addresses of the four boot page tables ordered
	// from the top level (P4) to the lowest level (P1).
	Tables [4]PhysAddr

	Stack Region
	Heap  Region
}

// NewLayout converts the linker-provided symbol addresses into a Layout.
func NewLayout(syms *LinkerSymbols) Layout {
	return Layout{
		Tables: [4]PhysAddr{
			PhysAddr(syms.P4),
			PhysAddr(syms.P3),
			PhysAddr(syms.P2),
			PhysAddr(syms.P1),
		},
		Stack: RegionFromBounds(syms.StackBase, syms.StackTop),
		Heap:  RegionFromBounds(syms.HeapBase, syms.HeapTop),
	}
}
