// Package mm contains the physical address and page frame model shared by
// the memory management code.
package mm

import "math"

// PhysAddr is a physical memory address. Any bit pattern is a valid PhysAddr
// value; whether it is backed by memory depends on the platform memory map.
// A PhysAddr is never dereferenced directly.
type PhysAddr uint64

// Frame describes a 4 KiB physical memory page index.
type Frame uint64

const (
	// InvalidFrame is returned by page allocators when
	// they fail to reserve the requested frame.
	InvalidFrame = Frame(math.MaxUint64)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address where this frame starts.
func (f Frame) Address() PhysAddr {
	return PhysAddr(f << PageShift)
}

// Add returns the frame n frames after f. No bounds checking is performed;
// callers validate frame ranges against the memory map.
func (f Frame) Add(n uint64) Frame {
	return f + Frame(n)
}

// Sub returns the frame n frames before f. Like Add, Sub does not check for
// underflow.
func (f Frame) Sub(n uint64) Frame {
	return f - Frame(n)
}

// FrameFromAddress returns the Frame that contains the given physical address.
// Addresses that are not page-aligned are rounded down.
func FrameFromAddress(physAddr PhysAddr) Frame {
	return Frame(physAddr >> PageShift)
}

// PageSizeClass selects one of the page sizes supported by the MMU.
type PageSizeClass uint8

const (
	// Size4K is the default page size.
	Size4K PageSizeClass = iota

	// Size2M is a large page mapped by a page directory entry.
	Size2M

	// Size1G is a huge page mapped by a page directory pointer entry.
	Size1G
)

// Shift returns log2 of the page size.
func (c PageSizeClass) Shift() uint {
	switch c {
	case Size2M:
		return LargePageShift
	case Size1G:
		return HugePageShift
	default:
		return PageShift
	}
}

// Size returns the page size in bytes.
func (c PageSizeClass) Size() Size {
	return Size(1) << c.Shift()
}

// FrameNumber returns the number of the page of this size class that
// contains physAddr.
func (c PageSizeClass) FrameNumber(physAddr PhysAddr) uint64 {
	return uint64(physAddr) >> c.Shift()
}

// BaseAddress returns the physical address where the page with the given
// number starts.
func (c PageSizeClass) BaseAddress(number uint64) PhysAddr {
	return PhysAddr(number << c.Shift())
}

// Page describes a virtual memory page index.
type Page uintptr

// Address returns a pointer to the virtual memory address pointed to by this Page.
func (p Page) Address() uintptr {
	return uintptr(p << PageShift)
}

// PageFromAddress returns a Page that corresponds to the given virtual
// address. This function can handle both page-aligned and not aligned virtual
// addresses. in the latter case, the input address will be rounded down to the
// page that contains it.
func PageFromAddress(virtAddr uintptr) Page {
	return Page((virtAddr & ^(uintptr(PageSize - 1))) >> PageShift)
}
