package mm

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// AlignUp rounds s up to the nearest multiple of align, which must be a
// power of 2.
func (s Size) AlignUp(align Size) Size {
	return (s + align - 1) &^ (align - 1)
}

// Pages returns the number of PageSize pages needed to hold s bytes.
func (s Size) Pages() uint64 {
	return uint64(s.AlignUp(PageSize) >> PageShift)
}
