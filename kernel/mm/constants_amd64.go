package mm

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = 3

	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)

	// LargePageShift is equal to log2(LargePageSize).
	LargePageShift = 21

	// LargePageSize is the size of a page mapped by a page directory
	// entry with the huge flag set.
	LargePageSize = Size(1 << LargePageShift)

	// HugePageShift is equal to log2(HugePageSize).
	HugePageShift = 30

	// HugePageSize is the size of a page mapped by a page directory
	// pointer table entry with the huge flag set.
	HugePageSize = Size(1 << HugePageShift)
)
