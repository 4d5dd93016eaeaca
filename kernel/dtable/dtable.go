// Package dtable describes the system descriptor tables (GDT and IDT) in a
// form that is independent of the entry layout and provides the pointer
// structure consumed by the LGDT and LIDT instructions.
package dtable

import "kestrel/kernel"

// PointerSize is the size in bytes of an encoded descriptor-table pointer.
const PointerSize = 10

var (
	errShortBuffer = &kernel.Error{Module: "dtable", Message: "buffer too small for descriptor-table pointer"}
	errEmptyTable  = &kernel.Error{Module: "dtable", Message: "descriptor table has no entries"}
	errTableLimit  = &kernel.Error{Module: "dtable", Message: "descriptor table exceeds 64 KiB"}
)

// Pointer is the operand of the LGDT and LIDT instructions. Limit is the size
// of the table in bytes minus one and Base is the linear address of its
// first entry.
type Pointer struct {
	Limit uint16
	Base  uint64
}

// PointerFor returns the Pointer for a table of count entries of entrySize
// bytes each, located at base. Empty tables and tables larger than 64 KiB
// cannot be described and cause a panic.
func PointerFor(base uintptr, entrySize uintptr, count int) Pointer {
	size := entrySize * uintptr(count)
	switch {
	case count <= 0 || size == 0:
		panic(errEmptyTable)
	case size > 1<<16:
		panic(errTableLimit)
	}

	return Pointer{
		Limit: uint16(size - 1),
		Base:  uint64(base),
	}
}

// EntryCount returns the number of entrySize-byte entries covered by the
// pointer limit.
func (p Pointer) EntryCount(entrySize uintptr) int {
	return int((uintptr(p.Limit) + 1) / entrySize)
}

// Encode writes the 10-byte little-endian wire form of the pointer (limit
// followed by base) to buf. It returns an error if buf is shorter than
// PointerSize bytes.
func (p Pointer) Encode(buf []byte) *kernel.Error {
	if len(buf) < PointerSize {
		return errShortBuffer
	}

	buf[0] = byte(p.Limit)
	buf[1] = byte(p.Limit >> 8)
	for i := 0; i < 8; i++ {
		buf[2+i] = byte(p.Base >> (8 * uint(i)))
	}

	return nil
}

// Bytes returns the encoded form of the pointer.
func (p Pointer) Bytes() [PointerSize]byte {
	var raw [PointerSize]byte
	_ = p.Encode(raw[:])
	return raw
}

// DecodePointer parses the 10-byte wire form of a descriptor-table pointer.
func DecodePointer(buf []byte) (Pointer, *kernel.Error) {
	if len(buf) < PointerSize {
		return Pointer{}, errShortBuffer
	}

	p := Pointer{Limit: uint16(buf[0]) | uint16(buf[1])<<8}
	for i := 0; i < 8; i++ {
		p.Base |= uint64(buf[2+i]) << (8 * uint(i))
	}

	return p, nil
}

// Table is implemented by descriptor tables that can be installed on the CPU.
type Table interface {
	// EntryCount returns the number of entries in the table.
	EntryCount() int

	// Pointer returns the descriptor-table pointer for the table.
	Pointer() Pointer

	// Load installs the table on the CPU.
	Load()
}
