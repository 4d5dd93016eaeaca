// Package gdt builds the global descriptor table used in long mode. In
// 64-bit mode segmentation is mostly disabled so the kernel only needs a
// null descriptor, a code descriptor and a data descriptor.
package gdt

import (
	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/dtable"
	"unsafe"
)

// Descriptor is an 8-byte segment descriptor.
type Descriptor uint64

// Descriptor bits.
const (
	Accessed    = Descriptor(1 << 40)
	ReadWrite   = Descriptor(1 << 41)
	Conforming  = Descriptor(1 << 42)
	Executable  = Descriptor(1 << 43)
	UserSegment = Descriptor(1 << 44)
	Present     = Descriptor(1 << 47)
	LongMode    = Descriptor(1 << 53)
	Default32   = Descriptor(1 << 54)
	Granularity = Descriptor(1 << 55)

	privilegeShift = 45
	privilegeMask  = Descriptor(3 << privilegeShift)
)

// Well-known descriptors.
const (
	Null = Descriptor(0)

	// KernelCode is a present, ring 0, 64-bit code segment.
	KernelCode = ReadWrite | Executable | UserSegment | Present | LongMode

	// KernelData is a present, ring 0, writable data segment.
	KernelData = ReadWrite | UserSegment | Present
)

// Selectors for the descriptors in the boot table.
const (
	CodeSelector = uint16(0x08)
	DataSelector = uint16(0x10)
)

// maxEntries is the number of descriptors the boot table can hold.
const maxEntries = 8

var (
	loadGDTFn        = cpu.LoadGDT
	reloadSegmentsFn = cpu.ReloadSegments

	bootTable Table

	errTableFull = &kernel.Error{Module: "gdt", Message: "descriptor table is full"}
)

// NewDescriptor assembles a descriptor from its base address, 20-bit limit,
// access byte (bits 40-47) and flag nibble (bits 52-55). Long mode ignores
// base and limit for code and data segments but other descriptors still use
// them.
func NewDescriptor(base uint32, limit uint32, access uint8, flags uint8) Descriptor {
	return Descriptor(limit&0xffff) |
		Descriptor(base&0xffffff)<<16 |
		Descriptor(access)<<40 |
		Descriptor((limit>>16)&0xf)<<48 |
		Descriptor(flags&0xf)<<52 |
		Descriptor(base>>24)<<56
}

// Base returns the segment base address.
func (d Descriptor) Base() uint32 {
	return uint32((d>>16)&0xffffff) | uint32(d>>56)<<24
}

// Limit returns the 20-bit segment limit.
func (d Descriptor) Limit() uint32 {
	return uint32(d&0xffff) | uint32((d>>48)&0xf)<<16
}

// Access returns the access byte.
func (d Descriptor) Access() uint8 {
	return uint8(d >> 40)
}

// Flags returns the flag nibble.
func (d Descriptor) Flags() uint8 {
	return uint8(d>>52) & 0xf
}

// Privilege returns the descriptor privilege level (0-3).
func (d Descriptor) Privilege() uint8 {
	return uint8((d & privilegeMask) >> privilegeShift)
}

// WithPrivilege returns a copy of the descriptor with its privilege level
// set to dpl. Only the two DPL bits are modified.
func (d Descriptor) WithPrivilege(dpl uint8) Descriptor {
	return (d &^ privilegeMask) | (Descriptor(dpl&3) << privilegeShift)
}

// Table is a global descriptor table. Entry 0 is always the null descriptor.
type Table struct {
	entries [maxEntries]Descriptor
	count   int
}

// Add appends a descriptor to the table and returns its selector. An empty
// table gets its null entry before the first descriptor is added.
func (t *Table) Add(d Descriptor) (uint16, *kernel.Error) {
	if t.count == 0 {
		t.entries[0] = Null
		t.count = 1
	}

	if t.count == maxEntries {
		return 0, errTableFull
	}

	t.entries[t.count] = d
	t.count++
	return uint16((t.count - 1) * 8), nil
}

// Entry returns the descriptor referenced by selector. The requested
// privilege level bits of the selector are ignored. Selectors past the last
// added entry lie beyond the table limit and resolve to Null.
func (t *Table) Entry(selector uint16) Descriptor {
	index := int(selector >> 3)
	if index >= t.count {
		return Null
	}

	return t.entries[index]
}

// EntryCount implements dtable.Table.
func (t *Table) EntryCount() int {
	return t.count
}

// Pointer implements dtable.Table.
func (t *Table) Pointer() dtable.Pointer {
	return dtable.PointerFor(uintptr(unsafe.Pointer(&t.entries[0])), unsafe.Sizeof(t.entries[0]), t.count)
}

// Load installs the table with LGDT and reloads every segment register: CS
// with CodeSelector via a far return and SS, DS, ES, FS and GS with
// DataSelector.
func (t *Table) Load() {
	raw := t.Pointer().Bytes()
	loadGDTFn(uintptr(unsafe.Pointer(&raw[0])))
	reloadSegmentsFn(CodeSelector, DataSelector)
}

// Boot returns the kernel's flat three-entry table: null, KernelCode
// (selector 0x08) and KernelData (selector 0x10). The table lives in static
// storage so it remains valid after Load returns.
func Boot() *Table {
	if bootTable.count == 0 {
		_, _ = bootTable.Add(KernelCode)
		_, _ = bootTable.Add(KernelData)
	}

	return &bootTable
}
