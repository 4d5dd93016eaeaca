package vmm

import (
	"kestrel/kernel"
	"kestrel/kernel/mm"
)

var (
	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}
)

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uint64

// PageTableEntry describes a page table entry. These entries encode
// a physical frame address and a set of flags.
type PageTableEntry uint64

// HasFlags returns true if this entry has all the input flags set.
func (pte PageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) == uint64(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte PageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) != 0
}

// SetFlags sets the input list of flags to the page table entry.
func (pte *PageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = PageTableEntry(uint64(*pte) | uint64(flags))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *PageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = PageTableEntry(uint64(*pte) &^ uint64(flags))
}

// Frame returns the physical page frame that this page table entry points to.
func (pte PageTableEntry) Frame() mm.Frame {
	return mm.Frame((uint64(pte) & ptePhysPageMask) >> mm.PageShift)
}

// Address returns the physical address encoded in the entry.
func (pte PageTableEntry) Address() mm.PhysAddr {
	return mm.PhysAddr(uint64(pte) & ptePhysPageMask)
}

// SetFrame updates the page table entry to point to the given physical frame.
func (pte *PageTableEntry) SetFrame(frame mm.Frame) {
	*pte = PageTableEntry((uint64(*pte) &^ ptePhysPageMask) | uint64(frame.Address()))
}

// SetAddress updates the page table entry to point to a physical address.
// The low 12 bits of addr must be clear; any bits outside the address mask
// are discarded.
func (pte *PageTableEntry) SetAddress(addr mm.PhysAddr) {
	*pte = PageTableEntry((uint64(*pte) &^ ptePhysPageMask) | (uint64(addr) & ptePhysPageMask))
}

// Table is a single page-aligned page table. The same layout is used at
// every level of the hierarchy.
type Table [tableEntries]PageTableEntry

// Clear marks every entry in the table as absent.
func (t *Table) Clear() {
	for i := range t {
		t[i] = 0
	}
}

// pteForAddress returns the final page table entry that corresponds to a
// particular virtual address. The function performs a page table walk till it
// reaches the final page table entry returning ErrInvalidMapping if the page
// is not present.
func pteForAddress(virtAddr uintptr) (*PageTableEntry, *kernel.Error) {
	var (
		err   *kernel.Error
		entry *PageTableEntry
	)

	walk(virtAddr, func(pteLevel uint8, pte *PageTableEntry) bool {
		if !pte.HasFlags(FlagPresent) {
			entry = nil
			err = ErrInvalidMapping
			return false
		}

		entry = pte
		return true
	})

	return entry, err
}
