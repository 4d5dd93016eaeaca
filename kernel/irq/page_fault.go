package irq

import (
	"io"
	"kestrel/kernel/kfmt"
)

// PageFaultCode is the error code pushed by the CPU for a page fault.
type PageFaultCode uint64

// Page fault error code bits.
const (
	// PFPresent is set when the fault was caused by a protection
	// violation and clear when the page was not present.
	PFPresent PageFaultCode = 1 << iota

	// PFWrite is set when the faulting access was a write.
	PFWrite

	// PFUser is set when the access originated in user mode.
	PFUser

	// PFReservedWrite is set when a reserved bit was set in a paging
	// structure entry.
	PFReservedWrite

	// PFInstructionFetch is set when the fault was caused by an
	// instruction fetch.
	PFInstructionFetch

	// PFProtectionKey is set when the access violated a protection key.
	PFProtectionKey

	// PFShadowStack is set when the access was a shadow stack access.
	PFShadowStack
)

var pageFaultFlagNames = [...]string{
	"present",
	"write",
	"user",
	"reserved",
	"fetch",
	"pkey",
	"shadow-stack",
}

// DecodePageFault converts a raw page fault error code into a PageFaultCode.
// Bits that have no meaning for page faults are discarded.
func DecodePageFault(code uint64) PageFaultCode {
	return PageFaultCode(code) & (PFPresent | PFWrite | PFUser | PFReservedWrite | PFInstructionFetch | PFProtectionKey | PFShadowStack)
}

// Has returns true if all bits in flags are set.
func (c PageFaultCode) Has(flags PageFaultCode) bool {
	return c&flags == flags
}

// pageFaultReasons is indexed by [user][present][access] where access is 0
// for reads, 1 for writes and 2 for instruction fetches.
var pageFaultReasons = [2][2][3]string{
	{
		{"read from non-present page", "write to non-present page", "instruction fetch from non-present page"},
		{"page protection violation (read)", "page protection violation (write)", "page protection violation (instruction fetch)"},
	},
	{
		{"user-mode read from non-present page", "user-mode write to non-present page", "user-mode instruction fetch from non-present page"},
		{"user-mode page protection violation (read)", "user-mode page protection violation (write)", "user-mode page protection violation (instruction fetch)"},
	},
}

// Reason returns a short description of the fault built from the privilege
// bit, the present bit and the access type. A reserved bit in a paging
// structure takes precedence over the other bits. The returned strings are
// static so Reason never allocates.
func (c PageFaultCode) Reason() string {
	if c.Has(PFReservedWrite) {
		return "page table has reserved bit set"
	}

	var user, present, access int
	if c.Has(PFUser) {
		user = 1
	}
	if c.Has(PFPresent) {
		present = 1
	}
	switch {
	case c.Has(PFInstructionFetch):
		access = 2
	case c.Has(PFWrite):
		access = 1
	}

	return pageFaultReasons[user][present][access]
}

// DumpTo writes the names of the set bits to w, separated by spaces.
func (c PageFaultCode) DumpTo(w io.Writer) {
	if c == 0 {
		kfmt.Fprintf(w, "none")
		return
	}

	sep := ""
	for bit, name := range pageFaultFlagNames {
		if c&(1<<uint(bit)) != 0 {
			kfmt.Fprintf(w, "%s%s", sep, name)
			sep = " "
		}
	}
}
