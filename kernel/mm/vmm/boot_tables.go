package vmm

import (
	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/mm"
	"unsafe"
)

// BuildState tracks the progress of a BootTables builder. States only ever
// advance.
type BuildState uint8

// The BootTables build states in the order they are reached.
const (
	Unbuilt BuildState = iota
	TablesLinked
	Mapped
	Active
)

// String implements fmt.Stringer for BuildState.
func (s BuildState) String() string {
	switch s {
	case Unbuilt:
		return "unbuilt"
	case TablesLinked:
		return "tables linked"
	case Mapped:
		return "mapped"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

var (
	// tablePtrFn converts a physical table address into a Table pointer.
	// Before paging is enabled physical and virtual addresses coincide.
	// Tests override it to point at tables they own.
	tablePtrFn = func(addr mm.PhysAddr) *Table {
		return (*Table)(unsafe.Pointer(uintptr(addr)))
	}

	switchPDTFn = cpu.SwitchPDT
	readCR0Fn   = cpu.ReadCR0
	writeCR0Fn  = cpu.WriteCR0
	readCR4Fn   = cpu.ReadCR4
	writeCR4Fn  = cpu.WriteCR4
	readMSRFn   = cpu.ReadMSR
	writeMSRFn  = cpu.WriteMSR

	errOutOfOrder   = &kernel.Error{Module: "vmm", Message: "boot page table step invoked out of order"}
	errNotActive    = &kernel.Error{Module: "vmm", Message: "active page tables differ from the boot tables"}
	errBadLiveTable = &kernel.Error{Module: "vmm", Message: "active boot page tables are not linked as expected"}
	errNoBootTables = &kernel.Error{Module: "vmm", Message: "boot page table address is zero"}
	errUnaligned    = &kernel.Error{Module: "vmm", Message: "boot page table address is not page-aligned"}
)

// BootTables builds the initial page table hierarchy from the statically
// reserved P4, P3 and P2 tables and switches the CPU into long mode. The
// resulting hierarchy identity-maps the first 1 GiB of physical memory using
// 2 MiB pages and maps the P4 onto its own last slot so the tables remain
// reachable through the recursive mapping once paging is active.
//
// Each step must be invoked exactly once and in order: Link, IdentityMap,
// EnterLongMode. Violating the order is a programming error that halts the
// kernel.
type BootTables struct {
	p4, p3, p2 mm.PhysAddr
	state      BuildState
}

// NewBootTables returns a builder for the page tables reserved in layout.
func NewBootTables(layout mm.Layout) *BootTables {
	bt := &BootTables{
		p4: layout.Tables[0],
		p3: layout.Tables[1],
		p2: layout.Tables[2],
	}

	for _, addr := range [...]mm.PhysAddr{bt.p4, bt.p3, bt.p2} {
		if addr == 0 {
			panic(errNoBootTables)
		}
		if uint64(addr)&uint64(mm.PageSize-1) != 0 {
			panic(errUnaligned)
		}
	}

	return bt
}

// State returns the current build state.
func (bt *BootTables) State() BuildState {
	return bt.state
}

// P4 returns the physical address of the top-level table.
func (bt *BootTables) P4() mm.PhysAddr {
	return bt.p4
}

func (bt *BootTables) advance(from, to BuildState) {
	if bt.state != from {
		panic(errOutOfOrder)
	}
	bt.state = to
}

// Link clears the boot tables and chains them together: P4[0] points to P3,
// P3[0] points to P2 and the last P4 slot points to the P4 itself.
func (bt *BootTables) Link() {
	bt.advance(Unbuilt, TablesLinked)

	p4, p3, p2 := tablePtrFn(bt.p4), tablePtrFn(bt.p3), tablePtrFn(bt.p2)
	p4.Clear()
	p3.Clear()
	p2.Clear()

	p4[recursiveSlot].SetAddress(bt.p4)
	p4[recursiveSlot].SetFlags(FlagPresent | FlagRW)

	p4[0].SetAddress(bt.p3)
	p4[0].SetFlags(FlagPresent | FlagRW)

	p3[0].SetAddress(bt.p2)
	p3[0].SetFlags(FlagPresent | FlagRW)
}

// IdentityMap fills every P2 entry with a 2 MiB page so that virtual address
// i*2MiB translates to physical address i*2MiB for the first 1 GiB.
func (bt *BootTables) IdentityMap() {
	bt.advance(TablesLinked, Mapped)

	p2 := tablePtrFn(bt.p2)
	for i := range p2 {
		p2[i] = 0
		p2[i].SetAddress(mm.Size2M.BaseAddress(uint64(i)))
		p2[i].SetFlags(FlagPresent | FlagRW | FlagHugePage)
	}
}

// Build runs Link and IdentityMap.
func (bt *BootTables) Build() {
	bt.Link()
	bt.IdentityMap()
}

// EnterLongMode activates the tables and turns on long mode. The control
// registers are updated in the only order the CPU accepts: CR3 is loaded
// with the P4 address, CR4.PAE is set, EFER.LME is set and finally CR0.PG
// (together with CR0.WP) enables paging. Interrupts must be disabled by the
// caller.
func (bt *BootTables) EnterLongMode() {
	bt.advance(Mapped, Active)

	switchPDTFn(uintptr(bt.p4))
	writeCR4Fn(readCR4Fn() | cpu.CR4PhysicalAddressExtension)
	writeMSRFn(cpu.MsrEFER, readMSRFn(cpu.MsrEFER)|cpu.EFERLongModeEnable)
	writeCR0Fn(readCR0Fn() | cpu.CR0Paging | cpu.CR0WriteProtect)
}

// Adopt takes over boot tables that were already built and activated before
// Go code started running. It checks that activePDT (the CR3 value) refers
// to the P4, that the tables are linked and that the first 1 GiB is
// identity-mapped, then moves the builder straight to Active. The tables
// are never written: clearing a live hierarchy would drop the mappings the
// CPU is executing from.
func (bt *BootTables) Adopt(activePDT uintptr) *kernel.Error {
	if bt.state != Unbuilt {
		panic(errOutOfOrder)
	}

	if mm.PhysAddr(activePDT&^uintptr(mm.PageSize-1)) != bt.p4 {
		return errNotActive
	}

	p4, p3, p2 := tablePtrFn(bt.p4), tablePtrFn(bt.p3), tablePtrFn(bt.p2)
	linked := FlagPresent | FlagRW
	if !p4[recursiveSlot].HasFlags(linked) || p4[recursiveSlot].Address() != bt.p4 ||
		!p4[0].HasFlags(linked) || p4[0].Address() != bt.p3 ||
		!p3[0].HasFlags(linked) || p3[0].Address() != bt.p2 {
		return errBadLiveTable
	}

	for i := range p2 {
		if !p2[i].HasFlags(linked|FlagHugePage) || p2[i].Address() != mm.Size2M.BaseAddress(uint64(i)) {
			return errBadLiveTable
		}
	}

	bt.state = Active
	return nil
}
