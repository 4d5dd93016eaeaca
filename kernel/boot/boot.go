// Package boot implements the architecture bring-up sequence that takes the
// CPU from the state the bootloader leaves it in to the kernel entry point.
package boot

import (
	"io"
	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/gate"
	"kestrel/kernel/gdt"
	"kestrel/kernel/kfmt"
	"kestrel/kernel/kmain"
	"kestrel/kernel/mm"
	"kestrel/kernel/mm/vmm"
)

var (
	bootLog io.Writer = &kfmt.PrefixWriter{Sink: kfmt.GetOutputSink(), Prefix: []byte("[boot] ")}

	// The following functions are used by tests.
	disableInterruptsFn = cpu.DisableInterrupts
	hasLongModeFn       = cpu.HasLongMode
	readCR0Fn           = cpu.ReadCR0
	activePDTFn         = cpu.ActivePDT
	adoptTablesFn       = (*vmm.BootTables).Adopt
	linkTablesFn        = (*vmm.BootTables).Link
	identityMapFn       = (*vmm.BootTables).IdentityMap
	enterLongModeFn     = (*vmm.BootTables).EnterLongMode
	loadGDTFn           = (*gdt.Table).Load
	kmainFn             = kmain.Kmain

	errNoLongMode    = &kernel.Error{Module: "boot", Message: "CPU does not support long mode"}
	errNoSymbols     = &kernel.Error{Module: "boot", Message: "linker symbols not provided"}
	errKmainReturned = &kernel.Error{Module: "boot", Message: "Kmain returned"}
)

// Start runs the boot sequence: it disables interrupts, builds the boot page
// tables reserved by the linker, switches the CPU into long mode, installs
// the boot GDT and reloads the segment selectors. It then transfers control
// to kmain.Kmain, handing it the multiboot info pointer, the memory layout
// and the table of interrupt entry stubs.
//
// If paging is already on when Start runs, the boot tables are live and the
// CPU is executing through them. They are then verified and adopted instead
// of being rebuilt.
//
// Start never returns; every failure halts the kernel.
func Start(multibootInfoPtr uintptr, syms *mm.LinkerSymbols, trapStubs *[gate.Entries]uintptr) {
	disableInterruptsFn()

	if syms == nil {
		panic(errNoSymbols)
	}

	if !hasLongModeFn() {
		panic(errNoLongMode)
	}

	layout := mm.NewLayout(syms)
	tables := vmm.NewBootTables(layout)
	kfmt.Fprintf(bootLog, "page tables at P4=0x%x P3=0x%x P2=0x%x\n",
		uint64(layout.Tables[0]),
		uint64(layout.Tables[1]),
		uint64(layout.Tables[2]),
	)

	if readCR0Fn()&cpu.CR0Paging != 0 {
		if err := adoptTablesFn(tables, activePDTFn()); err != nil {
			panic(err)
		}
		step("adopting active page tables")
	} else {
		linkTablesFn(tables)
		step("linking page tables")

		identityMapFn(tables)
		step("identity mapping first 1G")

		enterLongModeFn(tables)
		step("entering long mode")
	}

	loadGDTFn(gdt.Boot())
	step("loading GDT")

	kmainFn(multibootInfoPtr, layout, trapStubs)
	panic(errKmainReturned)
}

func step(msg string) {
	kfmt.Fprintf(bootLog, "%s ... [ OKAY ]\n", msg)
}
