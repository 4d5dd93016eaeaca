// Package kmain contains the architecture entry point that runs once the CPU
// is in long mode with the boot GDT loaded.
package kmain

import (
	"io"
	"kestrel/kernel"
	"kestrel/kernel/cpu"
	"kestrel/kernel/gate"
	"kestrel/kernel/goruntime"
	"kestrel/kernel/hal"
	"kestrel/kernel/irq"
	"kestrel/kernel/kfmt"
	"kestrel/kernel/mm"
	"kestrel/kernel/mm/pmm"
	"kestrel/kernel/mm/vmm"
	"kestrel/kernel/multiboot"
)

// bootFrameBudget is the part of the linker heap region handed to the boot
// frame allocator. The remainder is left for the heap allocator.
const bootFrameBudget = 4 * mm.Mb

var (
	// idt must not move while it is loaded.
	idt gate.IDT

	frameAllocator pmm.RegionAllocator

	// externalHeap is the part of the linker heap region that the boot
	// frame allocator never touches.
	externalHeap mm.Region

	quiet bool

	kmainLog io.Writer = &kfmt.PrefixWriter{Sink: kfmt.GetOutputSink(), Prefix: []byte("[kmain] ")}

	// The following functions are used by tests.
	initTerminalFn     = hal.InitTerminal
	goruntimeInitFn    = goruntime.Init
	bootCmdLineFn      = multiboot.GetBootCmdLine
	loadIDTFn          = (*gate.IDT).Load
	enableInterruptsFn = gate.EnableInterrupts
	idleFn             = idle

	errNoTrapStubs = &kernel.Error{Module: "kmain", Message: "no interrupt entry stubs provided"}
)

// Kmain installs the interrupt handling machinery and starts the kernel. It
// receives the address of the multiboot info block, the memory layout
// reserved by the linker and the table of low-level interrupt entry stubs
// exported by the assembly code (indexed by vector; zero entries are left
// absent). Every stub saves an irq.Context and calls irq.Dispatch.
//
// The Go heap is bootstrapped from the start of layout.Heap before any
// allocating code runs; the rest of the region is left for the heap
// allocator.
//
// Kmain is not expected to return.
//
//go:noinline
func Kmain(multibootInfoPtr uintptr, layout mm.Layout, trapStubs *[gate.Entries]uintptr) {
	if trapStubs == nil {
		panic(errNoTrapStubs)
	}

	initTerminalFn()

	multiboot.SetInfoPtr(multibootInfoPtr)

	var frames mm.Region
	frames, externalHeap = layout.Heap.Split(bootFrameBudget)
	frameAllocator.Init(frames)
	vmm.SetFrameAllocator(allocFrame)

	// Everything past this point may allocate.
	if err := goruntimeInitFn(allocFrame); err != nil {
		panic(err)
	}

	applyBootOptions(bootCmdLineFn())

	if name := multiboot.GetBootLoaderName(); name != "" {
		logf("booted by %s\n", name)
	}
	if hal.SerialPresent() {
		logf("mirroring console output to COM1\n")
	}

	if !quiet {
		frameAllocator.PrintStats(kmainLog)
	}
	if externalHeap.Length != 0 {
		logf("heap allocator region [0x%x - 0x%x]\n", uint64(externalHeap.Start), uint64(externalHeap.End()))
	}

	count := idt.AddHandlers(trapStubs)
	step("installed %d interrupt handlers", count)

	loadIDTFn(&idt)
	step("loading IDT")

	enableInterruptsFn()
	step("enabling interrupts")

	kfmt.Fprintf(kmainLog, "kernel ready\n")
	idleFn()
}

// applyBootOptions configures the kernel from the boot command line.
// Supported options:
//
//	disasm=off     do not decode the faulting instruction in diagnostics
//	bootlog=quiet  suppress kmain progress output
func applyBootOptions(opts map[string]string) {
	irq.SetDisassembly(opts["disasm"] != "off")
	quiet = opts["bootlog"] == "quiet"
}

func allocFrame() (mm.Frame, *kernel.Error) {
	return frameAllocator.AllocFrame()
}

func logf(format string, args ...interface{}) {
	if quiet {
		return
	}
	kfmt.Fprintf(kmainLog, format, args...)
}

// step reports a completed initialization step.
func step(format string, args ...interface{}) {
	if quiet {
		return
	}

	kfmt.Fprintf(kmainLog, format, args...)
	kfmt.Fprintf(kmainLog, " ... [ OKAY ]\n")
}

// idle waits for interrupts forever.
func idle() {
	for {
		cpu.WaitForInterrupt()
	}
}
