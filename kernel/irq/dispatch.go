// Package irq routes CPU exceptions and interrupts delivered through the IDT
// to their handlers and renders the diagnostics for unrecoverable faults.
package irq

import (
	"io"
	"kestrel/kernel"
	"kestrel/kernel/gate"
	"kestrel/kernel/goruntime"
	"kestrel/kernel/kfmt"
	"kestrel/kernel/mm"
	"unsafe"

	"golang.org/x/arch/x86/x86asm"
)

// maxInstructionLen is the longest valid x86 instruction encoding.
const maxInstructionLen = 15

// PageFaultHandler is offered every page fault before it is treated as
// fatal. It returns true if the fault was resolved and the faulting
// instruction can be restarted.
type PageFaultHandler func(faultAddr uintptr, code PageFaultCode, ctx *Context) bool

// InterruptHandler services an interrupt vector outside the exception range.
type InterruptHandler func(ctx *Context)

var (
	pageFaultHandler PageFaultHandler
	fatalHook        func()
	handlers         [gate.Entries]InterruptHandler

	// disasmEnabled controls whether fatal diagnostics decode the
	// instruction at RIP.
	disasmEnabled = true

	// readCodeFn returns the bytes at addr. It is used by tests to supply
	// instruction bytes without dereferencing arbitrary addresses.
	readCodeFn = func(addr uintptr, n int) []byte {
		return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
	}

	// Formatting a decoded instruction allocates, so it is only attempted
	// once the Go heap is up.
	heapReadyFn = goruntime.Ready

	errUnhandledException     = &kernel.Error{Module: "irq", Message: "unhandled CPU exception"}
	errUnrecoverablePageFault = &kernel.Error{Module: "irq", Message: "unrecoverable page fault"}
	errUnhandledInterrupt     = &kernel.Error{Module: "irq", Message: "no handler registered for interrupt"}
	errExceptionVector        = &kernel.Error{Module: "irq", Message: "vector is reserved for CPU exceptions"}
)

// SetPageFaultHandler registers the handler that gets a chance to resolve
// page faults. Passing nil removes the handler.
func SetPageFaultHandler(h PageFaultHandler) {
	pageFaultHandler = h
}

// HandleInterrupt registers h as the handler for vector. Vectors below 32
// are reserved for CPU exceptions and cannot be claimed.
func HandleInterrupt(vector gate.InterruptNumber, h InterruptHandler) *kernel.Error {
	if vector < gate.FirstExternal {
		return errExceptionVector
	}

	handlers[vector] = h
	return nil
}

// SetDisassembly enables or disables instruction decoding in fatal
// diagnostics.
func SetDisassembly(enabled bool) {
	disasmEnabled = enabled
}

// DisassemblyEnabled reports whether fatal diagnostics decode the faulting
// instruction.
func DisassemblyEnabled() bool {
	return disasmEnabled
}

// Dispatch is invoked by the low-level entry stubs for every interrupt and
// exception. It returns only if the event was handled; unrecoverable events
// print a diagnostic and halt the CPU.
func Dispatch(ctx *Context) {
	ctx.Control = captureControlRegs()
	vector := gate.InterruptNumber(ctx.Vector)

	switch {
	case vector == gate.PageFaultException:
		handlePageFault(ctx)
	case vector < gate.FirstExternal:
		fatal(ctx, errUnhandledException)
	case handlers[vector] != nil:
		handlers[vector](ctx)
	default:
		fatal(ctx, errUnhandledInterrupt)
	}
}

func handlePageFault(ctx *Context) {
	var (
		faultAddr = uintptr(ctx.Control.CR2)
		code      = DecodePageFault(ctx.ErrorCode)
	)

	if pageFaultHandler != nil && pageFaultHandler(faultAddr, code, ctx) {
		return
	}

	fatal(ctx, errUnrecoverablePageFault)
}

// SetFatalHook registers a function that prepares the output device before
// the diagnostic of an unrecoverable exception is printed. Passing nil
// removes the hook.
func SetFatalHook(fn func()) {
	fatalHook = fn
}

// fatal renders the exception diagnostic and halts.
func fatal(ctx *Context, err *kernel.Error) {
	if fatalHook != nil {
		fatalHook()
	}
	renderDiagnostic(kfmt.GetOutputSink(), ctx)
	panic(err)
}

func renderDiagnostic(w io.Writer, ctx *Context) {
	var (
		vector = gate.InterruptNumber(ctx.Vector)
		ex     = Describe(vector)
	)

	kfmt.Fprintf(w, "\nCPU EXCEPTION %s: %s\n", ex.Mnemonic, ex.Name)
	kfmt.Fprintf(w, "%s on vector %d with error code 0x%x\n", ex.Class.String(), uint8(vector), ctx.ErrorCode)
	kfmt.Fprintf(w, "Source: %s\n", ex.Source)

	if vector == gate.PageFaultException {
		code := DecodePageFault(ctx.ErrorCode)
		kfmt.Fprintf(w, "\nPage fault while accessing address: 0x%16x\nReason: %s\nFlags: ", ctx.Control.CR2, code.Reason())
		code.DumpTo(w)
		kfmt.Fprintf(w, "\n")
	}

	kfmt.Fprintf(w, "\nRegisters:\n")
	ctx.Regs.DumpTo(w)
	kfmt.Fprintf(w, "\n")
	ctx.Frame.DumpTo(w)
	kfmt.Fprintf(w, "\nControl registers:\n")
	ctx.Control.DumpTo(w)

	if disasmEnabled {
		kfmt.Fprintf(w, "\nFaulting instruction:\n")
		dumpInstruction(w, ctx.Frame.RIP)
	}
}

// dumpInstruction decodes the instruction at rip and writes it to w in
// Intel syntax.
func dumpInstruction(w io.Writer, rip uint64) {
	if rip == 0 {
		kfmt.Fprintf(w, "0x%16x: <null instruction pointer>\n", rip)
		return
	}

	if !heapReadyFn() {
		kfmt.Fprintf(w, "0x%16x: <disassembly unavailable before heap init>\n", rip)
		return
	}

	// Stop at the end of the page; the next one may not be mapped.
	n := maxInstructionLen
	if rem := int(uint64(mm.PageSize) - rip&uint64(mm.PageSize-1)); rem < n {
		n = rem
	}

	// A truncated encoding decodes to Op 0 without an error.
	inst, err := x86asm.Decode(readCodeFn(uintptr(rip), n), 64)
	if err != nil || inst.Op == 0 {
		kfmt.Fprintf(w, "0x%16x: <unable to decode instruction>\n", rip)
		return
	}

	kfmt.Fprintf(w, "0x%16x: %s\n", rip, x86asm.IntelSyntax(inst, rip, nil))
}
