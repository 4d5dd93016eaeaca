package irq

import (
	"io"
	"kestrel/kernel/cpu"
	"kestrel/kernel/kfmt"
)

var (
	readCR0Fn   = cpu.ReadCR0
	readCR2Fn   = cpu.ReadCR2
	readCR4Fn   = cpu.ReadCR4
	activePDTFn = cpu.ActivePDT
)

// Regs contains a snapshot of the register values when an interrupt occurred.
type Regs struct {
	RAX uint64
	RBX uint64
	RCX uint64
	RDX uint64
	RSI uint64
	RDI uint64
	RBP uint64
	R8  uint64
	R9  uint64
	R10 uint64
	R11 uint64
	R12 uint64
	R13 uint64
	R14 uint64
	R15 uint64
}

// DumpTo outputs the register contents to w.
func (r *Regs) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RAX = %16x RBX = %16x\n", r.RAX, r.RBX)
	kfmt.Fprintf(w, "RCX = %16x RDX = %16x\n", r.RCX, r.RDX)
	kfmt.Fprintf(w, "RSI = %16x RDI = %16x\n", r.RSI, r.RDI)
	kfmt.Fprintf(w, "RBP = %16x\n", r.RBP)
	kfmt.Fprintf(w, "R8  = %16x R9  = %16x\n", r.R8, r.R9)
	kfmt.Fprintf(w, "R10 = %16x R11 = %16x\n", r.R10, r.R11)
	kfmt.Fprintf(w, "R12 = %16x R13 = %16x\n", r.R12, r.R13)
	kfmt.Fprintf(w, "R14 = %16x R15 = %16x\n", r.R14, r.R15)
}

// Frame describes an exception frame that is automatically pushed by the CPU
// to the stack when an exception occurs.
type Frame struct {
	RIP    uint64
	CS     uint64
	RFlags uint64
	RSP    uint64
	SS     uint64
}

// DumpTo outputs the exception frame to w.
func (f *Frame) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "RIP = %16x CS  = %16x\n", f.RIP, f.CS)
	kfmt.Fprintf(w, "RSP = %16x SS  = %16x\n", f.RSP, f.SS)
	kfmt.Fprintf(w, "RFL = %16x\n", f.RFlags)
}

// ControlRegs is a snapshot of the control registers.
type ControlRegs struct {
	CR0 uint64
	CR2 uint64
	CR3 uint64
	CR4 uint64
}

// captureControlRegs reads the current control register values.
func captureControlRegs() ControlRegs {
	return ControlRegs{
		CR0: readCR0Fn(),
		CR2: readCR2Fn(),
		CR3: uint64(activePDTFn()),
		CR4: readCR4Fn(),
	}
}

// DumpTo outputs the control register contents to w.
func (c *ControlRegs) DumpTo(w io.Writer) {
	kfmt.Fprintf(w, "CR0 = %16x CR2 = %16x\n", c.CR0, c.CR2)
	kfmt.Fprintf(w, "CR3 = %16x CR4 = %16x\n", c.CR3, c.CR4)
}

// Context is the interrupt context captured by the low-level entry stubs.
// The stubs push the general purpose registers, the vector number and the
// error code (zero for vectors without one) on top of the frame pushed by
// the CPU and pass a pointer to the result to Dispatch; the field order
// mirrors that stack layout.
type Context struct {
	Regs      Regs
	Vector    uint64
	ErrorCode uint64
	Frame     Frame

	// Control is filled in by Dispatch before any handler runs.
	Control ControlRegs
}
