package irq

import "kestrel/kernel/gate"

// Class describes how the CPU reports an exception.
type Class uint8

const (
	// Fault exceptions are reported before the faulting instruction
	// executes; returning restarts the instruction.
	Fault Class = iota

	// Trap exceptions are reported after the trapping instruction
	// completes.
	Trap

	// Abort exceptions do not reliably report the faulting instruction
	// and cannot be resumed.
	Abort

	// Interrupt describes NMI and all vectors above the exception range.
	Interrupt
)

// String implements fmt.Stringer for Class.
func (c Class) String() string {
	switch c {
	case Fault:
		return "Fault"
	case Trap:
		return "Trap"
	case Abort:
		return "Abort"
	default:
		return "Interrupt"
	}
}

// Exception describes a CPU exception vector.
type Exception struct {
	Mnemonic string
	Name     string
	Class    Class

	// Source lists the instructions or events that raise the exception.
	Source string

	// HasErrorCode is set for exceptions that push an error code.
	HasErrorCode bool
}

var (
	reservedException = Exception{Mnemonic: "#RSV", Name: "Reserved", Class: Abort, Source: "Reserved vector; never raised by the CPU"}

	externalInterrupt = Exception{Mnemonic: "INTR", Name: "External interrupt", Class: Interrupt, Source: "External device or INT n instruction"}

	exceptions = [gate.FirstExternal]Exception{
		{"#DE", "Divide Error", Fault, "DIV and IDIV instructions", false},
		{"#DB", "Debug", Trap, "Instruction, data and I/O breakpoints; single-step", false},
		{"NMI", "Non-maskable Interrupt", Interrupt, "Nonmaskable external interrupt", false},
		{"#BP", "Breakpoint", Trap, "INT3 instruction", false},
		{"#OF", "Overflow", Trap, "INTO instruction", false},
		{"#BR", "BOUND Range Exceeded", Fault, "BOUND instruction", false},
		{"#UD", "Invalid Opcode", Fault, "UD instruction or reserved opcode", false},
		{"#NM", "Device Not Available", Fault, "Floating-point or WAIT/FWAIT instruction", false},
		{"#DF", "Double Fault", Abort, "Any instruction that can generate an exception, an NMI, or an INTR", true},
		{"#CSO", "Coprocessor Segment Overrun", Fault, "Floating-point instruction", false},
		{"#TS", "Invalid TSS", Fault, "Task switch or TSS access", true},
		{"#NP", "Segment Not Present", Fault, "Loading segment registers or accessing system segments", true},
		{"#SS", "Stack-Segment Fault", Fault, "Stack operations and SS register loads", true},
		{"#GP", "General Protection", Fault, "Any memory reference and other protection checks", true},
		{"#PF", "Page Fault", Fault, "Any memory reference", true},
		reservedException,
		{"#MF", "x87 FPU Floating-Point Error", Fault, "x87 FPU floating-point or WAIT/FWAIT instruction", false},
		{"#AC", "Alignment Check", Fault, "Any data reference in memory", true},
		{"#MC", "Machine Check", Abort, "Model dependent", false},
		{"#XM", "SIMD Floating-Point Exception", Fault, "SSE/SSE2/SSE3 floating-point instructions", false},
		{"#VE", "Virtualization Exception", Fault, "EPT violations", false},
		{"#CP", "Control Protection Exception", Fault, "RET, IRET, RSTORSSP and SETSSBSY instructions", true},
		reservedException,
		reservedException,
		reservedException,
		reservedException,
		reservedException,
		reservedException,
		{"#HV", "Hypervisor Injection Exception", Fault, "Injected by a hypervisor", false},
		{"#VC", "VMM Communication Exception", Fault, "Intercepted instruction in an encrypted guest", true},
		{"#SX", "Security Exception", Fault, "Security-sensitive events", true},
		reservedException,
	}
)

// Describe returns the descriptor for vector. Vectors 0-31 map to the
// exceptions defined by the CPU; all other vectors are described as
// external interrupts.
func Describe(vector gate.InterruptNumber) Exception {
	if vector < gate.FirstExternal {
		return exceptions[vector]
	}
	return externalInterrupt
}
