package gate

import (
	"kestrel/kernel/cpu"
	"kestrel/kernel/dtable"
	"unsafe"
)

// Entries is the number of gates in the IDT.
const Entries = 256

// InterruptNumber describes an x86 interrupt/exception/trap slot. Every
// value of the type is a valid IDT index.
type InterruptNumber uint8

const (
	// DivideByZero occurs when dividing any number by 0 using the DIV or
	// IDIV instruction.
	DivideByZero = InterruptNumber(0)

	// Debug is raised by hardware breakpoints and single-stepping.
	Debug = InterruptNumber(1)

	// NMI (non-maskable-interrupt) is a hardware interrupt that indicates
	// issues with RAM or unrecoverable hardware problems.
	NMI = InterruptNumber(2)

	// Breakpoint is raised by the INT3 instruction.
	Breakpoint = InterruptNumber(3)

	// Overflow is raised by INTO when the overflow flag is set.
	Overflow = InterruptNumber(4)

	// InvalidOpcode occurs when the CPU attempts to execute an invalid or
	// undefined instruction opcode.
	InvalidOpcode = InterruptNumber(6)

	// DoubleFault occurs when an exception occurs while the CPU is trying
	// to invoke the handler for a previous exception.
	DoubleFault = InterruptNumber(8)

	// GPFException occurs when a general protection fault occurs.
	GPFException = InterruptNumber(13)

	// PageFaultException occurs when a page table entry is not present
	// or when a privilege and/or RW protection check fails.
	PageFaultException = InterruptNumber(14)

	// FirstExternal is the first vector available to hardware and
	// software interrupts. Lower vectors are reserved for CPU exceptions.
	FirstExternal = InterruptNumber(32)
)

var (
	loadIDTFn           = cpu.LoadIDT
	enableInterruptsFn  = cpu.EnableInterrupts
	disableInterruptsFn = cpu.DisableInterrupts
)

// IDT is an interrupt descriptor table. The zero value contains 256 absent
// gates and is ready to use. Once loaded, the table must stay at the same
// address for as long as it remains active, so IDT values used with Load
// are declared as package-level variables.
type IDT struct {
	gates [Entries]Gate
}

// New returns a table with every gate marked absent.
func New() *IDT {
	return &IDT{}
}

// AddHandler installs a ring 0 interrupt gate for vector that points to
// handler, replacing any previous gate.
func (idt *IDT) AddHandler(vector InterruptNumber, handler uintptr) {
	idt.gates[vector] = InterruptGate(handler)
}

// AddGate stores g at vector, replacing any previous gate.
func (idt *IDT) AddGate(vector InterruptNumber, g Gate) {
	idt.gates[vector] = g
}

// AddHandlers installs an interrupt gate for every non-zero entry of a
// handler table indexed by vector. It returns the number of gates
// installed.
func (idt *IDT) AddHandlers(handlers *[Entries]uintptr) int {
	var count int
	for vector, handler := range handlers {
		if handler == 0 {
			continue
		}
		idt.AddHandler(InterruptNumber(vector), handler)
		count++
	}
	return count
}

// Entry returns a copy of the gate stored at vector.
func (idt *IDT) Entry(vector InterruptNumber) Gate {
	return idt.gates[vector]
}

// EntryCount implements dtable.Table.
func (idt *IDT) EntryCount() int {
	return Entries
}

// Pointer implements dtable.Table. The limit is always 256*16-1 and the base
// is the address of the first gate.
func (idt *IDT) Pointer() dtable.Pointer {
	return dtable.PointerFor(uintptr(unsafe.Pointer(&idt.gates[0])), Size, Entries)
}

// Load installs the table using LIDT.
func (idt *IDT) Load() {
	raw := idt.Pointer().Bytes()
	loadIDTFn(uintptr(unsafe.Pointer(&raw[0])))
}

// EnableInterrupts sets the CPU interrupt flag.
func EnableInterrupts() {
	enableInterruptsFn()
}

// DisableInterrupts clears the CPU interrupt flag.
func DisableInterrupts() {
	disableInterruptsFn()
}
