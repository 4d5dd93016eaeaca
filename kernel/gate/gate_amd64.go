// Package gate implements the interrupt descriptor table (IDT) and the
// 16-byte gate descriptors it contains.
package gate

import (
	"kestrel/kernel"
	"kestrel/kernel/gdt"
)

// Size is the size in bytes of an encoded gate.
const Size = 16

// GateType selects how the CPU enters the handler referenced by a gate.
type GateType uint8

const (
	// Task gates switch to another hardware task.
	Task = GateType(0x5)

	// Call gates implement far calls across privilege levels.
	Call = GateType(0xc)

	// Interrupt gates clear IF before invoking the handler.
	Interrupt = GateType(0xe)

	// Trap gates leave IF untouched.
	Trap = GateType(0xf)
)

// String implements fmt.Stringer for GateType.
func (t GateType) String() string {
	switch t {
	case Task:
		return "Task"
	case Call:
		return "Call"
	case Interrupt:
		return "Interrupt"
	case Trap:
		return "Trap"
	default:
		return "Unknown"
	}
}

// PrivilegeLevel is a protection ring number.
type PrivilegeLevel uint8

// The four protection rings.
const (
	Ring0 PrivilegeLevel = iota
	Ring1
	Ring2
	Ring3
)

// Bits of the gate type/attribute byte.
const (
	flagPresent = uint8(0x80)
	dplShift    = 5
	dplMask     = uint8(0x60)
	typeMask    = uint8(0x0f)
)

var (
	errShortBuffer = &kernel.Error{Module: "gate", Message: "buffer too small for gate descriptor"}
)

// Gate is an IDT entry. The field order and widths match the hardware
// layout so a [256]Gate array can be handed to LIDT as-is; Encode and
// DecodeGate provide the same layout explicitly.
type Gate struct {
	OffsetLow  uint16
	Selector   uint16
	IST        uint8
	Attr       uint8
	OffsetMid  uint16
	OffsetHigh uint32
	Reserved   uint32
}

// NewGate returns a present gate of type typ that transfers control to
// handler using the code segment selector and privilege level dpl.
func NewGate(handler uintptr, selector uint16, typ GateType, dpl PrivilegeLevel) Gate {
	g := Gate{
		Selector: selector,
		Attr:     flagPresent | uint8(typ)&typeMask,
	}
	g.SetHandler(handler)
	g.SetPrivilege(dpl)
	return g
}

// InterruptGate returns a ring 0 interrupt gate pointing at handler in the
// kernel code segment.
func InterruptGate(handler uintptr) Gate {
	return NewGate(handler, gdt.CodeSelector, Interrupt, Ring0)
}

// Handler returns the address of the handler referenced by the gate.
func (g *Gate) Handler() uintptr {
	return uintptr(g.OffsetLow) | uintptr(g.OffsetMid)<<16 | uintptr(g.OffsetHigh)<<32
}

// SetHandler updates the handler address.
func (g *Gate) SetHandler(handler uintptr) {
	g.OffsetLow = uint16(handler)
	g.OffsetMid = uint16(handler >> 16)
	g.OffsetHigh = uint32(handler >> 32)
}

// Type returns the gate type.
func (g *Gate) Type() GateType {
	return GateType(g.Attr & typeMask)
}

// Present returns true if the gate is marked as present. Delivering an
// interrupt through an absent gate raises a general protection fault.
func (g *Gate) Present() bool {
	return g.Attr&flagPresent != 0
}

// SetPresent sets or clears the present bit.
func (g *Gate) SetPresent(present bool) {
	if present {
		g.Attr |= flagPresent
		return
	}
	g.Attr &^= flagPresent
}

// Privilege returns the descriptor privilege level of the gate.
func (g *Gate) Privilege() PrivilegeLevel {
	return PrivilegeLevel((g.Attr & dplMask) >> dplShift)
}

// SetPrivilege replaces the descriptor privilege level of the gate. All
// other attribute bits are preserved.
func (g *Gate) SetPrivilege(dpl PrivilegeLevel) {
	g.Attr = (g.Attr &^ dplMask) | ((uint8(dpl) << dplShift) & dplMask)
}

// Encode writes the 16-byte little-endian hardware form of the gate to buf.
func (g *Gate) Encode(buf []byte) *kernel.Error {
	if len(buf) < Size {
		return errShortBuffer
	}

	putUint16(buf[0:], g.OffsetLow)
	putUint16(buf[2:], g.Selector)
	buf[4] = g.IST
	buf[5] = g.Attr
	putUint16(buf[6:], g.OffsetMid)
	putUint32(buf[8:], g.OffsetHigh)
	putUint32(buf[12:], g.Reserved)
	return nil
}

// DecodeGate parses the 16-byte hardware form of a gate.
func DecodeGate(buf []byte) (Gate, *kernel.Error) {
	if len(buf) < Size {
		return Gate{}, errShortBuffer
	}

	return Gate{
		OffsetLow:  uint16(buf[0]) | uint16(buf[1])<<8,
		Selector:   uint16(buf[2]) | uint16(buf[3])<<8,
		IST:        buf[4],
		Attr:       buf[5],
		OffsetMid:  uint16(buf[6]) | uint16(buf[7])<<8,
		OffsetHigh: getUint32(buf[8:]),
		Reserved:   getUint32(buf[12:]),
	}, nil
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
