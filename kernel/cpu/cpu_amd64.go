// Package cpu exposes the privileged x86_64 instructions used by the kernel.
// Each exported function wraps exactly one hardware primitive and is
// implemented in assembly; packages that call them keep a function variable
// pointing at the primitive so tests can swap in a substitute.
package cpu

const (
	// MsrEFER is the extended feature enable register.
	MsrEFER = uint32(0xC0000080)

	// EFERLongModeEnable (EFER.LME) requests IA-32e mode on the next
	// paging activation.
	EFERLongModeEnable = uint64(1 << 8)

	// CR0WriteProtect prevents ring 0 code from writing to read-only pages.
	CR0WriteProtect = uint64(1 << 16)

	// CR0Paging enables address translation.
	CR0Paging = uint64(1 << 31)

	// CR4PhysicalAddressExtension enables 64-bit page table entries.
	CR4PhysicalAddressExtension = uint64(1 << 5)

	// extFeatureLongMode is bit 29 (LM) of EDX for CPUID leaf 0x80000001.
	extFeatureLongMode = uint32(1 << 29)

	cpuidMaxExtLeaf  = uint32(0x80000000)
	cpuidExtFeatures = uint32(0x80000001)
)

var (
	cpuidFn = ID
)

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// Halt disables interrupts and stops instruction execution. Halt never
// returns.
func Halt()

// WaitForInterrupt enables interrupts and suspends the CPU until the next
// interrupt has been serviced.
func WaitForInterrupt()

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)

// SwitchPDT sets the root page table directory to point to the specified
// physical address and flushes the TLB.
func SwitchPDT(pdtPhysAddr uintptr)

// ActivePDT returns the physical address of the currently active page table.
func ActivePDT() uintptr

// ReadCR0 returns the value stored in the CR0 register.
func ReadCR0() uint64

// WriteCR0 stores val in the CR0 register.
func WriteCR0(val uint64)

// ReadCR2 returns the value stored in the CR2 register.
func ReadCR2() uint64

// ReadCR4 returns the value stored in the CR4 register.
func ReadCR4() uint64

// WriteCR4 stores val in the CR4 register.
func WriteCR4(val uint64)

// ReadMSR returns the contents of a model-specific register.
func ReadMSR(msr uint32) uint64

// WriteMSR stores val in a model-specific register.
func WriteMSR(msr uint32, val uint64)

// LoadGDT executes LGDT using the 10-byte descriptor-table pointer located
// at ptrAddr.
func LoadGDT(ptrAddr uintptr)

// LoadIDT executes LIDT using the 10-byte descriptor-table pointer located
// at ptrAddr.
func LoadIDT(ptrAddr uintptr)

// ReloadSegments loads the data selector into SS, DS, ES, FS and GS and
// reloads CS with the code selector via a far return.
func ReloadSegments(code, data uint16)

// PortWriteByte writes a uint8 value to the requested port.
func PortWriteByte(port uint16, val uint8)

// PortReadByte reads a uint8 value from the requested port.
func PortReadByte(port uint16) uint8

// ID returns information about the CPU and its features. It
// is implemented as a CPUID instruction with EAX=leaf and
// returns the values in EAX, EBX, ECX and EDX.
func ID(leaf uint32) (eax, ebx, ecx, edx uint32)

// IsIntel returns true if the code is running on an Intel processor.
func IsIntel() bool {
	_, ebx, ecx, edx := cpuidFn(0)
	return ebx == 0x756e6547 && // "Genu"
		edx == 0x49656e69 && // "ineI"
		ecx == 0x6c65746e // "ntel"
}

// HasLongMode returns true if the CPU supports IA-32e (long) mode.
func HasLongMode() bool {
	if maxLeaf, _, _, _ := cpuidFn(cpuidMaxExtLeaf); maxLeaf < cpuidExtFeatures {
		return false
	}

	_, _, _, edx := cpuidFn(cpuidExtFeatures)
	return edx&extFeatureLongMode != 0
}
