// Package serial drives 16550-compatible UARTs through port I/O.
package serial

import "kestrel/kernel/cpu"

// COM1 is the I/O base of the first serial port.
const COM1 = uint16(0x3f8)

// Register offsets from the port base.
const (
	regData        = 0 // DLAB=0: data; DLAB=1: divisor low byte
	regIntEnable   = 1 // DLAB=0: interrupt enable; DLAB=1: divisor high byte
	regFifoCtrl    = 2
	regLineCtrl    = 3
	regModemCtrl   = 4
	regLineStatus  = 5
	regScratch     = 7
	lineCtrlDLAB   = 0x80
	lineCtrl8N1    = 0x03
	fifoEnable     = 0xc7 // enable, clear both FIFOs, 14-byte threshold
	modemCtrlReady = 0x0b // DTR, RTS, OUT2
	statusTxEmpty  = 0x20
	scratchProbe   = 0xae

	// baseClock is the UART input clock divided by 16.
	baseClock = 115200

	// maxTxSpins bounds the wait for the transmit holding register.
	maxTxSpins = 1 << 16
)

var (
	// The following functions are used by tests.
	portWriteByteFn = cpu.PortWriteByte
	portReadByteFn  = cpu.PortReadByte
)

// Port is a UART configured for 8N1 polled output. The zero value is an
// absent port that discards writes.
type Port struct {
	base    uint16
	present bool
}

// Init programs the UART at base for the requested baud rate. It returns
// false if no UART responds at base; writes to an absent port are dropped.
func (p *Port) Init(base uint16, baud uint32) bool {
	p.base = base
	p.present = false

	// A missing UART floats the bus so the scratch register does not
	// retain the probe value.
	portWriteByteFn(base+regScratch, scratchProbe)
	if portReadByteFn(base+regScratch) != scratchProbe {
		return false
	}

	divisor := uint16(1)
	if baud != 0 && baud <= baseClock {
		divisor = uint16(baseClock / baud)
	}

	portWriteByteFn(base+regIntEnable, 0)
	portWriteByteFn(base+regLineCtrl, lineCtrlDLAB)
	portWriteByteFn(base+regData, uint8(divisor))
	portWriteByteFn(base+regIntEnable, uint8(divisor>>8))
	portWriteByteFn(base+regLineCtrl, lineCtrl8N1)
	portWriteByteFn(base+regFifoCtrl, fifoEnable)
	portWriteByteFn(base+regModemCtrl, modemCtrlReady)

	p.present = true
	return true
}

// Present reports whether Init found a UART.
func (p *Port) Present() bool {
	return p.present
}

// Write implements io.Writer. LF is sent as CRLF.
func (p *Port) Write(data []byte) (int, error) {
	if !p.present {
		return len(data), nil
	}

	for _, b := range data {
		if b == '\n' {
			p.send('\r')
		}
		p.send(b)
	}

	return len(data), nil
}

func (p *Port) send(b byte) {
	for spins := 0; spins < maxTxSpins; spins++ {
		if portReadByteFn(p.base+regLineStatus)&statusTxEmpty != 0 {
			break
		}
	}

	portWriteByteFn(p.base+regData, b)
}
