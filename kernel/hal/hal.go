// Package hal sets up the devices the kernel writes its output to.
package hal

import (
	"kestrel/kernel/driver/serial"
	"kestrel/kernel/driver/tty"
	"kestrel/kernel/driver/video/console"
	"kestrel/kernel/irq"
	"kestrel/kernel/kfmt"
)

// serialBaud is the rate used for the COM1 console.
const serialBaud = 38400

var (
	egaConsole console.Ega
	serialPort serial.Port
	output     consoleWriter

	// ActiveTerminal points to the currently active terminal.
	ActiveTerminal tty.Vt

	// The following functions are used by tests.
	initEgaFn = func(cons *console.Ega) {
		cons.Init(console.TextColumns, console.TextRows, console.TextBufferAddr)
	}
	initSerialFn = (*serial.Port).Init
)

// consoleWriter mirrors kernel output to the screen and the serial port.
type consoleWriter struct {
	terminal *tty.Vt
	serial   *serial.Port
}

// Write implements io.Writer.
func (w *consoleWriter) Write(data []byte) (int, error) {
	w.terminal.Write(data)
	w.serial.Write(data)
	return len(data), nil
}

// InitTerminal attaches ActiveTerminal to the EGA text console, probes COM1
// and redirects kfmt output to both. Output buffered before this call is
// flushed to the new sink. Fatal exceptions switch the screen to white on
// blue before their diagnostic is printed.
func InitTerminal() {
	initEgaFn(&egaConsole)
	ActiveTerminal.AttachTo(&egaConsole)
	ActiveTerminal.Clear()

	initSerialFn(&serialPort, serial.COM1, serialBaud)

	output = consoleWriter{terminal: &ActiveTerminal, serial: &serialPort}
	kfmt.SetOutputSink(&output)
	irq.SetFatalHook(showFatalScreen)
}

// SerialPresent reports whether InitTerminal found a UART on COM1.
func SerialPresent() bool {
	return serialPort.Present()
}

func showFatalScreen() {
	ActiveTerminal.SetColors(console.White, console.Blue)
	ActiveTerminal.Clear()
}
