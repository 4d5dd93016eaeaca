// Package kfmt implements formatted output for code that runs before (or
// without) the Go runtime allocator.
package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers. A 64-bit value
// in base 8 needs 22 digits; the rest is room for padding and a sign.
const maxBufSize = 40

// maxPadLen caps the width that can be requested for a number.
const maxPadLen = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	digits = "0123456789abcdef"

	numFmtBuf [maxBufSize]byte

	// singleByte is shared by all writers that emit one byte at a time.
	singleByte = []byte(" ")

	// earlyPrintBuffer collects Printf output while no sink is attached.
	earlyPrintBuffer ringBuffer

	// outputSink receives Printf output. A nil sink routes output to
	// earlyPrintBuffer.
	outputSink io.Writer

	activeSink sinkProxy
)

// sinkProxy forwards writes to whatever sink is active at the time of the
// write.
type sinkProxy struct{}

func (sinkProxy) Write(p []byte) (int, error) {
	doWrite(outputSink, p)
	return len(p), nil
}

// SetOutputSink sets the default target for calls to Printf to w and flushes
// any output accumulated in the early print buffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		_, _ = io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns an io.Writer that always writes to the currently
// active output sink (or the early print buffer if no sink is attached).
func GetOutputSink() io.Writer {
	return activeSink
}

// Printf writes formatted output to the active output sink. It supports the
// following subset of the fmt verbs:
//
//	%s  string or []byte
//	%d  base 10 integer
//	%x  base 16 integer, lower-case
//	%o  base 8 integer
//	%t  boolean
//	%%  a literal percent sign
//
// An optional decimal width may precede the verb. Strings and base-10
// integers are left-padded with spaces, base-8 and base-16 integers with
// zeroes.
//
// Printf never allocates and never calls methods on its arguments, so it can
// be used before the itabs and the allocator are initialized.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex, width int
		index, litStart int
		verb            byte
		fmtLen          = len(format)
	)

	for index < fmtLen {
		if format[index] != '%' {
			index++
			continue
		}

		fmtLiteral(w, format, litStart, index)

		for index, width = index+1, 0; index < fmtLen && format[index] >= '0' && format[index] <= '9'; index++ {
			width = width*10 + int(format[index]-'0')
		}

		if index == fmtLen {
			doWrite(w, errNoVerb)
			litStart = index
			break
		}

		verb = format[index]
		index++
		litStart = index

		switch verb {
		case '%':
			fmtRepeat(w, '%', 1)
			continue
		case 'd', 'x', 'o', 's', 't':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		switch verb {
		case 'd':
			fmtInt(w, args[argIndex], 10, width)
		case 'x':
			fmtInt(w, args[argIndex], 16, width)
		case 'o':
			fmtInt(w, args[argIndex], 8, width)
		case 's':
			fmtString(w, args[argIndex], width)
		case 't':
			fmtBool(w, args[argIndex])
		}
		argIndex++
	}

	fmtLiteral(w, format, litStart, fmtLen)

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

// fmtLiteral writes format[start:end]. Slicing the format string into a
// []byte would allocate so the bytes are written one at a time.
func fmtLiteral(w io.Writer, format string, start, end int) {
	for i := start; i < end; i++ {
		singleByte[0] = format[i]
		doWrite(w, singleByte)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

func fmtString(w io.Writer, v interface{}, width int) {
	switch castedVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', width-len(castedVal))
		fmtLiteral(w, castedVal, 0, len(castedVal))
	case []byte:
		fmtRepeat(w, ' ', width-len(castedVal))
		doWrite(w, castedVal)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtRepeat writes count copies of ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	singleByte[0] = ch
	for ; count > 0; count-- {
		doWrite(w, singleByte)
	}
}

// fmtInt writes v in the requested base applying the requested width. All
// built-in integer types are supported.
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		uval uint64
		sval int64
		neg  bool
		pos  = maxBufSize
		pad  = byte('0')
	)

	switch t := v.(type) {
	case uint8:
		uval = uint64(t)
	case uint16:
		uval = uint64(t)
	case uint32:
		uval = uint64(t)
	case uint64:
		uval = t
	case uint:
		uval = uint64(t)
	case uintptr:
		uval = uint64(t)
	case int8:
		sval = int64(t)
	case int16:
		sval = int64(t)
	case int32:
		sval = int64(t)
	case int64:
		sval = t
	case int:
		sval = int64(t)
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if sval < 0 {
		neg, uval = true, uint64(-sval)
	} else if sval > 0 {
		uval = uint64(sval)
	}

	if width > maxPadLen {
		width = maxPadLen
	}

	for {
		pos--
		numFmtBuf[pos] = digits[uval%base]
		if uval /= base; uval == 0 {
			break
		}
	}

	// Base-10 numbers are space-padded so the sign sticks to the digits;
	// zero-padded numbers get the sign in front of the padding.
	if base == 10 {
		pad = ' '
		if neg {
			pos--
			numFmtBuf[pos] = '-'
		}
	}

	for maxBufSize-pos < width {
		pos--
		numFmtBuf[pos] = pad
	}

	if neg && base != 10 {
		pos--
		numFmtBuf[pos] = '-'
	}

	doWrite(w, numFmtBuf[pos:])
}

// doWrite hides p from the compiler's escape analysis. Without it the
// compiler flags p as escaping (it is passed to an unknown io.Writer) and
// Printf would trigger a heap allocation for every call.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		_, _ = w.Write(p)
	} else {
		_, _ = earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
