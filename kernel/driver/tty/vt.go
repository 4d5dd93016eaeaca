// Package tty implements terminals on top of text consoles.
package tty

import "kestrel/kernel/driver/video/console"

const (
	defaultFg = console.LightGrey
	defaultBg = console.Black

	tabWidth = 4
)

// Vt implements a simple terminal that processes CR, LF, TAB and BS and
// scrolls when output reaches the last line. The terminal uses an EGA
// console for its output.
type Vt struct {
	// Concrete type instead of console.Console: interface conversions
	// need the allocator, which is never set up.
	cons *console.Ega

	width  uint16
	height uint16

	curX    uint16
	curY    uint16
	curAttr console.Attr
}

// AttachTo links the terminal with the specified console device and resets
// the cursor and colors.
func (t *Vt) AttachTo(cons *console.Ega) {
	t.cons = cons
	t.width, t.height = cons.Dimensions()
	t.curX, t.curY = 0, 0
	t.curAttr = console.MakeAttr(defaultFg, defaultBg)
}

// Dimensions returns the terminal width and height in characters.
func (t *Vt) Dimensions() (uint16, uint16) {
	return t.width, t.height
}

// SetColors sets the colors used by subsequent writes and clears.
func (t *Vt) SetColors(fg, bg console.Attr) {
	t.curAttr = console.MakeAttr(fg, bg)
}

// Colors returns the active foreground and background colors.
func (t *Vt) Colors() (console.Attr, console.Attr) {
	return t.curAttr.Fg(), t.curAttr.Bg()
}

// Clear blanks the terminal with the active colors and moves the cursor to
// the top-left corner.
func (t *Vt) Clear() {
	t.cons.Clear(0, 0, t.width, t.height, t.curAttr)
	t.curX, t.curY = 0, 0
}

// Position returns the current cursor position (x, y).
func (t *Vt) Position() (uint16, uint16) {
	return t.curX, t.curY
}

// SetPosition sets the current cursor position to (x,y), clipped to the
// terminal.
func (t *Vt) SetPosition(x, y uint16) {
	if x >= t.width {
		x = t.width - 1
	}

	if y >= t.height {
		y = t.height - 1
	}

	t.curX, t.curY = x, y
}

// Write implements io.Writer.
func (t *Vt) Write(data []byte) (int, error) {
	for _, b := range data {
		t.WriteByte(b)
	}

	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (t *Vt) WriteByte(b byte) error {
	switch b {
	case '\r':
		t.cr()
	case '\n':
		t.cr()
		t.lf()
	case '\b':
		if t.curX > 0 {
			t.curX--
			t.cons.Write(' ', t.curAttr, t.curX, t.curY)
		}
	case '\t':
		for n := tabWidth - t.curX%tabWidth; n > 0; n-- {
			t.put(' ')
		}
	default:
		t.put(b)
	}

	return nil
}

func (t *Vt) put(b byte) {
	t.cons.Write(b, t.curAttr, t.curX, t.curY)
	t.curX++
	if t.curX == t.width {
		t.cr()
		t.lf()
	}
}

// cr resets the x coordinate of the terminal cursor to 0.
func (t *Vt) cr() {
	t.curX = 0
}

// lf advances the y coordinate of the terminal cursor by one line scrolling
// the terminal contents if the end of the last terminal line is reached.
func (t *Vt) lf() {
	if t.curY+1 < t.height {
		t.curY++
		return
	}

	t.cons.Scroll(console.Up, 1)
	t.cons.Clear(0, t.height-1, t.width, 1, t.curAttr)
}
