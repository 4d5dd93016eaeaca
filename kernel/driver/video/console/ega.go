package console

import "unsafe"

const (
	// TextBufferAddr is the physical address of the EGA text buffer. It
	// lies inside the identity-mapped boot region.
	TextBufferAddr = uintptr(0xb8000)

	// TextColumns and TextRows are the dimensions of VGA text mode 3.
	TextColumns = 80
	TextRows    = 25

	clearChar = byte(' ')
)

// Ega implements an EGA-compatible text console. Each cell of the
// framebuffer holds the character in its low byte and the attribute in its
// high byte.
type Ega struct {
	width  uint16
	height uint16

	fb []uint16
}

// Init sets up the console to use the framebuffer at fbAddr.
func (cons *Ega) Init(width, height uint16, fbAddr uintptr) {
	cons.width = width
	cons.height = height
	cons.fb = unsafe.Slice((*uint16)(unsafe.Pointer(fbAddr)), int(width)*int(height))
}

// Dimensions returns the console width and height in characters.
func (cons *Ega) Dimensions() (uint16, uint16) {
	return cons.width, cons.height
}

// Clear fills the specified rectangular region with blanks. The region is
// clipped to the console.
func (cons *Ega) Clear(x, y, width, height uint16, attr Attr) {
	var (
		clr                  = cell(clearChar, attr)
		rowOffset, colOffset int
	)

	if x >= cons.width || y >= cons.height {
		return
	}

	if x+width > cons.width {
		width = cons.width - x
	}
	if y+height > cons.height {
		height = cons.height - y
	}

	rowOffset = int(y)*int(cons.width) + int(x)
	for ; height > 0; height, rowOffset = height-1, rowOffset+int(cons.width) {
		for colOffset = rowOffset; colOffset < rowOffset+int(width); colOffset++ {
			cons.fb[colOffset] = clr
		}
	}
}

// Scroll moves the console contents by lines rows. The rows uncovered by the
// scroll keep their previous contents.
func (cons *Ega) Scroll(dir ScrollDir, lines uint16) {
	if lines == 0 || lines > cons.height {
		return
	}

	offset := int(lines) * int(cons.width)
	switch dir {
	case Up:
		copy(cons.fb, cons.fb[offset:])
	case Down:
		copy(cons.fb[offset:], cons.fb)
	}
}

// Write a char to the specified location.
func (cons *Ega) Write(ch byte, attr Attr, x, y uint16) {
	if x >= cons.width || y >= cons.height {
		return
	}

	cons.fb[int(y)*int(cons.width)+int(x)] = cell(ch, attr)
}

// Read returns the character and attribute stored at the specified location.
func (cons *Ega) Read(x, y uint16) (byte, Attr) {
	if x >= cons.width || y >= cons.height {
		return 0, 0
	}

	c := cons.fb[int(y)*int(cons.width)+int(x)]
	return byte(c), Attr(c >> 8)
}

func cell(ch byte, attr Attr) uint16 {
	return uint16(attr)<<8 | uint16(ch)
}
