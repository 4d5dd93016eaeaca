package main

import (
	"github.com/fogleman/gg"
)

// Each text cell is drawn in an 8x16 box.
const (
	cellWidth  = 8
	cellHeight = 16
)

// drawScreen renders lines as white text on a blue 80x25 text screen.
func drawScreen(lines []string) *gg.Context {
	dc := gg.NewContext(screenCols*cellWidth, screenRows*cellHeight)
	dc.SetRGB255(0, 0, 0xaa)
	dc.Clear()

	dc.SetRGB255(0xff, 0xff, 0xff)
	for row, line := range lines {
		if row == screenRows {
			break
		}
		baseline := float64(row*cellHeight + cellHeight - 4)
		for col, ch := range line {
			if col == screenCols {
				break
			}
			dc.DrawString(string(ch), float64(col*cellWidth), baseline)
		}
	}

	return dc
}

// renderScreen writes the captured screen to a PNG file.
func renderScreen(lines []string, path string) error {
	return drawScreen(lines).SavePNG(path)
}
