package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

const iconSize = 22

var iconBytes = renderIcon(iconSize)

// renderIcon draws a filled circle with a play triangle cut out of it.
func renderIcon(size int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	fg := color.NRGBA{R: 0xe8, G: 0x3e, B: 0x5c, A: 0xff}

	c := float64(size-1) / 2
	r := c
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy > r*r {
				continue
			}
			if inTriangle(float64(x), float64(y), float64(size)) {
				continue
			}
			img.SetNRGBA(x, y, fg)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

// inTriangle reports whether (x, y) falls inside the right-pointing play
// glyph, which spans the middle third of the icon.
func inTriangle(x, y, size float64) bool {
	left, right := size*0.38, size*0.70
	top, bottom := size*0.30, size*0.70
	if x < left || x > right {
		return false
	}
	mid := (top + bottom) / 2
	half := (bottom - top) / 2 * (right - x) / (right - left)
	return y >= mid-half && y <= mid+half
}
