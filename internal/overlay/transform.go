package overlay

import "scanviewer/internal/backend"

// Transform maps a centre-anchored box from annotation space (frameW×frameH)
// into a view of viewW×viewH pixels, returning the top-left corner and size.
func Transform(box backend.Box, frameW, frameH, viewW, viewH float64) (x, y, w, h float64) {
	if frameW <= 0 || frameH <= 0 {
		return 0, 0, 0, 0
	}
	x = (box.X - box.Width/2) / frameW * viewW
	y = (box.Y - box.Height/2) / frameH * viewH
	w = box.Width / frameW * viewW
	h = box.Height / frameH * viewH
	return x, y, w, h
}
