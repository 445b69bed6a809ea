package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var namedColors = map[string]color.RGBA{
	"red":       {R: 0xff, A: 0xff},
	"green":     {G: 0x80, A: 0xff},
	"lime":      {G: 0xff, A: 0xff},
	"yellow":    {R: 0xff, G: 0xff, A: 0xff},
	"blue":      {B: 0xff, A: 0xff},
	"steelblue": {R: 0x46, G: 0x82, B: 0xb4, A: 0xff},
	"white":     {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	"black":     {A: 0xff},
}

// ParseColor resolves a CSS colour name or #rrggbb value. Unknown values
// resolve to red.
func ParseColor(s string) color.RGBA {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c
	}
	if len(s) == 7 && s[0] == '#' {
		if v, err := strconv.ParseUint(s[1:], 16, 32); err == nil {
			return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
		}
	}
	return namedColors["red"]
}

// Rasterize draws the container onto a transparent width×height image.
// Canvas coordinates are scaled when the canvas size differs from the image.
func Rasterize(c *Container, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if canvas := c.Canvas(); canvas != nil {
		cw, ch := canvas.Size()
		sx, sy := 1.0, 1.0
		if cw > 0 {
			sx = float64(width) / cw
		}
		if ch > 0 {
			sy = float64(height) / ch
		}
		for _, r := range canvas.Rects() {
			bounds := image.Rect(
				int(math.Round(r.X*sx)),
				int(math.Round(r.Y*sy)),
				int(math.Round((r.X+r.Width)*sx)),
				int(math.Round((r.Y+r.Height)*sy)),
			)
			strokeRect(img, bounds, ParseColor(r.Stroke), 2)
		}
	}
	if ind := c.Indicator(); ind.Visible && ind.Text != "" {
		drawText(img, ind.Text, 8, 20, namedColors["white"])
	}
	return img
}

func strokeRect(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	src := image.NewUniform(c)
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness),
		image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y),
		image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(img, e.Intersect(img.Bounds()), src, image.Point{}, draw.Over)
	}
}

func drawText(img *image.RGBA, text string, x, y int, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face}
	for i, line := range strings.Split(text, "\n") {
		d.Dot = fixed.P(x, y+i*face.Height)
		d.DrawString(line)
	}
}
