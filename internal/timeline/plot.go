package timeline

import (
	"math"
	"slices"
	"strconv"
)

// Point is a vertex of the rendered plot line in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TickLabel is a frame label positioned under a tick boundary.
type TickLabel struct {
	X    float64 `json:"x"`
	Text string  `json:"text"`
}

// Plot describes the geometry of a timeline for a video with TotalFrames
// frames rendered Width pixels wide. Only whole TickWidth cells are used for
// the axis; any partial cell at the right edge is ignored.
type Plot struct {
	TotalFrames int
	Width       float64
	Height      float64
	TickWidth   float64
}

// Ticks returns the number of whole tick cells that fit the width.
func (p Plot) Ticks() int {
	if p.TickWidth <= 0 || p.Width <= 0 {
		return 0
	}
	return int(math.Floor(p.Width / p.TickWidth))
}

// AxisWidth is the pixel width of the usable axis.
func (p Plot) AxisWidth() float64 {
	return float64(p.Ticks()) * p.TickWidth
}

// FrameAt maps a pixel offset from the axis origin to a frame index,
// clamped to [0, TotalFrames-1].
func (p Plot) FrameAt(x float64) int {
	axis := p.AxisWidth()
	if p.TotalFrames <= 0 || axis <= 0 {
		return 0
	}
	frame := int(math.Floor(float64(p.TotalFrames) * x / axis))
	return min(max(frame, 0), p.TotalFrames-1)
}

// FrameX maps a frame index to its pixel offset on the axis.
func (p Plot) FrameX(frame int) float64 {
	if p.TotalFrames <= 0 {
		return 0
	}
	return float64(frame) / float64(p.TotalFrames) * p.AxisWidth()
}

// Line returns the step-interpolated polyline for values, one value per
// frame. X maps [0, TotalFrames] onto the axis and Y maps [0, max(values)]
// onto [Height, 0]. Each step changes level halfway between two frames.
func (p Plot) Line(values []float64) []Point {
	if len(values) == 0 {
		return nil
	}
	top := slices.Max(values)
	y := func(v float64) float64 {
		if top <= 0 {
			return p.Height
		}
		return p.Height - v/top*p.Height
	}

	points := make([]Point, 0, 3*len(values)-2)
	prev := Point{X: p.FrameX(0), Y: y(values[0])}
	points = append(points, prev)
	for i := 1; i < len(values); i++ {
		next := Point{X: p.FrameX(i), Y: y(values[i])}
		mid := (prev.X + next.X) / 2
		points = append(points, Point{X: mid, Y: prev.Y}, Point{X: mid, Y: next.Y}, next)
		prev = next
	}
	return points
}

// TickLabels returns one label per tick at its left boundary plus a final
// label carrying the total frame count at the axis end.
func (p Plot) TickLabels() []TickLabel {
	ticks := p.Ticks()
	labels := make([]TickLabel, 0, ticks+1)
	for i := range ticks {
		frame := math.Round(float64(p.TotalFrames) / float64(ticks) * float64(i))
		labels = append(labels, TickLabel{
			X:    p.TickWidth * float64(i),
			Text: strconv.Itoa(int(frame)),
		})
	}
	labels = append(labels, TickLabel{X: p.AxisWidth(), Text: strconv.Itoa(p.TotalFrames)})
	return labels
}
