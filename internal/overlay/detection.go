package overlay

import (
	"strconv"

	"scanviewer/internal/backend"
)

// Detection draws scaled bounding boxes, one rectangle class per channel.
type Detection struct {
	canvas *Canvas
}

var _ Adapter = (*Detection)(nil)

// NewDetection returns a detection adapter with no surface attached.
func NewDetection() *Detection {
	return &Detection{}
}

func (d *Detection) FeatureType() string { return backend.FeatureDetection }

func (d *Detection) Setup(container *Container, video VideoElement) {
	width, height := video.ViewSize()
	d.canvas = container.Mount(width, height)
}

func (d *Detection) Teardown(container *Container) {
	container.Unmount()
	d.canvas = nil
}

func (d *Detection) Show() {}

func (d *Detection) Hide() {}

func (d *Detection) Draw(video VideoElement, meta backend.Video, frameKey string, items Items, channel, color string) {
	if d.canvas == nil {
		return
	}
	viewW, viewH := video.ViewSize()
	rects := make([]Rect, 0, len(items.Boxes))
	for i, box := range items.Boxes {
		x, y, w, h := Transform(box, meta.Width, meta.Height, viewW, viewH)
		rects = append(rects, Rect{
			Key:    frameKey + ":" + strconv.Itoa(i),
			X:      x,
			Y:      y,
			Width:  w,
			Height: h,
			Stroke: color,
		})
	}
	d.canvas.Join("bbox-"+channel, rects)
}
