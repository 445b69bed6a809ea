package overlay

// VideoElement is the rendered video the overlay is aligned with.
type VideoElement interface {
	// ViewSize returns the current rendered width and height.
	ViewSize() (width, height float64)
}

// Rect is one keyed rectangle on a canvas, in view-space pixels.
type Rect struct {
	Key    string  `json:"key"`
	Class  string  `json:"class"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Stroke string  `json:"stroke"`
}

// JoinResult reports how a data join changed a canvas.
type JoinResult struct {
	Entered int
	Updated int
	Exited  int
}

// Canvas is an overlay surface holding rectangles grouped by class.
type Canvas struct {
	width  float64
	height float64
	rects  []Rect
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() (width, height float64) {
	return c.width, c.height
}

// Rects returns a copy of the canvas rectangles in insertion order.
func (c *Canvas) Rects() []Rect {
	return append([]Rect(nil), c.rects...)
}

// Join binds rects to the rectangles of class: rectangles whose key is
// already present are updated in place, new keys are appended, and existing
// rectangles of that class with no matching key are removed. Rectangles of
// other classes are untouched.
func (c *Canvas) Join(class string, rects []Rect) JoinResult {
	incoming := make(map[string]Rect, len(rects))
	order := make([]string, 0, len(rects))
	for _, r := range rects {
		r.Class = class
		if _, dup := incoming[r.Key]; !dup {
			order = append(order, r.Key)
		}
		incoming[r.Key] = r
	}

	var result JoinResult
	kept := c.rects[:0]
	seen := make(map[string]struct{}, len(rects))
	for _, existing := range c.rects {
		if existing.Class != class {
			kept = append(kept, existing)
			continue
		}
		next, ok := incoming[existing.Key]
		if !ok {
			result.Exited++
			continue
		}
		seen[existing.Key] = struct{}{}
		kept = append(kept, next)
		result.Updated++
	}
	for _, key := range order {
		if _, ok := seen[key]; ok {
			continue
		}
		kept = append(kept, incoming[key])
		result.Entered++
	}
	c.rects = kept
	return result
}

// Indicator is the text readout shown over the video.
type Indicator struct {
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// Container hosts at most one canvas and the text indicator above a video
// element. It is not safe for concurrent use.
type Container struct {
	canvas    *Canvas
	indicator Indicator
}

// NewContainer returns an empty container.
func NewContainer() *Container {
	return &Container{}
}

// Mount attaches a canvas sized width×height. Mounting an already mounted
// container resizes and returns the existing canvas.
func (c *Container) Mount(width, height float64) *Canvas {
	if c.canvas == nil {
		c.canvas = &Canvas{}
	}
	c.canvas.width = width
	c.canvas.height = height
	return c.canvas
}

// Unmount removes the canvas and everything drawn on it.
func (c *Container) Unmount() {
	c.canvas = nil
}

// Canvas returns the mounted canvas, or nil.
func (c *Container) Canvas() *Canvas {
	return c.canvas
}

// Indicator returns the current indicator state.
func (c *Container) Indicator() Indicator {
	return c.indicator
}

// SetIndicatorText replaces the indicator text.
func (c *Container) SetIndicatorText(text string) {
	c.indicator.Text = text
}

// SetIndicatorVisible shows or hides the indicator.
func (c *Container) SetIndicatorVisible(visible bool) {
	c.indicator.Visible = visible
}
