package timeline

import (
	"io"
	"sync"
	"time"

	"scanviewer/internal/backend"
)

// Defaults used when Options leaves a field zero.
const (
	DefaultTickWidth = 100
	DefaultHeight    = 80
	DefaultDebounce  = 50 * time.Millisecond
)

// Selection is a frame chosen on a video's timeline.
type Selection struct {
	VideoID int64 `json:"videoId"`
	Frame   int   `json:"frame"`
}

// Options configures a Timeline.
type Options struct {
	Width     float64
	Height    float64
	TickWidth float64
	Debounce  time.Duration
	AfterFunc AfterFunc
}

// Timeline is the interactive plot for one video.
type Timeline struct {
	mu       sync.Mutex
	videoID  int64
	plot     Plot
	values   []float64
	selected int

	debounce *Debouncer[Selection]
}

// New builds a timeline for video that reports debounced selections to
// onSelect.
func New(video backend.Video, opts Options, onSelect func(Selection)) *Timeline {
	if opts.TickWidth <= 0 {
		opts.TickWidth = DefaultTickWidth
	}
	if opts.Height <= 0 {
		opts.Height = DefaultHeight
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if onSelect == nil {
		onSelect = func(Selection) {}
	}
	return &Timeline{
		videoID: video.ID,
		plot: Plot{
			TotalFrames: video.Frames,
			Width:       opts.Width,
			Height:      opts.Height,
			TickWidth:   opts.TickWidth,
		},
		selected: -1,
		debounce: NewDebouncer(opts.Debounce, onSelect, WithAfterFunc(opts.AfterFunc)),
	}
}

// VideoID returns the video the timeline belongs to.
func (t *Timeline) VideoID() int64 { return t.videoID }

// Plot returns the current geometry.
func (t *Timeline) Plot() Plot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.plot
}

// Values returns a copy of the plotted values.
func (t *Timeline) Values() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]float64(nil), t.values...)
}

// SetValues replaces the plotted values.
func (t *Timeline) SetValues(values []float64) {
	t.mu.Lock()
	t.values = append([]float64(nil), values...)
	t.mu.Unlock()
}

// Resize changes the rendered width.
func (t *Timeline) Resize(width float64) {
	t.mu.Lock()
	t.plot.Width = width
	t.mu.Unlock()
}

// Selected returns the locally committed frame, or -1 before any click.
func (t *Timeline) Selected() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected
}

// PointerMove schedules a selection of the frame under x.
func (t *Timeline) PointerMove(x float64) {
	t.debounce.Call(Selection{VideoID: t.videoID, Frame: t.Plot().FrameAt(x)})
}

// Click commits the frame under x as the local marker and schedules its
// selection.
func (t *Timeline) Click(x float64) {
	t.mu.Lock()
	frame := t.plot.FrameAt(x)
	t.selected = frame
	t.mu.Unlock()
	t.debounce.Call(Selection{VideoID: t.videoID, Frame: frame})
}

// Leave schedules a return to the committed frame. Nothing is sent when no
// frame has been clicked yet.
func (t *Timeline) Leave() {
	selected := t.Selected()
	if selected < 0 {
		return
	}
	t.debounce.Call(Selection{VideoID: t.videoID, Frame: selected})
}

// Flush delivers a pending selection immediately.
func (t *Timeline) Flush() bool {
	return t.debounce.Flush()
}

// Close drops any pending selection.
func (t *Timeline) Close() {
	t.debounce.Stop()
}

// WriteSVG renders the timeline's current state.
func (t *Timeline) WriteSVG(w io.Writer) error {
	t.mu.Lock()
	plot, values, selected := t.plot, append([]float64(nil), t.values...), t.selected
	t.mu.Unlock()
	return WriteSVG(w, plot, values, selected)
}
