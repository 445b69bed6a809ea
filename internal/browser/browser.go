package browser

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"scanviewer/internal/backend"
	"scanviewer/internal/timeline"
)

// ErrUnknownVideo is returned for pointer events on a video with no
// navigator.
var ErrUnknownVideo = errors.New("browser: unknown video")

// PointerKind is a pointer interaction on a timeline.
type PointerKind string

const (
	PointerMove  PointerKind = "move"
	PointerClick PointerKind = "click"
	PointerLeave PointerKind = "leave"
)

// ParsePointerKind validates a pointer kind name.
func ParsePointerKind(s string) (PointerKind, error) {
	switch k := PointerKind(s); k {
	case PointerMove, PointerClick, PointerLeave:
		return k, nil
	default:
		return "", fmt.Errorf("unknown pointer event %q", s)
	}
}

// Options configures the timelines a Browser creates.
type Options struct {
	Width     float64
	Height    float64
	TickWidth float64
	Debounce  time.Duration
	AfterFunc timeline.AfterFunc
	// OnSelect receives every debounced selection from any navigator.
	OnSelect func(timeline.Selection)
}

// Navigator is the timeline strip for one video.
type Navigator struct {
	video    backend.Video
	timeline *timeline.Timeline
}

// Video returns the navigator's video.
func (n *Navigator) Video() backend.Video { return n.video }

// Timeline returns the navigator's timeline.
func (n *Navigator) Timeline() *timeline.Timeline { return n.timeline }

// Browser lists the navigators of the active dataset in catalog order.
type Browser struct {
	mu         sync.Mutex
	opts       Options
	navigators []*Navigator
	byID       map[int64]*Navigator
}

// New returns an empty browser.
func New(opts Options) *Browser {
	return &Browser{opts: opts, byID: map[int64]*Navigator{}}
}

// SetVideos replaces the navigators with one per video. Pending selections
// on the previous navigators are dropped.
func (b *Browser) SetVideos(videos []backend.Video) {
	b.mu.Lock()
	old := b.navigators
	b.navigators = make([]*Navigator, 0, len(videos))
	b.byID = make(map[int64]*Navigator, len(videos))
	for _, v := range videos {
		n := &Navigator{
			video: v,
			timeline: timeline.New(v, timeline.Options{
				Width:     b.opts.Width,
				Height:    b.opts.Height,
				TickWidth: b.opts.TickWidth,
				Debounce:  b.opts.Debounce,
				AfterFunc: b.opts.AfterFunc,
			}, b.forward),
		}
		b.navigators = append(b.navigators, n)
		b.byID[v.ID] = n
	}
	b.mu.Unlock()

	for _, n := range old {
		n.timeline.Close()
	}
}

func (b *Browser) forward(sel timeline.Selection) {
	if b.opts.OnSelect != nil {
		b.opts.OnSelect(sel)
	}
}

// Navigators returns the navigators in catalog order.
func (b *Browser) Navigators() []*Navigator {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Navigator(nil), b.navigators...)
}

// Navigator looks up the navigator for a video.
func (b *Browser) Navigator(videoID int64) (*Navigator, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.byID[videoID]
	return n, ok
}

// SetPlotValues feeds a video's plot values to its navigator.
func (b *Browser) SetPlotValues(videoID int64, values []float64) bool {
	n, ok := b.Navigator(videoID)
	if !ok {
		return false
	}
	n.timeline.SetValues(values)
	return true
}

// ClearPlotValues empties every navigator's plot.
func (b *Browser) ClearPlotValues() {
	for _, n := range b.Navigators() {
		n.timeline.SetValues(nil)
	}
}

// Resize changes the width of every timeline.
func (b *Browser) Resize(width float64) {
	b.mu.Lock()
	b.opts.Width = width
	navigators := append([]*Navigator(nil), b.navigators...)
	b.mu.Unlock()
	for _, n := range navigators {
		n.timeline.Resize(width)
	}
}

// Pointer routes a pointer event at offset x to a video's timeline.
func (b *Browser) Pointer(videoID int64, kind PointerKind, x float64) error {
	n, ok := b.Navigator(videoID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVideo, videoID)
	}
	switch kind {
	case PointerMove:
		n.timeline.PointerMove(x)
	case PointerClick:
		n.timeline.Click(x)
	case PointerLeave:
		n.timeline.Leave()
	default:
		return fmt.Errorf("unknown pointer event %q", kind)
	}
	return nil
}

// Close drops pending selections on every navigator.
func (b *Browser) Close() {
	for _, n := range b.Navigators() {
		n.timeline.Close()
	}
}
