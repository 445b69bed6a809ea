package browser

import (
	"errors"
	"slices"
	"testing"
	"time"

	"scanviewer/internal/backend"
	"scanviewer/internal/timeline"
)

type manualClock struct {
	pending []func()
}

type manualTimer struct{ stopped *bool }

func (t manualTimer) Stop() bool {
	was := !*t.stopped
	*t.stopped = true
	return was
}

func (c *manualClock) AfterFunc(_ time.Duration, f func()) timeline.Timer {
	stopped := new(bool)
	c.pending = append(c.pending, func() {
		if !*stopped {
			*stopped = true
			f()
		}
	})
	return manualTimer{stopped: stopped}
}

func (c *manualClock) elapse() {
	pending := c.pending
	c.pending = nil
	for _, f := range pending {
		f()
	}
}

func newTestBrowser(clock *manualClock, got *[]timeline.Selection) *Browser {
	b := New(Options{
		Width:     1000,
		AfterFunc: clock.AfterFunc,
		OnSelect:  func(s timeline.Selection) { *got = append(*got, s) },
	})
	b.SetVideos([]backend.Video{{ID: 3, Frames: 100}, {ID: 9, Frames: 50}})
	return b
}

func TestBrowserForwardsSelectionsUnchanged(t *testing.T) {
	clock := &manualClock{}
	var got []timeline.Selection
	b := newTestBrowser(clock, &got)

	if err := b.Pointer(9, PointerClick, 500); err != nil {
		t.Fatalf("Pointer: %v", err)
	}
	clock.elapse()

	want := []timeline.Selection{{VideoID: 9, Frame: 25}}
	if !slices.Equal(got, want) {
		t.Fatalf("selections = %v, want %v", got, want)
	}
}

func TestBrowserNavigatorOrderAndValues(t *testing.T) {
	clock := &manualClock{}
	var got []timeline.Selection
	b := newTestBrowser(clock, &got)

	navs := b.Navigators()
	if len(navs) != 2 || navs[0].Video().ID != 3 || navs[1].Video().ID != 9 {
		t.Fatalf("navigators out of order")
	}
	if !b.SetPlotValues(3, []float64{1, 2}) {
		t.Fatal("SetPlotValues on known video failed")
	}
	if b.SetPlotValues(42, nil) {
		t.Fatal("SetPlotValues on unknown video succeeded")
	}
	if vals := navs[0].Timeline().Values(); !slices.Equal(vals, []float64{1, 2}) {
		t.Fatalf("values = %v", vals)
	}
	b.ClearPlotValues()
	if vals := navs[0].Timeline().Values(); len(vals) != 0 {
		t.Fatalf("values after clear = %v", vals)
	}
}

func TestBrowserUnknownVideo(t *testing.T) {
	b := New(Options{Width: 100})
	if err := b.Pointer(1, PointerMove, 0); !errors.Is(err, ErrUnknownVideo) {
		t.Fatalf("err = %v", err)
	}
}

func TestBrowserSetVideosDropsPendingSelections(t *testing.T) {
	clock := &manualClock{}
	var got []timeline.Selection
	b := newTestBrowser(clock, &got)

	_ = b.Pointer(3, PointerMove, 10)
	b.SetVideos(nil)
	clock.elapse()
	if len(got) != 0 {
		t.Fatalf("stale selection delivered: %v", got)
	}
}

func TestParsePointerKind(t *testing.T) {
	if k, err := ParsePointerKind("click"); err != nil || k != PointerClick {
		t.Fatalf("ParsePointerKind(click) = %q, %v", k, err)
	}
	if _, err := ParsePointerKind("hover"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}
