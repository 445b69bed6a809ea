package timeline

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"scanviewer/internal/backend"
)

type fakeTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(_ time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{f: f}
	c.timers = append(c.timers, t)
	return t
}

// elapse fires every timer that has not been stopped.
func (c *fakeClock) elapse() {
	c.mu.Lock()
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func TestFrameAtClampsToLastFrame(t *testing.T) {
	p := Plot{TotalFrames: 4600, Width: 1250, Height: 80, TickWidth: 100}
	if p.Ticks() != 12 || p.AxisWidth() != 1200 {
		t.Fatalf("ticks=%d axis=%v", p.Ticks(), p.AxisWidth())
	}
	tests := []struct {
		x    float64
		want int
	}{
		{x: -5, want: 0},
		{x: 0, want: 0},
		{x: 600, want: 2300},
		{x: 1199.99, want: 4599},
		{x: 1200, want: 4599},
		{x: 1250, want: 4599},
	}
	for _, tt := range tests {
		if got := p.FrameAt(tt.x); got != tt.want {
			t.Errorf("FrameAt(%v) = %d, want %d", tt.x, got, tt.want)
		}
	}
}

func TestFrameAtIsMonotonic(t *testing.T) {
	p := Plot{TotalFrames: 4600, Width: 1250, TickWidth: 100}
	prev := 0
	for x := 0.0; x <= 1250; x += 0.5 {
		got := p.FrameAt(x)
		if got < prev {
			t.Fatalf("FrameAt(%v) = %d < %d", x, got, prev)
		}
		prev = got
	}
}

func TestFrameAtNarrowWidth(t *testing.T) {
	p := Plot{TotalFrames: 10, Width: 50, TickWidth: 100}
	if got := p.FrameAt(25); got != 0 {
		t.Fatalf("FrameAt with no ticks = %d", got)
	}
}

func TestLineStepsAtMidpoints(t *testing.T) {
	p := Plot{TotalFrames: 2, Width: 200, Height: 80, TickWidth: 100}
	line := p.Line([]float64{1, 3})
	if len(line) != 4 {
		t.Fatalf("expected 4 points, got %v", line)
	}
	if line[0].X != 0 || line[1].X != 50 || line[2].X != 50 || line[3].X != 100 {
		t.Fatalf("unexpected x coordinates %v", line)
	}
	if line[1].Y != line[0].Y || line[2].Y != 0 || line[3].Y != 0 {
		t.Fatalf("unexpected y coordinates %v", line)
	}
	if p.Line(nil) != nil {
		t.Fatal("expected nil line for no values")
	}
}

func TestLineAllZero(t *testing.T) {
	p := Plot{TotalFrames: 3, Width: 100, Height: 80, TickWidth: 100}
	for _, pt := range p.Line([]float64{0, 0, 0}) {
		if pt.Y != 80 {
			t.Fatalf("zero values should sit on the baseline, got %v", pt)
		}
	}
}

func TestTickLabels(t *testing.T) {
	p := Plot{TotalFrames: 4600, Width: 1250, TickWidth: 100}
	labels := p.TickLabels()
	if len(labels) != 13 {
		t.Fatalf("expected 13 labels, got %d", len(labels))
	}
	if labels[1].Text != "383" || labels[1].X != 100 {
		t.Fatalf("label[1] = %+v", labels[1])
	}
	if last := labels[12]; last.Text != "4600" || last.X != 1200 {
		t.Fatalf("last label = %+v", last)
	}
}

func TestDebouncerDeliversLastValueOnce(t *testing.T) {
	clock := &fakeClock{}
	var got []int
	d := NewDebouncer(50*time.Millisecond, func(v int) { got = append(got, v) }, WithAfterFunc(clock.AfterFunc))

	for i := range 10 {
		d.Call(i)
	}
	clock.elapse()

	if len(got) != 1 || got[0] != 9 {
		t.Fatalf("delivered %v, want [9]", got)
	}
	clock.elapse()
	if len(got) != 1 {
		t.Fatalf("timer fired twice: %v", got)
	}
}

func TestDebouncerFlushAndStop(t *testing.T) {
	clock := &fakeClock{}
	var got []string
	d := NewDebouncer(time.Second, func(v string) { got = append(got, v) }, WithAfterFunc(clock.AfterFunc))

	if d.Flush() {
		t.Fatal("flush with nothing pending delivered")
	}
	d.Call("a")
	if !d.Flush() || len(got) != 1 || got[0] != "a" {
		t.Fatalf("flush delivered %v", got)
	}
	d.Call("b")
	d.Stop()
	clock.elapse()
	if len(got) != 1 {
		t.Fatalf("stopped debouncer delivered %v", got)
	}
}

func TestDebouncerRealTimer(t *testing.T) {
	done := make(chan int, 1)
	d := NewDebouncer(5*time.Millisecond, func(v int) { done <- v })
	d.Call(1)
	d.Call(2)
	select {
	case v := <-done:
		if v != 2 {
			t.Fatalf("got %d, want 2", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced call never fired")
	}
}

func newTestTimeline(clock *fakeClock, sink *[]Selection) *Timeline {
	video := backend.Video{ID: 7, Frames: 4600}
	return New(video, Options{Width: 1250, AfterFunc: clock.AfterFunc}, func(s Selection) {
		*sink = append(*sink, s)
	})
}

func TestTimelineRapidMovesCollapse(t *testing.T) {
	clock := &fakeClock{}
	var got []Selection
	tl := newTestTimeline(clock, &got)

	for i := range 10 {
		tl.PointerMove(float64(i * 100))
	}
	clock.elapse()

	if len(got) != 1 {
		t.Fatalf("expected 1 selection, got %v", got)
	}
	if got[0] != (Selection{VideoID: 7, Frame: 3450}) {
		t.Fatalf("selection = %+v", got[0])
	}
}

func TestTimelineClickCommitsImmediately(t *testing.T) {
	clock := &fakeClock{}
	var got []Selection
	tl := newTestTimeline(clock, &got)

	tl.Click(600)
	if tl.Selected() != 2300 {
		t.Fatalf("selected = %d", tl.Selected())
	}
	if len(got) != 0 {
		t.Fatal("click delivered before debounce elapsed")
	}
	clock.elapse()
	if len(got) != 1 || got[0].Frame != 2300 {
		t.Fatalf("click selection = %v", got)
	}

	tl.PointerMove(100)
	tl.Leave()
	clock.elapse()
	if len(got) != 2 || got[1].Frame != 2300 {
		t.Fatalf("leave should restore clicked frame, got %v", got)
	}
}

func TestTimelineLeaveWithoutClick(t *testing.T) {
	clock := &fakeClock{}
	var got []Selection
	tl := newTestTimeline(clock, &got)
	tl.Leave()
	clock.elapse()
	if len(got) != 0 {
		t.Fatalf("leave without click delivered %v", got)
	}
}

func TestTimelineWriteSVG(t *testing.T) {
	clock := &fakeClock{}
	var got []Selection
	tl := newTestTimeline(clock, &got)
	tl.SetValues([]float64{0, 1, 2})
	tl.Click(600)

	var buf bytes.Buffer
	if err := tl.WriteSVG(&buf); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`class="timeline-plot"`, `data-frame="2300"`, `>4600</text>`} {
		if !strings.Contains(out, want) {
			t.Fatalf("svg missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, `class="timeline-tick"`); n != 12 {
		t.Fatalf("expected 12 tick cells, got %d", n)
	}
}
