package overlay

import (
	"bytes"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scanviewer/internal/backend"
)

type fakeVideo struct{ w, h float64 }

func (v fakeVideo) ViewSize() (float64, float64) { return v.w, v.h }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestTransformScalesCentreAnchoredBox(t *testing.T) {
	x, y, w, h := Transform(backend.Box{X: 100, Y: 125, Width: 50, Height: 20}, 1280, 720, 640, 360)
	if !approx(x, 37.5) || !approx(y, 57.5) || !approx(w, 25) || !approx(h, 10) {
		t.Fatalf("transform = (%v, %v, %v, %v), want (37.5, 57.5, 25, 10)", x, y, w, h)
	}
}

func TestTransformZeroFrameSize(t *testing.T) {
	x, y, w, h := Transform(backend.Box{X: 1, Y: 1, Width: 1, Height: 1}, 0, 0, 640, 360)
	if x != 0 || y != 0 || w != 0 || h != 0 {
		t.Fatalf("expected zero rect, got (%v, %v, %v, %v)", x, y, w, h)
	}
}

func TestCanvasJoinEnterUpdateExit(t *testing.T) {
	c := NewContainer()
	canvas := c.Mount(640, 360)

	res := canvas.Join("bbox-base", []Rect{{Key: "3b:0", X: 1}, {Key: "3b:1", X: 2}})
	if res.Entered != 2 || res.Updated != 0 || res.Exited != 0 {
		t.Fatalf("first join = %+v", res)
	}
	canvas.Join("bbox-tracked", []Rect{{Key: "3g:0"}})

	res = canvas.Join("bbox-base", []Rect{{Key: "3b:1", X: 9}, {Key: "4b:0"}})
	if res.Entered != 1 || res.Updated != 1 || res.Exited != 1 {
		t.Fatalf("second join = %+v", res)
	}

	byKey := map[string]Rect{}
	for _, r := range canvas.Rects() {
		byKey[r.Key] = r
	}
	if len(byKey) != 3 {
		t.Fatalf("expected 3 rects, got %d", len(byKey))
	}
	if byKey["3b:1"].X != 9 {
		t.Fatalf("update not applied: %+v", byKey["3b:1"])
	}
	if _, ok := byKey["3g:0"]; !ok {
		t.Fatal("join on base removed tracked rect")
	}
}

func TestContainerMountIsIdempotent(t *testing.T) {
	c := NewContainer()
	first := c.Mount(640, 360)
	second := c.Mount(320, 180)
	if first != second {
		t.Fatal("second mount created a new canvas")
	}
	if w, h := second.Size(); w != 320 || h != 180 {
		t.Fatalf("size = %vx%v", w, h)
	}
	c.Unmount()
	if c.Canvas() != nil {
		t.Fatal("canvas still mounted")
	}
}

func TestDetectionDrawsScaledBoxes(t *testing.T) {
	c := NewContainer()
	video := fakeVideo{640, 360}
	d := NewDetection()
	d.Setup(c, video)

	meta := backend.Video{Width: 1280, Height: 720}
	d.Draw(video, meta, "7b", Items{Boxes: []backend.Box{{X: 100, Y: 125, Width: 50, Height: 20}}}, ChannelBase, "red")
	d.Draw(video, meta, "7g", Items{}, ChannelTracked, "green")

	rects := c.Canvas().Rects()
	if len(rects) != 1 {
		t.Fatalf("expected 1 rect, got %d", len(rects))
	}
	r := rects[0]
	if r.Key != "7b:0" || r.Class != "bbox-base" || r.Stroke != "red" {
		t.Fatalf("unexpected rect %+v", r)
	}
	if !approx(r.X, 37.5) || !approx(r.Width, 25) {
		t.Fatalf("unexpected geometry %+v", r)
	}

	d.Draw(video, meta, "8b", Items{}, ChannelBase, "red")
	if n := len(c.Canvas().Rects()); n != 0 {
		t.Fatalf("empty draw left %d rects", n)
	}
}

func TestDetectionDrawWithoutSetupIsNoop(t *testing.T) {
	d := NewDetection()
	d.Draw(fakeVideo{1, 1}, backend.Video{Width: 1, Height: 1}, "0b", Items{Boxes: []backend.Box{{}}}, ChannelBase, "red")
}

func TestDetectionTeardownRemovesCanvas(t *testing.T) {
	c := NewContainer()
	d := NewDetection()
	d.Setup(c, fakeVideo{10, 10})
	d.Teardown(c)
	if c.Canvas() != nil {
		t.Fatal("canvas survived teardown")
	}
}

func TestClassificationReadout(t *testing.T) {
	c := NewContainer()
	a := NewClassification(Labels{1: "eating_food"})
	a.Setup(c, fakeVideo{})

	conf := 0.82
	class := 1
	a.Draw(nil, backend.Video{}, "5b", Items{Confidence: &conf, Class: &class}, ChannelBase, "red")
	ind := c.Indicator()
	if !ind.Visible || ind.Text != "0.82\nEating Food" {
		t.Fatalf("indicator = %+v", ind)
	}

	a.Draw(nil, backend.Video{}, "5g", Items{}, ChannelTracked, "green")
	if c.Indicator().Text != "0.82\nEating Food" {
		t.Fatal("tracked channel overwrote readout")
	}

	a.Hide()
	if c.Indicator().Visible {
		t.Fatal("hide left indicator visible")
	}
	a.Teardown(c)
	if c.Indicator().Text != "" {
		t.Fatal("teardown left readout text")
	}
	if c.Canvas() != nil {
		t.Fatal("classification mounted a canvas")
	}
}

func TestLabelsNameUnknownClass(t *testing.T) {
	if got := Labels(nil).Name(4); got != "class 4" {
		t.Fatalf("Name = %q", got)
	}
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yaml")
	if err := os.WriteFile(path, []byte("labels:\n  0: background\n  1: eating\n  2: \"  \"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	labels, err := LoadLabels(path)
	if err != nil {
		t.Fatalf("LoadLabels: %v", err)
	}
	if len(labels) != 2 || labels.Name(1) != "Eating" {
		t.Fatalf("labels = %v", labels)
	}
	if _, err := LoadLabels(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestForFeatureTypeAndSummary(t *testing.T) {
	if _, ok := ForFeatureType("Classification", nil).(*Classification); !ok {
		t.Fatal("expected classification adapter")
	}
	if _, ok := ForFeatureType("", nil).(*Detection); !ok {
		t.Fatal("expected detection adapter for empty feature type")
	}

	conf := 0.4
	data := backend.FeatureData{
		BaseBoxes:    []backend.Box{{}, {}},
		TrackedBoxes: []backend.Box{{}},
		Confidence:   &conf,
	}
	if got := Summary(backend.FeatureDetection, data); got != 3 {
		t.Fatalf("detection summary = %v", got)
	}
	if got := Summary(backend.FeatureClassification, data); got != 0.4 {
		t.Fatalf("classification summary = %v", got)
	}
	if got := Summary(backend.FeatureClassification, backend.FeatureData{}); got != 0 {
		t.Fatalf("missing confidence summary = %v", got)
	}
}

func TestWriteSVG(t *testing.T) {
	c := NewContainer()
	c.Mount(640, 360).Join("bbox-base", []Rect{{Key: "1b:0", X: 37.5, Y: 57.5, Width: 25, Height: 10, Stroke: "red"}})
	c.SetIndicatorText("0.5\n<odd>")
	c.SetIndicatorVisible(true)

	var buf bytes.Buffer
	if err := WriteSVG(&buf, c, 640, 360); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`width="640" height="360"`,
		`x="37.5" y="57.5" width="25" height="10"`,
		`class="bbox-base"`,
		`&lt;odd&gt;`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("svg missing %q:\n%s", want, out)
		}
	}
}

func TestRasterizeStrokesRect(t *testing.T) {
	c := NewContainer()
	c.Mount(100, 100).Join("bbox-base", []Rect{{Key: "k", X: 10, Y: 10, Width: 20, Height: 20, Stroke: "red"}})
	img := Rasterize(c, 100, 100)
	if got := img.RGBAAt(10, 15); got != (color.RGBA{R: 0xff, A: 0xff}) {
		t.Fatalf("edge pixel = %v", got)
	}
	if got := img.RGBAAt(20, 20); got.A != 0 {
		t.Fatalf("interior pixel = %v", got)
	}
}

func TestParseColor(t *testing.T) {
	if got := ParseColor("#00ff00"); got != (color.RGBA{G: 0xff, A: 0xff}) {
		t.Fatalf("hex = %v", got)
	}
	if got := ParseColor("mauve"); got != namedColors["red"] {
		t.Fatalf("fallback = %v", got)
	}
}
