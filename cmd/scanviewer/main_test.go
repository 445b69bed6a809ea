package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"scanviewer/internal/annotation"
	"scanviewer/internal/backend"
	"scanviewer/internal/config"
	"scanviewer/internal/logging"
	"scanviewer/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	fake       *testsupport.FakeBackend
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	fake := testsupport.NewFakeBackend(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(fake.URL()))
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, fake: fake, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestDatasetsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "datasets")
	if err != nil {
		t.Fatalf("datasets: %v", err)
	}
	if !strings.Contains(out, "demo") {
		t.Fatalf("expected dataset name in output, got:\n%s", out)
	}
}

func TestJobsCommandShowsResolvedTypes(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "jobs", "--dataset", "1")
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	for _, want := range []string{"facenet_eating_bg", "bboxes_test", "classification", "detection"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}

	if _, err := env.run(t, "jobs"); err == nil {
		t.Fatal("expected error without --dataset")
	}
}

func TestVideosCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "videos", "--dataset", "1", "--json")
	if err != nil {
		t.Fatalf("videos: %v", err)
	}
	var videos []backend.Video
	if err := json.Unmarshal([]byte(out), &videos); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(videos) != 2 || videos[0].ID != testsupport.LongVideo || videos[0].Frames != 1000 {
		t.Fatalf("videos = %+v", videos)
	}
}

func TestFramesCommandLoadsRange(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "frames", "-d", "1", "-j", "1", "--video", "10", "--start", "8", "--count", "4", "--json")
	if err != nil {
		t.Fatalf("frames: %v", err)
	}
	var frames []annotation.Frame
	if err := json.Unmarshal([]byte(out), &frames); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(frames))
	}
	for i, f := range frames {
		if f.Status != annotation.StatusValid {
			t.Fatalf("frame %d status %s", 8+i, f.Status)
		}
	}
	if len(frames[0].Payload.Data.BaseBoxes) != 1 || len(frames[1].Payload.Data.BaseBoxes) != 0 {
		t.Fatalf("unexpected base boxes: %+v", frames[:2])
	}
	if !frames[1].Payload.Data.HasTracked() || len(frames[1].Payload.Data.TrackedBoxes) != 1 {
		t.Fatalf("frame 9 should carry one tracked box: %+v", frames[1].Payload.Data)
	}

	reqs := env.fake.FeatureRequests()
	if len(reqs) != 1 || reqs[0].Start != 8 || reqs[0].End != 12 || reqs[0].Threshold != "0.3" {
		t.Fatalf("requests = %+v", reqs)
	}
}

func TestFramesCommandTableAndThreshold(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "frames", "-d", "1", "-j", "3", "--video", "11", "--start", "35", "--count", "10", "--threshold", "0.7")
	if err != nil {
		t.Fatalf("frames: %v", err)
	}
	if !strings.Contains(out, "hall.mp4") || !strings.Contains(out, "classification") || !strings.Contains(out, "valid") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	reqs := env.fake.FeatureRequests()
	if len(reqs) != 1 || reqs[0].End != 40 || reqs[0].Threshold != "0.7" {
		t.Fatalf("requests = %+v", reqs)
	}

	if _, err := env.run(t, "frames", "-d", "1", "-j", "9", "--video", "11"); err == nil {
		t.Fatal("expected unknown job error")
	}
	if _, err := env.run(t, "frames", "-d", "1", "-j", "1", "--video", "11", "--start", "40"); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestRenderCommandSVG(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(t.TempDir(), "frame.svg")
	out, err := env.run(t, "render", "-d", "1", "-j", "2", "--video", "10", "--frame", "10", "-o", target)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "Frame 10") {
		t.Fatalf("expected frame label in output, got %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	svg := string(data)
	if !strings.Contains(svg, `class="bbox-base"`) || !strings.Contains(svg, "stroke:yellow") {
		t.Fatalf("expected a yellow base box for the base-only job:\n%s", svg)
	}
}

func TestRenderCommandPNG(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(t.TempDir(), "frame.png")
	if _, err := env.run(t, "render", "-d", "1", "-j", "1", "--video", "11", "--frame", "4", "--width", "320", "--height", "180", "-o", target); err != nil {
		t.Fatalf("render: %v", err)
	}
	file, err := os.Open(target)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 320 || b.Dy() != 180 {
		t.Fatalf("bounds = %v", b)
	}

	if _, err := env.run(t, "render", "-d", "1", "-j", "1", "--video", "11", "-o", "frame.gif"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("expected target path in output, got %q", out)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when config exists")
	}
	if _, err := env.run(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, err = env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, env.fake.URL()) || !strings.Contains(out, "prefetch_plots") {
		t.Fatalf("unexpected config show output:\n%s", out)
	}

	out, err = env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Fatalf("unexpected validate output: %q", out)
	}
}

func TestRunServeRefusesSecondInstance(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(env.cfg.Server.StateDir, lockFileName))
	ok, err := held.TryLock()
	if err != nil || !ok {
		t.Fatalf("lock: ok=%v err=%v", ok, err)
	}
	defer held.Unlock() //nolint:errcheck

	err = runServe(context.Background(), env.cfg, env.fake.Client(t), logging.NewNop(), serveOptions{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "already serving") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestRunServePreflightFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	env.cfg.Viewer.LabelsPath = filepath.Join(t.TempDir(), "missing.yaml")

	err := runServe(context.Background(), env.cfg, env.fake.Client(t), logging.NewNop(), serveOptions{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "Labels file") {
		t.Fatalf("expected preflight error, got %v", err)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunServeHostsViewer(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	client := env.fake.Client(t)
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, env.cfg, client, logging.NewNop(), serveOptions{datasetID: testsupport.DemoDataset}, out)
	}()

	var addr string
	deadline := time.Now().Add(5 * time.Second)
	for addr == "" && time.Now().Before(deadline) {
		if text := out.String(); strings.Contains(text, "http://") {
			addr = strings.TrimSpace(text[strings.Index(text, "http://"):])
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == "" {
		cancel()
		t.Fatalf("server did not report an address: %q", out.String())
	}

	resp, err := http.Get(addr + "/api/state")
	if err != nil {
		cancel()
		t.Fatalf("GET state: %v", err)
	}
	var state struct {
		SelectedDataset int64 `json:"selectedDataset"`
	}
	err = json.NewDecoder(resp.Body).Decode(&state)
	resp.Body.Close()
	if err != nil || state.SelectedDataset != testsupport.DemoDataset {
		cancel()
		t.Fatalf("state = %+v err=%v", state, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServe: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runServe did not return after cancel")
	}
}
