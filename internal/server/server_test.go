package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scanviewer/internal/shell"
	"scanviewer/internal/testsupport"
)

type testHost struct {
	app  *shell.App
	fake *testsupport.FakeBackend
	http *httptest.Server
}

func newTestHost(t *testing.T) *testHost {
	t.Helper()
	fake := testsupport.NewFakeBackend(t)
	cfg := testsupport.NewConfig(t, testsupport.WithBackendURL(fake.URL()))
	app, err := shell.New(context.Background(), shell.Options{Config: cfg, Catalog: fake.Client(t)})
	if err != nil {
		t.Fatalf("shell.New: %v", err)
	}
	t.Cleanup(app.Close)
	if err := app.Load(context.Background()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	srv, err := New(cfg, app, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testHost{app: app, fake: fake, http: ts}
}

func (h *testHost) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	resp, err := http.Post(h.http.URL+path, "application/json", reader)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *testHost) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(h.http.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeState(t *testing.T, resp *http.Response) shell.State {
	t.Helper()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	var st shell.State
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

func TestSelectionFlowOverHTTP(t *testing.T) {
	h := newTestHost(t)

	st := decodeState(t, h.post(t, "/api/datasets/1", ""))
	if st.SelectedDataset != testsupport.DemoDataset || len(st.Videos) != 2 {
		t.Fatalf("dataset state = %+v", st)
	}
	st = decodeState(t, h.post(t, "/api/jobs/1", ""))
	if st.SelectedJob != testsupport.TrackingJob {
		t.Fatalf("job = %d", st.SelectedJob)
	}
	decodeState(t, h.post(t, "/api/frame", `{"videoId":10,"frame":10}`))
	h.app.Wait()

	st = decodeState(t, h.get(t, "/api/state"))
	if st.Frame.Status != "valid" || st.SelectedFrame != 10 {
		t.Fatalf("frame state = %+v", st.Frame)
	}
	reqs := h.fake.FeatureRequests()
	if len(reqs) != 1 || reqs[0].Start != 9 || reqs[0].End != 11 || reqs[0].Columns != "base_bboxes,tracked_bboxes" {
		t.Fatalf("requests = %+v", reqs)
	}

	st = decodeState(t, h.post(t, "/api/key/right", ""))
	if st.SelectedFrame != 11 {
		t.Fatalf("key right frame = %d", st.SelectedFrame)
	}
	st = decodeState(t, h.post(t, "/api/jump", ""))
	if st.SelectedFrame != 999 {
		t.Fatalf("jump frame = %d", st.SelectedFrame)
	}
}

func TestErrorStatuses(t *testing.T) {
	h := newTestHost(t)
	tests := []struct {
		path string
		body string
		want int
	}{
		{path: "/api/jobs/1", want: http.StatusConflict},
		{path: "/api/datasets/99", want: http.StatusNotFound},
		{path: "/api/datasets/abc", want: http.StatusBadRequest},
		{path: "/api/key/up", want: http.StatusBadRequest},
		{path: "/api/frame", body: `{"videoId":1,"bogus":2}`, want: http.StatusBadRequest},
		{path: "/api/threshold", body: `{"threshold":3}`, want: http.StatusBadRequest},
		{path: "/api/threshold", body: `{}`, want: http.StatusBadRequest},
		{path: "/api/resize", body: `{"width":0,"height":10}`, want: http.StatusBadRequest},
		{path: "/api/pointer", body: `{"videoId":10,"event":"hover","x":1}`, want: http.StatusBadRequest},
		{path: "/api/jump", want: http.StatusConflict},
	}
	for _, tt := range tests {
		resp := h.post(t, tt.path, tt.body)
		if resp.StatusCode != tt.want {
			t.Errorf("POST %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
			continue
		}
		var body map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body["error"] == "" {
			t.Errorf("POST %s: expected JSON error body, got %v (%v)", tt.path, body, err)
		}
	}
}

func TestPageRendersCatalog(t *testing.T) {
	h := newTestHost(t)
	h.post(t, "/api/datasets/1", "")

	resp := h.get(t, "/")
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	for _, want := range []string{"facenet_eating_bg", "kitchen.mp4", `/api/plots/10.svg`, "Demo Jump", "(Classification)"} {
		if !bytes.Contains(body, []byte(want)) {
			t.Fatalf("page missing %q", want)
		}
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("missing request id header")
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := newTestHost(t)
	req, _ := http.NewRequest(http.MethodGet, h.http.URL+"/api/state", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get(requestIDHeader); got != "abc-123" {
		t.Fatalf("request id = %q", got)
	}
}

func TestRenderEndpoints(t *testing.T) {
	h := newTestHost(t)
	h.post(t, "/api/datasets/1", "")
	h.post(t, "/api/jobs/1", "")
	h.post(t, "/api/frame", `{"videoId":10,"frame":10}`)
	h.app.Wait()

	resp := h.get(t, "/api/overlay.svg")
	body, _ := io.ReadAll(resp.Body)
	if resp.Header.Get("Content-Type") != "image/svg+xml" || !bytes.Contains(body, []byte(`class="bbox-base"`)) {
		t.Fatalf("overlay svg = %s", body)
	}

	resp = h.get(t, "/api/overlay.png")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("overlay png status %d", resp.StatusCode)
	}

	resp = h.get(t, "/api/plots/10.svg")
	body, _ = io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(body, []byte("timeline-tick")) {
		t.Fatalf("plot svg status %d: %s", resp.StatusCode, body)
	}
	if resp := h.get(t, "/api/plots/77.svg"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown plot status %d", resp.StatusCode)
	}
	if resp := h.get(t, "/api/plots/10.png"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("non-svg plot status %d", resp.StatusCode)
	}
}

func TestEventsLongPoll(t *testing.T) {
	h := newTestHost(t)
	version := h.app.Bus().Version()

	resp := h.get(t, "/api/events?since="+jsonNumber(version)+"&timeout=20ms")
	var ev eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Changed || ev.Version != version {
		t.Fatalf("idle poll = %+v", ev)
	}

	done := make(chan eventsResponse, 1)
	go func() {
		resp, err := http.Get(h.http.URL + "/api/events?since=" + jsonNumber(version) + "&timeout=5s")
		if err != nil {
			return
		}
		defer resp.Body.Close()
		var ev eventsResponse
		_ = json.NewDecoder(resp.Body).Decode(&ev)
		done <- ev
	}()
	time.Sleep(20 * time.Millisecond)
	h.post(t, "/api/datasets/1", "")

	select {
	case ev := <-done:
		if !ev.Changed || ev.Version <= version {
			t.Fatalf("poll after change = %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("long poll not released")
	}

	if resp := h.get(t, "/api/events?timeout=bogus"); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad timeout status %d", resp.StatusCode)
	}
}

func TestThresholdReload(t *testing.T) {
	h := newTestHost(t)
	h.post(t, "/api/datasets/1", "")
	h.post(t, "/api/jobs/1", "")
	h.post(t, "/api/frame", `{"videoId":10,"frame":10}`)
	h.app.Wait()

	st := decodeState(t, h.post(t, "/api/threshold", `{"threshold":0.6,"reload":true}`))
	if st.Threshold != 0.6 || st.Frame.Status != "invalid" {
		t.Fatalf("state after reload = threshold %v status %s", st.Threshold, st.Frame.Status)
	}
}

func jsonNumber(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
