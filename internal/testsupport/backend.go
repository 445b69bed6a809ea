package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"scanviewer/internal/backend"
)

// FeatureRequest records one call to the features endpoint.
type FeatureRequest struct {
	DatasetID int64
	JobID     int64
	VideoID   int64
	Columns   string
	Start     int
	End       int
	Threshold string
}

// FakeBackend is an in-memory annotation backend served over httptest.
//
// The default catalog holds dataset 1 ("demo") with three jobs (a tracking
// detector, a base-only detector and a classifier) and two videos of 1000
// and 40 frames.
type FakeBackend struct {
	server *httptest.Server

	mu       sync.Mutex
	datasets []backend.Dataset
	jobs     map[int64][]backend.Job
	videos   map[int64][]backend.Video
	requests []FeatureRequest
	fail     bool
	gate     chan struct{}
}

// Default catalog ids.
const (
	DemoDataset   int64 = 1
	TrackingJob   int64 = 1
	BaseOnlyJob   int64 = 2
	ClassifierJob int64 = 3
	LongVideo     int64 = 10
	ShortVideo    int64 = 11
)

// NewFakeBackend starts a fake backend that is closed when the test ends.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()
	f := &FakeBackend{
		datasets: []backend.Dataset{{ID: DemoDataset, Name: "demo"}},
		jobs: map[int64][]backend.Job{
			DemoDataset: {
				{ID: TrackingJob, Name: "facenet_eating_bg"},
				{ID: BaseOnlyJob, Name: "bboxes_test"},
				{ID: ClassifierJob, Name: "eating_classifier", FeatureType: backend.FeatureClassification},
			},
		},
		videos: map[int64][]backend.Video{
			DemoDataset: {
				{ID: LongVideo, Name: "kitchen.mp4", Frames: 1000, Width: 1280, Height: 720, MediaPath: "/media/kitchen.mp4"},
				{ID: ShortVideo, Name: "hall.mp4", Frames: 40, Width: 640, Height: 360, MediaPath: "/media/hall.mp4"},
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /datasets", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.datasets)
	})
	mux.HandleFunc("GET /datasets/{id}/jobs", func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.jobs[id])
	})
	mux.HandleFunc("GET /datasets/{id}/videos", func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, f.videos[id])
	})
	mux.HandleFunc("GET /datasets/{id}/jobs/{job}/features/{video}", f.handleFeatures)

	f.server = httptest.NewServer(mux)
	t.Cleanup(func() {
		f.Release()
		f.server.Close()
	})
	return f
}

// URL returns the backend base URL.
func (f *FakeBackend) URL() string { return f.server.URL }

// Client returns a backend client for the fake.
func (f *FakeBackend) Client(t testing.TB) *backend.Client {
	t.Helper()
	client, err := backend.New(f.URL())
	if err != nil {
		t.Fatalf("backend client: %v", err)
	}
	return client
}

// SetVideos replaces a dataset's videos.
func (f *FakeBackend) SetVideos(datasetID int64, videos []backend.Video) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos[datasetID] = videos
}

// FailFeatures makes the features endpoint answer 500 until reset.
func (f *FakeBackend) FailFeatures(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

// Hold blocks feature responses until Release is called.
func (f *FakeBackend) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate == nil {
		f.gate = make(chan struct{})
	}
}

// Release unblocks held feature responses.
func (f *FakeBackend) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
}

// FeatureRequests returns the feature requests received so far.
func (f *FakeBackend) FeatureRequests() []FeatureRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FeatureRequest(nil), f.requests...)
}

func (f *FakeBackend) handleFeatures(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	jobID, ok := pathID(w, r, "job")
	if !ok {
		return
	}
	videoID, ok := pathID(w, r, "video")
	if !ok {
		return
	}
	q := r.URL.Query()
	start, err1 := strconv.Atoi(q.Get("start"))
	end, err2 := strconv.Atoi(q.Get("end"))
	if err1 != nil || err2 != nil || end < start {
		http.Error(w, "bad range", http.StatusBadRequest)
		return
	}
	req := FeatureRequest{
		DatasetID: datasetID,
		JobID:     jobID,
		VideoID:   videoID,
		Columns:   q.Get("columns"),
		Start:     start,
		End:       end,
		Threshold: q.Get("threshold"),
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	fail, gate := f.fail, f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		http.Error(w, "features unavailable", http.StatusInternalServerError)
		return
	}

	tracked := strings.Contains(req.Columns, backend.ColumnTrackedBoxes)
	classifier := jobID == ClassifierJob
	payloads := make([]backend.FramePayload, 0, end-start)
	for i := start; i < end; i++ {
		payloads = append(payloads, SyntheticFrame(i, tracked, classifier))
	}
	writeJSON(w, payloads)
}

// SyntheticFrame is the payload the fake serves for frame i: even frames
// carry one base box, every third frame a tracked box when tracked is set,
// and classifiers report a confidence of (i%10)/10 for class i%2.
func SyntheticFrame(i int, tracked, classifier bool) backend.FramePayload {
	ts := float64(i) / 25
	payload := backend.FramePayload{Frame: i, Time: &ts}
	if classifier {
		conf := float64(i%10) / 10
		class := i % 2
		payload.Data.Confidence = &conf
		payload.Data.Class = &class
		return payload
	}
	payload.Data.BaseBoxes = []backend.Box{}
	if i%2 == 0 {
		payload.Data.BaseBoxes = append(payload.Data.BaseBoxes, backend.Box{X: 100, Y: 125, Width: 50, Height: 20})
	}
	if tracked {
		payload.Data.TrackedBoxes = []backend.Box{}
		if i%3 == 0 {
			payload.Data.TrackedBoxes = append(payload.Data.TrackedBoxes, backend.Box{X: 300, Y: 200, Width: 40, Height: 40})
		}
	}
	return payload
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		http.Error(w, "bad id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
