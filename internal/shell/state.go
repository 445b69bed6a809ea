package shell

import (
	"fmt"
	"image"
	"io"

	"scanviewer/internal/annotation"
	"scanviewer/internal/backend"
	"scanviewer/internal/overlay"
	"scanviewer/internal/viewer"
)

// VideoState summarises one video of the active dataset.
type VideoState struct {
	backend.Video
	Counts    annotation.Counts `json:"counts"`
	PlotReady bool              `json:"plotReady"`
	Selected  int               `json:"selectedFrame"`
}

// State is a point-in-time copy of the application state.
type State struct {
	Version         uint64              `json:"version"`
	Datasets        []backend.Dataset   `json:"datasets"`
	Jobs            []backend.Job       `json:"jobs"`
	Videos          []VideoState        `json:"videos"`
	SelectedDataset int64               `json:"selectedDataset"`
	SelectedJob     int64               `json:"selectedJob"`
	SelectedVideo   int64               `json:"selectedVideo"`
	SelectedFrame   int                 `json:"selectedFrame"`
	FeatureType     string              `json:"featureType"`
	Threshold       float64             `json:"threshold"`
	LayoutHeight    float64             `json:"layoutHeight"`
	Frame           annotation.Frame    `json:"frame"`
	Viewer          viewer.Snapshot     `json:"viewer"`
	PlotValues      map[int64][]float64 `json:"-"`
	LastError       string              `json:"lastError,omitempty"`
}

// Snapshot returns a copy of the current state.
func (a *App) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := State{
		Version:         a.bus.Version(),
		Datasets:        append([]backend.Dataset{}, a.datasets...),
		Jobs:            append([]backend.Job{}, a.jobs...),
		Videos:          make([]VideoState, 0, len(a.videos)),
		SelectedDataset: a.selectedDataset,
		SelectedJob:     a.selectedJob,
		SelectedVideo:   a.selectedVideo,
		SelectedFrame:   a.selectedFrame,
		FeatureType:     a.featureType,
		Threshold:       a.threshold,
		LayoutHeight:    a.layoutHeight,
		Viewer:          a.panel.Snapshot(),
		PlotValues:      make(map[int64][]float64, len(a.plotValues)),
		LastError:       a.lastError,
	}
	for _, v := range a.videos {
		_, ready := a.plotValues[v.ID]
		vs := VideoState{Video: v, Counts: a.cache.Counts(v.ID), PlotReady: ready, Selected: -1}
		if n, ok := a.browser.Navigator(v.ID); ok {
			vs.Selected = n.Timeline().Selected()
		}
		st.Videos = append(st.Videos, vs)
	}
	for id, values := range a.plotValues {
		st.PlotValues[id] = append([]float64(nil), values...)
	}
	if a.selectedVideo != none {
		st.Frame, _ = a.cache.Frame(a.selectedVideo, a.selectedFrame)
	}
	return st
}

// FrameTable returns a copy of a video's frame table.
func (a *App) FrameTable(videoID int64) ([]annotation.Frame, error) {
	table := a.cache.Table(videoID)
	if table == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVideo, videoID)
	}
	return table, nil
}

// WriteOverlaySVG renders the viewer overlay.
func (a *App) WriteOverlaySVG(w io.Writer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	width, height := a.panel.Video().ViewSize()
	return overlay.WriteSVG(w, a.panel.Container(), width, height)
}

// OverlayImage rasterises the viewer overlay at its rendered size.
func (a *App) OverlayImage() *image.RGBA {
	a.mu.Lock()
	defer a.mu.Unlock()
	width, height := a.panel.Video().ViewSize()
	return overlay.Rasterize(a.panel.Container(), int(width), int(height))
}

// WritePlotSVG renders the timeline of one video.
func (a *App) WritePlotSVG(w io.Writer, videoID int64) error {
	n, ok := a.browser.Navigator(videoID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVideo, videoID)
	}
	return n.Timeline().WriteSVG(w)
}
