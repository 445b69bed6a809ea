package backend

import (
	"strconv"
	"strings"
)

// Feature types reported by (or configured for) a job.
const (
	FeatureDetection      = "detection"
	FeatureClassification = "classification"
)

// Feature columns understood by the features endpoint.
const (
	ColumnBaseBoxes    = "base_bboxes"
	ColumnTrackedBoxes = "tracked_bboxes"
)

// Dataset is a named collection of videos.
type Dataset struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Job is a processing run over a dataset.
type Job struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FeatureType string `json:"featureType,omitempty"`
}

// Video describes one video of a dataset. Frame indices are valid in [0, Frames).
type Video struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Frames    int       `json:"frames"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	MediaPath string    `json:"mediaPath"`
	Times     []float64 `json:"times,omitempty"`
}

// Box is an annotation rectangle in annotation space. X and Y are the box centre.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// FeatureData holds the per-frame prediction columns.
type FeatureData struct {
	BaseBoxes []Box `json:"base_bboxes,omitempty"`
	// TrackedBoxes is nil when the column was not returned.
	TrackedBoxes []Box    `json:"tracked_bboxes,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Class        *int     `json:"class,omitempty"`
}

// HasTracked reports whether the payload carried a tracked_bboxes column.
func (d FeatureData) HasTracked() bool {
	return d.TrackedBoxes != nil
}

// FramePayload is one element of a features response.
type FramePayload struct {
	Frame int         `json:"frame"`
	Time  *float64    `json:"time,omitempty"`
	Data  FeatureData `json:"data"`
}

// FeatureQuery selects a frame range of feature data.
type FeatureQuery struct {
	DatasetID int64
	JobID     int64
	VideoID   int64
	Columns   []string
	Start     int
	End       int
	Stride    int
	Category  int
	Threshold float64
}

// Len returns the number of frames the query covers.
func (q FeatureQuery) Len() int {
	if q.End <= q.Start {
		return 0
	}
	return q.End - q.Start
}

func (q FeatureQuery) columnsParam() string {
	if len(q.Columns) == 0 {
		return ColumnBaseBoxes
	}
	return strings.Join(q.Columns, ",")
}

func (q FeatureQuery) thresholdParam() string {
	return strconv.FormatFloat(q.Threshold, 'f', -1, 64)
}

// ColumnsFor returns the feature columns requested for a job. Tracking jobs
// request tracked boxes alongside the base boxes.
func ColumnsFor(tracking bool) []string {
	if tracking {
		return []string{ColumnBaseBoxes, ColumnTrackedBoxes}
	}
	return []string{ColumnBaseBoxes}
}
