package annotation

import "scanviewer/internal/backend"

// Status is the fetch state of one frame.
type Status string

const (
	StatusInvalid Status = "invalid"
	StatusLoading Status = "loading"
	StatusValid   Status = "valid"
	StatusFailed  Status = "failed"
)

// claimable reports whether a frame may be claimed by a new request. Failed
// frames are retried on the next request that covers them.
func (s Status) claimable() bool {
	return s == StatusInvalid || s == StatusFailed
}

// Frame is the annotation record of one (video, frame index).
type Frame struct {
	Status  Status               `json:"status"`
	Payload backend.FramePayload `json:"data"`
}

// Time returns the frame timestamp when one is known.
func (f Frame) Time() (float64, bool) {
	if f.Payload.Time == nil {
		return 0, false
	}
	return *f.Payload.Time, true
}

// Span is a half-open frame index range.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of frames in the span.
func (s Span) Len() int {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Counts tallies frame statuses of one table.
type Counts struct {
	Invalid int `json:"invalid"`
	Loading int `json:"loading"`
	Valid   int `json:"valid"`
	Failed  int `json:"failed"`
}

// Total returns the number of frames counted.
func (c Counts) Total() int {
	return c.Invalid + c.Loading + c.Valid + c.Failed
}

func newTable(video backend.Video, coarse bool) []Frame {
	if coarse && len(video.Times) > 0 {
		table := make([]Frame, len(video.Times))
		for i, t := range video.Times {
			ts := t
			table[i] = Frame{Status: StatusInvalid, Payload: backend.FramePayload{Frame: i, Time: &ts}}
		}
		return table
	}
	frames := video.Frames
	if frames < 0 {
		frames = 0
	}
	table := make([]Frame, frames)
	for i := range table {
		table[i] = Frame{Status: StatusInvalid}
	}
	return table
}
