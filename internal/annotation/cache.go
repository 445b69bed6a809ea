package annotation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"scanviewer/internal/backend"
	"scanviewer/internal/logging"
)

// ErrNoScope is returned when frames are requested before a job is selected.
var ErrNoScope = errors.New("no job selected")

// ErrUnknownVideo is returned for video ids without a frame table.
var ErrUnknownVideo = errors.New("unknown video")

// Outcome describes what a range request did.
type Outcome int

const (
	// Satisfied means nothing in the range needed fetching: every frame is
	// either valid or already claimed by an in-flight request.
	Satisfied Outcome = iota
	// Pending means at least one backend request was issued.
	Pending
)

func (o Outcome) String() string {
	if o == Pending {
		return "pending"
	}
	return "satisfied"
}

// Fetcher retrieves feature payloads from the backend.
type Fetcher interface {
	Features(ctx context.Context, query backend.FeatureQuery) ([]backend.FramePayload, error)
}

// Scope identifies the dataset and job whose features fill the tables, along
// with the query parameters every request carries.
type Scope struct {
	DatasetID int64
	JobID     int64
	Columns   []string
	Stride    int
	Category  int
	Threshold float64
}

// Options configures a Cache.
type Options struct {
	// FetchAllGaps claims and fetches every invalid run of a requested range
	// instead of only the first one.
	FetchAllGaps bool
	Logger       *slog.Logger
	// OnChange is invoked, without cache locks held, after a fetch completion
	// was applied to a table. It runs on the fetching goroutine.
	OnChange func(videoID int64)
	// OnError is invoked after a failed or short fetch was applied.
	OnError func(videoID int64, err error)
}

// Cache owns the frame tables of the videos in the current dataset.
type Cache struct {
	fetcher Fetcher
	opts    Options
	logger  *slog.Logger

	mu         sync.Mutex
	scope      *Scope
	generation uint64
	tables     map[int64][]Frame

	inflight sync.WaitGroup
}

// New constructs an empty cache.
func New(fetcher Fetcher, opts Options) *Cache {
	return &Cache{
		fetcher: fetcher,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "annotation-cache"),
		tables:  make(map[int64][]Frame),
	}
}

// Seed replaces every table with invalid frames and clears the job scope.
// Videos that carry pre-sampled timestamps are seeded with one frame per
// timestamp when coarse is true.
func (c *Cache) Seed(videos []backend.Video, coarse bool) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.scope = nil
	c.tables = make(map[int64][]Frame, len(videos))
	for _, video := range videos {
		c.tables[video.ID] = newTable(video, coarse)
	}
	return c.generation
}

// Reset installs a new job scope and resets every table to invalid frames,
// one per video frame. Requests still in flight for the previous generation
// are discarded when they complete.
func (c *Cache) Reset(scope Scope, videos []backend.Video) uint64 {
	scope.Columns = append([]string(nil), scope.Columns...)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.scope = &scope
	c.tables = make(map[int64][]Frame, len(videos))
	for _, video := range videos {
		c.tables[video.ID] = newTable(video, false)
	}
	return c.generation
}

// SetThreshold changes the confidence threshold sent with later requests.
func (c *Cache) SetThreshold(threshold float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.scope != nil {
		c.scope.Threshold = threshold
	}
}

// Generation returns the current table generation.
func (c *Cache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Len returns the table length for a video, or 0 when unknown.
func (c *Cache) Len(videoID int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables[videoID])
}

// Frame returns one frame record.
func (c *Cache) Frame(videoID int64, index int) (Frame, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	table := c.tables[videoID]
	if index < 0 || index >= len(table) {
		return Frame{}, false
	}
	return table[index], true
}

// Table returns a copy of a video's frame table.
func (c *Cache) Table(videoID int64) []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	table := c.tables[videoID]
	if table == nil {
		return nil
	}
	out := make([]Frame, len(table))
	copy(out, table)
	return out
}

// Counts tallies the statuses of a video's frames.
func (c *Cache) Counts(videoID int64) Counts {
	c.mu.Lock()
	defer c.mu.Unlock()
	var counts Counts
	for _, frame := range c.tables[videoID] {
		switch frame.Status {
		case StatusInvalid:
			counts.Invalid++
		case StatusLoading:
			counts.Loading++
		case StatusValid:
			counts.Valid++
		case StatusFailed:
			counts.Failed++
		}
	}
	return counts
}

// RequestRange claims the fetchable frames of [start, end) and fetches them
// in the background. ctx bounds the background fetch, so it must outlive the
// caller's request.
func (c *Cache) RequestRange(ctx context.Context, videoID int64, start, end int) Outcome {
	gen, scope, spans, err := c.claim(videoID, start, end)
	if err != nil || len(spans) == 0 {
		return Satisfied
	}
	for _, span := range spans {
		c.inflight.Add(1)
		go func(span Span) {
			defer c.inflight.Done()
			_ = c.fetch(ctx, gen, scope, videoID, span)
		}(span)
	}
	return Pending
}

// LoadRange claims the fetchable frames of [start, end) and fetches them
// before returning.
func (c *Cache) LoadRange(ctx context.Context, videoID int64, start, end int) (Outcome, error) {
	gen, scope, spans, err := c.claim(videoID, start, end)
	if err != nil {
		return Satisfied, err
	}
	if len(spans) == 0 {
		return Satisfied, nil
	}
	var errs []error
	for _, span := range spans {
		if err := c.fetch(ctx, gen, scope, videoID, span); err != nil {
			errs = append(errs, err)
		}
	}
	return Pending, errors.Join(errs...)
}

// Wait blocks until every background fetch has completed.
func (c *Cache) Wait() {
	c.inflight.Wait()
}

// claim runs the two-pointer scan and marks claimed frames loading.
func (c *Cache) claim(videoID int64, start, end int) (uint64, Scope, []Span, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.scope == nil {
		return 0, Scope{}, nil, ErrNoScope
	}
	table, ok := c.tables[videoID]
	if !ok {
		return 0, Scope{}, nil, fmt.Errorf("%w: %d", ErrUnknownVideo, videoID)
	}
	start = max(start, 0)
	end = min(end, len(table))

	var spans []Span
	for start < end {
		span := claimRun(table, start, end)
		if span.Len() == 0 {
			break
		}
		spans = append(spans, span)
		if !c.opts.FetchAllGaps {
			break
		}
		start = span.End
	}
	return c.generation, *c.scope, spans, nil
}

// claimRun claims the first contiguous run of claimable frames in
// [start, end). The returned span is empty when nothing was claimable.
func claimRun(table []Frame, start, end int) Span {
	foundStart := false
	requestStart, requestEnd := start, end
	for i := start; i < end; i++ {
		if !table[i].Status.claimable() {
			if foundStart {
				requestEnd = i
				break
			}
			requestStart = i + 1
			continue
		}
		foundStart = true
		table[i].Status = StatusLoading
	}
	if !foundStart {
		return Span{Start: end, End: end}
	}
	return Span{Start: requestStart, End: requestEnd}
}

func (c *Cache) fetch(ctx context.Context, gen uint64, scope Scope, videoID int64, span Span) error {
	query := backend.FeatureQuery{
		DatasetID: scope.DatasetID,
		JobID:     scope.JobID,
		VideoID:   videoID,
		Columns:   scope.Columns,
		Start:     span.Start,
		End:       span.End,
		Stride:    scope.Stride,
		Category:  scope.Category,
		Threshold: scope.Threshold,
	}
	c.logger.Debug("fetching frame range",
		logging.Int64(logging.FieldVideoID, videoID),
		logging.Int64(logging.FieldJobID, scope.JobID),
		logging.Int("start", span.Start),
		logging.Int("end", span.End),
	)
	payloads, err := c.fetcher.Features(ctx, query)
	if err != nil {
		logging.WarnWithContext(c.logger, "frame range fetch failed", "frame_fetch_failed",
			logging.Int64(logging.FieldVideoID, videoID),
			logging.Int("start", span.Start),
			logging.Int("end", span.End),
			logging.Error(err),
			logging.String(logging.FieldImpact, "frames marked failed; retried on next request"),
		)
	}
	applied := c.apply(gen, videoID, span, payloads, err)
	if applied {
		c.notify(videoID)
	}
	var fetchErr error
	switch {
	case err != nil:
		fetchErr = fmt.Errorf("fetch frames [%d, %d) of video %d: %w", span.Start, span.End, videoID, err)
	case len(payloads) < span.Len():
		fetchErr = fmt.Errorf("fetch frames [%d, %d) of video %d: backend returned %d of %d frames",
			span.Start, span.End, videoID, len(payloads), span.Len())
	}
	if fetchErr != nil && applied && c.opts.OnError != nil {
		c.opts.OnError(videoID, fetchErr)
	}
	return fetchErr
}

// apply stores a completion. It reports false when the completion belongs to
// a stale generation and was dropped.
func (c *Cache) apply(gen uint64, videoID int64, span Span, payloads []backend.FramePayload, fetchErr error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug("dropping stale frame range",
			logging.Int64(logging.FieldVideoID, videoID),
			logging.Int("start", span.Start),
			logging.Int("end", span.End),
		)
		return false
	}
	table := c.tables[videoID]
	for i := 0; i < span.Len(); i++ {
		index := span.Start + i
		if index >= len(table) {
			break
		}
		if table[index].Status != StatusLoading {
			continue
		}
		if fetchErr != nil || i >= len(payloads) {
			table[index].Status = StatusFailed
			continue
		}
		payload := payloads[i]
		if payload.Time == nil {
			payload.Time = table[index].Payload.Time
		}
		table[index] = Frame{Status: StatusValid, Payload: payload}
	}
	return true
}

func (c *Cache) notify(videoID int64) {
	if c.opts.OnChange != nil {
		c.opts.OnChange(videoID)
	}
}
