package shell

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"scanviewer/internal/annotation"
	"scanviewer/internal/backend"
	"scanviewer/internal/browser"
	"scanviewer/internal/config"
	"scanviewer/internal/logging"
	"scanviewer/internal/overlay"
	"scanviewer/internal/statebus"
	"scanviewer/internal/timeline"
	"scanviewer/internal/viewer"
)

var (
	ErrUnknownDataset = errors.New("unknown dataset")
	ErrUnknownJob     = errors.New("unknown job")
	ErrUnknownVideo   = errors.New("unknown video")
	ErrNoDataset      = errors.New("no dataset selected")
	ErrNoJob          = errors.New("no job selected")
	ErrNoVideo        = errors.New("no video selected")
	ErrBadThreshold   = errors.New("threshold must be between 0 and 1")
)

// none marks an unset selection.
const none int64 = -1

// Options wires an App to its collaborators.
type Options struct {
	Config  *config.Config
	Catalog backend.Catalog
	Labels  overlay.Labels
	Bus     *statebus.Bus
	Logger  *slog.Logger
	// AfterFunc replaces the timeline debounce timer, mainly for tests.
	AfterFunc timeline.AfterFunc
}

// App is the viewer application state machine.
type App struct {
	cfg     *config.Config
	catalog backend.Catalog
	bus     *statebus.Bus
	logger  *slog.Logger

	// ctx bounds background fetches; it outlives individual requests.
	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	cache   *annotation.Cache
	panel   *viewer.Panel
	browser *browser.Browser

	mu              sync.Mutex
	datasets        []backend.Dataset
	jobs            []backend.Job
	videos          []backend.Video
	selectedDataset int64
	selectedJob     int64
	selectedVideo   int64
	selectedFrame   int
	featureType     string
	threshold       float64
	layoutHeight    float64
	generation      uint64
	plotValues      map[int64][]float64
	lastError       string
}

// New constructs an App. Background work stops when ctx is cancelled or
// Close is called.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("shell: config is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("shell: backend catalog is required")
	}
	bus := opts.Bus
	if bus == nil {
		bus = statebus.New()
	}
	logger := logging.NewComponentLogger(opts.Logger, "shell")
	cfg := opts.Config

	appCtx, cancel := context.WithCancel(ctx)
	a := &App{
		cfg:             cfg,
		catalog:         opts.Catalog,
		bus:             bus,
		logger:          logger,
		ctx:             appCtx,
		cancel:          cancel,
		selectedDataset: none,
		selectedJob:     none,
		selectedVideo:   none,
		featureType:     backend.FeatureDetection,
		threshold:       cfg.Viewer.Threshold,
		layoutHeight:    float64(cfg.Viewer.ViewHeight),
		plotValues:      map[int64][]float64{},
	}
	a.cache = annotation.New(opts.Catalog, annotation.Options{
		FetchAllGaps: cfg.Viewer.FetchAllGaps,
		Logger:       opts.Logger,
		OnChange:     a.framesChanged,
		OnError:      a.framesFailed,
	})
	a.panel = viewer.New(viewer.Options{
		Width:  float64(cfg.Viewer.ViewWidth),
		Height: float64(cfg.Viewer.ViewHeight),
		NewAdapter: func(featureType string) overlay.Adapter {
			return overlay.ForFeatureType(featureType, opts.Labels)
		},
		IsBaseOnly: cfg.IsBaseOnlyJob,
		Logger:     logging.NewComponentLogger(opts.Logger, "viewer"),
	})
	a.browser = browser.New(browser.Options{
		Width:     float64(cfg.Viewer.ViewWidth),
		Height:    float64(cfg.Viewer.PlotHeight),
		TickWidth: float64(cfg.Viewer.TickWidth),
		Debounce:  cfg.Debounce(),
		AfterFunc: opts.AfterFunc,
		OnSelect:  a.timelineSelected,
	})
	return a, nil
}

// Bus returns the state bus changes are published on.
func (a *App) Bus() *statebus.Bus { return a.bus }

// Load fetches the dataset catalog.
func (a *App) Load(ctx context.Context) error {
	datasets, err := a.catalog.Datasets(ctx)
	if err != nil {
		a.recordError(err)
		return fmt.Errorf("load datasets: %w", err)
	}
	a.mu.Lock()
	a.datasets = datasets
	a.mu.Unlock()
	a.logger.Info("datasets loaded", logging.Int("count", len(datasets)))
	a.bus.Publish(statebus.EventDatasets, 0)
	return nil
}

// SelectDataset switches to a dataset: its jobs and videos are fetched, the
// job, video and frame selections are reset, and every video gets a fresh
// table of invalid frames.
func (a *App) SelectDataset(ctx context.Context, id int64) error {
	a.mu.Lock()
	if len(a.datasets) > 0 && !containsDataset(a.datasets, id) {
		a.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownDataset, id)
	}
	a.generation++
	gen := a.generation
	a.selectedDataset = id
	a.selectedJob = none
	a.jobs = nil
	a.mu.Unlock()

	logger := logging.WithContext(ctx, a.logger).With(logging.Int64(logging.FieldDatasetID, id))

	var jobs []backend.Job
	var videos []backend.Video
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		jobs, err = a.catalog.Jobs(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		videos, err = a.catalog.Videos(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		a.recordError(err)
		return fmt.Errorf("select dataset %d: %w", id, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.generation {
		logger.Debug("discarding stale dataset catalog")
		return nil
	}
	a.jobs = jobs
	a.videos = videos
	a.selectedVideo = none
	a.selectedFrame = 0
	a.featureType = backend.FeatureDetection
	a.plotValues = map[int64][]float64{}
	a.lastError = ""
	a.cache.Seed(videos, true)
	a.browser.SetVideos(videos)
	a.panel.SetJob(backend.Job{ID: none}, backend.FeatureDetection)
	if len(videos) > 0 {
		a.selectedVideo = videos[0].ID
		a.panel.SetVideo(videos[0])
	}
	a.panel.Clear()
	a.showLocked()

	logger.Info("dataset selected",
		logging.Int("jobs", len(jobs)),
		logging.Int("videos", len(videos)),
	)
	a.bus.Publish(statebus.EventDataset, 0)
	return nil
}

// SelectJob switches the active job: every table is reset to invalid frames,
// the overlay adapter follows the job's feature type, and a full-range
// prefetch of every video starts in the background to fill the plots.
func (a *App) SelectJob(ctx context.Context, id int64) error {
	a.mu.Lock()
	if a.selectedDataset == none {
		a.mu.Unlock()
		return ErrNoDataset
	}
	job, ok := findJob(a.jobs, id)
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownJob, id)
	}
	a.generation++
	gen := a.generation
	a.selectedJob = id
	a.featureType = a.featureTypeFor(job)
	a.plotValues = map[int64][]float64{}
	a.lastError = ""
	scope := annotation.Scope{
		DatasetID: a.selectedDataset,
		JobID:     id,
		Columns:   backend.ColumnsFor(a.cfg.IsTrackingJob(job.Name)),
		Stride:    a.cfg.Viewer.Stride,
		Category:  a.cfg.Viewer.Category,
		Threshold: a.threshold,
	}
	videos := append([]backend.Video(nil), a.videos...)
	a.cache.Reset(scope, videos)
	a.browser.ClearPlotValues()
	a.panel.SetJob(job, a.featureType)
	a.panel.Clear()
	a.showLocked()
	featureType := a.featureType
	a.mu.Unlock()

	logging.WithContext(ctx, a.logger).Info("job selected",
		logging.Int64(logging.FieldJobID, id),
		logging.String("job", job.Name),
		logging.String("feature_type", featureType),
		logging.String("columns", fmt.Sprint(scope.Columns)),
	)
	a.bus.Publish(statebus.EventJob, 0)

	if !a.cfg.Viewer.PrefetchPlots {
		return nil
	}
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		a.prefetch(gen, videos)
	}()
	return nil
}

// Reload re-selects the active job, discarding every loaded frame.
func (a *App) Reload(ctx context.Context) error {
	a.mu.Lock()
	job := a.selectedJob
	a.mu.Unlock()
	if job == none {
		return ErrNoJob
	}
	return a.SelectJob(ctx, job)
}

// SelectFrame moves the selection to a frame of a video and requests the
// frames around it. Out-of-range frames are clamped to the video.
func (a *App) SelectFrame(ctx context.Context, sel timeline.Selection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selectFrameLocked(ctx, sel)
}

func (a *App) selectFrameLocked(ctx context.Context, sel timeline.Selection) error {
	video, ok := findVideo(a.videos, sel.VideoID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVideo, sel.VideoID)
	}
	frame := clampFrame(sel.Frame, video.Frames)
	if video.ID != a.selectedVideo {
		a.panel.SetVideo(video)
		a.panel.Clear()
	}
	a.selectedVideo = video.ID
	a.selectedFrame = frame

	if a.selectedJob != none {
		radius := max(a.cfg.Viewer.RequestRadius, 1)
		outcome := a.cache.RequestRange(a.ctx, video.ID, frame-radius, frame+radius)
		logging.WithContext(ctx, a.logger).Debug("frame selected",
			logging.Int64(logging.FieldVideoID, video.ID),
			logging.Int("frame", frame),
			logging.String("outcome", outcome.String()),
		)
	}
	a.showLocked()
	a.bus.Publish(statebus.EventFrame, video.ID)
	return nil
}

// Key steps the selected frame one to the left or right.
func (a *App) Key(ctx context.Context, key Key) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selectedVideo == none {
		return ErrNoVideo
	}
	frame := a.selectedFrame - 1
	if key == KeyRight {
		frame = a.selectedFrame + 1
	}
	return a.selectFrameLocked(ctx, timeline.Selection{VideoID: a.selectedVideo, Frame: frame})
}

// Jump selects the configured jump frame on the selected video.
func (a *App) Jump(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selectedVideo == none {
		return ErrNoVideo
	}
	return a.selectFrameLocked(ctx, timeline.Selection{VideoID: a.selectedVideo, Frame: a.cfg.Viewer.JumpFrame})
}

// Pointer forwards a pointer event to a video's timeline. Selections follow
// once the debounce window has passed.
func (a *App) Pointer(videoID int64, kind browser.PointerKind, x float64) error {
	if err := a.browser.Pointer(videoID, kind, x); err != nil {
		if errors.Is(err, browser.ErrUnknownVideo) {
			return fmt.Errorf("%w: %d", ErrUnknownVideo, videoID)
		}
		return err
	}
	return nil
}

// Resize records a new layout size. The video overlay is re-attached at the
// new size and the timelines are re-laid out; no data is fetched.
func (a *App) Resize(width, height float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.layoutHeight = height
	a.panel.Resize(width, height)
	a.browser.Resize(width)
	a.showLocked()
	a.bus.Publish(statebus.EventResize, 0)
}

// SetThreshold changes the confidence threshold sent with later frame
// requests. Frames already loaded keep their data.
func (a *App) SetThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: %v", ErrBadThreshold, threshold)
	}
	a.mu.Lock()
	a.threshold = threshold
	a.cache.SetThreshold(threshold)
	a.mu.Unlock()
	a.logger.Info("threshold changed", logging.Float64("threshold", threshold))
	return nil
}

// Wait blocks until background prefetches and frame fetches have drained.
func (a *App) Wait() {
	a.bg.Wait()
	a.cache.Wait()
}

// Close stops background work and waits for it to finish.
func (a *App) Close() {
	a.cancel()
	a.browser.Close()
	a.Wait()
}

// prefetch loads the full frame range of every video so the timelines can
// be plotted. Plot values are filled in by framesChanged once a video's
// table is complete.
func (a *App) prefetch(gen uint64, videos []backend.Video) {
	limit := max(a.cfg.Viewer.PrefetchConcurrency, 1)
	g, ctx := errgroup.WithContext(a.ctx)
	g.SetLimit(limit)
	for _, video := range videos {
		g.Go(func() error {
			for {
				if a.stale(gen) {
					return nil
				}
				outcome, err := a.cache.LoadRange(ctx, video.ID, 0, video.Frames)
				if err != nil {
					return nil
				}
				if outcome == annotation.Satisfied {
					return nil
				}
			}
		})
	}
	_ = g.Wait()
	a.logger.Debug("job prefetch finished", logging.Int("videos", len(videos)))
}

func (a *App) stale(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return gen != a.generation || a.ctx.Err() != nil
}

// framesChanged runs after a frame completion was applied to the cache.
func (a *App) framesChanged(videoID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if videoID == a.selectedVideo {
		a.showLocked()
	}
	a.bus.Publish(statebus.EventFrames, videoID)

	if _, done := a.plotValues[videoID]; done || a.selectedJob == none {
		return
	}
	table := a.cache.Table(videoID)
	values := make([]float64, len(table))
	for i, frame := range table {
		if frame.Status != annotation.StatusValid {
			return
		}
		values[i] = overlay.Summary(a.featureType, frame.Payload.Data)
	}
	a.plotValues[videoID] = values
	a.browser.SetPlotValues(videoID, values)
	a.logger.Debug("plot values ready",
		logging.Int64(logging.FieldVideoID, videoID),
		logging.Int("frames", len(values)),
	)
	a.bus.Publish(statebus.EventPlot, videoID)
}

func (a *App) framesFailed(videoID int64, err error) {
	a.recordError(err)
}

func (a *App) timelineSelected(sel timeline.Selection) {
	if err := a.SelectFrame(a.ctx, sel); err != nil {
		a.logger.Debug("timeline selection ignored", logging.Error(err))
	}
}

// showLocked presents the selected frame on the viewer panel.
func (a *App) showLocked() {
	if a.selectedVideo == none {
		return
	}
	record, _ := a.cache.Frame(a.selectedVideo, a.selectedFrame)
	a.panel.Show(a.selectedFrame, record)
}

func (a *App) featureTypeFor(job backend.Job) string {
	featureType := job.FeatureType
	if featureType == "" {
		featureType = a.cfg.FeatureTypeFor(job.Name)
	}
	return overlay.NormalizeFeatureType(featureType)
}

func (a *App) recordError(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	a.mu.Lock()
	a.lastError = err.Error()
	a.mu.Unlock()
	a.bus.Publish(statebus.EventError, 0)
}

func clampFrame(frame, frames int) int {
	if frames <= 0 {
		return 0
	}
	return min(max(frame, 0), frames-1)
}

func containsDataset(datasets []backend.Dataset, id int64) bool {
	for _, d := range datasets {
		if d.ID == id {
			return true
		}
	}
	return false
}

func findJob(jobs []backend.Job, id int64) (backend.Job, bool) {
	for _, j := range jobs {
		if j.ID == id {
			return j, true
		}
	}
	return backend.Job{}, false
}

func findVideo(videos []backend.Video, id int64) (backend.Video, bool) {
	for _, v := range videos {
		if v.ID == id {
			return v, true
		}
	}
	return backend.Video{}, false
}
