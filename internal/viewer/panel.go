package viewer

import (
	"log/slog"
	"strconv"

	"scanviewer/internal/annotation"
	"scanviewer/internal/backend"
	"scanviewer/internal/logging"
	"scanviewer/internal/overlay"
)

// Overlay colours.
const (
	ColorBase     = "red"
	ColorBaseOnly = "yellow"
	ColorTracked  = "green"
)

// AdapterFactory builds the overlay adapter for a feature type.
type AdapterFactory func(featureType string) overlay.Adapter

// Options configures a Panel.
type Options struct {
	Width      float64
	Height     float64
	NewAdapter AdapterFactory
	// IsBaseOnly reports whether a job draws only base boxes.
	IsBaseOnly func(jobName string) bool
	Logger     *slog.Logger
}

// Panel is the main viewing area: one video element with an overlay
// container on top.
type Panel struct {
	video       *VideoElement
	container   *overlay.Container
	adapter     overlay.Adapter
	featureType string
	newAdapter  AdapterFactory
	isBaseOnly  func(string) bool

	meta       backend.Video
	job        backend.Job
	frameLabel string

	logger *slog.Logger
}

// Snapshot is the renderable state of the panel.
type Snapshot struct {
	MediaPath   string            `json:"mediaPath"`
	CurrentTime float64           `json:"currentTime"`
	Width       float64           `json:"width"`
	Height      float64           `json:"height"`
	FeatureType string            `json:"featureType"`
	FrameLabel  string            `json:"frameLabel"`
	Indicator   overlay.Indicator `json:"indicator"`
	Rects       []overlay.Rect    `json:"rects"`
}

// New returns a panel with a detection adapter set up on an empty video.
func New(opts Options) *Panel {
	if opts.NewAdapter == nil {
		opts.NewAdapter = func(featureType string) overlay.Adapter {
			return overlay.ForFeatureType(featureType, nil)
		}
	}
	if opts.IsBaseOnly == nil {
		opts.IsBaseOnly = func(string) bool { return false }
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &Panel{
		video:       &VideoElement{},
		container:   overlay.NewContainer(),
		featureType: backend.FeatureDetection,
		newAdapter:  opts.NewAdapter,
		isBaseOnly:  opts.IsBaseOnly,
		logger:      logger,
	}
	p.video.resize(opts.Width, opts.Height)
	p.adapter = p.newAdapter(p.featureType)
	p.adapter.Setup(p.container, p.video)
	return p
}

// Video returns the panel's video element.
func (p *Panel) Video() *VideoElement { return p.video }

// Container returns the overlay container.
func (p *Panel) Container() *overlay.Container { return p.container }

// Adapter returns the active overlay adapter.
func (p *Panel) Adapter() overlay.Adapter { return p.adapter }

// FeatureType returns the active adapter's feature type.
func (p *Panel) FeatureType() string { return p.featureType }

// SetVideo binds the panel to video, reloading the media source when its
// path changed.
func (p *Panel) SetVideo(video backend.Video) {
	reload := video.MediaPath != p.video.MediaPath()
	p.meta = video
	if reload {
		p.video.Load(video.MediaPath)
		p.logger.Debug("video source loaded",
			logging.Int64(logging.FieldVideoID, video.ID),
			logging.String("media_path", video.MediaPath),
		)
	}
}

// SetJob records the active job and switches the adapter to its feature
// type.
func (p *Panel) SetJob(job backend.Job, featureType string) {
	p.job = job
	p.SetFeatureType(featureType)
}

// SetFeatureType replaces the adapter when the feature type changes. The old
// adapter is torn down exactly once before the new one is set up. It reports
// whether a swap happened.
func (p *Panel) SetFeatureType(featureType string) bool {
	featureType = overlay.NormalizeFeatureType(featureType)
	if featureType == p.featureType && p.adapter != nil {
		return false
	}
	next := p.newAdapter(featureType)
	if p.adapter != nil {
		p.adapter.Teardown(p.container)
	}
	p.adapter = next
	p.featureType = featureType
	p.adapter.Setup(p.container, p.video)
	p.logger.Debug("overlay adapter swapped", logging.String("feature_type", featureType))
	return true
}

// Resize updates the rendered size and re-attaches the adapter surface.
func (p *Panel) Resize(width, height float64) {
	p.video.resize(width, height)
	p.adapter.Teardown(p.container)
	p.adapter.Setup(p.container, p.video)
}

// BaseColor returns the stroke colour for the active job's base channel.
func (p *Panel) BaseColor() string {
	if p.isBaseOnly(p.job.Name) {
		return ColorBaseOnly
	}
	return ColorBase
}

// Show presents the annotation record for frame: the video seeks to the
// record's time when it has one, and valid records are drawn on the base and
// tracked channels.
func (p *Panel) Show(frame int, record annotation.Frame) {
	p.frameLabel = "Frame " + strconv.Itoa(frame)
	if t, ok := record.Time(); ok {
		p.video.Seek(t)
	}
	if record.Status != annotation.StatusValid {
		return
	}

	data := record.Payload.Data
	key := strconv.Itoa(frame)
	color := p.BaseColor()
	p.adapter.Draw(p.video, p.meta, key+"b", overlay.Items{
		Boxes:      data.BaseBoxes,
		Confidence: data.Confidence,
		Class:      data.Class,
	}, overlay.ChannelBase, color)

	var tracked overlay.Items
	if color != ColorBaseOnly && p.featureType != backend.FeatureClassification && data.HasTracked() {
		tracked.Boxes = data.TrackedBoxes
	}
	p.adapter.Draw(p.video, p.meta, key+"g", tracked, overlay.ChannelTracked, ColorTracked)
}

// Clear removes everything drawn and forgets the frame label.
func (p *Panel) Clear() {
	p.frameLabel = ""
	p.adapter.Teardown(p.container)
	p.adapter.Setup(p.container, p.video)
}

// Snapshot returns the panel's renderable state.
func (p *Panel) Snapshot() Snapshot {
	width, height := p.video.ViewSize()
	snap := Snapshot{
		MediaPath:   p.video.MediaPath(),
		CurrentTime: p.video.CurrentTime(),
		Width:       width,
		Height:      height,
		FeatureType: p.featureType,
		FrameLabel:  p.frameLabel,
		Indicator:   p.container.Indicator(),
		Rects:       []overlay.Rect{},
	}
	if canvas := p.container.Canvas(); canvas != nil {
		snap.Rects = canvas.Rects()
	}
	return snap
}
