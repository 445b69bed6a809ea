package overlay

import (
	"strings"

	"scanviewer/internal/backend"
)

// Channels drawn by the viewer.
const (
	ChannelBase    = "base"
	ChannelTracked = "tracked"
)

// Items is the annotation content drawn on one channel.
type Items struct {
	Boxes      []backend.Box
	Confidence *float64
	Class      *int
}

// Adapter is the drawing strategy for one annotation kind.
type Adapter interface {
	// Setup attaches the adapter's surface to container, sized to video.
	Setup(container *Container, video VideoElement)
	// Teardown detaches the surface from container.
	Teardown(container *Container)
	// Show reveals auxiliary indicators without touching the surface.
	Show()
	// Hide conceals auxiliary indicators without touching the surface.
	Hide()
	// Draw renders items for channel, keyed by frameKey, replacing whatever
	// the previous call drew on that channel.
	Draw(video VideoElement, meta backend.Video, frameKey string, items Items, channel, color string)
	// FeatureType names the annotation kind the adapter draws.
	FeatureType() string
}

// ForFeatureType returns a fresh adapter for a job feature type. Unknown and
// empty feature types draw as detections.
func ForFeatureType(featureType string, labels Labels) Adapter {
	switch NormalizeFeatureType(featureType) {
	case backend.FeatureClassification:
		return NewClassification(labels)
	default:
		return NewDetection()
	}
}

// NormalizeFeatureType canonicalises a feature type name.
func NormalizeFeatureType(featureType string) string {
	switch strings.ToLower(strings.TrimSpace(featureType)) {
	case backend.FeatureClassification:
		return backend.FeatureClassification
	default:
		return backend.FeatureDetection
	}
}

// Summary returns the scalar plotted on the timeline for one frame: the
// number of boxes for detections, the confidence for classifications.
func Summary(featureType string, data backend.FeatureData) float64 {
	if NormalizeFeatureType(featureType) == backend.FeatureClassification {
		if data.Confidence == nil {
			return 0
		}
		return *data.Confidence
	}
	return float64(len(data.BaseBoxes) + len(data.TrackedBoxes))
}
