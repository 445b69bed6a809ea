package overlay

import (
	"strconv"

	"scanviewer/internal/backend"
)

// Classification renders the frame confidence and class label as text. It
// has no spatial overlay.
type Classification struct {
	labels    Labels
	container *Container
}

var _ Adapter = (*Classification)(nil)

// NewClassification returns a classification adapter resolving class names
// through labels.
func NewClassification(labels Labels) *Classification {
	return &Classification{labels: labels}
}

func (c *Classification) FeatureType() string { return backend.FeatureClassification }

func (c *Classification) Setup(container *Container, _ VideoElement) {
	c.container = container
	container.SetIndicatorVisible(true)
}

func (c *Classification) Teardown(container *Container) {
	container.SetIndicatorVisible(false)
	container.SetIndicatorText("")
	if c.container == container {
		c.container = nil
	}
}

func (c *Classification) Show() {
	if c.container != nil {
		c.container.SetIndicatorVisible(true)
	}
}

func (c *Classification) Hide() {
	if c.container != nil {
		c.container.SetIndicatorVisible(false)
	}
}

func (c *Classification) Draw(_ VideoElement, _ backend.Video, _ string, items Items, channel, _ string) {
	if c.container == nil || channel != ChannelBase {
		return
	}
	if items.Confidence == nil {
		c.container.SetIndicatorText("")
		return
	}
	text := strconv.FormatFloat(*items.Confidence, 'f', -1, 64)
	if items.Class != nil {
		text += "\n" + c.labels.Name(*items.Class)
	}
	c.container.SetIndicatorText(text)
}
