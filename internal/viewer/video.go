package viewer

// VideoElement is the server-side model of the playing video: its media
// source, rendered size and playback position.
type VideoElement struct {
	mediaPath   string
	width       float64
	height      float64
	currentTime float64
	loads       int
}

// ViewSize returns the rendered size.
func (v *VideoElement) ViewSize() (float64, float64) {
	return v.width, v.height
}

// Load points the element at a new media source and rewinds it.
func (v *VideoElement) Load(mediaPath string) {
	v.mediaPath = mediaPath
	v.currentTime = 0
	v.loads++
}

// Seek moves playback to t seconds.
func (v *VideoElement) Seek(t float64) {
	v.currentTime = max(t, 0)
}

// MediaPath returns the loaded media source.
func (v *VideoElement) MediaPath() string { return v.mediaPath }

// CurrentTime returns the playback position in seconds.
func (v *VideoElement) CurrentTime() float64 { return v.currentTime }

// Loads counts how many times a media source has been loaded.
func (v *VideoElement) Loads() int { return v.loads }

func (v *VideoElement) resize(width, height float64) {
	v.width = width
	v.height = height
}
