package testsupport

import (
	"path/filepath"
	"testing"

	"scanviewer/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp state directory per
// test. Plot prefetching is off unless WithPrefetch is given so tests see
// only the frame requests they trigger.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Server.StateDir = filepath.Join(base, "state")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Viewer.PrefetchPlots = false
	cfgVal.Logging.Level = "debug"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBackendURL points the config at a backend, usually a FakeBackend.
func WithBackendURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.BaseURL = url
	}
}

// WithPrefetch enables full-range plot prefetching on job selection.
func WithPrefetch(concurrency int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Viewer.PrefetchPlots = true
		if concurrency > 0 {
			b.cfg.Viewer.PrefetchConcurrency = concurrency
		}
	}
}

// WithFetchAllGaps makes range requests fetch every invalid run.
func WithFetchAllGaps() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Viewer.FetchAllGaps = true
	}
}

// WithJumpFrame overrides the jump target frame.
func WithJumpFrame(frame int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Viewer.JumpFrame = frame
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Server.StateDir)
}
