package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeBackend()
	if err := c.normalizeViewer(); err != nil {
		return err
	}
	if err := c.normalizeServer(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeBackend() {
	if value, ok := os.LookupEnv("SCANVIEWER_BACKEND_URL"); ok && strings.TrimSpace(value) != "" {
		c.Backend.BaseURL = value
	}
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = defaultBackendURL
	}
	if c.Backend.TimeoutSeconds <= 0 {
		c.Backend.TimeoutSeconds = defaultBackendTimeout
	}
	c.Backend.TrackingJobs = normalizeNames(c.Backend.TrackingJobs)
	if len(c.Backend.FeatureTypes) > 0 {
		types := make(map[string]string, len(c.Backend.FeatureTypes))
		for name, featureType := range c.Backend.FeatureTypes {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			types[name] = strings.ToLower(strings.TrimSpace(featureType))
		}
		c.Backend.FeatureTypes = types
	}
}

func (c *Config) normalizeViewer() error {
	if c.Viewer.RequestRadius <= 0 {
		c.Viewer.RequestRadius = defaultRequestRadius
	}
	if c.Viewer.Stride <= 0 {
		c.Viewer.Stride = defaultStride
	}
	if c.Viewer.DebounceMillis < 0 {
		c.Viewer.DebounceMillis = defaultDebounceMillis
	}
	if c.Viewer.TickWidth <= 0 {
		c.Viewer.TickWidth = defaultTickWidth
	}
	if c.Viewer.PlotHeight <= 0 {
		c.Viewer.PlotHeight = defaultPlotHeight
	}
	if c.Viewer.PrefetchConcurrency <= 0 {
		c.Viewer.PrefetchConcurrency = defaultPrefetchConcurrency
	}
	if c.Viewer.ViewWidth <= 0 {
		c.Viewer.ViewWidth = defaultViewWidth
	}
	if c.Viewer.ViewHeight <= 0 {
		c.Viewer.ViewHeight = defaultViewHeight
	}
	c.Viewer.BaseOnlyJobs = normalizeNames(c.Viewer.BaseOnlyJobs)
	if strings.TrimSpace(c.Viewer.LabelsPath) != "" {
		var err error
		if c.Viewer.LabelsPath, err = expandPath(strings.TrimSpace(c.Viewer.LabelsPath)); err != nil {
			return fmt.Errorf("viewer.labels_path: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeServer() error {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	if strings.TrimSpace(c.Server.StateDir) == "" {
		c.Server.StateDir = defaultStateDir
	}
	var err error
	if c.Server.StateDir, err = expandPath(c.Server.StateDir); err != nil {
		return fmt.Errorf("server.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func normalizeNames(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
