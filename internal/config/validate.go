package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateViewer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackend() error {
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil {
		return fmt.Errorf("backend.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("backend.base_url must use http or https, got %q", c.Backend.BaseURL)
	}
	for name, featureType := range c.Backend.FeatureTypes {
		switch featureType {
		case "detection", "classification":
		default:
			return fmt.Errorf("backend.feature_types.%s: unsupported feature type %q", name, featureType)
		}
	}
	return nil
}

func (c *Config) validateViewer() error {
	if c.Viewer.Threshold < 0 || c.Viewer.Threshold > 1 {
		return errors.New("viewer.threshold must be between 0 and 1")
	}
	if c.Viewer.JumpFrame < 0 {
		return errors.New("viewer.jump_frame must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
