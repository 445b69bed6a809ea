// Package config loads, normalizes, and validates scanviewer configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the SCANVIEWER_BACKEND_URL
// environment fallback. The Config type centralizes every knob the viewer
// host and CLI need: where the annotation backend lives, how the viewer
// fetches and draws frame data, and where the server binds.
//
// Always obtain settings through this package so downstream code receives
// trimmed job lists, canonical log formats, and clear validation errors.
package config
