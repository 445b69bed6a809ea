// Package logging assembles structured slog loggers and formatting helpers used
// across the viewer.
//
// It owns the configurable console/JSON handlers, switches the console format
// to a colour handler when stdout is a terminal, and exposes context-aware
// helpers so request handlers and background fetches tag log lines with
// correlation IDs, datasets, jobs, and videos. The package also provides a
// no-op logger for tests and wiring code that cannot fail.
package logging
