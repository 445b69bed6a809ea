// Package main hosts the scanviewer CLI entrypoint and command graph.
//
// The Cobra command tree serves the browser viewer (`scanviewer serve`) and
// exposes the same backend catalog, frame cache and overlay rendering to the
// terminal for inspection: listing datasets, jobs and videos, dumping the
// annotation records of a frame range, and rendering one frame's overlay to
// SVG or PNG. Configuration resolution and logger construction live in the
// shared command context so subcommands only describe their flags and output.
package main
