// Package timeline renders a per-frame scalar plot for one video and maps
// pointer positions on it back to frame indices.
//
// Plot holds the pure geometry (ticks, axis width, step line, labels).
// Timeline adds pointer handling: move, click and leave events are turned
// into debounced frame selections, with click also committing a local
// selected-frame marker immediately.
package timeline
