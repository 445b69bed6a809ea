// Package overlay draws frame annotations over a video element.
//
// An Adapter is the drawing strategy for one annotation kind. Detection
// adapters keep a Canvas of keyed rectangles mounted on a Container and
// scale boxes from annotation space into the rendered video viewport;
// classification adapters only maintain the container's text indicator.
// Both are driven through the same five operations, and the variant is
// chosen once per job from its feature type.
//
// Containers serialise to SVG for the browser host and rasterise to PNG for
// offline snapshots.
package overlay
