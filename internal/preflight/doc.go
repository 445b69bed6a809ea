// Package preflight provides readiness checks for the filesystem paths and
// the annotation backend that the viewer depends on.
//
// `scanviewer serve` runs RunAll before it starts listening and refuses to
// start when a check fails. Individual checks are exported so other commands
// can report them on their own.
package preflight
