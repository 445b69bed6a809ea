// Package browser composes one navigator per video in the active dataset.
// Each navigator wraps a timeline and forwards its selections upward
// unchanged.
package browser
