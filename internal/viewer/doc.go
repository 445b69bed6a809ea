// Package viewer owns the active video element and drives the overlay
// adapter for the selected frame.
package viewer
