// Package server hosts the viewer in a browser.
//
// It serves the HTML page, a JSON view of the application state, the
// overlay and timeline renderings, and the input endpoints that drive the
// shell. Clients follow state changes by long-polling /api/events.
package server
