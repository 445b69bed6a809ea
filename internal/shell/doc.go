// Package shell holds the viewer's selection state machine.
//
// App owns the dataset, job, video and frame selections together with the
// annotation cache, the viewer panel and the video browser. Every mutation
// runs under the App mutex, which plays the role of the UI event loop:
// pointer and keyboard input, catalog results and frame completions are
// applied one at a time. Dataset and job switches bump a generation so
// results that arrive for an older selection are discarded.
//
// Applied changes are announced on the state bus so the viewer host can
// push them to long-polling browsers.
package shell
