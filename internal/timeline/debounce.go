package timeline

import (
	"sync"
	"time"
)

// Timer is the subset of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// DebounceOption configures a Debouncer.
type DebounceOption func(*debounceConfig)

type debounceConfig struct {
	after AfterFunc
}

// WithAfterFunc replaces the timer source, mainly for tests.
func WithAfterFunc(after AfterFunc) DebounceOption {
	return func(c *debounceConfig) {
		if after != nil {
			c.after = after
		}
	}
}

// Debouncer delivers the last value passed to Call once no further calls
// have arrived for the configured delay.
type Debouncer[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(T)
	after   AfterFunc
	timer   Timer
	pending T
	armed   bool
	seq     uint64
}

// NewDebouncer returns a trailing-edge debouncer around fn.
func NewDebouncer[T any](delay time.Duration, fn func(T), opts ...DebounceOption) *Debouncer[T] {
	cfg := debounceConfig{after: realAfterFunc}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Debouncer[T]{delay: delay, fn: fn, after: cfg.after}
}

// Call records v and restarts the quiet period.
func (d *Debouncer[T]) Call(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = v
	d.armed = true
	d.seq++
	seq := d.seq
	d.timer = d.after(d.delay, func() { d.fire(seq) })
}

// Flush delivers a pending value immediately. It reports whether anything
// was delivered.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	return d.take()
}

// Stop discards any pending value.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.armed = false
	d.seq++
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.take()
}

// take must be called with d.mu held; it releases the lock before invoking
// the callback.
func (d *Debouncer[T]) take() bool {
	if !d.armed {
		d.mu.Unlock()
		return false
	}
	v := d.pending
	var zero T
	d.pending = zero
	d.armed = false
	d.timer = nil
	d.seq++
	d.mu.Unlock()
	d.fn(v)
	return true
}
