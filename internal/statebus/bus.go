// Package statebus fans viewer state changes out to subscribers and lets
// long-poll clients wait for the next version.
package statebus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var (
	ErrBusClosed          = errors.New("statebus: closed")
	ErrNilChannel         = errors.New("statebus: nil channel")
	ErrSubscriberNotFound = errors.New("statebus: subscriber not found")
)

// Event types published by the shell.
const (
	EventDatasets = "datasets"
	EventDataset  = "dataset"
	EventJob      = "job"
	EventFrame    = "frame"
	EventFrames   = "frames"
	EventPlot     = "plot"
	EventResize   = "resize"
	EventError    = "error"
)

// Event announces that the viewer state reached Version.
type Event struct {
	Version uint64    `json:"version"`
	Type    string    `json:"type"`
	VideoID int64     `json:"videoId,omitempty"`
	At      time.Time `json:"at"`
}

// SubscriberStats counts deliveries to one subscriber.
type SubscriberStats struct {
	Sent    uint64 `json:"sent"`
	Dropped uint64 `json:"dropped"`
}

type subscriber struct {
	ch    chan<- Event
	stats SubscriberStats
}

// Bus is a versioned, non-blocking event fan-out.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	version     uint64
	changed     chan struct{}
	closed      bool
	now         func() time.Time
}

// New returns an open bus at version 0.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string]*subscriber),
		changed:     make(chan struct{}),
		now:         time.Now,
	}
}

// Subscribe registers ch and returns its subscriber id. Publish never
// blocks on ch; events that do not fit are dropped and counted.
func (b *Bus) Subscribe(ch chan<- Event) (string, error) {
	if ch == nil {
		return "", ErrNilChannel
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return "", ErrBusClosed
	}
	id := uuid.NewString()
	b.subscribers[id] = &subscriber{ch: ch}
	return id, nil
}

// Unsubscribe removes a subscriber.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[id]; !ok {
		return ErrSubscriberNotFound
	}
	delete(b.subscribers, id)
	return nil
}

// Publish bumps the version and delivers an event of the given type.
func (b *Bus) Publish(eventType string, videoID int64) Event {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return Event{}
	}
	b.version++
	ev := Event{Version: b.version, Type: eventType, VideoID: videoID, At: b.now()}
	close(b.changed)
	b.changed = make(chan struct{})
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub.ch <- ev:
			atomic.AddUint64(&sub.stats.Sent, 1)
		default:
			atomic.AddUint64(&sub.stats.Dropped, 1)
		}
	}
	return ev
}

// Version returns the latest published version.
func (b *Bus) Version() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Wait blocks until the version exceeds since, ctx is done or the bus
// closes, and returns the version seen.
func (b *Bus) Wait(ctx context.Context, since uint64) (uint64, error) {
	for {
		b.mu.RLock()
		version, changed, closed := b.version, b.changed, b.closed
		b.mu.RUnlock()
		if version > since {
			return version, nil
		}
		if closed {
			return version, ErrBusClosed
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return version, ctx.Err()
		}
	}
}

// Stats returns delivery counters for a subscriber.
func (b *Bus) Stats(id string) (SubscriberStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	sub, ok := b.subscribers[id]
	if !ok {
		return SubscriberStats{}, ErrSubscriberNotFound
	}
	return SubscriberStats{
		Sent:    atomic.LoadUint64(&sub.stats.Sent),
		Dropped: atomic.LoadUint64(&sub.stats.Dropped),
	}, nil
}

// Close releases waiters and drops all subscribers.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.changed)
	b.subscribers = nil
}
