package statebus

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPublishDeliversAndDrops(t *testing.T) {
	b := New()
	ch := make(chan Event, 1)
	id, err := b.Subscribe(ch)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	first := b.Publish(EventFrame, 4)
	b.Publish(EventPlot, 4)

	got := <-ch
	if got.Version != 1 || got.Type != EventFrame || got.VideoID != 4 || first.Version != 1 {
		t.Fatalf("event = %+v", got)
	}
	stats, err := b.Stats(id)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Sent != 1 || stats.Dropped != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if b.Version() != 2 {
		t.Fatalf("version = %d", b.Version())
	}
}

func TestSubscribeErrors(t *testing.T) {
	b := New()
	if _, err := b.Subscribe(nil); !errors.Is(err, ErrNilChannel) {
		t.Fatalf("nil channel err = %v", err)
	}
	if err := b.Unsubscribe("missing"); !errors.Is(err, ErrSubscriberNotFound) {
		t.Fatalf("unsubscribe err = %v", err)
	}
	b.Close()
	if _, err := b.Subscribe(make(chan Event)); !errors.Is(err, ErrBusClosed) {
		t.Fatalf("closed err = %v", err)
	}
}

func TestWaitReturnsOnPublish(t *testing.T) {
	b := New()
	done := make(chan uint64, 1)
	go func() {
		v, _ := b.Wait(context.Background(), 0)
		done <- v
	}()
	time.Sleep(10 * time.Millisecond)
	b.Publish(EventJob, 0)

	select {
	case v := <-done:
		if v != 1 {
			t.Fatalf("version = %d", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released")
	}
}

func TestWaitImmediateAndTimeout(t *testing.T) {
	b := New()
	b.Publish(EventDatasets, 0)
	if v, err := b.Wait(context.Background(), 0); err != nil || v != 1 {
		t.Fatalf("Wait = %d, %v", v, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := b.Wait(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestCloseReleasesWaiters(t *testing.T) {
	b := New()
	done := make(chan error, 1)
	go func() {
		_, err := b.Wait(context.Background(), 5)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	b.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrBusClosed) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter not released by close")
	}
}
