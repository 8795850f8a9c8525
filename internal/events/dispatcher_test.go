package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestDispatcherDeliversToSubscribers(t *testing.T) {
	d := NewAsyncDispatcher(8, zap.NewNop())
	defer d.Close()

	var mu sync.Mutex
	var received []Event
	d.Subscribe(EventClaimCreated, func(_ context.Context, event Event) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, event)
		return nil
	})

	if err := d.Publish(context.Background(), Event{Type: EventClaimCreated, EntityID: "EXP-0001"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		count := len(received)
		mu.Unlock()
		if count == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("event never delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if received[0].EntityID != "EXP-0001" {
		t.Fatalf("unexpected event %+v", received[0])
	}
}

func TestDispatcherIgnoresUnsubscribedTypes(t *testing.T) {
	d := NewAsyncDispatcher(8, zap.NewNop())

	var mu sync.Mutex
	count := 0
	d.Subscribe(EventClaimCreated, func(context.Context, Event) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	})

	d.Publish(context.Background(), Event{Type: EventClaimDeleted})
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Fatalf("handler ran for unsubscribed type, count=%d", count)
	}
}

func TestDispatcherPublishDuringCloseDoesNotPanic(t *testing.T) {
	d := NewAsyncDispatcher(4, zap.NewNop())
	d.Subscribe(EventClaimUpdated, func(context.Context, Event) error { return nil })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Publish(context.Background(), Event{Type: EventClaimUpdated})
			}
		}()
	}
	d.Close()
	wg.Wait()

	// publishing after close stays a no-op
	if err := d.Publish(context.Background(), Event{Type: EventClaimUpdated}); err != nil {
		t.Fatalf("publish after close: %v", err)
	}
}

func TestDispatcherCloseDrainsQueue(t *testing.T) {
	d := NewAsyncDispatcher(16, zap.NewNop())

	var mu sync.Mutex
	count := 0
	d.Subscribe(EventClaimUpdated, func(context.Context, Event) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	})

	for i := 0; i < 10; i++ {
		d.Publish(context.Background(), Event{Type: EventClaimUpdated})
	}
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if count != 10 {
		t.Fatalf("expected all 10 queued events delivered before close returned, got %d", count)
	}
}
