package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Dispatcher interface allows event publication/subscription.
type Dispatcher interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
	Close()
}

// asyncDispatcher delivers events on a background goroutine so publishers
// never block on handler latency. Handler errors are logged, not returned.
type asyncDispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]EventHandler
	queue     chan Event
	logger    *zap.Logger
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewAsyncDispatcher creates a dispatcher with the given queue depth.
func NewAsyncDispatcher(buffer int, logger *zap.Logger) Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	d := &asyncDispatcher{
		listeners: make(map[EventType][]EventHandler),
		queue:     make(chan Event, buffer),
		logger:    logger,
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Publish enqueues the event. If the queue is full the event is dropped and
// logged rather than blocking the caller. Publishing after Close is a no-op.
// The read lock spans the send so Close cannot close the queue underneath an
// in-flight Publish.
func (d *asyncDispatcher) Publish(_ context.Context, event Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}
	select {
	case d.queue <- event:
	default:
		d.logger.Warn("event queue full, dropping event",
			zap.String("type", string(event.Type)),
			zap.String("entity_id", event.EntityID))
	}
	return nil
}

// Subscribe registers a handler for the given event type.
func (d *asyncDispatcher) Subscribe(eventType EventType, handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[eventType] = append(d.listeners[eventType], handler)
}

// Close drains the queue and stops delivery.
func (d *asyncDispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *asyncDispatcher) run() {
	defer d.wg.Done()
	for event := range d.queue {
		d.mu.RLock()
		handlers := append([]EventHandler{}, d.listeners[event.Type]...)
		d.mu.RUnlock()

		for _, handler := range handlers {
			if err := handler(context.Background(), event); err != nil {
				d.logger.Error("event handler failed",
					zap.String("type", string(event.Type)),
					zap.String("entity_id", event.EntityID),
					zap.Error(err))
			}
		}
	}
}
