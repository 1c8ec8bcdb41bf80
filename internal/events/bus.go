package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Bus distributes progress events to subscribers with filtering support.
//
// Thread safety: all methods are safe for concurrent use. Publish never
// blocks on a slow subscriber; events are dropped for that subscriber
// instead, so a stalled consumer cannot stall a workflow instance.
type Bus interface {
	// Publish sends an event to all matching subscribers.
	// Returns an error only if the bus is closed.
	Publish(ctx context.Context, event Event) error

	// Subscribe creates a subscription with optional filtering.
	// bufferSize 0 uses the bus default. The returned cleanup function
	// must be called to release the subscription.
	Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func())

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// InProcBus implements Bus with buffered channels and non-blocking sends.
type InProcBus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscription
	bufferSize  int
	logger      *slog.Logger
	closed      bool
	counter     atomic.Uint64
}

type subscription struct {
	id     string
	ch     chan Event
	filter Filter
	ctx    context.Context
	cancel context.CancelFunc
}

// BusOption configures an InProcBus.
type BusOption func(*InProcBus)

// WithBufferSize sets the default subscriber buffer size. Default: 100.
func WithBufferSize(n int) BusOption {
	return func(b *InProcBus) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithLogger sets the logger used to report dropped events.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *InProcBus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates a new in-process event bus.
func NewBus(opts ...BusOption) *InProcBus {
	b := &InProcBus{
		subscribers: make(map[string]*subscription),
		bufferSize:  100,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends the event to every subscriber whose filter matches.
// Timestamps the event if the caller did not.
func (b *InProcBus) Publish(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("event bus is closed")
	}

	for _, sub := range b.subscribers {
		select {
		case <-sub.ctx.Done():
			continue
		default:
		}

		if !sub.filter.Matches(event) {
			continue
		}

		select {
		case sub.ch <- event:
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Subscriber buffer full; drop rather than block the publisher.
			b.logger.Warn("dropped event for slow subscriber",
				"subscriber_id", sub.id,
				"event_type", event.Type,
				"instance_id", event.InstanceID)
		}
	}

	return nil
}

// Subscribe registers a subscriber. The channel receives matching events
// until cleanup is called or the bus closes.
func (b *InProcBus) Subscribe(ctx context.Context, filter Filter, bufferSize int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if bufferSize <= 0 {
		bufferSize = b.bufferSize
	}

	subCtx, cancel := context.WithCancel(ctx)
	id := fmt.Sprintf("sub-%d", b.counter.Add(1))

	sub := &subscription{
		id:     id,
		ch:     make(chan Event, bufferSize),
		filter: filter,
		ctx:    subCtx,
		cancel: cancel,
	}
	b.subscribers[id] = sub

	cleanup := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subscribers[id]; ok {
			s.cancel()
			close(s.ch)
			delete(b.subscribers, id)
		}
	}

	return sub.ch, cleanup
}

// Close shuts down the bus and closes all subscriber channels.
// Close is idempotent.
func (b *InProcBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for id, sub := range b.subscribers {
		sub.cancel()
		close(sub.ch)
		delete(b.subscribers, id)
	}

	return nil
}

// SubscriberCount returns the current number of active subscribers.
func (b *InProcBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

var _ Bus = (*InProcBus)(nil)
