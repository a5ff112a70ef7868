// Package event fans store change events out to in-process subscribers.
package event

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/storefront/internal/model"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 16

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_events_published_total",
			Help: "Total number of store change events published",
		},
		[]string{"type"},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full",
		},
	)
)

// Subscription is a registered event consumer.
type Subscription struct {
	ID     string
	Events <-chan model.Event
}

// Broker delivers each published event to every subscriber.
// Publish never blocks: a subscriber with a full buffer misses the event.
type Broker struct {
	mu         sync.RWMutex
	subs       map[string]chan model.Event
	bufferSize int
	logger     *zap.Logger
}

// NewBroker creates a Broker with the given per-subscriber buffer size.
func NewBroker(bufferSize int, logger *zap.Logger) *Broker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broker{
		subs:       make(map[string]chan model.Event),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers a new subscriber.
func (b *Broker) Subscribe() Subscription {
	ch := make(chan model.Event, b.bufferSize)
	id := uuid.New().String()

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	return Subscription{ID: id, Events: ch}
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Broker) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

// Publish sends ev to every subscriber.
func (b *Broker) Publish(ev model.Event) {
	eventsPublished.WithLabelValues(ev.Type).Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			eventsDropped.Inc()
			b.logger.Debug("subscriber buffer full, event dropped",
				zap.String("subscriber", id),
				zap.String("type", ev.Type),
			)
		}
	}
}

// Len returns the number of active subscribers.
func (b *Broker) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unsubscribes everyone.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
