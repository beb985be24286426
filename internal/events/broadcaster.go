package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"consentry/internal/platform/metrics"
)

// subscriberBuffer is the per-subscriber frame buffer. A subscriber that
// falls this far behind starts losing frames rather than blocking broadcasts.
const subscriberBuffer = 16

// Subscription is a registered event stream consumer. Frames arrive on C
// until Close; after Close the channel is drained and closed.
type Subscription struct {
	ID string
	C  <-chan []byte

	once   sync.Once
	cancel func()
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
}

type subscriber struct {
	id     string
	frames chan []byte
}

// Broadcaster owns the subscriber registry. No other component mutates it.
type Broadcaster struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	subs   map[string]*subscriber
	closed bool
}

// NewBroadcaster creates an empty broadcaster. metrics may be nil.
func NewBroadcaster(logger *slog.Logger, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		logger:  logger,
		metrics: m,
		subs:    make(map[string]*subscriber),
	}
}

// Register adds a subscriber and returns its subscription handle.
func (b *Broadcaster) Register() *Subscription {
	sub := &subscriber{
		id:     uuid.NewString(),
		frames: make(chan []byte, subscriberBuffer),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		closed := make(chan []byte)
		close(closed)
		return &Subscription{ID: sub.id, C: closed, cancel: func() {}}
	}
	b.subs[sub.id] = sub
	count := len(b.subs)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SubscribersActive.Set(float64(count))
	}
	b.logger.Debug("subscriber registered", "subscription_id", sub.id, "subscribers", count)

	return &Subscription{
		ID:     sub.id,
		C:      sub.frames,
		cancel: func() { b.unregister(sub.id) },
	}
}

func (b *Broadcaster) unregister(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(sub.frames)
	}
	count := len(b.subs)
	b.mu.Unlock()

	if !ok {
		return
	}

	if b.metrics != nil {
		b.metrics.SubscribersActive.Set(float64(count))
	}
	b.logger.Debug("subscriber removed", "subscription_id", id, "subscribers", count)
}

// Publish implements Publisher. The event is marshalled once and offered to
// every currently registered subscriber; a full buffer drops the frame for
// that subscriber only.
func (b *Broadcaster) Publish(ctx context.Context, event Event) {
	frame, err := event.MarshalJSON()
	if err != nil {
		b.logger.ErrorContext(ctx, "event marshal failed", "type", event.Type, "error", err)
		return
	}

	// Sends happen under the read lock while channel closes happen under the
	// write lock, so a frame is never sent on a closed channel.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		select {
		case sub.frames <- frame:
			if b.metrics != nil {
				b.metrics.BroadcastDeliveries.Inc()
			}
		default:
			if b.metrics != nil {
				b.metrics.BroadcastFailures.Inc()
			}
			b.logger.WarnContext(ctx, "subscriber buffer full, frame dropped",
				"subscription_id", sub.id,
				"type", event.Type,
			)
		}
	}
}

// SubscriberCount reports the current registry size.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close unregisters all subscribers and rejects future registrations.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		close(sub.frames)
	}
	b.subs = make(map[string]*subscriber)
	b.mu.Unlock()

	if b.metrics != nil {
		b.metrics.SubscribersActive.Set(0)
	}
}
