package events

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parley-ai/parley/pkg/models"
)

// DefaultBufferSize is the per-subscriber buffer used when NewBus gets a
// non-positive size.
const DefaultBufferSize = 64

// Subscription is one subscriber's view of a session's event stream. Events
// delivers in publish order; the channel is closed after the terminal event.
type Subscription struct {
	id  string
	bus *Bus
	key string

	ch     chan Envelope
	once   sync.Once
	closed chan struct{}

	// sendMu serialises sends against channel close, so a subscriber
	// closing concurrently with a publish cannot panic the publisher.
	sendMu sync.Mutex
}

// Events returns the subscriber's delivery channel.
func (s *Subscription) Events() <-chan Envelope {
	return s.ch
}

// Close detaches the subscriber. Safe to call more than once and after the
// stream already ended.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s)
	s.finish()
}

func (s *Subscription) finish() {
	s.once.Do(func() {
		s.sendMu.Lock()
		defer s.sendMu.Unlock()
		close(s.closed)
		close(s.ch)
	})
}

// Bus is the in-process event bus. Publication is synchronous and never
// blocks on subscribers: a full subscriber buffer drops its oldest pending
// delivery, and the drop is recorded in the session's trace chain.
type Bus struct {
	mu         sync.RWMutex
	subs       map[string][]*Subscription // negotiation id -> subscribers
	bufferSize int
}

// NewBus creates a bus with the given per-subscriber buffer size.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		subs:       make(map[string][]*Subscription),
		bufferSize: bufferSize,
	}
}

// Subscribe registers for all subsequent events of one negotiation.
func (b *Bus) Subscribe(negotiationID string) *Subscription {
	sub := &Subscription{
		id:     uuid.New().String(),
		bus:    b,
		key:    negotiationID,
		ch:     make(chan Envelope, b.bufferSize),
		closed: make(chan struct{}),
	}
	b.mu.Lock()
	b.subs[negotiationID] = append(b.subs[negotiationID], sub)
	b.mu.Unlock()
	return sub
}

// Publish delivers the envelope to every subscriber of its negotiation.
// trace receives one events_dropped entry per delivery lost to a full
// buffer; nil trace skips drop accounting. After a terminal event the
// negotiation's subscriptions are closed and removed; nothing can be
// published to them again.
func (b *Bus) Publish(env Envelope, trace *models.TraceChain) {
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := append([]*Subscription(nil), b.subs[env.NegotiationID]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(sub, env, trace)
	}

	if env.Type.Terminal() {
		b.mu.Lock()
		subs = b.subs[env.NegotiationID]
		delete(b.subs, env.NegotiationID)
		b.mu.Unlock()
		for _, sub := range subs {
			sub.finish()
		}
	}
}

// deliver pushes one envelope into one subscriber buffer, dropping the
// oldest pending delivery on overflow.
func (b *Bus) deliver(sub *Subscription, env Envelope, trace *models.TraceChain) {
	sub.sendMu.Lock()
	defer sub.sendMu.Unlock()

	select {
	case <-sub.closed:
		return
	default:
	}

	for {
		select {
		case sub.ch <- env:
			return
		default:
		}

		// Buffer full: drop the oldest pending delivery and retry. The
		// subscriber may drain concurrently, making the drop unnecessary.
		select {
		case dropped := <-sub.ch:
			slog.Warn("Dropping event for slow subscriber",
				"negotiation_id", env.NegotiationID,
				"subscriber_id", sub.id,
				"event_type", dropped.Type)
			if trace != nil {
				trace.Append(models.TraceEventsDropped, DropPayload{
					SubscriberID: sub.id,
					EventType:    dropped.Type,
				})
			}
		default:
		}
	}
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[sub.key]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.key]) == 0 {
		delete(b.subs, sub.key)
	}
}

// SubscriberCount returns the number of live subscribers for a negotiation.
func (b *Bus) SubscriberCount(negotiationID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[negotiationID])
}
