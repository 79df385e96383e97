// Package event provides the synchronous publish/subscribe bus shared by every
// engine component.
package event

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/wayfinder/internal/logging"
	"github.com/aretw0/wayfinder/pkg/domain"
)

// Handler receives a published event.
type Handler func(domain.Event)

// Emitter is the publishing half of the bus, accepted by components that only emit.
type Emitter interface {
	Emit(domain.Event)
}

type subscription struct {
	id        string
	eventType domain.EventType
	handler   Handler
}

// Bus is a synchronous pub-sub event bus.
// Handlers run on the emitting goroutine; a handler must not block.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[domain.EventType][]subscription
	nextID        atomic.Uint64
	logger        *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler panics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		b.logger = logger
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscriptions: make(map[domain.EventType][]subscription),
		logger:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for one event type and returns its subscription id.
func (b *Bus) Subscribe(eventType domain.EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("sub-%d", b.nextID.Add(1))
	b.subscriptions[eventType] = append(b.subscriptions[eventType], subscription{
		id:        id,
		eventType: eventType,
		handler:   handler,
	})
	return id
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(domain.EventWildcard, handler)
}

// Unsubscribe removes a subscription by id.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				b.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Emit dispatches ev to its specific handlers first, then to wildcard handlers,
// each group in registration order. A zero Timestamp is stamped with the current time.
// A panicking handler is logged and recovered; delivery continues.
func (b *Bus) Emit(ev domain.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	specific := append([]subscription(nil), b.subscriptions[ev.Type]...)
	var wildcard []subscription
	if ev.Type != domain.EventWildcard {
		wildcard = append(wildcard, b.subscriptions[domain.EventWildcard]...)
	}
	b.mu.RUnlock()

	for _, sub := range specific {
		b.safeCall(sub, ev)
	}
	for _, sub := range wildcard {
		b.safeCall(sub, ev)
	}
}

func (b *Bus) safeCall(sub subscription, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", ev.Type,
				"subscription", sub.id,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	sub.handler(ev)
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[domain.EventType][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}

// Recorder collects every event it sees. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

// Record attaches a new Recorder to b as a wildcard subscriber.
func Record(b *Bus) *Recorder {
	r := &Recorder{}
	b.SubscribeAll(r.handle)
	return r
}

func (r *Recorder) handle(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded events, optionally filtered by type.
func (r *Recorder) Events(types ...domain.EventType) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(types) == 0 {
		return append([]domain.Event(nil), r.events...)
	}
	want := make(map[domain.EventType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var out []domain.Event
	for _, ev := range r.events {
		if want[ev.Type] {
			out = append(out, ev)
		}
	}
	return out
}

// Types returns the recorded event types in order, optionally filtered.
func (r *Recorder) Types(types ...domain.EventType) []domain.EventType {
	evs := r.Events(types...)
	out := make([]domain.EventType, len(evs))
	for i, ev := range evs {
		out[i] = ev.Type
	}
	return out
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
