package event

import (
	"context"
	"sync"

	"github.com/catalog/backend/internal/domain/shared"
)

// InMemoryBus records published events. It is used by tests and by local
// development setups that have no real bus to talk to.
type InMemoryBus struct {
	mu     sync.Mutex
	events []shared.DomainEvent

	// FailFor makes Publish fail for events whose aggregate id is listed,
	// consuming one failure per publish attempt
	failFor map[string]int
	failErr error
}

// NewInMemoryBus creates a new recording bus
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{failFor: make(map[string]int)}
}

// FailNext makes the next n publishes for the aggregate id fail with err
func (b *InMemoryBus) FailNext(aggregateID string, n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failFor[aggregateID] = n
	b.failErr = err
}

// Publish records the event, or fails if a failure was injected for its
// aggregate id
func (b *InMemoryBus) Publish(ctx context.Context, event shared.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if n := b.failFor[event.AggregateID()]; n > 0 {
		b.failFor[event.AggregateID()] = n - 1
		return b.failErr
	}

	b.events = append(b.events, event)
	return nil
}

// Events returns a snapshot of everything published so far
func (b *InMemoryBus) Events() []shared.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]shared.DomainEvent, len(b.events))
	copy(out, b.events)
	return out
}

// EventsFor returns the published events for one aggregate id, in order
func (b *InMemoryBus) EventsFor(aggregateID string) []shared.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []shared.DomainEvent
	for _, e := range b.events {
		if e.AggregateID() == aggregateID {
			out = append(out, e)
		}
	}
	return out
}

var _ shared.EventPublisher = (*InMemoryBus)(nil)
