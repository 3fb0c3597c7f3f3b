package shared

import "context"

// EventPublisher publishes a domain event to the outbound bus.
//
// Publish must report failure distinctly from success; callers decide
// retry-vs-drop. Implementations need not guarantee ordering across
// aggregates, but events for the same aggregate are published by callers
// one at a time, in order, so adapters must not reorder a single call.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// EventPublisherFunc adapts a function to the EventPublisher interface
type EventPublisherFunc func(ctx context.Context, event DomainEvent) error

// Publish calls f(ctx, event)
func (f EventPublisherFunc) Publish(ctx context.Context, event DomainEvent) error {
	return f(ctx, event)
}
