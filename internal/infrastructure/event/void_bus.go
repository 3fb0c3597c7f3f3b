package event

import (
	"context"

	"github.com/catalog/backend/internal/domain/shared"
)

// VoidBus is the default publisher when no bus is configured. Every publish
// fails, which surfaces misconfiguration instead of silently dropping events.
type VoidBus struct{}

// NewVoidBus creates a new void bus
func NewVoidBus() *VoidBus {
	return &VoidBus{}
}

// Publish always fails
func (b *VoidBus) Publish(ctx context.Context, event shared.DomainEvent) error {
	return shared.NewDomainError("PUBLISH_FAILURE", "no event bus is configured")
}

var _ shared.EventPublisher = (*VoidBus)(nil)
