package event

import (
	"encoding/json"
	"fmt"

	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/catalog/backend/internal/domain/shared"
)

// DetailType returns the subscriber-facing name of an event, used as the
// EventBridge detail-type and carried in the Kafka message headers
func DetailType(event shared.DomainEvent) string {
	switch event.EventType() {
	case catalog.EventTypeProductCreated:
		return "ProductCreated"
	case catalog.EventTypeProductUpdated:
		return "ProductUpdated"
	case catalog.EventTypeProductDeleted:
		return "ProductDeleted"
	default:
		return event.EventType()
	}
}

// Encode serializes a domain event to its wire representation
func Encode(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize event %s: %w", event.EventType(), err)
	}
	return data, nil
}
