package catalog

import (
	"github.com/catalog/backend/internal/domain/shared"
)

// Event types published on the outbound bus
const (
	EventTypeProductCreated = "product.created"
	EventTypeProductUpdated = "product.updated"
	EventTypeProductDeleted = "product.deleted"
)

// ProductCreatedEvent is emitted when a product first appears in the table
type ProductCreatedEvent struct {
	shared.BaseDomainEvent
	Product Product `json:"product"`
}

// ProductUpdatedEvent is emitted when an existing product is rewritten
type ProductUpdatedEvent struct {
	shared.BaseDomainEvent
	Product Product `json:"product"`
	// Old carries the previous snapshot when the change feed provided one
	Old *Product `json:"old,omitempty"`
}

// ProductDeletedEvent is emitted when a product is removed. It carries the
// id only; subscribers needing the final snapshot must keep their own copy.
type ProductDeletedEvent struct {
	shared.BaseDomainEvent
	ProductID string `json:"product_id"`
}

// NewProductCreatedEvent creates a ProductCreated event from a snapshot
func NewProductCreatedEvent(product *Product, seqToken string) *ProductCreatedEvent {
	return &ProductCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductCreated, AggregateType, product.ID, seqToken),
		Product:         *product,
	}
}

// NewProductUpdatedEvent creates a ProductUpdated event from the new
// snapshot, optionally carrying the previous one
func NewProductUpdatedEvent(product, old *Product, seqToken string) *ProductUpdatedEvent {
	return &ProductUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductUpdated, AggregateType, product.ID, seqToken),
		Product:         *product,
		Old:             old.Clone(),
	}
}

// NewProductDeletedEvent creates a ProductDeleted event for an id
func NewProductDeletedEvent(productID, seqToken string) *ProductDeletedEvent {
	return &ProductDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProductDeleted, AggregateType, productID, seqToken),
		ProductID:       productID,
	}
}
