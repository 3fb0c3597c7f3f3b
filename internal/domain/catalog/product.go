package catalog

import (
	"github.com/catalog/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateType identifies the product aggregate in domain events
const AggregateType = "product"

// Product represents a single entry in the catalog. The id is opaque and
// externally assigned; it is the sole partition key in the backing table.
type Product struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`

	// Version supports optimistic writes in adapters that implement them.
	// Zero means "no expectation": the write is an unconditional upsert.
	Version int64 `json:"-"`
}

// NewProduct creates a validated product with the price normalized to two
// decimal places.
func NewProduct(id, name string, price decimal.Decimal) (*Product, error) {
	p := &Product{
		ID:    id,
		Name:  name,
		Price: price,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Normalize()
	return p, nil
}

// Validate checks the product invariant: non-empty id, non-empty name,
// non-negative price.
func (p *Product) Validate() error {
	if p.ID == "" {
		return validationError("Product id cannot be empty")
	}
	if p.Name == "" {
		return validationError("Product name cannot be empty")
	}
	if p.Price.IsNegative() {
		return validationError("Product price cannot be negative")
	}
	return nil
}

// Normalize rounds the price to two decimal places (half up), so the stored
// representation never accumulates fractional-cent drift.
func (p *Product) Normalize() {
	p.Price = p.Price.Round(2)
}

// Equal reports whether two products are semantically identical. Version is
// not part of the comparison; it is adapter bookkeeping, not product state.
func (p *Product) Equal(other *Product) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.ID == other.ID && p.Name == other.Name && p.Price.Equal(other.Price)
}

// Clone returns an independent copy
func (p *Product) Clone() *Product {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func validationError(message string) error {
	return shared.NewDomainError(shared.ErrValidation.Code, message)
}
