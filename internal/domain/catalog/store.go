package catalog

import "context"

// ProductPage is one page of a cursor-based listing. NextCursor is opaque;
// an empty cursor means the listing is exhausted.
type ProductPage struct {
	Products   []Product `json:"products"`
	NextCursor string    `json:"next,omitempty"`
}

// Store defines the persistence port for products.
//
// Every Put and Delete against a correctly wired adapter surfaces exactly one
// ChangeRecord on the store's change feed; the stream translator depends on
// that contract.
//
// Adapters classify failures into the shared taxonomy before returning:
// shared.ErrNotFound, shared.ErrValidation, shared.ErrStorageUnavailable
// (transient, caller may retry with backoff) and, for adapters implementing
// optimistic writes, shared.ErrStorageConflict.
type Store interface {
	// List returns a page of products starting after cursor ("" for the
	// first page). An empty table yields an empty page, not an error.
	List(ctx context.Context, cursor string, limit int) (*ProductPage, error)

	// Get returns the product with the given id, or shared.ErrNotFound.
	// Reads its own writes: a Get following a Put by the same caller
	// observes the written state.
	Get(ctx context.Context, id string) (*Product, error)

	// Put validates the product and upserts it. Re-issuing the same Put
	// after a timeout-induced retry reaches the same end state.
	Put(ctx context.Context, product *Product) error

	// Delete removes the product. Deleting a non-existent id is not an
	// error, so retried deletes never fail spuriously.
	Delete(ctx context.Context, id string) error
}
