// Package memory provides an in-memory Store adapter for tests and local
// runs. It honors the full port contract, including cursor pagination and
// optimistic-write conflicts, but produces no change feed.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/catalog/backend/internal/domain/shared"
)

// Store is a map-backed catalog.Store
type Store struct {
	mu   sync.RWMutex
	data map[string]*catalog.Product
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		data: make(map[string]*catalog.Product),
	}
}

// List returns products in id order, one page at a time. The cursor is the
// id of the last product on the previous page.
func (s *Store) List(ctx context.Context, cursor string, limit int) (*catalog.ProductPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapDomainError(shared.ErrStorageUnavailable.Code, "list cancelled", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		if cursor == "" || id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	page := &catalog.ProductPage{Products: []catalog.Product{}}
	for _, id := range ids {
		if limit > 0 && len(page.Products) == limit {
			page.NextCursor = page.Products[len(page.Products)-1].ID
			break
		}
		page.Products = append(page.Products, *s.data[id].Clone())
	}
	return page, nil
}

// Get returns the product with the given id, or shared.ErrNotFound
func (s *Store) Get(ctx context.Context, id string) (*catalog.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, shared.WrapDomainError(shared.ErrStorageUnavailable.Code, "get cancelled", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.data[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return product.Clone(), nil
}

// Put validates and upserts the product. A non-zero Version is treated as an
// optimistic-write expectation against the stored version.
func (s *Store) Put(ctx context.Context, product *catalog.Product) error {
	if err := ctx.Err(); err != nil {
		return shared.WrapDomainError(shared.ErrStorageUnavailable.Code, "put cancelled", err)
	}
	if err := product.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[product.ID]
	if product.Version > 0 && (!exists || current.Version != product.Version) {
		return shared.ErrStorageConflict
	}

	stored := product.Clone()
	stored.Normalize()
	if exists {
		stored.Version = current.Version + 1
	} else {
		stored.Version = 1
	}
	s.data[product.ID] = stored
	return nil
}

// Delete removes the product; deleting an unknown id succeeds
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return shared.WrapDomainError(shared.ErrStorageUnavailable.Code, "delete cancelled", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, id)
	return nil
}

// Len reports the number of stored products (test helper)
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Ensure Store implements the port
var _ catalog.Store = (*Store)(nil)
