package catalog

import (
	"context"

	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/catalog/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultPageSize is used when a list request does not specify a limit
const DefaultPageSize = 20

// MaxPageSize caps a single page so one request never forces an unbounded read
const MaxPageSize = 100

// PutProductRequest carries the attributes of a put (upsert) call
type PutProductRequest struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// ProductService implements the catalog use cases on top of the Store port.
// It holds no mutable state; invocations are independent and may run in
// parallel.
type ProductService struct {
	store  catalog.Store
	logger *zap.Logger
}

// NewProductService creates a new ProductService
func NewProductService(store catalog.Store, logger *zap.Logger) *ProductService {
	return &ProductService{
		store:  store,
		logger: logger,
	}
}

// List returns one page of products. The caller loops with the returned
// cursor until it is empty.
func (s *ProductService) List(ctx context.Context, cursor string, limit int) (*catalog.ProductPage, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", "list")
	defer span.End()

	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	page, err := s.store.List(ctx, cursor, limit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return page, nil
}

// Get returns a single product by id
func (s *ProductService) Get(ctx context.Context, id string) (*catalog.Product, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", "get",
		telemetry.WithAttribute("product.id", id))
	defer span.End()

	product, err := s.store.Get(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return product, nil
}

// Put validates and upserts a product. There is no separate create/update
// distinction; the same call succeeds whether the id pre-existed or not.
func (s *ProductService) Put(ctx context.Context, req PutProductRequest) (*catalog.Product, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", "put",
		telemetry.WithAttribute("product.id", req.ID))
	defer span.End()

	product, err := catalog.NewProduct(req.ID, req.Name, req.Price)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.store.Put(ctx, product); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("product stored",
		zap.String("product_id", product.ID),
		zap.String("price", product.Price.String()),
	)
	return product, nil
}

// Delete removes a product. Deleting an id that does not exist succeeds.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "product", "delete",
		telemetry.WithAttribute("product.id", id))
	defer span.End()

	if err := s.store.Delete(ctx, id); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.logger.Info("product deleted", zap.String("product_id", id))
	return nil
}
