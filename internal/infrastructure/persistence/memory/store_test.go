package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/catalog/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string, price int64) *catalog.Product {
	return &catalog.Product{ID: id, Name: "Product " + id, Price: decimal.NewFromInt(price)}
}

func TestPutThenGet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	p := product("p1", 999)
	require.NoError(t, store.Put(ctx, p))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, p.Equal(got))
}

func TestGetNotFound(t *testing.T) {
	store := NewStore()

	_, err := store.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestPutInvalidDoesNotMutate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.Put(ctx, &catalog.Product{ID: "p1", Name: "", Price: decimal.NewFromInt(1)})
	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.Equal(t, 0, store.Len())

	err = store.Put(ctx, &catalog.Product{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(-1)})
	assert.True(t, errors.Is(err, shared.ErrValidation))
	assert.Equal(t, 0, store.Len())
}

func TestPutIsUpsert(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, product("p1", 100)))
	require.NoError(t, store.Put(ctx, product("p1", 200)))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 1, store.Len())
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, product("p1", 100)))
	require.NoError(t, store.Delete(ctx, "p1"))
	// Second delete of the same id must not fail
	require.NoError(t, store.Delete(ctx, "p1"))
	// Nor a delete of an id that never existed
	require.NoError(t, store.Delete(ctx, "ghost"))
}

func TestListAcrossPages(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, product("a", 1)))
	require.NoError(t, store.Put(ctx, product("b", 2)))
	require.NoError(t, store.Put(ctx, product("c", 3)))
	require.NoError(t, store.Delete(ctx, "b"))

	var ids []string
	cursor := ""
	pages := 0
	for {
		page, err := store.List(ctx, cursor, 1)
		require.NoError(t, err)
		pages++
		for _, p := range page.Products {
			ids = append(ids, p.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	assert.ElementsMatch(t, []string{"a", "c"}, ids)
	assert.GreaterOrEqual(t, pages, 2)
}

func TestListEmpty(t *testing.T) {
	store := NewStore()

	page, err := store.List(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, page.Products)
	assert.Empty(t, page.NextCursor)
}

func TestOptimisticConflict(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, product("p1", 100)))

	loaded, err := store.Get(ctx, "p1")
	require.NoError(t, err)

	// A concurrent writer rewrites the product, bumping the version
	require.NoError(t, store.Put(ctx, product("p1", 150)))

	loaded.Price = decimal.NewFromInt(200)
	err = store.Put(ctx, loaded)
	assert.True(t, errors.Is(err, shared.ErrStorageConflict))
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, product("p1", 100)))

	got, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := store.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Product p1", again.Name)
}
