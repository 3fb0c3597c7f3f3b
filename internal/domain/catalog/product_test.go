package catalog

import (
	"errors"
	"testing"

	"github.com/catalog/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProduct(t *testing.T) {
	t.Run("valid product", func(t *testing.T) {
		p, err := NewProduct("p1", "Widget", decimal.NewFromFloat(9.99))
		require.NoError(t, err)
		assert.Equal(t, "p1", p.ID)
		assert.Equal(t, "Widget", p.Name)
		assert.True(t, p.Price.Equal(decimal.NewFromFloat(9.99)))
	})

	t.Run("price is rounded to two decimal places", func(t *testing.T) {
		p, err := NewProduct("p1", "Widget", decimal.NewFromFloat(10.005))
		require.NoError(t, err)
		assert.True(t, p.Price.Equal(decimal.NewFromFloat(10.01)), "got %s", p.Price)
	})

	t.Run("zero price is allowed", func(t *testing.T) {
		_, err := NewProduct("p1", "Widget", decimal.Zero)
		assert.NoError(t, err)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := NewProduct("", "Widget", decimal.NewFromInt(1))
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := NewProduct("p1", "", decimal.NewFromInt(1))
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})

	t.Run("negative price", func(t *testing.T) {
		_, err := NewProduct("p1", "Widget", decimal.NewFromInt(-1))
		assert.True(t, errors.Is(err, shared.ErrValidation))
	})
}

func TestProductEqual(t *testing.T) {
	a := &Product{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(999)}
	b := &Product{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(999)}

	assert.True(t, a.Equal(b))

	t.Run("version is ignored", func(t *testing.T) {
		c := b.Clone()
		c.Version = 7
		assert.True(t, a.Equal(c))
	})

	t.Run("price scale is ignored", func(t *testing.T) {
		c := b.Clone()
		c.Price = decimal.RequireFromString("999.00")
		assert.True(t, a.Equal(c))
	})

	t.Run("different name", func(t *testing.T) {
		c := b.Clone()
		c.Name = "Gadget"
		assert.False(t, a.Equal(c))
	})

	t.Run("nil handling", func(t *testing.T) {
		var nilProduct *Product
		assert.False(t, a.Equal(nil))
		assert.True(t, nilProduct.Equal(nil))
	})
}
