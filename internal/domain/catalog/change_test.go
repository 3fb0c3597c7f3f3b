package catalog

import (
	"errors"
	"testing"

	"github.com/catalog/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func widget() *Product {
	return &Product{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(999)}
}

func TestChangeRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  ChangeRecord
		wantErr bool
	}{
		{
			name:   "valid insert",
			record: ChangeRecord{ID: "r1", Kind: ChangeInsert, Key: "p1", NewImage: widget(), SequenceToken: "100"},
		},
		{
			name:   "valid modify",
			record: ChangeRecord{ID: "r1", Kind: ChangeModify, Key: "p1", OldImage: widget(), NewImage: widget(), SequenceToken: "100"},
		},
		{
			name:   "valid remove",
			record: ChangeRecord{ID: "r1", Kind: ChangeRemove, Key: "p1", OldImage: widget(), SequenceToken: "100"},
		},
		{
			name:    "insert without new image",
			record:  ChangeRecord{ID: "r1", Kind: ChangeInsert, Key: "p1", SequenceToken: "100"},
			wantErr: true,
		},
		{
			name:    "insert with old image",
			record:  ChangeRecord{ID: "r1", Kind: ChangeInsert, Key: "p1", OldImage: widget(), NewImage: widget(), SequenceToken: "100"},
			wantErr: true,
		},
		{
			name:    "modify missing old image",
			record:  ChangeRecord{ID: "r1", Kind: ChangeModify, Key: "p1", NewImage: widget(), SequenceToken: "100"},
			wantErr: true,
		},
		{
			name:    "remove with new image",
			record:  ChangeRecord{ID: "r1", Kind: ChangeRemove, Key: "p1", OldImage: widget(), NewImage: widget(), SequenceToken: "100"},
			wantErr: true,
		},
		{
			name:    "missing sequence token",
			record:  ChangeRecord{ID: "r1", Kind: ChangeInsert, Key: "p1", NewImage: widget()},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			record:  ChangeRecord{ID: "r1", Kind: "TRUNCATE", Key: "p1", SequenceToken: "100"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, shared.ErrMalformedRecord))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestChangeRecordEvent(t *testing.T) {
	t.Run("insert maps to created with full payload", func(t *testing.T) {
		rec := ChangeRecord{ID: "r1", Kind: ChangeInsert, Key: "p1", NewImage: widget(), SequenceToken: "100"}

		event, err := rec.Event()
		require.NoError(t, err)

		created, ok := event.(*ProductCreatedEvent)
		require.True(t, ok)
		assert.Equal(t, EventTypeProductCreated, created.EventType())
		assert.Equal(t, "p1", created.AggregateID())
		assert.Equal(t, "100", created.SequenceToken())
		assert.Equal(t, "p1", created.Product.ID)
		assert.Equal(t, "Widget", created.Product.Name)
		assert.True(t, created.Product.Price.Equal(decimal.NewFromInt(999)))
	})

	t.Run("modify maps to updated with both images", func(t *testing.T) {
		old := widget()
		updated := widget()
		updated.Price = decimal.NewFromInt(1099)
		rec := ChangeRecord{ID: "r1", Kind: ChangeModify, Key: "p1", OldImage: old, NewImage: updated, SequenceToken: "101"}

		event, err := rec.Event()
		require.NoError(t, err)

		ev, ok := event.(*ProductUpdatedEvent)
		require.True(t, ok)
		assert.Equal(t, EventTypeProductUpdated, ev.EventType())
		assert.True(t, ev.Product.Price.Equal(decimal.NewFromInt(1099)))
		require.NotNil(t, ev.Old)
		assert.True(t, ev.Old.Price.Equal(decimal.NewFromInt(999)))
	})

	t.Run("remove maps to deleted with id only", func(t *testing.T) {
		rec := ChangeRecord{ID: "r1", Kind: ChangeRemove, Key: "p1", OldImage: widget(), SequenceToken: "102"}

		event, err := rec.Event()
		require.NoError(t, err)

		deleted, ok := event.(*ProductDeletedEvent)
		require.True(t, ok)
		assert.Equal(t, EventTypeProductDeleted, deleted.EventType())
		assert.Equal(t, "p1", deleted.ProductID)
	})

	t.Run("malformed record yields no event", func(t *testing.T) {
		rec := ChangeRecord{ID: "r1", Kind: ChangeInsert, Key: "p1", SequenceToken: "103"}

		_, err := rec.Event()
		assert.True(t, errors.Is(err, shared.ErrMalformedRecord))
	})
}

func TestChangeRecordUnchanged(t *testing.T) {
	same := ChangeRecord{Kind: ChangeModify, Key: "p1", OldImage: widget(), NewImage: widget(), SequenceToken: "1"}
	assert.True(t, same.Unchanged())

	repriced := ChangeRecord{Kind: ChangeModify, Key: "p1", OldImage: widget(), NewImage: &Product{ID: "p1", Name: "Widget", Price: decimal.NewFromInt(1)}, SequenceToken: "2"}
	assert.False(t, repriced.Unchanged())

	insert := ChangeRecord{Kind: ChangeInsert, Key: "p1", NewImage: widget(), SequenceToken: "3"}
	assert.False(t, insert.Unchanged())
}
