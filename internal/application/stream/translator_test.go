package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/catalog/backend/internal/domain/shared"
	"github.com/catalog/backend/internal/infrastructure/cache"
	"github.com/catalog/backend/internal/infrastructure/event"
	"github.com/catalog/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func product(id, name string, price int64) *catalog.Product {
	return &catalog.Product{ID: id, Name: name, Price: decimal.NewFromInt(price)}
}

func insertRecord(recID, key, token string) catalog.ChangeRecord {
	return catalog.ChangeRecord{
		ID:            recID,
		Kind:          catalog.ChangeInsert,
		Key:           key,
		NewImage:      product(key, "Widget", 10),
		SequenceToken: token,
		ArrivalTime:   time.Now(),
	}
}

func modifyRecord(recID, key, token string, oldPrice, newPrice int64) catalog.ChangeRecord {
	return catalog.ChangeRecord{
		ID:            recID,
		Kind:          catalog.ChangeModify,
		Key:           key,
		OldImage:      product(key, "Widget", oldPrice),
		NewImage:      product(key, "Widget", newPrice),
		SequenceToken: token,
		ArrivalTime:   time.Now(),
	}
}

func removeRecord(recID, key, token string) catalog.ChangeRecord {
	return catalog.ChangeRecord{
		ID:            recID,
		Kind:          catalog.ChangeRemove,
		Key:           key,
		OldImage:      product(key, "Widget", 10),
		SequenceToken: token,
		ArrivalTime:   time.Now(),
	}
}

func newTestTranslator(t *testing.T, opts ...Option) (*Translator, *event.InMemoryBus, *cache.InMemoryWatermarkStore) {
	t.Helper()
	bus := event.NewInMemoryBus()
	watermarks := cache.NewInMemoryWatermarkStore()
	t.Cleanup(func() { _ = watermarks.Close() })
	return NewTranslator(bus, watermarks, zap.NewNop(), opts...), bus, watermarks
}

func statuses(r BatchResult) []Status {
	out := make([]Status, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Status
	}
	return out
}

func TestProcessBatch_TranslatesEachKind(t *testing.T) {
	tr, bus, _ := newTestTranslator(t)

	result := tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		insertRecord("ev-1", "p1", "100"),
		modifyRecord("ev-2", "p2", "101", 10, 12),
		removeRecord("ev-3", "p3", "102"),
	})

	assert.Equal(t, []Status{StatusSucceeded, StatusSucceeded, StatusSucceeded}, statuses(result))
	assert.False(t, result.HasFailures())

	events := bus.Events()
	require.Len(t, events, 3)
	types := map[string]bool{}
	for _, e := range events {
		types[e.EventType()] = true
	}
	assert.True(t, types[catalog.EventTypeProductCreated])
	assert.True(t, types[catalog.EventTypeProductUpdated])
	assert.True(t, types[catalog.EventTypeProductDeleted])
}

func TestProcessBatch_EmptyBatch(t *testing.T) {
	tr, bus, _ := newTestTranslator(t)

	result := tr.ProcessBatch(context.Background(), nil)
	assert.Empty(t, result.Results)
	assert.Empty(t, bus.Events())
}

func TestProcessBatch_RedeliveryIsDeduplicated(t *testing.T) {
	tr, bus, _ := newTestTranslator(t)
	batch := []catalog.ChangeRecord{
		insertRecord("ev-1", "p1", "100"),
		modifyRecord("ev-2", "p1", "101", 10, 12),
	}

	first := tr.ProcessBatch(context.Background(), batch)
	assert.False(t, first.HasFailures())
	require.Len(t, bus.Events(), 2)

	// The feed redelivers the whole batch. Both records are recognized as
	// duplicates: they succeed without another publish.
	second := tr.ProcessBatch(context.Background(), batch)
	assert.Equal(t, []Status{StatusSucceeded, StatusSucceeded}, statuses(second))
	assert.Len(t, bus.Events(), 2)
}

func TestProcessBatch_PartialFailureNamesOnlyFailedRecords(t *testing.T) {
	tr, bus, _ := newTestTranslator(t)
	bus.FailNext("p2", 1, errors.New("bus unavailable"))

	result := tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		insertRecord("ev-1", "p1", "100"),
		insertRecord("ev-2", "p2", "101"),
		insertRecord("ev-3", "p3", "102"),
	})

	assert.Equal(t, []string{"ev-2"}, result.FailedRecordIDs())
	assert.Equal(t, StatusSucceeded, result.Results[0].Status)
	assert.Equal(t, StatusFailed, result.Results[1].Status)
	assert.Equal(t, StatusSucceeded, result.Results[2].Status)
	assert.True(t, errors.Is(result.Results[1].Err, shared.ErrPublishFailure))

	// Redelivering only the failed record completes the batch without
	// republishing the others
	retry := tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		insertRecord("ev-2", "p2", "101"),
	})
	assert.False(t, retry.HasFailures())
	assert.Len(t, bus.EventsFor("p2"), 1)
	assert.Len(t, bus.Events(), 3)
}

func TestProcessBatch_FailureBarrierPreservesKeyOrder(t *testing.T) {
	tr, bus, _ := newTestTranslator(t)
	bus.FailNext("p1", 1, errors.New("bus unavailable"))

	result := tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		insertRecord("ev-1", "p1", "100"),
		modifyRecord("ev-2", "p1", "101", 10, 12),
		insertRecord("ev-3", "p2", "200"),
	})

	// Both p1 records fail; the second was never attempted, otherwise a
	// later redelivery of ev-1 would publish out of order
	assert.Equal(t, []Status{StatusFailed, StatusFailed, StatusSucceeded}, statuses(result))
	assert.Empty(t, bus.EventsFor("p1"))
	assert.Len(t, bus.EventsFor("p2"), 1)
}

func TestProcessBatch_MalformedIsTaggedAndSkipped(t *testing.T) {
	tr, bus, _ := newTestTranslator(t)

	bad := insertRecord("ev-1", "p1", "100")
	bad.NewImage = nil

	result := tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		bad,
		modifyRecord("ev-2", "p1", "101", 10, 12),
	})

	// A malformed record does not block later records for its key
	assert.Equal(t, []Status{StatusMalformed, StatusSucceeded}, statuses(result))
	assert.True(t, errors.Is(result.Results[0].Err, shared.ErrMalformedRecord))
	assert.False(t, result.HasFailures())
	assert.Len(t, bus.EventsFor("p1"), 1)
}

func TestProcessBatch_NoOpModifyPublishesByDefault(t *testing.T) {
	tr, bus, _ := newTestTranslator(t)

	result := tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		modifyRecord("ev-1", "p1", "100", 10, 10),
	})

	assert.Equal(t, []Status{StatusSucceeded}, statuses(result))
	events := bus.EventsFor("p1")
	require.Len(t, events, 1)
	assert.Equal(t, catalog.EventTypeProductUpdated, events[0].EventType())
}

func TestProcessBatch_SuppressUnchanged(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SuppressUnchanged = true
	tr, bus, _ := newTestTranslator(t, WithConfig(cfg))

	result := tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		modifyRecord("ev-1", "p1", "100", 10, 10),
	})

	// Suppressed no-ops still succeed and advance the watermark, so a
	// redelivery is treated as a duplicate
	assert.Equal(t, []Status{StatusSucceeded}, statuses(result))
	assert.Empty(t, bus.Events())

	retry := tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		modifyRecord("ev-1", "p1", "100", 10, 10),
	})
	assert.Equal(t, []Status{StatusSucceeded}, statuses(retry))
	assert.Empty(t, bus.Events())
}

func TestProcessBatch_CancelledContextFailsRecords(t *testing.T) {
	tr, bus, _ := newTestTranslator(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := tr.ProcessBatch(ctx, []catalog.ChangeRecord{
		insertRecord("ev-1", "p1", "100"),
	})

	assert.Equal(t, []Status{StatusFailed}, statuses(result))
	assert.Empty(t, bus.Events())
}

func TestProcessBatch_WatermarkDisabledRepublishes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watermark.Enabled = false
	tr, bus, _ := newTestTranslator(t, WithConfig(cfg))

	batch := []catalog.ChangeRecord{insertRecord("ev-1", "p1", "100")}
	tr.ProcessBatch(context.Background(), batch)
	tr.ProcessBatch(context.Background(), batch)

	assert.Len(t, bus.Events(), 2)
}

func TestProcessBatch_OldTokenIsDuplicate(t *testing.T) {
	tr, bus, watermarks := newTestTranslator(t)
	require.NoError(t, watermarks.Advance(context.Background(), "p1", "500", time.Hour))

	result := tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		insertRecord("ev-1", "p1", "100"),
		insertRecord("ev-2", "p1", "501"),
	})

	assert.Equal(t, []Status{StatusSucceeded, StatusSucceeded}, statuses(result))
	// Only the token above the watermark is published
	assert.Len(t, bus.EventsFor("p1"), 1)
}

func TestProcessBatch_DeleteCarriesIDOnly(t *testing.T) {
	tr, bus, _ := newTestTranslator(t)

	tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		removeRecord("ev-1", "p9", "100"),
	})

	events := bus.EventsFor("p9")
	require.Len(t, events, 1)
	deleted, ok := events[0].(*catalog.ProductDeletedEvent)
	require.True(t, ok)
	assert.Equal(t, "p9", deleted.ProductID)
}

func TestProcessBatch_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	metrics, err := telemetry.NewStreamMetrics(provider.Meter("test"))
	require.NoError(t, err)

	tr, bus, _ := newTestTranslator(t, WithMetrics(metrics))
	bus.FailNext("p2", 1, errors.New("bus unavailable"))

	tr.ProcessBatch(context.Background(), []catalog.ChangeRecord{
		insertRecord("ev-1", "p1", "100"),
		insertRecord("ev-2", "p2", "101"),
	})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					counts[m.Name] += dp.Value
				}
			}
		}
	}

	assert.Equal(t, int64(1), counts["catalog_stream_batches_total"])
	assert.Equal(t, int64(2), counts["catalog_stream_records_total"])
	assert.Equal(t, int64(1), counts["catalog_stream_events_published_total"])
}
