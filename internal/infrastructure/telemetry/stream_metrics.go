package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// StreamMetrics tracks change-feed translation activity: batches processed,
// per-record outcomes and events published.
type StreamMetrics struct {
	batchesTotal    *Counter
	recordsTotal    *Counter
	eventsPublished *Counter
	batchDuration   *Histogram
}

// NewStreamMetrics creates all change-feed metrics instruments from a meter.
func NewStreamMetrics(meter metric.Meter) (*StreamMetrics, error) {
	batchesTotal, err := NewCounter(
		meter,
		"catalog_stream_batches_total",
		"Total number of change-record batches processed",
		"{batches}",
	)
	if err != nil {
		return nil, err
	}

	recordsTotal, err := NewCounter(
		meter,
		"catalog_stream_records_total",
		"Total number of change records processed by terminal status",
		"{records}",
	)
	if err != nil {
		return nil, err
	}

	eventsPublished, err := NewCounter(
		meter,
		"catalog_stream_events_published_total",
		"Total number of domain events published to the bus",
		"{events}",
	)
	if err != nil {
		return nil, err
	}

	batchDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "catalog_stream_batch_duration_seconds",
		Description: "Change-record batch processing latency distribution in seconds",
		Unit:        "s",
		Boundaries:  BatchDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &StreamMetrics{
		batchesTotal:    batchesTotal,
		recordsTotal:    recordsTotal,
		eventsPublished: eventsPublished,
		batchDuration:   batchDuration,
	}, nil
}

// RecordBatch records one processed batch and its duration.
func (m *StreamMetrics) RecordBatch(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.batchesTotal.Inc(ctx)
	m.batchDuration.RecordDuration(ctx, d)
}

// RecordOutcome records the terminal status of one change record.
func (m *StreamMetrics) RecordOutcome(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.recordsTotal.Inc(ctx, AttrRecordStatus.String(status))
}

// RecordPublished records one event handed to the bus.
func (m *StreamMetrics) RecordPublished(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsPublished.Inc(ctx, AttrEventType.String(eventType))
}
