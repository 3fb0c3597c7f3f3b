// Package stream translates storage change records into outbound domain
// events. It consumes ordered, at-least-once batches from the store's change
// feed, deduplicates redeliveries, and reports per-record outcomes so the
// feed can retry exactly the records that failed.
package stream

import (
	"context"
	"time"

	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/catalog/backend/internal/domain/shared"
	"github.com/catalog/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the terminal outcome of one change record within a batch
type Status string

const (
	// StatusSucceeded: the record's event was published (or the record was a
	// recognized duplicate or suppressed no-op). It must not be redelivered.
	StatusSucceeded Status = "succeeded"

	// StatusFailed: publication did not complete. The feed should redeliver
	// this record; its watermark was not advanced.
	StatusFailed Status = "failed"

	// StatusMalformed: the record violates its invariants. It was logged and
	// skipped and must never be retried, since redelivery cannot repair it.
	StatusMalformed Status = "malformed"
)

// RecordResult is the outcome for a single change record
type RecordResult struct {
	RecordID      string
	Key           string
	SequenceToken string
	Status        Status
	Err           error
}

// BatchResult reports per-record outcomes for a whole batch, in input order.
// It is deliberately not a single pass/fail verdict: the feed retries only
// the failed records, so already-succeeded records are never republished.
type BatchResult struct {
	Results []RecordResult
}

// Failed returns the results with StatusFailed
func (r BatchResult) Failed() []RecordResult {
	var failed []RecordResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			failed = append(failed, res)
		}
	}
	return failed
}

// FailedRecordIDs returns the record identifiers that should be redelivered
func (r BatchResult) FailedRecordIDs() []string {
	var ids []string
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			ids = append(ids, res.RecordID)
		}
	}
	return ids
}

// HasFailures reports whether any record needs redelivery
func (r BatchResult) HasFailures() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Config holds translator behavior knobs
type Config struct {
	// SuppressUnchanged drops the ProductUpdated event for a Modify record
	// whose old and new images are equal (a no-op rewrite). The record still
	// counts as succeeded and its watermark advances. Disabled by default:
	// every Modify emits an event.
	SuppressUnchanged bool

	// Watermark controls redelivery deduplication
	Watermark shared.WatermarkConfig

	// MaxConcurrentKeys bounds how many distinct keys are processed in
	// parallel. Records sharing a key are always processed sequentially.
	MaxConcurrentKeys int
}

// DefaultConfig returns the default translator configuration
func DefaultConfig() Config {
	return Config{
		SuppressUnchanged: false,
		Watermark:         shared.DefaultWatermarkConfig(),
		MaxConcurrentKeys: 8,
	}
}

// Translator converts change-record batches into published domain events
type Translator struct {
	publisher  shared.EventPublisher
	watermarks shared.WatermarkStore
	config     Config
	logger     *zap.Logger
	metrics    *telemetry.StreamMetrics
}

// Option is a functional option for Translator
type Option func(*Translator)

// WithConfig sets the translator configuration
func WithConfig(config Config) Option {
	return func(t *Translator) {
		t.config = config
	}
}

// WithMetrics attaches change-feed metrics instruments
func WithMetrics(metrics *telemetry.StreamMetrics) Option {
	return func(t *Translator) {
		t.metrics = metrics
	}
}

// NewTranslator creates a new Translator
func NewTranslator(publisher shared.EventPublisher, watermarks shared.WatermarkStore, logger *zap.Logger, opts ...Option) *Translator {
	t := &Translator{
		publisher:  publisher,
		watermarks: watermarks,
		config:     DefaultConfig(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ProcessBatch translates one delivery of change records.
//
// Records for the same key are processed strictly in arrival order; distinct
// keys run concurrently so one slow publish cannot stall unrelated keys.
// The returned BatchResult covers every input record, in input order.
func (t *Translator) ProcessBatch(ctx context.Context, records []catalog.ChangeRecord) BatchResult {
	ctx, span := telemetry.StartSpan(ctx, "stream.process_batch",
		telemetry.WithAttribute("batch.size", len(records)))
	defer span.End()

	start := time.Now()
	defer func() {
		t.metrics.RecordBatch(ctx, time.Since(start))
	}()

	results := make([]RecordResult, len(records))
	if len(records) == 0 {
		return BatchResult{Results: results}
	}

	// Group record indexes by key, keys in first-seen order.
	groups := make(map[string][]int)
	var order []string
	for i, rec := range records {
		if _, seen := groups[rec.Key]; !seen {
			order = append(order, rec.Key)
		}
		groups[rec.Key] = append(groups[rec.Key], i)
	}

	g := new(errgroup.Group)
	if t.config.MaxConcurrentKeys > 0 {
		g.SetLimit(t.config.MaxConcurrentKeys)
	}
	for _, key := range order {
		idxs := groups[key]
		g.Go(func() error {
			t.processKey(ctx, records, idxs, results)
			return nil
		})
	}
	// Workers report failures through results, never as errors.
	_ = g.Wait()

	for _, res := range results {
		t.metrics.RecordOutcome(ctx, string(res.Status))
	}

	batch := BatchResult{Results: results}
	if failed := batch.FailedRecordIDs(); len(failed) > 0 {
		t.logger.Warn("batch completed with failures",
			zap.Int("batch_size", len(records)),
			zap.Strings("failed_record_ids", failed),
		)
	}
	return batch
}

// processKey handles all records of one key sequentially, in arrival order.
// After a publish failure every later record of the key is failed without an
// attempt: publishing it would break per-key ordering, and redelivery will
// bring the whole suffix back anyway.
func (t *Translator) processKey(ctx context.Context, records []catalog.ChangeRecord, idxs []int, results []RecordResult) {
	var barrier error

	for _, i := range idxs {
		rec := records[i]
		res := RecordResult{RecordID: rec.ID, Key: rec.Key, SequenceToken: rec.SequenceToken}

		if err := rec.Validate(); err != nil {
			res.Status = StatusMalformed
			res.Err = err
			results[i] = res
			t.logger.Error("malformed change record skipped",
				zap.String("record_id", rec.ID),
				zap.String("key", rec.Key),
				zap.Error(err),
			)
			continue
		}

		if barrier != nil {
			res.Status = StatusFailed
			res.Err = shared.WrapDomainError(shared.ErrPublishFailure.Code,
				"earlier record for the same key was not published", barrier)
			results[i] = res
			continue
		}

		if err := ctx.Err(); err != nil {
			// Not confirmed published, so it must be reported failed and
			// redelivered; assuming success here would drop the event.
			barrier = err
			res.Status = StatusFailed
			res.Err = shared.WrapDomainError(shared.ErrPublishFailure.Code,
				"batch cancelled before record was published", err)
			results[i] = res
			continue
		}

		if t.isDuplicate(ctx, rec) {
			res.Status = StatusSucceeded
			results[i] = res
			t.logger.Debug("duplicate change record skipped",
				zap.String("key", rec.Key),
				zap.String("sequence_token", rec.SequenceToken),
			)
			continue
		}

		if t.config.SuppressUnchanged && rec.Unchanged() {
			t.advance(ctx, rec)
			res.Status = StatusSucceeded
			results[i] = res
			continue
		}

		event, err := rec.Event()
		if err != nil {
			res.Status = StatusMalformed
			res.Err = err
			results[i] = res
			continue
		}

		if err := t.publisher.Publish(ctx, event); err != nil {
			barrier = err
			res.Status = StatusFailed
			res.Err = shared.WrapDomainError(shared.ErrPublishFailure.Code, "publish failed", err)
			results[i] = res
			t.logger.Warn("event publish failed, record left for redelivery",
				zap.String("record_id", rec.ID),
				zap.String("key", rec.Key),
				zap.String("event_type", event.EventType()),
				zap.Error(err),
			)
			continue
		}

		t.metrics.RecordPublished(ctx, event.EventType())
		t.advance(ctx, rec)
		res.Status = StatusSucceeded
		results[i] = res
	}
}

// isDuplicate reports whether the record's token is at or below the key's
// watermark. Lookup errors are tolerated: a duplicate event downstream is
// preferable to dropping one.
func (t *Translator) isDuplicate(ctx context.Context, rec catalog.ChangeRecord) bool {
	if !t.config.Watermark.Enabled {
		return false
	}
	last, err := t.watermarks.Last(ctx, rec.Key)
	if err != nil {
		t.logger.Warn("watermark lookup failed, publishing anyway",
			zap.String("key", rec.Key),
			zap.Error(err),
		)
		return false
	}
	return last != "" && shared.CompareSequenceTokens(rec.SequenceToken, last) <= 0
}

// advance moves the key's watermark past a successfully handled record.
// Failures are logged only; the worst case is one extra duplicate downstream.
func (t *Translator) advance(ctx context.Context, rec catalog.ChangeRecord) {
	if !t.config.Watermark.Enabled {
		return
	}
	if err := t.watermarks.Advance(ctx, rec.Key, rec.SequenceToken, t.config.Watermark.TTL); err != nil {
		t.logger.Warn("failed to advance watermark",
			zap.String("key", rec.Key),
			zap.String("sequence_token", rec.SequenceToken),
			zap.Error(err),
		)
	}
}
