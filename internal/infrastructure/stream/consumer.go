package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	appstream "github.com/catalog/backend/internal/application/stream"
	"github.com/catalog/backend/internal/domain/catalog"
	"go.uber.org/zap"
)

// StreamsClient is the subset of the DynamoDB Streams API the consumer needs
type StreamsClient interface {
	DescribeStream(ctx context.Context, params *dynamodbstreams.DescribeStreamInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error)
	GetShardIterator(ctx context.Context, params *dynamodbstreams.GetShardIteratorInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error)
	GetRecords(ctx context.Context, params *dynamodbstreams.GetRecordsInput, optFns ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error)
}

// ConsumerConfig holds configuration for the change-feed consumer
type ConsumerConfig struct {
	StreamARN    string
	BatchSize    int
	PollInterval time.Duration
	// BatchTimeout bounds one translation attempt; records not published in
	// time are redelivered on the next poll
	BatchTimeout time.Duration
	// StartAt is the position for newly discovered shards: "oldest"
	// (TRIM_HORIZON) or "latest"
	StartAt string
	// RetryBackoff is the pause before re-reading a batch that had failures
	RetryBackoff time.Duration
}

// DefaultConsumerConfig returns default configuration
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		BatchSize:    100,
		PollInterval: 2 * time.Second,
		BatchTimeout: 30 * time.Second,
		StartAt:      "oldest",
		RetryBackoff: time.Second,
	}
}

// Consumer polls the table's change feed and drives the translator. Each
// shard gets its own worker so the feed's per-shard ordering is preserved;
// a batch with failed records is re-read from the first failed record, which
// gives every record at-least-once delivery.
type Consumer struct {
	client     StreamsClient
	translator *appstream.Translator
	config     ConsumerConfig
	logger     *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	owned map[string]struct{}
}

// NewConsumer creates a new change-feed consumer
func NewConsumer(client StreamsClient, translator *appstream.Translator, config ConsumerConfig, logger *zap.Logger) *Consumer {
	return &Consumer{
		client:     client,
		translator: translator,
		config:     config,
		logger:     logger,
		owned:      make(map[string]struct{}),
	}
}

// Start begins shard discovery and consumption in the background
func (c *Consumer) Start(ctx context.Context) error {
	if c.config.StreamARN == "" {
		return fmt.Errorf("stream consumer requires a stream ARN")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.discoverLoop(ctx)

	c.logger.Info("stream consumer started",
		zap.String("stream_arn", c.config.StreamARN),
		zap.Int("batch_size", c.config.BatchSize),
		zap.Duration("poll_interval", c.config.PollInterval),
	)
	return nil
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("stream consumer stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// discoverLoop periodically lists the stream's shards and spawns a worker
// for each shard not yet owned
func (c *Consumer) discoverLoop(ctx context.Context) {
	defer c.wg.Done()

	c.discoverShards(ctx)

	ticker := time.NewTicker(c.config.PollInterval * 5)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.discoverShards(ctx)
		}
	}
}

func (c *Consumer) discoverShards(ctx context.Context) {
	var lastShardID *string
	for {
		out, err := c.client.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(c.config.StreamARN),
			ExclusiveStartShardId: lastShardID,
		})
		if err != nil {
			c.logger.Error("failed to describe stream", zap.Error(err))
			return
		}

		for _, shard := range out.StreamDescription.Shards {
			c.adoptShard(ctx, aws.ToString(shard.ShardId))
		}

		lastShardID = out.StreamDescription.LastEvaluatedShardId
		if lastShardID == nil {
			return
		}
	}
}

// adoptShard spawns a worker for the shard unless one is already running
func (c *Consumer) adoptShard(ctx context.Context, shardID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.owned[shardID]; ok {
		return
	}
	c.owned[shardID] = struct{}{}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeShard(ctx, shardID)
	}()
}

// consumeShard reads the shard until it is closed or the consumer stops
func (c *Consumer) consumeShard(ctx context.Context, shardID string) {
	logger := c.logger.With(zap.String("shard_id", shardID))

	iterator, err := c.shardIterator(ctx, shardID, c.startIteratorType(), "")
	if err != nil {
		logger.Error("failed to open shard iterator", zap.Error(err))
		return
	}

	// Sequence number of the newest record confirmed handled on this shard.
	// After a transient read error the shard resumes right after it; a fresh
	// LATEST iterator would skip every record written during the outage.
	var lastHandled string

	for iterator != "" {
		if ctx.Err() != nil {
			return
		}

		out, err := c.client.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{
			ShardIterator: aws.String(iterator),
			Limit:         aws.Int32(int32(c.config.BatchSize)),
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("failed to read records, retrying", zap.Error(err))
			if !c.sleep(ctx, c.config.RetryBackoff) {
				return
			}
			iterator, err = c.resumeIterator(ctx, shardID, lastHandled)
			if err != nil {
				logger.Error("failed to reopen shard iterator", zap.Error(err))
				return
			}
			continue
		}

		if len(out.Records) > 0 {
			failedToken, handledToken, failed := c.translate(ctx, out.Records, logger)
			if handledToken != "" {
				lastHandled = handledToken
			}
			if failed {
				// Re-seek to the first failed record so it and everything
				// after it are redelivered in order
				if !c.sleep(ctx, c.config.RetryBackoff) {
					return
				}
				iterator, err = c.shardIterator(ctx, shardID, types.ShardIteratorTypeAtSequenceNumber, failedToken)
				if err != nil {
					logger.Error("failed to re-seek shard iterator", zap.Error(err))
					return
				}
				continue
			}
		}

		iterator = aws.ToString(out.NextShardIterator)
		if len(out.Records) == 0 {
			if !c.sleep(ctx, c.config.PollInterval) {
				return
			}
		}
	}

	logger.Info("shard closed")
}

// translate runs one batch through the translator. It returns the sequence
// token of the first failed record plus the token of the last record handled
// before that point, which is the shard's resume position.
func (c *Consumer) translate(ctx context.Context, raw []types.Record, logger *zap.Logger) (failedToken, handledToken string, failed bool) {
	records := make([]catalog.ChangeRecord, len(raw))
	for i, rec := range raw {
		records[i] = decodeRecord(rec)
	}

	batchCtx := ctx
	if c.config.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, c.config.BatchTimeout)
		defer cancel()
	}

	result := c.translator.ProcessBatch(batchCtx, records)
	for _, res := range result.Results {
		if res.Status == appstream.StatusFailed {
			logger.Warn("batch had failures, re-seeking",
				zap.String("record_id", res.RecordID),
				zap.String("sequence_token", res.SequenceToken),
			)
			return res.SequenceToken, handledToken, true
		}
		if res.SequenceToken != "" {
			handledToken = res.SequenceToken
		}
	}
	return "", handledToken, false
}

// resumeIterator reopens the shard after a read error, right after the last
// handled record when one is known. Falling back to the configured start
// position happens only before anything was handled.
func (c *Consumer) resumeIterator(ctx context.Context, shardID, lastHandled string) (string, error) {
	if lastHandled != "" {
		return c.shardIterator(ctx, shardID, types.ShardIteratorTypeAfterSequenceNumber, lastHandled)
	}
	return c.shardIterator(ctx, shardID, c.startIteratorType(), "")
}

func (c *Consumer) shardIterator(ctx context.Context, shardID string, iterType types.ShardIteratorType, seq string) (string, error) {
	input := &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         aws.String(c.config.StreamARN),
		ShardId:           aws.String(shardID),
		ShardIteratorType: iterType,
	}
	if seq != "" {
		input.SequenceNumber = aws.String(seq)
	}
	out, err := c.client.GetShardIterator(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.ToString(out.ShardIterator), nil
}

func (c *Consumer) startIteratorType() types.ShardIteratorType {
	if c.config.StartAt == "latest" {
		return types.ShardIteratorTypeLatest
	}
	return types.ShardIteratorTypeTrimHorizon
}

// sleep waits for d or until the context is cancelled
func (c *Consumer) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
