package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
	appstream "github.com/catalog/backend/internal/application/stream"
	"github.com/catalog/backend/internal/infrastructure/cache"
	"github.com/catalog/backend/internal/infrastructure/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type seekRequest struct {
	iterType types.ShardIteratorType
	sequence string
}

// fakeStreams serves one shard whose records are keyed by iterator value
type fakeStreams struct {
	mu sync.Mutex
	// batches maps iterator -> (records, next iterator)
	batches map[string]fakeBatch
	// fail maps iterator -> remaining GetRecords errors to inject
	fail    map[string]int
	seeks   []seekRequest
	startIt string
	seekIt  map[string]string // sequence number -> iterator
}

type fakeBatch struct {
	records []types.Record
	next    string
}

func (f *fakeStreams) DescribeStream(_ context.Context, _ *dynamodbstreams.DescribeStreamInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.DescribeStreamOutput, error) {
	return &dynamodbstreams.DescribeStreamOutput{
		StreamDescription: &types.StreamDescription{
			Shards: []types.Shard{{ShardId: aws.String("shard-1")}},
		},
	}, nil
}

func (f *fakeStreams) GetShardIterator(_ context.Context, params *dynamodbstreams.GetShardIteratorInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetShardIteratorOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch params.ShardIteratorType {
	case types.ShardIteratorTypeAtSequenceNumber, types.ShardIteratorTypeAfterSequenceNumber:
		seq := aws.ToString(params.SequenceNumber)
		f.seeks = append(f.seeks, seekRequest{iterType: params.ShardIteratorType, sequence: seq})
		if it, ok := f.seekIt[seq]; ok {
			return &dynamodbstreams.GetShardIteratorOutput{ShardIterator: aws.String(it)}, nil
		}
		return nil, errors.New("no iterator scripted for sequence " + seq)
	}
	return &dynamodbstreams.GetShardIteratorOutput{ShardIterator: aws.String(f.startIt)}, nil
}

func (f *fakeStreams) GetRecords(_ context.Context, params *dynamodbstreams.GetRecordsInput, _ ...func(*dynamodbstreams.Options)) (*dynamodbstreams.GetRecordsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	iterator := aws.ToString(params.ShardIterator)
	if f.fail[iterator] > 0 {
		f.fail[iterator]--
		return nil, errors.New("stream temporarily unavailable")
	}

	batch, ok := f.batches[iterator]
	if !ok {
		return &dynamodbstreams.GetRecordsOutput{}, nil
	}
	out := &dynamodbstreams.GetRecordsOutput{Records: batch.records}
	if batch.next != "" {
		out.NextShardIterator = aws.String(batch.next)
	}
	return out, nil
}

func (f *fakeStreams) seekCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seeks)
}

func insertStreamRecord(eventID, key, token string) types.Record {
	return types.Record{
		EventID:   aws.String(eventID),
		EventName: types.OperationTypeInsert,
		Dynamodb: &types.StreamRecord{
			Keys:           map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: key}},
			NewImage:       streamImage(key, "Widget", "9.99"),
			SequenceNumber: aws.String(token),
		},
	}
}

func newConsumerUnderTest(t *testing.T, client StreamsClient, bus *event.InMemoryBus, startAt string) *Consumer {
	t.Helper()
	watermarks := cache.NewInMemoryWatermarkStore()
	t.Cleanup(func() { _ = watermarks.Close() })

	translator := appstream.NewTranslator(bus, watermarks, zap.NewNop())
	cfg := DefaultConsumerConfig()
	cfg.StreamARN = "arn:aws:dynamodb:us-east-1:0:table/products/stream/1"
	cfg.PollInterval = 10 * time.Millisecond
	cfg.RetryBackoff = 10 * time.Millisecond
	cfg.StartAt = startAt
	return NewConsumer(client, translator, cfg, zap.NewNop())
}

func stopConsumer(t *testing.T, consumer *Consumer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = consumer.Stop(ctx)
}

func TestConsumer_TranslatesShardRecords(t *testing.T) {
	client := &fakeStreams{
		startIt: "it-1",
		batches: map[string]fakeBatch{
			"it-1": {records: []types.Record{
				insertStreamRecord("ev-1", "p1", "100"),
				insertStreamRecord("ev-2", "p2", "101"),
			}},
		},
	}
	bus := event.NewInMemoryBus()
	consumer := newConsumerUnderTest(t, client, bus, "oldest")

	require.NoError(t, consumer.Start(context.Background()))
	defer stopConsumer(t, consumer)

	assert.Eventually(t, func() bool {
		return len(bus.Events()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, client.seekCount())
}

func TestConsumer_ReseeksAtFirstFailedRecord(t *testing.T) {
	client := &fakeStreams{
		startIt: "it-1",
		batches: map[string]fakeBatch{
			"it-1": {records: []types.Record{
				insertStreamRecord("ev-1", "p1", "100"),
				insertStreamRecord("ev-2", "p2", "101"),
			}, next: "it-2"},
			// After the re-seek the failed suffix is served again
			"it-retry": {records: []types.Record{
				insertStreamRecord("ev-1", "p1", "100"),
			}},
		},
		seekIt: map[string]string{"100": "it-retry"},
	}
	bus := event.NewInMemoryBus()
	bus.FailNext("p1", 1, errors.New("bus unavailable"))
	consumer := newConsumerUnderTest(t, client, bus, "oldest")

	require.NoError(t, consumer.Start(context.Background()))
	defer stopConsumer(t, consumer)

	// The failed record is eventually redelivered and published; p2
	// succeeded on the first delivery and is not republished
	assert.Eventually(t, func() bool {
		return len(bus.EventsFor("p1")) == 1 && len(bus.EventsFor("p2")) == 1
	}, time.Second, 10*time.Millisecond)

	client.mu.Lock()
	defer client.mu.Unlock()
	require.NotEmpty(t, client.seeks)
	assert.Equal(t, seekRequest{iterType: types.ShardIteratorTypeAtSequenceNumber, sequence: "100"}, client.seeks[0])
}

func TestConsumer_ResumesAfterReadErrorWithoutSkipping(t *testing.T) {
	// A transient GetRecords error must not reopen the shard at LATEST: a
	// record written during the outage would then never be delivered. The
	// shard resumes right after the last handled sequence number instead.
	client := &fakeStreams{
		startIt: "it-1",
		batches: map[string]fakeBatch{
			"it-1": {records: []types.Record{
				insertStreamRecord("ev-1", "p1", "100"),
			}, next: "it-2"},
			// ev-2 lands while it-2 is erroring; it is only reachable by
			// resuming after sequence 100
			"it-resume": {records: []types.Record{
				insertStreamRecord("ev-2", "p2", "101"),
			}},
		},
		fail:   map[string]int{"it-2": 1},
		seekIt: map[string]string{"100": "it-resume"},
	}
	bus := event.NewInMemoryBus()
	consumer := newConsumerUnderTest(t, client, bus, "latest")

	require.NoError(t, consumer.Start(context.Background()))
	defer stopConsumer(t, consumer)

	assert.Eventually(t, func() bool {
		return len(bus.EventsFor("p1")) == 1 && len(bus.EventsFor("p2")) == 1
	}, time.Second, 10*time.Millisecond)

	client.mu.Lock()
	defer client.mu.Unlock()
	require.NotEmpty(t, client.seeks)
	assert.Equal(t, seekRequest{iterType: types.ShardIteratorTypeAfterSequenceNumber, sequence: "100"}, client.seeks[0])
}

func TestConsumer_RequiresStreamARN(t *testing.T) {
	consumer := NewConsumer(&fakeStreams{}, nil, ConsumerConfig{}, zap.NewNop())
	assert.Error(t, consumer.Start(context.Background()))
}
