package event

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/catalog/backend/internal/domain/shared"
	"github.com/catalog/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// EventBridgeClient is the subset of the EventBridge API the bus needs
type EventBridgeClient interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EventBridgeBus publishes domain events to an Amazon EventBridge bus.
// Each event becomes one entry: the JSON event as the detail, the
// subscriber-facing name as the detail-type and the aggregate id in the
// resources list.
type EventBridgeBus struct {
	client  EventBridgeClient
	busName string
	source  string
	logger  *zap.Logger
}

// NewEventBridgeBus creates a bus on an existing client
func NewEventBridgeBus(client EventBridgeClient, busName, source string, logger *zap.Logger) *EventBridgeBus {
	if source == "" {
		source = "catalog-backend"
	}
	return &EventBridgeBus{
		client:  client,
		busName: busName,
		source:  source,
		logger:  logger,
	}
}

// NewEventBridgeBusFromConfig builds the AWS client from the environment
func NewEventBridgeBusFromConfig(ctx context.Context, busName, source, region string, logger *zap.Logger) (*EventBridgeBus, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewEventBridgeBus(eventbridge.NewFromConfig(awsCfg), busName, source, logger), nil
}

// Publish sends a single event to the bus
func (b *EventBridgeBus) Publish(ctx context.Context, event shared.DomainEvent) error {
	ctx, span := telemetry.StartSpan(ctx, "EventBridge.Publish",
		telemetry.WithSpanKind(trace.SpanKindProducer),
		telemetry.WithAttribute("event.type", event.EventType()),
	)
	defer span.End()

	detail, err := Encode(event)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	out, err := b.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(b.busName),
			Source:       aws.String(b.source),
			DetailType:   aws.String(DetailType(event)),
			Detail:       aws.String(string(detail)),
			Resources:    []string{event.AggregateID()},
		}},
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("eventbridge put-events: %w", err)
	}
	if out.FailedEntryCount > 0 {
		entry := out.Entries[0]
		err := fmt.Errorf("eventbridge rejected event: %s: %s",
			aws.ToString(entry.ErrorCode), aws.ToString(entry.ErrorMessage))
		telemetry.RecordError(span, err)
		return err
	}

	b.logger.Debug("event published to EventBridge",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("product_id", event.AggregateID()),
	)
	return nil
}

var _ shared.EventPublisher = (*EventBridgeBus)(nil)
