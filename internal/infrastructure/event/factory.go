package event

import (
	"context"
	"fmt"

	"github.com/catalog/backend/internal/domain/shared"
	"github.com/catalog/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewPublisherFromConfig creates the outbound event publisher selected by the
// eventbus driver. The zero driver is "void", which fails every publish so a
// deployment that forgot to configure a bus is noticed immediately.
func NewPublisherFromConfig(ctx context.Context, cfg config.EventBusConfig, logger *zap.Logger) (shared.EventPublisher, error) {
	switch cfg.Driver {
	case "eventbridge":
		bus, err := NewEventBridgeBusFromConfig(ctx,
			cfg.EventBridge.BusName, cfg.EventBridge.Source, cfg.EventBridge.Region, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create EventBridge bus: %w", err)
		}
		logger.Info("using EventBridge event bus", zap.String("bus_name", cfg.EventBridge.BusName))
		return bus, nil
	case "kafka":
		bus := NewKafkaBusFromConfig(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.WriteTimeout, logger)
		logger.Info("using Kafka event bus",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
		return bus, nil
	case "void", "":
		logger.Warn("no event bus configured, publishes will fail")
		return NewVoidBus(), nil
	default:
		return nil, fmt.Errorf("unknown eventbus driver %q", cfg.Driver)
	}
}
