package cache

import (
	"fmt"

	"github.com/catalog/backend/internal/domain/shared"
	"github.com/catalog/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// WatermarkStoreFactory creates watermark stores based on configuration
type WatermarkStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// WatermarkStoreFactoryOption is a functional option for configuring the factory
type WatermarkStoreFactoryOption func(*WatermarkStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) WatermarkStoreFactoryOption {
	return func(f *WatermarkStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory store
// when Redis is unavailable. Default is true (allow fallback).
func WithInMemoryFallback(allow bool) WatermarkStoreFactoryOption {
	return func(f *WatermarkStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewWatermarkStoreFactory creates a new factory
func NewWatermarkStoreFactory(cfg config.RedisConfig, opts ...WatermarkStoreFactoryOption) *WatermarkStoreFactory {
	f := &WatermarkStoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-based watermark store
func (f *WatermarkStoreFactory) CreateRedisStore() (shared.WatermarkStore, error) {
	redisCfg := RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}

	store, err := NewRedisWatermarkStore(redisCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis watermark store: %w", err)
	}

	return store, nil
}

// CreateInMemoryStore creates an in-memory watermark store
// WARNING: In-memory stores do not share state across process instances,
// which can lead to duplicate event publication in distributed deployments
func (f *WatermarkStoreFactory) CreateInMemoryStore() shared.WatermarkStore {
	return NewInMemoryWatermarkStore()
}

// CreateStore creates a watermark store based on whether Redis is available
// It tries to create a Redis store first, and falls back to in-memory if
// Redis is not available and AllowInMemoryFallback is true
func (f *WatermarkStoreFactory) CreateStore() (shared.WatermarkStore, error) {
	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis watermark store")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for watermarks but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory watermark store. "+
		"This may cause duplicate event publication in distributed deployments.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
