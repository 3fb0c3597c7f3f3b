package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	catalogapp "github.com/catalog/backend/internal/application/catalog"
	appstream "github.com/catalog/backend/internal/application/stream"
	"github.com/catalog/backend/internal/domain/catalog"
	"github.com/catalog/backend/internal/domain/shared"
	"github.com/catalog/backend/internal/infrastructure/cache"
	"github.com/catalog/backend/internal/infrastructure/config"
	"github.com/catalog/backend/internal/infrastructure/event"
	"github.com/catalog/backend/internal/infrastructure/logger"
	"github.com/catalog/backend/internal/infrastructure/persistence/dynamo"
	"github.com/catalog/backend/internal/infrastructure/persistence/memory"
	infrastream "github.com/catalog/backend/internal/infrastructure/stream"
	"github.com/catalog/backend/internal/infrastructure/telemetry"
	"github.com/catalog/backend/internal/interfaces/http/handler"
	"github.com/catalog/backend/internal/interfaces/http/middleware"
	"github.com/catalog/backend/internal/interfaces/http/router"
	"go.uber.org/zap"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting catalog backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	if loggerProvider.IsEnabled() {
		// Tee every log entry to the OTLP collector alongside stdout
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          logger.ParseLevel(cfg.Log.Level),
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore)
	}

	// Storage adapter: DynamoDB when a table is configured, otherwise the
	// in-memory store for local development
	var store catalog.Store
	if cfg.DynamoDB.Table != "" {
		dynamoStore, err := dynamo.NewStoreFromConfig(ctx, &cfg.DynamoDB, log)
		if err != nil {
			log.Fatal("Failed to create DynamoDB store", zap.Error(err))
		}
		store = dynamoStore
		log.Info("Using DynamoDB store", zap.String("table", cfg.DynamoDB.Table))
	} else {
		store = memory.NewStore()
		log.Warn("No DynamoDB table configured, using in-memory store")
	}

	productService := catalogapp.NewProductService(store, log)

	// Outbound event bus
	publisher, err := event.NewPublisherFromConfig(ctx, cfg.EventBus, log)
	if err != nil {
		log.Fatal("Failed to create event publisher", zap.Error(err))
	}

	// Watermark store for change-feed deduplication
	var watermarks shared.WatermarkStore
	switch cfg.Watermark.Driver {
	case "redis":
		factory := cache.NewWatermarkStoreFactory(cfg.Redis, cache.WithLogger(log))
		watermarks, err = factory.CreateStore()
		if err != nil {
			log.Fatal("Failed to create watermark store", zap.Error(err))
		}
	default:
		watermarks = cache.NewInMemoryWatermarkStore()
	}
	defer func() {
		_ = watermarks.Close()
	}()

	translatorCfg := appstream.DefaultConfig()
	translatorCfg.SuppressUnchanged = cfg.Stream.SuppressUnchanged
	translatorCfg.Watermark = shared.WatermarkConfig{
		Enabled: cfg.Watermark.Enabled,
		TTL:     cfg.Watermark.TTL,
	}
	if cfg.Stream.MaxConcurrentKeys > 0 {
		translatorCfg.MaxConcurrentKeys = cfg.Stream.MaxConcurrentKeys
	}
	var streamMetrics *telemetry.StreamMetrics
	if meterProvider.IsEnabled() {
		streamMetrics, err = telemetry.NewStreamMetrics(meterProvider.Meter("catalog.stream"))
		if err != nil {
			log.Fatal("Failed to create stream metrics", zap.Error(err))
		}
	}
	translator := appstream.NewTranslator(publisher, watermarks, log,
		appstream.WithConfig(translatorCfg),
		appstream.WithMetrics(streamMetrics))

	// Change-feed consumer, enabled only when a stream ARN is configured
	var consumer *infrastream.Consumer
	if cfg.Stream.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.DynamoDB.Region))
		if err != nil {
			log.Fatal("Failed to load AWS config for stream consumer", zap.Error(err))
		}

		consumerCfg := infrastream.DefaultConsumerConfig()
		consumerCfg.StreamARN = cfg.Stream.StreamARN
		if cfg.Stream.BatchSize > 0 {
			consumerCfg.BatchSize = cfg.Stream.BatchSize
		}
		if cfg.Stream.PollInterval > 0 {
			consumerCfg.PollInterval = cfg.Stream.PollInterval
		}
		if cfg.Stream.BatchTimeout > 0 {
			consumerCfg.BatchTimeout = cfg.Stream.BatchTimeout
		}
		if cfg.Stream.StartAt != "" {
			consumerCfg.StartAt = cfg.Stream.StartAt
		}

		consumer = infrastream.NewConsumer(
			dynamodbstreams.NewFromConfig(awsCfg), translator, consumerCfg, log)
		if err := consumer.Start(ctx); err != nil {
			log.Fatal("Failed to start stream consumer", zap.Error(err))
		}
	}

	engine := router.NewEngine(cfg.App.Name, log, middleware.HTTPMetrics(meterProvider))
	r := router.NewRouter(engine)
	r.Register(handler.NewProductHandler(productService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if consumer != nil {
		if err := consumer.Stop(shutdownCtx); err != nil {
			log.Error("Stream consumer forced to stop", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush traces", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush metrics", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush exported logs", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
