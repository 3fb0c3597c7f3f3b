package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	DynamoDB  DynamoDBConfig
	Redis     RedisConfig
	Watermark WatermarkConfig
	EventBus  EventBusConfig
	Stream    StreamConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	MaxHeaderBytes int
}

// DynamoDBConfig holds DynamoDB connection settings.
// Endpoint overrides the SDK's endpoint resolution for local engines
// (DynamoDB Local, LocalStack); leave it empty against AWS.
type DynamoDBConfig struct {
	Table     string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// WatermarkConfig holds change-feed deduplication settings
type WatermarkConfig struct {
	// Driver selects the store: "redis" (shared across instances) or
	// "memory" (best effort within one process)
	Driver  string
	Enabled bool
	TTL     time.Duration
}

// EventBusConfig holds outbound event bus settings
type EventBusConfig struct {
	// Driver selects the adapter: "eventbridge", "kafka" or "void"
	Driver      string
	EventBridge EventBridgeConfig
	Kafka       KafkaConfig
}

// EventBridgeConfig holds EventBridge bus settings
type EventBridgeConfig struct {
	BusName string
	Source  string
	Region  string
}

// KafkaConfig holds Kafka producer settings
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// StreamConfig holds change-feed consumer settings
type StreamConfig struct {
	Enabled           bool
	StreamARN         string
	BatchSize         int
	PollInterval      time.Duration
	BatchTimeout      time.Duration
	StartAt           string // "latest" or "oldest"
	MaxConcurrentKeys int
	SuppressUnchanged bool
}

// TelemetryConfig holds OpenTelemetry configuration. Enabled gates traces;
// metrics and log export have their own switches so each pipeline can be
// turned on independently.
type TelemetryConfig struct {
	Enabled              bool
	CollectorEndpoint    string
	SamplingRatio        float64
	ServiceName          string
	Insecure             bool
	MetricsEnabled       bool
	MetricExportInterval time.Duration
	LogsEnabled          bool
}

// Load loads configuration from TOML file and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with CATALOG_ prefix (e.g. CATALOG_DYNAMODB_TABLE)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			RequestTimeout: v.GetDuration("http.request_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
		},
		DynamoDB: DynamoDBConfig{
			Table:     v.GetString("dynamodb.table"),
			Region:    v.GetString("dynamodb.region"),
			Endpoint:  v.GetString("dynamodb.endpoint"),
			AccessKey: v.GetString("dynamodb.access_key"),
			SecretKey: v.GetString("dynamodb.secret_key"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Watermark: WatermarkConfig{
			Driver:  v.GetString("watermark.driver"),
			Enabled: v.GetBool("watermark.enabled"),
			TTL:     v.GetDuration("watermark.ttl"),
		},
		EventBus: EventBusConfig{
			Driver: v.GetString("eventbus.driver"),
			EventBridge: EventBridgeConfig{
				BusName: v.GetString("eventbus.eventbridge.bus_name"),
				Source:  v.GetString("eventbus.eventbridge.source"),
				Region:  v.GetString("eventbus.eventbridge.region"),
			},
			Kafka: KafkaConfig{
				Brokers:      v.GetStringSlice("eventbus.kafka.brokers"),
				Topic:        v.GetString("eventbus.kafka.topic"),
				WriteTimeout: v.GetDuration("eventbus.kafka.write_timeout"),
			},
		},
		Stream: StreamConfig{
			Enabled:           v.GetBool("stream.enabled"),
			StreamARN:         v.GetString("stream.stream_arn"),
			BatchSize:         v.GetInt("stream.batch_size"),
			PollInterval:      v.GetDuration("stream.poll_interval"),
			BatchTimeout:      v.GetDuration("stream.batch_timeout"),
			StartAt:           v.GetString("stream.start_at"),
			MaxConcurrentKeys: v.GetInt("stream.max_concurrent_keys"),
			SuppressUnchanged: v.GetBool("stream.suppress_unchanged"),
		},
		Telemetry: TelemetryConfig{
			Enabled:              v.GetBool("telemetry.enabled"),
			CollectorEndpoint:    v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:        v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:          v.GetString("telemetry.service_name"),
			Insecure:             v.GetBool("telemetry.insecure"),
			MetricsEnabled:       v.GetBool("telemetry.metrics_enabled"),
			MetricExportInterval: v.GetDuration("telemetry.metric_export_interval"),
			LogsEnabled:          v.GetBool("telemetry.logs_enabled"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that viper cannot express
func (c *Config) Validate() error {
	switch c.EventBus.Driver {
	case "eventbridge", "kafka", "void":
	default:
		return fmt.Errorf("unknown eventbus driver %q", c.EventBus.Driver)
	}
	if c.EventBus.Driver == "kafka" && len(c.EventBus.Kafka.Brokers) == 0 {
		return fmt.Errorf("eventbus driver is kafka but no brokers configured")
	}
	switch c.Watermark.Driver {
	case "redis", "memory":
	default:
		return fmt.Errorf("unknown watermark driver %q", c.Watermark.Driver)
	}
	switch c.Stream.StartAt {
	case "latest", "oldest":
	default:
		return fmt.Errorf("stream.start_at must be \"latest\" or \"oldest\", got %q", c.Stream.StartAt)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "catalog-backend")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.request_timeout", 5*time.Second)
	v.SetDefault("http.max_header_bytes", 1<<20)

	v.SetDefault("dynamodb.table", "products")
	v.SetDefault("dynamodb.region", "us-east-1")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("watermark.driver", "memory")
	v.SetDefault("watermark.enabled", true)
	v.SetDefault("watermark.ttl", 24*time.Hour)

	v.SetDefault("eventbus.driver", "void")
	v.SetDefault("eventbus.eventbridge.source", "catalog-backend")
	v.SetDefault("eventbus.kafka.topic", "catalog.products")
	v.SetDefault("eventbus.kafka.write_timeout", 10*time.Second)

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.batch_size", 100)
	v.SetDefault("stream.poll_interval", time.Second)
	v.SetDefault("stream.batch_timeout", 30*time.Second)
	v.SetDefault("stream.start_at", "latest")
	v.SetDefault("stream.max_concurrent_keys", 8)
	v.SetDefault("stream.suppress_unchanged", false)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "catalog-backend")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.metrics_enabled", false)
	v.SetDefault("telemetry.metric_export_interval", 60*time.Second)
	v.SetDefault("telemetry.logs_enabled", false)
}
