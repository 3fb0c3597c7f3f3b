package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/catalog/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// RedisWatermarkStore implements WatermarkStore using Redis
// This is suitable for distributed deployments where multiple translator
// instances need to share deduplication state
type RedisWatermarkStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// advanceScript moves the watermark forwards only. Tokens are unsigned
// decimal digit strings, so after stripping leading zeros a longer token is
// greater and equal-length tokens compare lexicographically. The compare and
// the SET run as one atomic unit on the server.
var advanceScript = redis.NewScript(`
local function trim(s)
    local t = string.gsub(s, "^0+", "")
    if t == "" then t = "0" end
    return t
end
local cur = redis.call("GET", KEYS[1])
local tok = trim(ARGV[1])
if cur then
    cur = trim(cur)
    if #cur > #tok or (#cur == #tok and cur >= tok) then
        return 0
    end
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`)

// NewRedisWatermarkStore creates a new Redis-based watermark store
func NewRedisWatermarkStore(cfg RedisConfig) (*RedisWatermarkStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisWatermarkStore{
		client:    client,
		keyPrefix: "stream:watermark:",
	}, nil
}

// NewRedisWatermarkStoreWithClient creates a store with an existing Redis client
// This is useful for testing or when sharing a client across components
func NewRedisWatermarkStoreWithClient(client *redis.Client, keyPrefix string) *RedisWatermarkStore {
	if keyPrefix == "" {
		keyPrefix = "stream:watermark:"
	}
	return &RedisWatermarkStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Last returns the highest token recorded for the key, or "" if none is known
func (s *RedisWatermarkStore) Last(ctx context.Context, key string) (string, error) {
	token, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read watermark: %w", err)
	}
	return token, nil
}

// Advance records token as processed for the key. If a higher token is
// already recorded the call is a no-op, so concurrent translators can never
// move the watermark backwards.
func (s *RedisWatermarkStore) Advance(ctx context.Context, key, token string, ttl time.Duration) error {
	err := advanceScript.Run(ctx, s.client,
		[]string{s.keyPrefix + key},
		token, ttl.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisWatermarkStore) Close() error {
	return s.client.Close()
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (s *RedisWatermarkStore) GetClient() *redis.Client {
	return s.client
}

// Ensure RedisWatermarkStore implements WatermarkStore
var _ shared.WatermarkStore = (*RedisWatermarkStore)(nil)
