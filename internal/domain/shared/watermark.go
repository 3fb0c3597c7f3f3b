package shared

import (
	"context"
	"time"
)

// WatermarkStore tracks the highest change-feed sequence token already
// translated for each key, so redelivered records can be skipped.
//
// Entries are retained with a TTL bounding growth to the feed's redelivery
// window. A store may be process-local (best effort, at-least-once
// downstream) or externalized (e.g. Redis) when deduplication must survive
// across invocations.
type WatermarkStore interface {
	// Last returns the highest token recorded for the key, or "" if none
	// is known.
	Last(ctx context.Context, key string) (string, error)

	// Advance records token as processed for the key. Implementations must
	// never move the watermark backwards: if a higher token is already
	// recorded, Advance is a no-op.
	Advance(ctx context.Context, key, token string, ttl time.Duration) error

	// Close releases resources held by the store
	Close() error
}

// WatermarkConfig holds configuration for watermark tracking
type WatermarkConfig struct {
	// TTL is the retention of per-key watermarks. It only needs to cover a
	// single redelivery window of the change feed.
	TTL time.Duration

	// Enabled determines whether deduplication is performed at all
	Enabled bool
}

// DefaultWatermarkConfig returns the default watermark configuration
func DefaultWatermarkConfig() WatermarkConfig {
	return WatermarkConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}

// CompareSequenceTokens orders two change-feed sequence tokens.
// Tokens are unsigned decimal digit strings of arbitrary length (as emitted
// by the storage engine), so a longer token is always greater and tokens of
// equal length compare lexicographically. Returns -1, 0 or 1.
func CompareSequenceTokens(a, b string) int {
	a, b = trimLeadingZeros(a), trimLeadingZeros(b)
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func trimLeadingZeros(s string) string {
	i := 0
	for i < len(s)-1 && s[i] == '0' {
		i++
	}
	return s[i:]
}
