package recovery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/netspec/alertbatch/internal/types"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "alertbatch:recovered:"

// RedisDetector stores recovery markers in Redis so several instances share
// them. Markers expire after ttl.
type RedisDetector struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisDetector creates a detector backed by client. An empty prefix uses
// "alertbatch:recovered:".
func NewRedisDetector(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisDetector {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisDetector{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

// MarkRecovered stores the recovery time for key. A zero at means now.
func (r *RedisDetector) MarkRecovered(ctx context.Context, key string, at time.Time) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if at.IsZero() {
		at = r.now()
	}

	if err := r.client.Set(ctx, r.prefix+key, at.UnixNano(), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// IsRecovered reports whether a marker newer than the alert's last sighting exists.
func (r *RedisDetector) IsRecovered(ctx context.Context, alert types.Alert) (bool, error) {
	result, err := r.client.Get(ctx, r.prefix+alert.Key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get: %w", err)
	}

	nanos, err := strconv.ParseInt(result, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse recovery marker %q: %w", result, err)
	}
	return !time.Unix(0, nanos).Before(alert.LastSeen), nil
}
