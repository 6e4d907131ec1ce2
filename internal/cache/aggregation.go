package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

const pendingBucketsKey = "aggregation:pending"

const eventTypeFieldPrefix = "evt:"

// BucketUpdate is one event's contribution to one aggregation bucket.
type BucketUpdate struct {
	Key       domain.BucketKey
	SessionID string
	// UserID is added to the bucket's unique-users set when non-empty
	// (meso/macro levels; micro buckets are already per-user).
	UserID    string
	EventType domain.EventType
	Duration  float64
	Now       time.Time
}

// AggregationCache maintains hot aggregation buckets in redis. A bucket is a
// hash of counters plus sibling sets for session/user uniqueness. Every
// mutation is a single pipeline of per-field atomic commands (HINCRBY, SADD),
// so concurrent updates to the same bucket cannot lose increments; there is
// no read-modify-write against the cache. HINCRBY creates missing hashes,
// which is the lazy fetch-or-create.
type AggregationCache struct {
	rdb *goredis.Client
	log *zap.Logger
}

// NewAggregationCache creates an aggregation cache accessor
func NewAggregationCache(rdb *goredis.Client, log *zap.Logger) *AggregationCache {
	return &AggregationCache{rdb: rdb, log: log}
}

func sessionsKey(bucket string) string { return bucket + ":sessions" }
func usersKey(bucket string) string    { return bucket + ":users" }

// Apply folds one event into one bucket and refreshes the bucket's TTL.
// The bucket key is also recorded in the pending set for the flush cycle.
func (c *AggregationCache) Apply(ctx context.Context, u BucketUpdate) error {
	key := u.Key.CacheKey()
	ttl := u.Key.Level.CacheTTL()

	pipe := c.rdb.TxPipeline()
	pipe.HIncrBy(ctx, key, "total_events", 1)
	if u.Duration != 0 {
		pipe.HIncrByFloat(ctx, key, "total_time_spent", u.Duration)
	}
	pipe.HIncrBy(ctx, key, eventTypeFieldPrefix+string(u.EventType), 1)
	pipe.HSet(ctx, key, "updated_at", u.Now.UTC().Unix())
	pipe.Expire(ctx, key, ttl)

	pipe.SAdd(ctx, sessionsKey(key), u.SessionID)
	pipe.Expire(ctx, sessionsKey(key), ttl)
	if u.UserID != "" {
		pipe.SAdd(ctx, usersKey(key), u.UserID)
		pipe.Expire(ctx, usersKey(key), ttl)
	}

	pipe.SAdd(ctx, pendingBucketsKey, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to update aggregation bucket %s: %w", key, err)
	}
	return nil
}

// Read materializes a cached bucket in its flushed form, reducing the
// session/user sets to their cardinalities. Returns nil when the bucket has
// been evicted.
func (c *AggregationCache) Read(ctx context.Context, key domain.BucketKey) (*domain.AnalyticsAggregation, error) {
	cacheKey := key.CacheKey()

	fields, err := c.rdb.HGetAll(ctx, cacheKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read aggregation bucket %s: %w", cacheKey, err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	sessions, err := c.rdb.SCard(ctx, sessionsKey(cacheKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions for bucket %s: %w", cacheKey, err)
	}
	users, err := c.rdb.SCard(ctx, usersKey(cacheKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count users for bucket %s: %w", cacheKey, err)
	}

	agg := &domain.AnalyticsAggregation{
		Level:          key.Level,
		EntityID:       key.EntityID,
		Granularity:    key.Granularity,
		TimeframeStart: key.Start,
		TimeframeEnd:   key.Granularity.BucketEnd(key.Start),
		UniqueSessions: sessions,
		UniqueUsers:    users,
		EventTypes:     make(map[string]int64),
		UpdatedAt:      time.Now().UTC(),
	}

	for field, value := range fields {
		switch {
		case field == "total_events":
			agg.TotalEvents, _ = strconv.ParseInt(value, 10, 64)
		case field == "total_time_spent":
			agg.TotalTimeSpent, _ = strconv.ParseFloat(value, 64)
		case field == "updated_at":
			if unix, err := strconv.ParseInt(value, 10, 64); err == nil {
				agg.UpdatedAt = time.Unix(unix, 0).UTC()
			}
		case strings.HasPrefix(field, eventTypeFieldPrefix):
			count, _ := strconv.ParseInt(value, 10, 64)
			agg.EventTypes[strings.TrimPrefix(field, eventTypeFieldPrefix)] = count
		}
	}

	return agg, nil
}

// PopPendingBuckets atomically removes and returns up to n bucket keys
// awaiting a durable flush
func (c *AggregationCache) PopPendingBuckets(ctx context.Context, n int) ([]string, error) {
	keys, err := c.rdb.SPopN(ctx, pendingBucketsKey, int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop pending buckets: %w", err)
	}
	return keys, nil
}

// RequeuePendingBucket puts a bucket key back in the pending set so a failed
// flush is retried next cycle
func (c *AggregationCache) RequeuePendingBucket(ctx context.Context, key string) error {
	return c.rdb.SAdd(ctx, pendingBucketsKey, key).Err()
}
