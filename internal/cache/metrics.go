package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

const (
	metricsTTL    = 30 * time.Minute
	dirtyUsersKey = "metrics:dirty"
)

// MetricsCache is the hot tier for per-user metrics records. Records are
// stored as JSON under metrics:<userId>. Every write also marks the user in
// a dirty set; the flush cycle drains that set into the durable store, which
// bounds durability lag to one flush interval.
type MetricsCache struct {
	rdb *goredis.Client
	log *zap.Logger
}

// NewMetricsCache creates a metrics cache accessor
func NewMetricsCache(rdb *goredis.Client, log *zap.Logger) *MetricsCache {
	return &MetricsCache{rdb: rdb, log: log}
}

func metricsKey(userID string) string {
	return "metrics:" + userID
}

// Get returns the cached metrics record for a user, or nil on a cache miss
func (c *MetricsCache) Get(ctx context.Context, userID string) (*domain.LearningMetrics, error) {
	raw, err := c.rdb.Get(ctx, metricsKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached metrics for %s: %w", userID, err)
	}

	var metrics domain.LearningMetrics
	if err := json.Unmarshal(raw, &metrics); err != nil {
		// A corrupt entry is treated as a miss so the durable store wins.
		c.log.Warn("Dropping undecodable cached metrics record",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, nil
	}

	return &metrics, nil
}

// Put writes a metrics record back to the cache and marks the user dirty
func (c *MetricsCache) Put(ctx context.Context, metrics *domain.LearningMetrics) error {
	raw, err := json.Marshal(metrics)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics for %s: %w", metrics.UserID, err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, metricsKey(metrics.UserID), raw, metricsTTL)
	pipe.SAdd(ctx, dirtyUsersKey, metrics.UserID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache metrics for %s: %w", metrics.UserID, err)
	}

	return nil
}

// PopDirtyUsers atomically removes and returns up to n users with
// unpersisted metric updates
func (c *MetricsCache) PopDirtyUsers(ctx context.Context, n int) ([]string, error) {
	users, err := c.rdb.SPopN(ctx, dirtyUsersKey, int64(n)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to pop dirty users: %w", err)
	}
	return users, nil
}

// RequeueDirtyUser puts a user back in the dirty set after a failed flush
func (c *MetricsCache) RequeueDirtyUser(ctx context.Context, userID string) error {
	return c.rdb.SAdd(ctx, dirtyUsersKey, userID).Err()
}
