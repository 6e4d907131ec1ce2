package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

func TestMetricsCache_GetMiss(t *testing.T) {
	ctx := context.Background()
	metricsCache := NewMetricsCache(newTestRedis(t), zap.NewNop())

	metrics, err := metricsCache.Get(ctx, "unknown")

	assert.NoError(t, err)
	assert.Nil(t, metrics)
}

func TestMetricsCache_PutAndGet(t *testing.T) {
	ctx := context.Background()
	metricsCache := NewMetricsCache(newTestRedis(t), zap.NewNop())

	metrics := domain.NewLearningMetrics("u1")
	metrics.EngagementScore = 0.42
	metrics.TimeSpent = 600
	metrics.StrugglingIndicators = []string{"assessment_difficulty_a1"}
	metrics.LastUpdated = time.Date(2024, 7, 17, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, metricsCache.Put(ctx, metrics))

	loaded, err := metricsCache.Get(ctx, "u1")

	assert.NoError(t, err)
	assert.Equal(t, metrics, loaded)
}

func TestMetricsCache_PutMarksUserDirty(t *testing.T) {
	ctx := context.Background()
	metricsCache := NewMetricsCache(newTestRedis(t), zap.NewNop())

	assert.NoError(t, metricsCache.Put(ctx, domain.NewLearningMetrics("u1")))
	assert.NoError(t, metricsCache.Put(ctx, domain.NewLearningMetrics("u2")))
	// A second write to the same user does not duplicate the dirty mark
	assert.NoError(t, metricsCache.Put(ctx, domain.NewLearningMetrics("u1")))

	users, err := metricsCache.PopDirtyUsers(ctx, 10)

	assert.NoError(t, err)
	assert.ElementsMatch(t, []string{"u1", "u2"}, users)

	users, err = metricsCache.PopDirtyUsers(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, users)
}

func TestMetricsCache_RequeueDirtyUser(t *testing.T) {
	ctx := context.Background()
	metricsCache := NewMetricsCache(newTestRedis(t), zap.NewNop())

	assert.NoError(t, metricsCache.RequeueDirtyUser(ctx, "u1"))

	users, err := metricsCache.PopDirtyUsers(ctx, 10)
	assert.NoError(t, err)
	assert.Equal(t, []string{"u1"}, users)
}
