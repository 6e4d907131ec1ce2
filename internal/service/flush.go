package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/cache"
	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
	"github.com/BarkinBalci/learning-analytics-service/internal/repository"
)

// FlusherConfig configures the batch flush cycle
type FlusherConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Flusher periodically drains hot state into the durable store: pending
// aggregation buckets (reducing uniqueness sets to counts, the one
// irreversible step) and dirty user metrics. A failure on one item is
// logged, the item is requeued, and the cycle continues; the idempotent
// upserts make retries safe.
type Flusher struct {
	repo         repository.AnalyticsRepository
	aggCache     *cache.AggregationCache
	metricsCache *cache.MetricsCache
	config       FlusherConfig
	log          *zap.Logger
}

// NewFlusher creates a new batch flush cycle
func NewFlusher(repo repository.AnalyticsRepository, aggCache *cache.AggregationCache,
	metricsCache *cache.MetricsCache, config FlusherConfig, log *zap.Logger) *Flusher {
	return &Flusher{
		repo:         repo,
		aggCache:     aggCache,
		metricsCache: metricsCache,
		config:       config,
		log:          log,
	}
}

// Start runs the flush loop until ctx is canceled, then performs one final
// drain on a fresh deadline so in-flight state is not stranded in the cache.
func (f *Flusher) Start(ctx context.Context) {
	ticker := time.NewTicker(f.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.log.Info("Flush cycle shutting down")
			finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			f.RunOnce(finalCtx)
			cancel()
			return

		case <-ticker.C:
			f.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single flush pass
func (f *Flusher) RunOnce(ctx context.Context) {
	f.flushAggregations(ctx)
	f.flushMetrics(ctx)
}

func (f *Flusher) flushAggregations(ctx context.Context) {
	keys, err := f.aggCache.PopPendingBuckets(ctx, f.config.BatchSize)
	if err != nil {
		f.log.Error("Failed to drain pending aggregation buckets", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}

	flushed := 0
	for _, rawKey := range keys {
		key, err := domain.ParseBucketCacheKey(rawKey)
		if err != nil {
			f.log.Warn("Skipping unparseable bucket key",
				zap.String("key", rawKey),
				zap.Error(err))
			continue
		}

		agg, err := f.aggCache.Read(ctx, key)
		if err != nil {
			f.log.Error("Failed to read aggregation bucket",
				zap.String("key", rawKey),
				zap.Error(err))
			f.requeueBucket(ctx, rawKey)
			continue
		}
		if agg == nil {
			// Evicted since it was marked pending; nothing left to flush.
			continue
		}

		if err := f.repo.UpsertAggregation(ctx, agg); err != nil {
			f.log.Error("Failed to flush aggregation bucket",
				zap.String("key", rawKey),
				zap.Error(err))
			f.requeueBucket(ctx, rawKey)
			continue
		}
		flushed++
	}

	f.log.Info("Flushed aggregation buckets",
		zap.Int("flushed", flushed),
		zap.Int("drained", len(keys)))
}

func (f *Flusher) flushMetrics(ctx context.Context) {
	users, err := f.metricsCache.PopDirtyUsers(ctx, f.config.BatchSize)
	if err != nil {
		f.log.Error("Failed to drain dirty metrics users", zap.Error(err))
		return
	}
	if len(users) == 0 {
		return
	}

	flushed := 0
	for _, userID := range users {
		metrics, err := f.metricsCache.Get(ctx, userID)
		if err != nil {
			f.log.Error("Failed to read cached metrics",
				zap.String("user_id", userID),
				zap.Error(err))
			f.requeueUser(ctx, userID)
			continue
		}
		if metrics == nil {
			continue
		}

		if err := f.repo.UpsertMetrics(ctx, metrics); err != nil {
			f.log.Error("Failed to flush metrics",
				zap.String("user_id", userID),
				zap.Error(err))
			f.requeueUser(ctx, userID)
			continue
		}
		flushed++
	}

	f.log.Info("Flushed user metrics",
		zap.Int("flushed", flushed),
		zap.Int("drained", len(users)))
}

func (f *Flusher) requeueBucket(ctx context.Context, key string) {
	if err := f.aggCache.RequeuePendingBucket(ctx, key); err != nil {
		f.log.Error("Failed to requeue aggregation bucket",
			zap.String("key", key),
			zap.Error(err))
	}
}

func (f *Flusher) requeueUser(ctx context.Context, userID string) {
	if err := f.metricsCache.RequeueDirtyUser(ctx, userID); err != nil {
		f.log.Error("Failed to requeue dirty user",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
