package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/cache"
	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

// microGranularities are the bucket widths an event lands in at the micro
// level; one event affects all three simultaneously.
var microGranularities = []domain.Granularity{
	domain.GranularityHour,
	domain.GranularityDay,
	domain.GranularityWeek,
}

// Aggregator rolls events up into time-bucketed aggregations at three
// scopes: micro (per user, hour/day/week), meso (per course, day) and macro
// (per organization, day). Bucket boundaries come from wall-clock time at
// processing, not the event timestamp, so late-arriving events land in the
// current window.
type Aggregator struct {
	cache *cache.AggregationCache
	log   *zap.Logger
	now   func() time.Time
}

// NewAggregator creates a multi-level aggregation engine
func NewAggregator(aggCache *cache.AggregationCache, log *zap.Logger) *Aggregator {
	return &Aggregator{
		cache: aggCache,
		log:   log,
		now:   time.Now,
	}
}

// Apply folds one event into every bucket it qualifies for. Meso and macro
// buckets are only touched when the event context names a course or
// organization.
func (a *Aggregator) Apply(ctx context.Context, event *domain.LearningEvent) error {
	now := a.now()
	duration := event.Payload.DurationSeconds()

	updates := make([]cache.BucketUpdate, 0, 5)
	for _, g := range microGranularities {
		updates = append(updates, cache.BucketUpdate{
			Key: domain.BucketKey{
				Level:       domain.LevelMicro,
				EntityID:    event.UserID,
				Granularity: g,
				Start:       g.BucketStart(now),
			},
			SessionID: event.SessionID,
			EventType: event.Type,
			Duration:  duration,
			Now:       now,
		})
	}

	if event.Context.CourseID != "" {
		updates = append(updates, cache.BucketUpdate{
			Key: domain.BucketKey{
				Level:       domain.LevelMeso,
				EntityID:    event.Context.CourseID,
				Granularity: domain.GranularityDay,
				Start:       domain.GranularityDay.BucketStart(now),
			},
			SessionID: event.SessionID,
			UserID:    event.UserID,
			EventType: event.Type,
			Duration:  duration,
			Now:       now,
		})
	}

	if event.Context.OrganizationID != "" {
		updates = append(updates, cache.BucketUpdate{
			Key: domain.BucketKey{
				Level:       domain.LevelMacro,
				EntityID:    event.Context.OrganizationID,
				Granularity: domain.GranularityDay,
				Start:       domain.GranularityDay.BucketStart(now),
			},
			SessionID: event.SessionID,
			UserID:    event.UserID,
			EventType: event.Type,
			Duration:  duration,
			Now:       now,
		})
	}

	for _, u := range updates {
		if err := a.cache.Apply(ctx, u); err != nil {
			return err
		}
	}

	return nil
}
