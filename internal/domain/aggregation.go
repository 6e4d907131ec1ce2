package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AggregationLevel is the organizational scope of a rollup bucket.
type AggregationLevel string

const (
	LevelMicro AggregationLevel = "micro" // per user
	LevelMeso  AggregationLevel = "meso"  // per group/course
	LevelMacro AggregationLevel = "macro" // per organization
)

// CacheTTL returns how long a cached bucket at this level lives without the
// flush cycle touching it.
func (l AggregationLevel) CacheTTL() time.Duration {
	switch l {
	case LevelMeso:
		return time.Hour
	case LevelMacro:
		return 2 * time.Hour
	default:
		return 30 * time.Minute
	}
}

// Granularity is the time-bucket width an aggregation covers.
type Granularity string

const (
	GranularityHour Granularity = "hour"
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
)

// BucketStart truncates t to the start of the bucket containing it, in UTC.
// Weeks start on Monday (ISO).
func (g Granularity) BucketStart(t time.Time) time.Time {
	t = t.UTC()
	switch g {
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityWeek:
		day := t.Truncate(24 * time.Hour)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	default:
		return t.Truncate(24 * time.Hour)
	}
}

// BucketEnd returns the exclusive end of a bucket starting at start.
func (g Granularity) BucketEnd(start time.Time) time.Time {
	switch g {
	case GranularityHour:
		return start.Add(time.Hour)
	case GranularityWeek:
		return start.AddDate(0, 0, 7)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// BucketKey identifies one aggregation bucket. It is the upsert key in the
// durable store and the basis of the cache key.
type BucketKey struct {
	Level       AggregationLevel
	EntityID    string
	Granularity Granularity
	Start       time.Time
}

// CacheKey renders the bucket's cache-store key:
// aggregation:<level>:<entityId>:<granularity>:<bucketStartUnix>.
func (k BucketKey) CacheKey() string {
	return fmt.Sprintf("aggregation:%s:%s:%s:%d", k.Level, k.EntityID, k.Granularity, k.Start.Unix())
}

// ParseBucketCacheKey inverts CacheKey. Entity IDs may themselves contain
// colons, so the key is split from both ends.
func ParseBucketCacheKey(key string) (BucketKey, error) {
	rest, ok := strings.CutPrefix(key, "aggregation:")
	if !ok {
		return BucketKey{}, fmt.Errorf("not an aggregation key: %q", key)
	}
	level, rest, ok := strings.Cut(rest, ":")
	if !ok {
		return BucketKey{}, fmt.Errorf("malformed aggregation key: %q", key)
	}
	i := strings.LastIndex(rest, ":")
	if i < 0 {
		return BucketKey{}, fmt.Errorf("malformed aggregation key: %q", key)
	}
	startUnix, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return BucketKey{}, fmt.Errorf("malformed bucket start in key %q: %w", key, err)
	}
	rest = rest[:i]
	j := strings.LastIndex(rest, ":")
	if j < 0 {
		return BucketKey{}, fmt.Errorf("malformed aggregation key: %q", key)
	}
	return BucketKey{
		Level:       AggregationLevel(level),
		EntityID:    rest[:j],
		Granularity: Granularity(rest[j+1:]),
		Start:       time.Unix(startUnix, 0).UTC(),
	}, nil
}

// AnalyticsAggregation is the flushed, count-only form of a bucket. During
// the cached phase unique sessions/users live as real sets; the reduction to
// the integer cardinalities below happens exactly once, at flush, and is
// irreversible.
type AnalyticsAggregation struct {
	Level          AggregationLevel
	EntityID       string
	Granularity    Granularity
	TimeframeStart time.Time
	TimeframeEnd   time.Time
	TotalEvents    int64
	UniqueSessions int64
	UniqueUsers    int64
	TotalTimeSpent float64
	EventTypes     map[string]int64
	UpdatedAt      time.Time
}
