package repository

import (
	"context"
	"time"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

// AnalyticsRepository defines the durable storage operations of the engine.
// All writes are idempotent: the event log rejects duplicate IDs, metrics
// and aggregations upsert on their natural keys.
type AnalyticsRepository interface {
	// InitSchema initializes the database schema (creates tables if they don't exist)
	InitSchema(ctx context.Context) error

	// InsertEvent appends an event to the fact log. Returns false when the
	// event ID is already present (duplicate delivery).
	InsertEvent(ctx context.Context, event *domain.LearningEvent, processedAt time.Time) (bool, error)

	// GetMetrics loads a user's metrics record, or nil when none exists yet
	GetMetrics(ctx context.Context, userID string) (*domain.LearningMetrics, error)

	// UpsertMetrics persists a user's metrics record, keyed by user ID
	UpsertMetrics(ctx context.Context, metrics *domain.LearningMetrics) error

	// UpsertAggregation persists a flushed aggregation bucket, last writer wins
	UpsertAggregation(ctx context.Context, agg *domain.AnalyticsAggregation) error

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error
}
