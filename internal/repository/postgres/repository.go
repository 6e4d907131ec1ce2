package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

// Repository implements repository.AnalyticsRepository for Postgres
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new Postgres repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema creates the three analytics tables if they do not exist
func (r *Repository) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS learning_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			event_data JSONB NOT NULL DEFAULT '{}'::jsonb,
			context JSONB NOT NULL DEFAULT '{}'::jsonb,
			occurred_at TIMESTAMPTZ NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_learning_events_user
			ON learning_events (user_id, occurred_at)`,
		`CREATE TABLE IF NOT EXISTS learning_metrics (
			user_id TEXT PRIMARY KEY,
			engagement_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			mastery_level DOUBLE PRECISION NOT NULL DEFAULT 0,
			completion_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
			retention_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			collaboration_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			ai_interaction_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			time_spent DOUBLE PRECISION NOT NULL DEFAULT 0,
			learning_velocity DOUBLE PRECISION NOT NULL DEFAULT 0,
			struggling_indicators TEXT[] NOT NULL DEFAULT '{}',
			last_updated TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS analytics_aggregations (
			level TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			timeframe_start TIMESTAMPTZ NOT NULL,
			timeframe_end TIMESTAMPTZ NOT NULL,
			granularity TEXT NOT NULL,
			total_events BIGINT NOT NULL DEFAULT 0,
			unique_sessions BIGINT NOT NULL DEFAULT 0,
			unique_users BIGINT NOT NULL DEFAULT 0,
			total_time_spent DOUBLE PRECISION NOT NULL DEFAULT 0,
			event_types JSONB NOT NULL DEFAULT '{}'::jsonb,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (level, entity_id, timeframe_start, timeframe_end, granularity)
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.client.Pool().Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	r.log.Info("Postgres schema initialized successfully")
	return nil
}

// InsertEvent appends an event to the fact log. The primary key on id makes
// the insert the idempotency guard: zero rows affected means the event was
// already delivered.
func (r *Repository) InsertEvent(ctx context.Context, event *domain.LearningEvent, processedAt time.Time) (bool, error) {
	eventData := event.RawData
	if len(eventData) == 0 {
		eventData = json.RawMessage("{}")
	}

	contextJSON, err := json.Marshal(event.Context)
	if err != nil {
		return false, fmt.Errorf("failed to marshal event context: %w", err)
	}

	tag, err := r.client.Pool().Exec(ctx, `
		INSERT INTO learning_events (id, user_id, session_id, event_type, event_data, context, occurred_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.UserID, event.SessionID, string(event.Type),
		eventData, contextJSON, event.Timestamp, processedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert event %s: %w", event.ID, err)
	}

	return tag.RowsAffected() == 1, nil
}

// GetMetrics loads a user's metrics record, or nil when none exists yet
func (r *Repository) GetMetrics(ctx context.Context, userID string) (*domain.LearningMetrics, error) {
	metrics := domain.LearningMetrics{UserID: userID}

	row := r.client.Pool().QueryRow(ctx, `
		SELECT engagement_score, mastery_level, completion_rate, retention_score,
		       collaboration_score, ai_interaction_score, time_spent, learning_velocity,
		       struggling_indicators, last_updated
		FROM learning_metrics
		WHERE user_id = $1`, userID)

	err := row.Scan(
		&metrics.EngagementScore, &metrics.MasteryLevel, &metrics.CompletionRate,
		&metrics.RetentionScore, &metrics.CollaborationScore, &metrics.AIInteractionScore,
		&metrics.TimeSpent, &metrics.LearningVelocity,
		&metrics.StrugglingIndicators, &metrics.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load metrics for %s: %w", userID, err)
	}

	return &metrics, nil
}

// UpsertMetrics persists a user's metrics record, keyed by user ID
func (r *Repository) UpsertMetrics(ctx context.Context, metrics *domain.LearningMetrics) error {
	_, err := r.client.Pool().Exec(ctx, `
		INSERT INTO learning_metrics (user_id, engagement_score, mastery_level, completion_rate,
			retention_score, collaboration_score, ai_interaction_score, time_spent,
			learning_velocity, struggling_indicators, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id) DO UPDATE SET
			engagement_score = EXCLUDED.engagement_score,
			mastery_level = EXCLUDED.mastery_level,
			completion_rate = EXCLUDED.completion_rate,
			retention_score = EXCLUDED.retention_score,
			collaboration_score = EXCLUDED.collaboration_score,
			ai_interaction_score = EXCLUDED.ai_interaction_score,
			time_spent = EXCLUDED.time_spent,
			learning_velocity = EXCLUDED.learning_velocity,
			struggling_indicators = EXCLUDED.struggling_indicators,
			last_updated = EXCLUDED.last_updated`,
		metrics.UserID, metrics.EngagementScore, metrics.MasteryLevel, metrics.CompletionRate,
		metrics.RetentionScore, metrics.CollaborationScore, metrics.AIInteractionScore,
		metrics.TimeSpent, metrics.LearningVelocity, metrics.StrugglingIndicators,
		metrics.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to upsert metrics for %s: %w", metrics.UserID, err)
	}

	return nil
}

// UpsertAggregation persists a flushed aggregation bucket. Last writer wins
// on the metrics payload, which makes flush retries safe.
func (r *Repository) UpsertAggregation(ctx context.Context, agg *domain.AnalyticsAggregation) error {
	eventTypes, err := json.Marshal(agg.EventTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal event type counts: %w", err)
	}

	_, err = r.client.Pool().Exec(ctx, `
		INSERT INTO analytics_aggregations (level, entity_id, timeframe_start, timeframe_end,
			granularity, total_events, unique_sessions, unique_users, total_time_spent,
			event_types, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (level, entity_id, timeframe_start, timeframe_end, granularity) DO UPDATE SET
			total_events = EXCLUDED.total_events,
			unique_sessions = EXCLUDED.unique_sessions,
			unique_users = EXCLUDED.unique_users,
			total_time_spent = EXCLUDED.total_time_spent,
			event_types = EXCLUDED.event_types,
			updated_at = EXCLUDED.updated_at`,
		string(agg.Level), agg.EntityID, agg.TimeframeStart, agg.TimeframeEnd,
		string(agg.Granularity), agg.TotalEvents, agg.UniqueSessions, agg.UniqueUsers,
		agg.TotalTimeSpent, eventTypes, agg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert aggregation %s/%s: %w", agg.Level, agg.EntityID, err)
	}

	return nil
}

// Ping checks if the Postgres connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Pool().Ping(ctx)
}

// Close closes the Postgres connection pool
func (r *Repository) Close() error {
	return r.client.Close()
}
