package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/cache"
	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
	"github.com/BarkinBalci/learning-analytics-service/internal/queue"
	"github.com/BarkinBalci/learning-analytics-service/internal/repository"
)

// StrugglingSignal is emitted when an assessment submission crosses the
// low-score/high-attempt threshold. The alerting subsystem subscribes to it.
type StrugglingSignal struct {
	UserID       string
	AssessmentID string
	Score        float64
	Attempts     int
}

// Processor is the ingestion engine. For each event it appends to the
// durable fact log (which doubles as the idempotency guard), updates the
// user's rolling metrics through the read-through cache, and rolls the event
// up into every qualifying aggregation bucket.
//
// Same-user metric updates serialize through a per-user lock because the
// smoothing formulas are read-modify-write. Aggregation buckets need no
// locking: the cache accessor uses atomic per-field increments. The effects
// across the fact log, metrics store and aggregation buckets are applied
// best-effort in that order; a failure part-way surfaces an error and the
// queue adapter's redelivery retries the event (the duplicate guard then
// skips the log append but the later steps are not re-run, a known
// consistency gap).
type Processor struct {
	repo         repository.AnalyticsRepository
	metricsCache *cache.MetricsCache
	aggregator   *Aggregator
	stats        *StatsTracker
	depth        queue.DepthReader
	log          *zap.Logger

	userLocks *keyedMutex
	now       func() time.Time

	subMu       sync.RWMutex
	subscribers []func(StrugglingSignal)
}

// NewProcessor creates the event processor. depth may be nil when no queue
// adapter is attached (synchronous-only callers).
func NewProcessor(repo repository.AnalyticsRepository, metricsCache *cache.MetricsCache,
	aggregator *Aggregator, stats *StatsTracker, depth queue.DepthReader, log *zap.Logger) *Processor {
	return &Processor{
		repo:         repo,
		metricsCache: metricsCache,
		aggregator:   aggregator,
		stats:        stats,
		depth:        depth,
		log:          log,
		userLocks:    newKeyedMutex(),
		now:          time.Now,
	}
}

// SubscribeStruggling registers a callback for struggling-student signals.
// Callbacks run synchronously on the processing goroutine and must be fast.
func (p *Processor) SubscribeStruggling(fn func(StrugglingSignal)) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// ProcessEvent applies one event's full effects. It returns a
// ValidationError for malformed events, ErrDuplicateEvent when the ID was
// already applied, and a StoreError on cache/store I/O failure; the caller
// owns the retry decision.
func (p *Processor) ProcessEvent(ctx context.Context, event *domain.LearningEvent) error {
	start := p.now()

	if err := validateEvent(event); err != nil {
		p.stats.RecordError()
		return err
	}

	inserted, err := p.repo.InsertEvent(ctx, event, start)
	if err != nil {
		p.stats.RecordError()
		return &domain.StoreError{Op: "insert_event", Err: err}
	}
	if !inserted {
		p.log.Info("Rejected duplicate event",
			zap.String("event_id", event.ID),
			zap.String("user_id", event.UserID))
		return fmt.Errorf("%w: %s", domain.ErrDuplicateEvent, event.ID)
	}

	if err := p.updateUserMetrics(ctx, event, start); err != nil {
		p.stats.RecordError()
		return err
	}

	if err := p.aggregator.Apply(ctx, event); err != nil {
		p.stats.RecordError()
		return &domain.StoreError{Op: "update_aggregations", Err: err}
	}

	p.emitStruggling(event)
	p.stats.Record(time.Since(start))

	return nil
}

// updateUserMetrics performs the locked read-modify-write on the user's
// metrics record: cache read-through (durable store on miss), apply, write
// back. The lock covers exactly the RMW window for this user.
func (p *Processor) updateUserMetrics(ctx context.Context, event *domain.LearningEvent, now time.Time) error {
	unlock := p.userLocks.lock(event.UserID)
	defer unlock()

	metrics, err := p.metricsCache.Get(ctx, event.UserID)
	if err != nil {
		return &domain.StoreError{Op: "load_metrics_cache", Err: err}
	}
	if metrics == nil {
		metrics, err = p.repo.GetMetrics(ctx, event.UserID)
		if err != nil {
			return &domain.StoreError{Op: "load_metrics", Err: err}
		}
	}
	if metrics == nil {
		metrics = domain.NewLearningMetrics(event.UserID)
	}

	ApplyEvent(metrics, event, now)

	if err := p.metricsCache.Put(ctx, metrics); err != nil {
		return &domain.StoreError{Op: "save_metrics_cache", Err: err}
	}

	return nil
}

func (p *Processor) emitStruggling(event *domain.LearningEvent) {
	payload, ok := event.Payload.(domain.AssessmentSubmitPayload)
	if !ok || !isStruggling(payload) {
		return
	}

	signal := StrugglingSignal{
		UserID:       event.UserID,
		AssessmentID: payload.AssessmentID,
		Score:        payload.Score,
		Attempts:     payload.Attempts,
	}

	p.subMu.RLock()
	subscribers := p.subscribers
	p.subMu.RUnlock()

	for _, fn := range subscribers {
		fn(signal)
	}
}

// Stats returns the current processing counters with the queue depth read on
// demand from the queue adapter.
func (p *Processor) Stats(ctx context.Context) StatsSnapshot {
	snapshot := p.stats.Snapshot()

	if p.depth != nil {
		depth, err := p.depth.QueueDepth(ctx)
		if err != nil {
			p.log.Warn("Failed to read queue depth", zap.Error(err))
		} else {
			snapshot.QueueLength = depth
		}
	}

	return snapshot
}

// validateEvent guards the synchronous entry point; queue deliveries were
// already validated by the parser stage.
func validateEvent(event *domain.LearningEvent) error {
	switch {
	case event == nil:
		return domain.NewValidationError("event", "is required")
	case event.ID == "":
		return domain.NewValidationError("id", "is required")
	case event.UserID == "":
		return domain.NewValidationError("userId", "is required")
	case event.SessionID == "":
		return domain.NewValidationError("sessionId", "is required")
	case !event.Type.IsValid():
		return domain.NewValidationError("eventType", "is not a known event type")
	case event.Timestamp.IsZero():
		return domain.NewValidationError("timestamp", "is required")
	case event.Payload == nil:
		return domain.NewValidationError("eventData", "is required")
	}
	return nil
}
