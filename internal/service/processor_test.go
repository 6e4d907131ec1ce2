package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/cache"
	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

// MockAnalyticsRepository is a mock implementation of repository.AnalyticsRepository
type MockAnalyticsRepository struct {
	mock.Mock
}

func (m *MockAnalyticsRepository) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAnalyticsRepository) InsertEvent(ctx context.Context, event *domain.LearningEvent, processedAt time.Time) (bool, error) {
	args := m.Called(ctx, event, processedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockAnalyticsRepository) GetMetrics(ctx context.Context, userID string) (*domain.LearningMetrics, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LearningMetrics), args.Error(1)
}

func (m *MockAnalyticsRepository) UpsertMetrics(ctx context.Context, metrics *domain.LearningMetrics) error {
	args := m.Called(ctx, metrics)
	return args.Error(0)
}

func (m *MockAnalyticsRepository) UpsertAggregation(ctx context.Context, agg *domain.AnalyticsAggregation) error {
	args := m.Called(ctx, agg)
	return args.Error(0)
}

func (m *MockAnalyticsRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAnalyticsRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

type stubDepthReader struct {
	depth int64
	err   error
}

func (s *stubDepthReader) QueueDepth(ctx context.Context) (int64, error) {
	return s.depth, s.err
}

type processorFixture struct {
	processor    *Processor
	repo         *MockAnalyticsRepository
	metricsCache *cache.MetricsCache
	aggCache     *cache.AggregationCache
	stats        *StatsTracker
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zap.NewNop()
	repo := new(MockAnalyticsRepository)
	metricsCache := cache.NewMetricsCache(rdb, log)
	aggCache := cache.NewAggregationCache(rdb, log)
	stats := NewStatsTracker()
	processor := NewProcessor(repo, metricsCache, NewAggregator(aggCache, log), stats, nil, log)

	return &processorFixture{
		processor:    processor,
		repo:         repo,
		metricsCache: metricsCache,
		aggCache:     aggCache,
		stats:        stats,
	}
}

func TestProcessor_ProcessEvent_Success(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)

	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.repo.On("GetMetrics", mock.Anything, "u1").Return(nil, nil)

	event := makeEvent("e1", "u1", domain.EventContentView,
		domain.ContentViewPayload{Duration: 600, ExpectedDuration: 300})

	err := f.processor.ProcessEvent(ctx, event)

	assert.NoError(t, err)

	metrics, err := f.metricsCache.Get(ctx, "u1")
	assert.NoError(t, err)
	assert.NotNil(t, metrics)
	assert.Equal(t, 600.0, metrics.TimeSpent)
	assert.InDelta(t, 0.1, metrics.EngagementScore, 1e-9)

	snapshot := f.stats.Snapshot()
	assert.Equal(t, int64(1), snapshot.EventsProcessed)
	assert.Equal(t, int64(0), snapshot.ErrorCount)
	f.repo.AssertExpectations(t)
}

func TestProcessor_ProcessEvent_Duplicate(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)

	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)

	event := makeEvent("e1", "u1", domain.EventContentView,
		domain.ContentViewPayload{Duration: 600})

	err := f.processor.ProcessEvent(ctx, event)

	assert.ErrorIs(t, err, domain.ErrDuplicateEvent)

	// No metrics or aggregation effects
	metrics, _ := f.metricsCache.Get(ctx, "u1")
	assert.Nil(t, metrics)
	keys, _ := f.aggCache.PopPendingBuckets(ctx, 10)
	assert.Empty(t, keys)

	snapshot := f.stats.Snapshot()
	assert.Equal(t, int64(0), snapshot.EventsProcessed)
	f.repo.AssertNotCalled(t, "GetMetrics", mock.Anything, mock.Anything)
}

func TestProcessor_ProcessEvent_EffectsAppliedOnceAcrossRedelivery(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)

	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.Anything).Return(true, nil).Once()
	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.Anything).Return(false, nil)
	f.repo.On("GetMetrics", mock.Anything, "u1").Return(nil, nil)

	event := makeEvent("e1", "u1", domain.EventContentView,
		domain.ContentViewPayload{Duration: 600})

	assert.NoError(t, f.processor.ProcessEvent(ctx, event))
	assert.ErrorIs(t, f.processor.ProcessEvent(ctx, event), domain.ErrDuplicateEvent)

	metrics, err := f.metricsCache.Get(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 600.0, metrics.TimeSpent)
}

func TestProcessor_ProcessEvent_ValidationError(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)

	event := makeEvent("e1", "u1", domain.EventContentView, domain.ContentViewPayload{})
	event.SessionID = ""

	err := f.processor.ProcessEvent(ctx, event)

	var validationErr *domain.ValidationError
	assert.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "sessionId", validationErr.Field)

	snapshot := f.stats.Snapshot()
	assert.Equal(t, int64(0), snapshot.EventsProcessed)
	assert.Equal(t, int64(1), snapshot.ErrorCount)
	f.repo.AssertNotCalled(t, "InsertEvent", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessor_ProcessEvent_StoreError(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)

	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.Anything).
		Return(false, errors.New("connection refused"))

	event := makeEvent("e1", "u1", domain.EventContentView, domain.ContentViewPayload{Duration: 1})

	err := f.processor.ProcessEvent(ctx, event)

	var storeErr *domain.StoreError
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "insert_event", storeErr.Op)

	snapshot := f.stats.Snapshot()
	assert.Equal(t, int64(1), snapshot.ErrorCount)
}

func TestProcessor_ProcessEvent_ConcurrentSameUser_NoLostUpdates(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)

	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.repo.On("GetMetrics", mock.Anything, "u1").Return(nil, nil)

	const events = 50
	var wg sync.WaitGroup
	for i := 0; i < events; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			event := makeEvent(fmt.Sprintf("e%d", i), "u1", domain.EventContentView,
				domain.ContentViewPayload{Duration: 10})
			assert.NoError(t, f.processor.ProcessEvent(ctx, event))
		}(i)
	}
	wg.Wait()

	metrics, err := f.metricsCache.Get(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, float64(events*10), metrics.TimeSpent)
	assert.Equal(t, int64(events), f.stats.Snapshot().EventsProcessed)
}

func TestProcessor_ProcessEvent_ConcurrentDistinctUsers_NoCrossContamination(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)

	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.repo.On("GetMetrics", mock.Anything, mock.Anything).Return(nil, nil)

	const users = 20
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			userID := fmt.Sprintf("u%d", i)
			event := makeEvent(fmt.Sprintf("e%d", i), userID, domain.EventContentView,
				domain.ContentViewPayload{Duration: float64((i + 1) * 100)})
			assert.NoError(t, f.processor.ProcessEvent(ctx, event))
		}(i)
	}
	wg.Wait()

	for i := 0; i < users; i++ {
		metrics, err := f.metricsCache.Get(ctx, fmt.Sprintf("u%d", i))
		assert.NoError(t, err)
		assert.Equal(t, float64((i+1)*100), metrics.TimeSpent)
	}
}

func TestProcessor_ProcessEvent_LoadsDurableMetricsOnCacheMiss(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)

	existing := domain.NewLearningMetrics("u1")
	existing.TimeSpent = 1000

	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.repo.On("GetMetrics", mock.Anything, "u1").Return(existing, nil)

	event := makeEvent("e1", "u1", domain.EventContentView, domain.ContentViewPayload{Duration: 500})

	assert.NoError(t, f.processor.ProcessEvent(ctx, event))

	metrics, err := f.metricsCache.Get(ctx, "u1")
	assert.NoError(t, err)
	assert.Equal(t, 1500.0, metrics.TimeSpent)
}

func TestProcessor_StrugglingSignal(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)

	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.repo.On("GetMetrics", mock.Anything, "u1").Return(nil, nil)

	var signals []StrugglingSignal
	f.processor.SubscribeStruggling(func(s StrugglingSignal) {
		signals = append(signals, s)
	})

	struggling := makeEvent("e1", "u1", domain.EventAssessmentSubmit,
		domain.AssessmentSubmitPayload{AssessmentID: "a1", Score: 0.4, Attempts: 4})
	fine := makeEvent("e2", "u1", domain.EventAssessmentSubmit,
		domain.AssessmentSubmitPayload{AssessmentID: "a2", Score: 0.9, Attempts: 1})

	assert.NoError(t, f.processor.ProcessEvent(ctx, struggling))
	assert.NoError(t, f.processor.ProcessEvent(ctx, fine))

	assert.Equal(t, []StrugglingSignal{{
		UserID:       "u1",
		AssessmentID: "a1",
		Score:        0.4,
		Attempts:     4,
	}}, signals)
}

func TestProcessor_ProcessEvent_UpdatesAllAggregationLevels(t *testing.T) {
	ctx := context.Background()
	f := newProcessorFixture(t)

	f.repo.On("InsertEvent", mock.Anything, mock.Anything, mock.Anything).Return(true, nil)
	f.repo.On("GetMetrics", mock.Anything, "u1").Return(nil, nil)

	event := makeEvent("e1", "u1", domain.EventContentView, domain.ContentViewPayload{Duration: 60})

	assert.NoError(t, f.processor.ProcessEvent(ctx, event))

	keys, err := f.aggCache.PopPendingBuckets(ctx, 10)
	assert.NoError(t, err)
	// micro hour/day/week + meso day + macro day
	assert.Len(t, keys, 5)

	levels := map[domain.AggregationLevel]int{}
	for _, raw := range keys {
		key, err := domain.ParseBucketCacheKey(raw)
		assert.NoError(t, err)
		levels[key.Level]++
	}
	assert.Equal(t, 3, levels[domain.LevelMicro])
	assert.Equal(t, 1, levels[domain.LevelMeso])
	assert.Equal(t, 1, levels[domain.LevelMacro])
}

func TestProcessor_Stats_IncludesQueueDepth(t *testing.T) {
	f := newProcessorFixture(t)
	f.processor.depth = &stubDepthReader{depth: 7}

	snapshot := f.processor.Stats(context.Background())

	assert.Equal(t, int64(7), snapshot.QueueLength)
}
