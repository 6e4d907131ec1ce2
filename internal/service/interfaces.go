package service

import (
	"context"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

// EventProcessor defines the engine surface exposed to collaborators: the
// queue adapter and synchronous API callers feed events in, the monitoring
// subsystem reads stats, the alerting subsystem subscribes to struggling-
// student signals.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *domain.LearningEvent) error
	Stats(ctx context.Context) StatsSnapshot
	SubscribeStruggling(fn func(StrugglingSignal))
}
