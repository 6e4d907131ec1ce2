package consumer

import (
	"context"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

// MessageParser defines the interface for parsing raw message bytes into
// validated learning events
type MessageParser interface {
	Parse(body []byte) (*domain.LearningEvent, error)
}

// EventProcessor is the engine surface the pipeline feeds events into
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event *domain.LearningEvent) error
}
