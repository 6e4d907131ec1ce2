package consumer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

// ProcessorStage feeds each envelope through the ingestion engine and
// settles the message: ack on success and on terminal rejects (validation,
// duplicate), nack on store failures so the queue redelivers. Redelivery
// plus the duplicate guard gives at-least-once delivery with effects applied
// exactly once.
type ProcessorStage struct {
	processor EventProcessor
	log       *zap.Logger
}

// NewProcessorStage creates a new processor stage
func NewProcessorStage(processor EventProcessor, log *zap.Logger) *ProcessorStage {
	return &ProcessorStage{
		processor: processor,
		log:       log,
	}
}

// Start begins processing envelopes from the input channel
func (s *ProcessorStage) Start(ctx context.Context, in <-chan *Envelope) {
	for {
		select {
		case <-ctx.Done():
			s.log.Info("Processor stage shutting down")
			return
		case envelope, ok := <-in:
			if !ok {
				s.log.Info("Processor stage input channel closed")
				return
			}
			s.processEnvelope(ctx, envelope)
		}
	}
}

func (s *ProcessorStage) processEnvelope(ctx context.Context, envelope *Envelope) {
	err := s.processor.ProcessEvent(ctx, envelope.Event)

	var validationErr *domain.ValidationError
	switch {
	case err == nil:
		s.settle(ctx, envelope.Ack, "ack", envelope.Event.ID)

	case errors.Is(err, domain.ErrDuplicateEvent):
		// Already applied by an earlier delivery; safe to drop.
		s.settle(ctx, envelope.Ack, "ack", envelope.Event.ID)

	case errors.As(err, &validationErr):
		s.log.Warn("Dropping event rejected by the engine",
			zap.String("event_id", envelope.Event.ID),
			zap.Error(err))
		s.settle(ctx, envelope.Ack, "ack", envelope.Event.ID)

	default:
		s.log.Error("Failed to process event, leaving for redelivery",
			zap.String("event_id", envelope.Event.ID),
			zap.String("user_id", envelope.Event.UserID),
			zap.Error(err))
		s.settle(ctx, envelope.Nack, "nack", envelope.Event.ID)
	}
}

func (s *ProcessorStage) settle(ctx context.Context, fn func(context.Context) error, op, eventID string) {
	if err := fn(ctx); err != nil {
		s.log.Error("Failed to settle envelope",
			zap.String("op", op),
			zap.String("event_id", eventID),
			zap.Error(err))
	}
}
