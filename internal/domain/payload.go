package domain

import (
	"encoding/json"
	"fmt"
)

// EventPayload is the typed view of an event's eventData document. Each event
// type that the metrics updater treats specially has its own variant; every
// other type decodes to GenericPayload. DurationSeconds is the one field the
// aggregation engine needs regardless of variant.
type EventPayload interface {
	DurationSeconds() float64
}

// ContentViewPayload carries the dwell time of a content view.
type ContentViewPayload struct {
	Duration         float64 `json:"duration"`
	ExpectedDuration float64 `json:"expectedDuration"`
}

func (p ContentViewPayload) DurationSeconds() float64 { return p.Duration }

// ContentCompletePayload carries the outcome of a completed content item.
type ContentCompletePayload struct {
	Score    float64 `json:"score"`
	Duration float64 `json:"duration"`
}

func (p ContentCompletePayload) DurationSeconds() float64 { return p.Duration }

// AssessmentSubmitPayload carries a graded assessment submission.
type AssessmentSubmitPayload struct {
	AssessmentID string  `json:"assessmentId"`
	Score        float64 `json:"score"`
	Attempts     int     `json:"attempts"`
	Duration     float64 `json:"duration"`
}

func (p AssessmentSubmitPayload) DurationSeconds() float64 { return p.Duration }

// SessionStartPayload marks the beginning of a learning session.
type SessionStartPayload struct{}

func (p SessionStartPayload) DurationSeconds() float64 { return 0 }

// AIQuestionPayload carries a question asked to the AI tutor.
type AIQuestionPayload struct {
	Question string `json:"question,omitempty"`
}

func (p AIQuestionPayload) DurationSeconds() float64 { return 0 }

// DiscussionPostPayload carries a forum contribution.
type DiscussionPostPayload struct {
	ThreadID string `json:"threadId,omitempty"`
}

func (p DiscussionPostPayload) DurationSeconds() float64 { return 0 }

// GenericPayload covers every event type without a dedicated variant.
type GenericPayload struct {
	Duration float64 `json:"duration"`
}

func (p GenericPayload) DurationSeconds() float64 { return p.Duration }

// DecodePayload decodes raw eventData into the variant for the given event
// type. Unknown fields are ignored; missing fields zero-value, matching what
// producers actually send.
func DecodePayload(t EventType, raw json.RawMessage) (EventPayload, error) {
	decode := func(v any) error {
		if len(raw) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("failed to decode %s payload: %w", t, err)
		}
		return nil
	}

	switch t {
	case EventContentView:
		var p ContentViewPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case EventContentComplete:
		var p ContentCompletePayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case EventAssessmentSubmit:
		var p AssessmentSubmitPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case EventSessionStart:
		var p SessionStartPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case EventAIQuestionAsk:
		var p AIQuestionPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	case EventDiscussionPost:
		var p DiscussionPostPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		var p GenericPayload
		if err := decode(&p); err != nil {
			return nil, err
		}
		return p, nil
	}
}
