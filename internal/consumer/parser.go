package consumer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

// eventMessage is the raw JSON shape of a queued learning event.
type eventMessage struct {
	ID        string               `json:"id"`
	UserID    string               `json:"userId"`
	SessionID string               `json:"sessionId"`
	EventType string               `json:"eventType"`
	Timestamp int64                `json:"timestamp"`
	EventData json.RawMessage      `json:"eventData"`
	Context   *domain.EventContext `json:"context"`
}

// JSONEventParser implements MessageParser for JSON-formatted event messages.
// It enforces the required-field contract: an event missing any of id,
// userId, sessionId, eventType, timestamp, eventData or context is rejected
// with a ValidationError and never retried.
type JSONEventParser struct{}

// NewJSONEventParser creates a new JSON event parser
func NewJSONEventParser() *JSONEventParser {
	return &JSONEventParser{}
}

// Parse parses a JSON message body into a validated LearningEvent
func (p *JSONEventParser) Parse(body []byte) (*domain.LearningEvent, error) {
	var msg eventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	switch {
	case msg.ID == "":
		return nil, domain.NewValidationError("id", "is required")
	case msg.UserID == "":
		return nil, domain.NewValidationError("userId", "is required")
	case msg.SessionID == "":
		return nil, domain.NewValidationError("sessionId", "is required")
	case msg.EventType == "":
		return nil, domain.NewValidationError("eventType", "is required")
	case msg.Timestamp == 0:
		return nil, domain.NewValidationError("timestamp", "is required")
	case len(msg.EventData) == 0:
		return nil, domain.NewValidationError("eventData", "is required")
	case msg.Context == nil:
		return nil, domain.NewValidationError("context", "is required")
	}

	eventType := domain.EventType(msg.EventType)
	if !eventType.IsValid() {
		return nil, domain.NewValidationError("eventType", fmt.Sprintf("has unknown value %q", msg.EventType))
	}

	payload, err := domain.DecodePayload(eventType, msg.EventData)
	if err != nil {
		return nil, domain.NewValidationError("eventData", err.Error())
	}

	return &domain.LearningEvent{
		ID:        msg.ID,
		UserID:    msg.UserID,
		SessionID: msg.SessionID,
		Type:      eventType,
		Payload:   payload,
		RawData:   msg.EventData,
		Context:   *msg.Context,
		Timestamp: time.Unix(msg.Timestamp, 0).UTC(),
	}, nil
}
