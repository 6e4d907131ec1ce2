package dto

import "encoding/json"

// EventContext mirrors the context block of an inbound event.
type EventContext struct {
	DeviceType     string `json:"deviceType,omitempty"`
	Platform       string `json:"platform,omitempty"`
	CourseID       string `json:"courseId,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// PublishEventRequest is the wire shape of a learning event, accepted by the
// API and carried through the queue. ID may be omitted by producers that
// want the service to assign one.
type PublishEventRequest struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId" binding:"required"`
	SessionID string          `json:"sessionId" binding:"required"`
	EventType string          `json:"eventType" binding:"required"`
	Timestamp int64           `json:"timestamp" binding:"required"`
	EventData json.RawMessage `json:"eventData" binding:"required"`
	Context   EventContext    `json:"context"`
}
