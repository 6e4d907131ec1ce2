package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ProcessEventResponse represents a successfully processed event
type ProcessEventResponse struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
}

// ProcessingStatsResponse is the read-only stats snapshot exposed to the
// monitoring subsystem.
type ProcessingStatsResponse struct {
	EventsProcessed       int64   `json:"events_processed"`
	AverageProcessingTime float64 `json:"average_processing_time_ms"`
	ErrorCount            int64   `json:"error_count"`
	LastProcessedAt       string  `json:"last_processed_at,omitempty"`
	QueueLength           int64   `json:"queue_length"`
}
