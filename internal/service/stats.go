package service

import (
	"sync"
	"time"
)

// StatsSnapshot is a point-in-time copy of the processing counters.
type StatsSnapshot struct {
	EventsProcessed       int64
	AverageProcessingTime float64 // milliseconds
	ErrorCount            int64
	LastProcessedAt       time.Time
	QueueLength           int64
}

// StatsTracker keeps process-wide ingestion counters. The mean processing
// time is maintained incrementally (avg += (x-avg)/n), never from a stored
// window. Counters reset on restart; this is an operational gauge, not
// durable data.
type StatsTracker struct {
	mu              sync.Mutex
	eventsProcessed int64
	avgProcessingMs float64
	errorCount      int64
	lastProcessedAt time.Time
}

// NewStatsTracker creates a zeroed stats tracker
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{}
}

// Record counts one successfully processed event
func (s *StatsTracker) Record(processingTime time.Duration) {
	ms := float64(processingTime) / float64(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.eventsProcessed++
	s.avgProcessingMs += (ms - s.avgProcessingMs) / float64(s.eventsProcessed)
	s.lastProcessedAt = time.Now()
}

// RecordError counts one failed event
func (s *StatsTracker) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorCount++
}

// Snapshot returns a read-only copy of the counters. QueueLength is filled
// in by the caller, which owns the queue adapter.
func (s *StatsTracker) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		EventsProcessed:       s.eventsProcessed,
		AverageProcessingTime: s.avgProcessingMs,
		ErrorCount:            s.errorCount,
		LastProcessedAt:       s.lastProcessedAt,
	}
}
