package service

import (
	"math"
	"time"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

// defaultExpectedDuration is assumed when a content view carries no
// expectedDuration, in seconds.
const defaultExpectedDuration = 300.0

// ApplyEvent folds one event into a user's rolling metrics. The dispatch is
// exhaustive over the payload variants; event types without a dedicated
// variant get the baseline engagement nudge. Bounded scores are clamped to
// [0,1] afterwards, and LastUpdated is set to processing time so staleness
// reflects ingestion recency, not the event's own timestamp.
func ApplyEvent(m *domain.LearningMetrics, event *domain.LearningEvent, now time.Time) {
	switch p := event.Payload.(type) {
	case domain.ContentViewPayload:
		applyContentView(m, p)
	case domain.ContentCompletePayload:
		applyContentComplete(m, p)
	case domain.AssessmentSubmitPayload:
		applyAssessmentSubmit(m, p)
	case domain.SessionStartPayload:
		applySessionStart(m, now)
	case domain.AIQuestionPayload:
		m.AIInteractionScore = 0.9*m.AIInteractionScore + 0.1
		m.EngagementScore = 0.95*m.EngagementScore + 0.05
	case domain.DiscussionPostPayload:
		m.CollaborationScore = 0.9*m.CollaborationScore + 0.1
		m.EngagementScore = 0.95*m.EngagementScore + 0.05
	default:
		// Idle-type events slowly revert engagement toward the midline.
		m.EngagementScore = 0.99*m.EngagementScore + 0.01*0.5
	}

	m.ClampScores()
	m.LastUpdated = now
}

func applyContentView(m *domain.LearningMetrics, p domain.ContentViewPayload) {
	m.TimeSpent += p.Duration

	expected := p.ExpectedDuration
	if expected <= 0 {
		expected = defaultExpectedDuration
	}
	m.EngagementScore = 0.9*m.EngagementScore + 0.1*math.Min(p.Duration/expected, 1)
}

func applyContentComplete(m *domain.LearningMetrics, p domain.ContentCompletePayload) {
	// Monotonically convergent toward 1 as completions accumulate.
	m.CompletionRate = 0.8*m.CompletionRate + 0.2
	m.MasteryLevel = 0.8*m.MasteryLevel + 0.2*p.Score

	if p.Duration > 0 {
		hours := p.Duration / 3600
		m.LearningVelocity = 0.7*m.LearningVelocity + 0.3*(1/hours)
	}
}

func applyAssessmentSubmit(m *domain.LearningMetrics, p domain.AssessmentSubmitPayload) {
	m.MasteryLevel = 0.7*m.MasteryLevel + 0.3*p.Score
	m.RetentionScore = 0.8*m.RetentionScore + 0.2*math.Max(0, (p.Score-0.5)*2)

	if isStruggling(p) {
		m.AddStrugglingIndicator("assessment_difficulty_" + p.AssessmentID)
	}
}

func applySessionStart(m *domain.LearningMetrics, now time.Time) {
	// Reward recency: a session within a day of the last update keeps
	// engagement up, anything older contributes nothing.
	recency := 0.0
	if !m.LastUpdated.IsZero() {
		hoursSince := now.Sub(m.LastUpdated).Hours()
		recency = math.Max(0, 1-hoursSince/24)
	}
	m.EngagementScore = 0.9*m.EngagementScore + 0.1*recency
}

// isStruggling reports whether a submission crosses the low-score or
// high-attempt threshold that flags a difficulty pattern.
func isStruggling(p domain.AssessmentSubmitPayload) bool {
	return p.Score < 0.6 || p.Attempts > 3
}
