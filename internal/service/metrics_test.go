package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BarkinBalci/learning-analytics-service/internal/domain"
)

var testNow = time.Date(2024, 7, 17, 12, 0, 0, 0, time.UTC)

func makeEvent(id, userID string, eventType domain.EventType, payload domain.EventPayload) *domain.LearningEvent {
	return &domain.LearningEvent{
		ID:        id,
		UserID:    userID,
		SessionID: "s1",
		Type:      eventType,
		Payload:   payload,
		RawData:   json.RawMessage(`{}`),
		Context:   domain.EventContext{CourseID: "c1", OrganizationID: "o1"},
		Timestamp: testNow.Add(-time.Minute),
	}
}

func TestApplyEvent_ContentView(t *testing.T) {
	m := domain.NewLearningMetrics("u1")
	event := makeEvent("e1", "u1", domain.EventContentView,
		domain.ContentViewPayload{Duration: 600, ExpectedDuration: 300})

	ApplyEvent(m, event, testNow)

	// 0.9*0 + 0.1*min(600/300, 1) = 0.1
	assert.InDelta(t, 0.1, m.EngagementScore, 1e-9)
	assert.Equal(t, 600.0, m.TimeSpent)
	assert.Equal(t, testNow, m.LastUpdated)
}

func TestApplyEvent_ContentView_DefaultExpectedDuration(t *testing.T) {
	m := domain.NewLearningMetrics("u1")
	event := makeEvent("e1", "u1", domain.EventContentView,
		domain.ContentViewPayload{Duration: 150})

	ApplyEvent(m, event, testNow)

	// expectedDuration defaults to 300s: 0.9*0 + 0.1*(150/300) = 0.05
	assert.InDelta(t, 0.05, m.EngagementScore, 1e-9)
}

func TestApplyEvent_ContentComplete(t *testing.T) {
	m := domain.NewLearningMetrics("u1")
	event := makeEvent("e1", "u1", domain.EventContentComplete,
		domain.ContentCompletePayload{Score: 0.9, Duration: 1800})

	ApplyEvent(m, event, testNow)

	assert.InDelta(t, 0.2, m.CompletionRate, 1e-9)
	assert.InDelta(t, 0.18, m.MasteryLevel, 1e-9)
	// 0.7*0 + 0.3*(1/(1800/3600)) = 0.6
	assert.InDelta(t, 0.6, m.LearningVelocity, 1e-9)
}

func TestApplyEvent_ContentComplete_CompletionRateConvergesBounded(t *testing.T) {
	m := domain.NewLearningMetrics("u1")

	prev := 0.0
	for i := 0; i < 100; i++ {
		event := makeEvent("e", "u1", domain.EventContentComplete,
			domain.ContentCompletePayload{Score: 1})
		ApplyEvent(m, event, testNow)

		assert.Greater(t, m.CompletionRate, prev)
		assert.LessOrEqual(t, m.CompletionRate, 1.0)
		prev = m.CompletionRate
	}

	assert.Greater(t, m.CompletionRate, 0.99)
}

func TestApplyEvent_AssessmentSubmit_Struggling(t *testing.T) {
	m := domain.NewLearningMetrics("u1")
	event := makeEvent("e1", "u1", domain.EventAssessmentSubmit,
		domain.AssessmentSubmitPayload{AssessmentID: "a1", Score: 0.4, Attempts: 4})

	ApplyEvent(m, event, testNow)

	assert.InDelta(t, 0.12, m.MasteryLevel, 1e-9)
	// (0.4-0.5)*2 is negative, floored at 0
	assert.InDelta(t, 0.0, m.RetentionScore, 1e-9)
	assert.Equal(t, []string{"assessment_difficulty_a1"}, m.StrugglingIndicators)
}

func TestApplyEvent_AssessmentSubmit_IndicatorAddedOnceAcrossEvents(t *testing.T) {
	m := domain.NewLearningMetrics("u1")
	payload := domain.AssessmentSubmitPayload{AssessmentID: "a1", Score: 0.4, Attempts: 4}

	ApplyEvent(m, makeEvent("e1", "u1", domain.EventAssessmentSubmit, payload), testNow)
	ApplyEvent(m, makeEvent("e2", "u1", domain.EventAssessmentSubmit, payload), testNow)

	assert.Equal(t, []string{"assessment_difficulty_a1"}, m.StrugglingIndicators)
}

func TestApplyEvent_AssessmentSubmit_GoodScoreNoIndicator(t *testing.T) {
	m := domain.NewLearningMetrics("u1")
	event := makeEvent("e1", "u1", domain.EventAssessmentSubmit,
		domain.AssessmentSubmitPayload{AssessmentID: "a1", Score: 0.95, Attempts: 1})

	ApplyEvent(m, event, testNow)

	assert.Empty(t, m.StrugglingIndicators)
	// 0.8*0 + 0.2*((0.95-0.5)*2) = 0.18
	assert.InDelta(t, 0.18, m.RetentionScore, 1e-9)
}

func TestApplyEvent_SessionStart_RewardsRecency(t *testing.T) {
	m := domain.NewLearningMetrics("u1")
	m.EngagementScore = 0.5
	m.LastUpdated = testNow.Add(-6 * time.Hour)

	ApplyEvent(m, makeEvent("e1", "u1", domain.EventSessionStart, domain.SessionStartPayload{}), testNow)

	// 0.9*0.5 + 0.1*(1 - 6/24) = 0.525
	assert.InDelta(t, 0.525, m.EngagementScore, 1e-9)
}

func TestApplyEvent_SessionStart_StaleUserGetsNoReward(t *testing.T) {
	m := domain.NewLearningMetrics("u1")
	m.EngagementScore = 0.5
	m.LastUpdated = testNow.Add(-72 * time.Hour)

	ApplyEvent(m, makeEvent("e1", "u1", domain.EventSessionStart, domain.SessionStartPayload{}), testNow)

	assert.InDelta(t, 0.45, m.EngagementScore, 1e-9)
}

func TestApplyEvent_DefaultNudgesTowardBaseline(t *testing.T) {
	high := domain.NewLearningMetrics("u1")
	high.EngagementScore = 1.0
	ApplyEvent(high, makeEvent("e1", "u1", domain.EventSearchQuery, domain.GenericPayload{}), testNow)
	assert.Less(t, high.EngagementScore, 1.0)

	low := domain.NewLearningMetrics("u2")
	low.EngagementScore = 0.0
	ApplyEvent(low, makeEvent("e2", "u2", domain.EventSearchQuery, domain.GenericPayload{}), testNow)
	assert.Greater(t, low.EngagementScore, 0.0)
}

func TestApplyEvent_BoundedScoresStayInRange(t *testing.T) {
	m := domain.NewLearningMetrics("u1")

	events := []*domain.LearningEvent{
		makeEvent("e1", "u1", domain.EventContentComplete, domain.ContentCompletePayload{Score: 1, Duration: 10}),
		makeEvent("e2", "u1", domain.EventAssessmentSubmit, domain.AssessmentSubmitPayload{AssessmentID: "a1", Score: 1, Attempts: 1}),
		makeEvent("e3", "u1", domain.EventAIQuestionAsk, domain.AIQuestionPayload{}),
		makeEvent("e4", "u1", domain.EventDiscussionPost, domain.DiscussionPostPayload{}),
		makeEvent("e5", "u1", domain.EventContentView, domain.ContentViewPayload{Duration: 100000}),
	}

	for i := 0; i < 50; i++ {
		for _, event := range events {
			ApplyEvent(m, event, testNow)

			for name, score := range map[string]float64{
				"engagement":    m.EngagementScore,
				"mastery":       m.MasteryLevel,
				"completion":    m.CompletionRate,
				"retention":     m.RetentionScore,
				"collaboration": m.CollaborationScore,
				"aiInteraction": m.AIInteractionScore,
			} {
				assert.GreaterOrEqual(t, score, 0.0, name)
				assert.LessOrEqual(t, score, 1.0, name)
			}
		}
	}
}
