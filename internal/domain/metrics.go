package domain

import (
	"slices"
	"time"
)

// LearningMetrics is the mutable rolling summary kept per user. The score
// fields are exponentially smoothed and must stay within [0,1] after every
// update; TimeSpent (seconds) and LearningVelocity are unbounded.
type LearningMetrics struct {
	UserID               string    `json:"userId"`
	EngagementScore      float64   `json:"engagementScore"`
	MasteryLevel         float64   `json:"masteryLevel"`
	CompletionRate       float64   `json:"completionRate"`
	RetentionScore       float64   `json:"retentionScore"`
	CollaborationScore   float64   `json:"collaborationScore"`
	AIInteractionScore   float64   `json:"aiInteractionScore"`
	TimeSpent            float64   `json:"timeSpent"`
	LearningVelocity     float64   `json:"learningVelocity"`
	StrugglingIndicators []string  `json:"strugglingIndicators"`
	LastUpdated          time.Time `json:"lastUpdated"`
}

// NewLearningMetrics returns a zero-valued metrics record for a user.
func NewLearningMetrics(userID string) *LearningMetrics {
	return &LearningMetrics{
		UserID:               userID,
		StrugglingIndicators: []string{},
	}
}

// AddStrugglingIndicator appends tag if not already present and reports
// whether it was added.
func (m *LearningMetrics) AddStrugglingIndicator(tag string) bool {
	if slices.Contains(m.StrugglingIndicators, tag) {
		return false
	}
	m.StrugglingIndicators = append(m.StrugglingIndicators, tag)
	return true
}

// ClampScores forces every bounded score back into [0,1]. Called after each
// update so no formula can push a score out of range.
func (m *LearningMetrics) ClampScores() {
	m.EngagementScore = clamp01(m.EngagementScore)
	m.MasteryLevel = clamp01(m.MasteryLevel)
	m.CompletionRate = clamp01(m.CompletionRate)
	m.RetentionScore = clamp01(m.RetentionScore)
	m.CollaborationScore = clamp01(m.CollaborationScore)
	m.AIInteractionScore = clamp01(m.AIInteractionScore)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
