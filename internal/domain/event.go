package domain

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of learner activity an event records.
type EventType string

const (
	EventSessionStart        EventType = "SESSION_START"
	EventSessionEnd          EventType = "SESSION_END"
	EventContentView         EventType = "CONTENT_VIEW"
	EventContentComplete     EventType = "CONTENT_COMPLETE"
	EventContentDownload     EventType = "CONTENT_DOWNLOAD"
	EventVideoPlay           EventType = "VIDEO_PLAY"
	EventVideoPause          EventType = "VIDEO_PAUSE"
	EventVideoSeek           EventType = "VIDEO_SEEK"
	EventVideoComplete       EventType = "VIDEO_COMPLETE"
	EventAssessmentStart     EventType = "ASSESSMENT_START"
	EventAssessmentSubmit    EventType = "ASSESSMENT_SUBMIT"
	EventAssessmentReview    EventType = "ASSESSMENT_REVIEW"
	EventQuizAttempt         EventType = "QUIZ_ATTEMPT"
	EventAIQuestionAsk       EventType = "AI_QUESTION_ASK"
	EventAIFeedbackView      EventType = "AI_FEEDBACK_VIEW"
	EventAIHintRequest       EventType = "AI_HINT_REQUEST"
	EventDiscussionPost      EventType = "DISCUSSION_POST"
	EventDiscussionReply     EventType = "DISCUSSION_REPLY"
	EventDiscussionVote      EventType = "DISCUSSION_VOTE"
	EventPeerReviewSubmit    EventType = "PEER_REVIEW_SUBMIT"
	EventNoteCreate          EventType = "NOTE_CREATE"
	EventBookmarkAdd         EventType = "BOOKMARK_ADD"
	EventSearchQuery         EventType = "SEARCH_QUERY"
	EventCourseEnroll        EventType = "COURSE_ENROLL"
	EventCourseProgressCheck EventType = "COURSE_PROGRESS_CHECK"
	EventLogin               EventType = "LOGIN"
	EventLogout              EventType = "LOGOUT"
)

var knownEventTypes = map[EventType]struct{}{
	EventSessionStart: {}, EventSessionEnd: {}, EventContentView: {},
	EventContentComplete: {}, EventContentDownload: {}, EventVideoPlay: {},
	EventVideoPause: {}, EventVideoSeek: {}, EventVideoComplete: {},
	EventAssessmentStart: {}, EventAssessmentSubmit: {}, EventAssessmentReview: {},
	EventQuizAttempt: {}, EventAIQuestionAsk: {}, EventAIFeedbackView: {},
	EventAIHintRequest: {}, EventDiscussionPost: {}, EventDiscussionReply: {},
	EventDiscussionVote: {}, EventPeerReviewSubmit: {}, EventNoteCreate: {},
	EventBookmarkAdd: {}, EventSearchQuery: {}, EventCourseEnroll: {},
	EventCourseProgressCheck: {}, EventLogin: {}, EventLogout: {},
}

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// EventContext carries the device/platform/course/organization identifiers an
// event was produced under. Course and organization IDs are optional and
// drive the meso and macro aggregation levels respectively.
type EventContext struct {
	DeviceType     string `json:"deviceType,omitempty"`
	Platform       string `json:"platform,omitempty"`
	CourseID       string `json:"courseId,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
}

// LearningEvent is an immutable activity fact produced upstream. ID is the
// dedup key: the effects of the same ID must never be applied twice.
// RawData preserves the original eventData document for the append-only fact
// log; Payload is its typed decoding for the metrics updater.
type LearningEvent struct {
	ID        string
	UserID    string
	SessionID string
	Type      EventType
	Payload   EventPayload
	RawData   json.RawMessage
	Context   EventContext
	Timestamp time.Time
}
