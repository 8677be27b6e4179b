package events

import (
	"context"
	"time"
)

// Event is the envelope every domain event is published in.
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

const (
	EventSource  = "test-engine"
	EventVersion = "1.0"
)

// Event types
const (
	EventAttemptStarted   = "attempt.started"
	EventAttemptSubmitted = "attempt.submitted"
	EventAnswerGraded     = "attempt.answer_graded"
	EventProctorRecorded  = "attempt.proctor_event"
	EventTestPublished    = "test.published"
	EventTestArchived     = "test.archived"
)

// EventPublisher publishes domain events to the message bus. Publishing is
// fire-and-forget from the caller's perspective; failures are logged, never
// surfaced to the user operation.
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// ===== EVENT PAYLOADS =====

type AttemptStartedEvent struct {
	AttemptID uint   `json:"attempt_id"`
	TestID    uint   `json:"test_id"`
	MemberID  string `json:"member_id"`
	Resumed   bool   `json:"resumed"`
}

type AttemptSubmittedEvent struct {
	AttemptID   uint      `json:"attempt_id"`
	TestID      uint      `json:"test_id"`
	MemberID    string    `json:"member_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	AnswerCount int       `json:"answer_count"`
	AutoGraded  bool      `json:"auto_graded"`
	GradeEarned *float64  `json:"grade_earned,omitempty"`
}

type AnswerGradedEvent struct {
	AttemptID     uint    `json:"attempt_id"`
	AnswerID      uint    `json:"answer_id"`
	QuestionID    uint    `json:"question_id"`
	PointsAwarded float64 `json:"points_awarded"`
	GradedBy      string  `json:"graded_by"`
}

type ProctorRecordedEvent struct {
	AttemptID  uint      `json:"attempt_id"`
	TestID     uint      `json:"test_id"`
	MemberID   string    `json:"member_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

type TestStatusChangedEvent struct {
	TestID    uint   `json:"test_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
	ChangedBy string `json:"changed_by"`
}
