package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

type Attempt struct {
	ID       uint          `json:"id" gorm:"primaryKey"`
	TestID   uint          `json:"test_id" gorm:"not null;index:idx_member_test"`
	MemberID string        `json:"member_id" gorm:"not null;index:idx_member_test;size:255"`
	Status   AttemptStatus `json:"status" gorm:"default:in_progress;index"`

	// Timing. SubmittedAt is set exactly once, by the submit transition.
	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	SubmittedAt *time.Time `json:"submitted_at"`

	// Proctoring counters. Both are cumulative and monotonically
	// non-decreasing; the event log is the audit trail, these are the
	// fast-path read.
	TabSwitchCount     int     `json:"tab_switch_count" gorm:"not null;default:0"`
	TimeOffPageSeconds float64 `json:"time_off_page_seconds" gorm:"not null;default:0"`

	// Populated progressively as answers are graded; nil until at least one
	// answer has been graded.
	GradeEarned *float64 `json:"grade_earned"`

	// Advisory anomaly signals
	ClientFingerprint *string `json:"client_fingerprint,omitempty" gorm:"size:255"`
	IPAddress         *string `json:"ip_address,omitempty" gorm:"size:45"`
	UserAgent         *string `json:"user_agent,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Test          Test           `json:"test,omitempty" gorm:"foreignKey:TestID"`
	Member        Member         `json:"member,omitempty" gorm:"foreignKey:MemberID"`
	Answers       []Answer       `json:"answers,omitempty" gorm:"foreignKey:AttemptID"`
	ProctorEvents []ProctorEvent `json:"proctor_events,omitempty" gorm:"foreignKey:AttemptID"`

	// Computed fields (not stored)
	AnswersCount int `json:"answers_count" gorm:"-"`
}

// IsActive reports whether the attempt still accepts learner writes.
func (a *Attempt) IsActive() bool {
	return a.Status == AttemptInProgress
}

type Answer struct {
	ID         uint `json:"id" gorm:"primaryKey"`
	AttemptID  uint `json:"attempt_id" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID uint `json:"question_id" gorm:"not null;uniqueIndex:idx_attempt_question"`

	// Response content; which field is populated depends on question type.
	SelectedOptionIDs datatypes.JSON `json:"selected_option_ids,omitempty" gorm:"type:jsonb"` // []uint
	NumericAnswer     *float64       `json:"numeric_answer,omitempty"`
	AnswerText        *string        `json:"answer_text,omitempty" gorm:"type:text"`

	// Grading fields, written only by the grading path. PointsAwarded is
	// clamped to [0, question points].
	PointsAwarded *float64   `json:"points_awarded"`
	GradedAt      *time.Time `json:"graded_at"`
	GradedBy      *string    `json:"graded_by,omitempty" gorm:"size:255"`
	GraderNote    *string    `json:"grader_note,omitempty" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Attempt  Attempt  `json:"-" gorm:"foreignKey:AttemptID"`
	Question Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

// IsGraded reports whether the grading collaborator has scored this answer.
func (a *Answer) IsGraded() bool {
	return a.GradedAt != nil
}

type ProctorEventKind string

const (
	ProctorTabSwitch ProctorEventKind = "tab_switch"
	ProctorBlur      ProctorEventKind = "blur"
)

// ProctorEvent is an append-only audit record; rows are never updated or
// deleted.
type ProctorEvent struct {
	ID         uint             `json:"id" gorm:"primaryKey"`
	AttemptID  uint             `json:"attempt_id" gorm:"not null;index"`
	Kind       ProctorEventKind `json:"kind" gorm:"not null;size:20;index"`
	OccurredAt time.Time        `json:"occurred_at" gorm:"not null"`
	Metadata   datatypes.JSON   `json:"metadata,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (Answer) TableName() string {
	return "answers"
}

func (ProctorEvent) TableName() string {
	return "proctor_events"
}
