package models

import (
	"time"

	"gorm.io/gorm"
)

type TestStatus string

const (
	StatusDraft     TestStatus = "Draft"
	StatusPublished TestStatus = "Published"
	StatusArchived  TestStatus = "Archived"
)

type ScoreReleaseMode string

const (
	ReleaseNone           ScoreReleaseMode = "none"
	ReleaseScoreOnly      ScoreReleaseMode = "score_only"
	ReleaseScoreWithWrong ScoreReleaseMode = "score_with_wrong"
	ReleaseFullTest       ScoreReleaseMode = "full_test"
)

type Test struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Title           string     `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description     *string    `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	DurationMinutes int        `json:"duration_minutes" gorm:"not null" validate:"required,min=5,max=300"`
	Status          TestStatus `json:"status" gorm:"default:Draft;index" validate:"omitempty,oneof=Draft Published Archived"`

	// Availability window. A nil StartAt means the test is never takeable
	// until one is set; nil EndAt and AllowLateUntil means no hard close.
	StartAt        *time.Time `json:"start_at"`
	EndAt          *time.Time `json:"end_at"`
	AllowLateUntil *time.Time `json:"allow_late_until"`

	// Attempt limits. Nil MaxAttempts means unlimited.
	MaxAttempts *int `json:"max_attempts" validate:"omitempty,min=1,max=10"`

	// Proctoring and access control
	RequireFullscreen   bool    `json:"require_fullscreen" gorm:"default:false"`
	PasswordHash        *string `json:"-" gorm:"size:100"`
	AdminPasswordExempt bool    `json:"admin_password_exempt" gorm:"default:false"`

	// Score disclosure policy, fixed at publish time
	ScoreReleaseMode ScoreReleaseMode `json:"score_release_mode" gorm:"default:none;size:20" validate:"omitempty,oneof=none score_only score_with_wrong full_test"`
	ReleaseScoresAt  *time.Time       `json:"release_scores_at"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions" gorm:"foreignKey:TestID"`
	Attempts  []Attempt  `json:"attempts,omitempty" gorm:"foreignKey:TestID"`

	// Computed fields (not stored)
	QuestionsCount int     `json:"questions_count" gorm:"-"`
	TotalPoints    float64 `json:"total_points" gorm:"-"`
	AttemptCount   int     `json:"attempt_count" gorm:"-"`
}

// Deadline returns the hard close for taking the test: AllowLateUntil when
// set, otherwise EndAt. Nil means the test never hard-closes.
func (t *Test) Deadline() *time.Time {
	if t.AllowLateUntil != nil {
		return t.AllowLateUntil
	}
	return t.EndAt
}

// HasPassword reports whether starting this test requires a password.
func (t *Test) HasPassword() bool {
	return t.PasswordHash != nil && *t.PasswordHash != ""
}

func (Test) TableName() string {
	return "tests"
}
