package validator

import (
	"time"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

// TestCreateRequest represents the request structure for creating tests
type TestCreateRequest struct {
	Title               string                  `json:"title" validate:"required,test_title"`
	Description         *string                 `json:"description" validate:"omitempty,max=1000"`
	DurationMinutes     int                     `json:"duration_minutes" validate:"required,test_duration"`
	StartAt             *time.Time              `json:"start_at"`
	EndAt               *time.Time              `json:"end_at"`
	AllowLateUntil      *time.Time              `json:"allow_late_until"`
	MaxAttempts         *int                    `json:"max_attempts" validate:"omitempty,max_attempts"`
	RequireFullscreen   bool                    `json:"require_fullscreen"`
	Password            *string                 `json:"password" validate:"omitempty,min=4,max=72"`
	AdminPasswordExempt bool                    `json:"admin_password_exempt"`
	ScoreReleaseMode    models.ScoreReleaseMode `json:"score_release_mode" validate:"omitempty,release_mode"`
	ReleaseScoresAt     *time.Time              `json:"release_scores_at"`
	Questions           []QuestionCreateRequest `json:"questions" validate:"omitempty,dive"`
}

// TestUpdateRequest represents the request structure for updating tests
type TestUpdateRequest struct {
	Title            *string                  `json:"title" validate:"omitempty,test_title"`
	Description      *string                  `json:"description" validate:"omitempty,max=1000"`
	DurationMinutes  *int                     `json:"duration_minutes" validate:"omitempty,test_duration"`
	StartAt          *time.Time               `json:"start_at"`
	EndAt            *time.Time               `json:"end_at"`
	AllowLateUntil   *time.Time               `json:"allow_late_until"`
	MaxAttempts      *int                     `json:"max_attempts" validate:"omitempty,max_attempts"`
	Password         *string                  `json:"password" validate:"omitempty,min=4,max=72"`
	ScoreReleaseMode *models.ScoreReleaseMode `json:"score_release_mode" validate:"omitempty,release_mode"`
	ReleaseScoresAt  *time.Time               `json:"release_scores_at"`
}

// QuestionCreateRequest represents the request structure for creating questions
type QuestionCreateRequest struct {
	Type        models.QuestionType   `json:"type" validate:"required,question_type"`
	Text        string                `json:"text" validate:"required,min=1,max=2000"`
	Points      float64               `json:"points" validate:"required,gt=0"`
	Order       int                   `json:"order" validate:"min=0"`
	Options     []OptionCreateRequest `json:"options" validate:"omitempty,max=10,dive"`
	Expected    *float64              `json:"expected"`
	Explanation *string               `json:"explanation" validate:"omitempty,max=1000"`
}

// OptionCreateRequest represents a question option
type OptionCreateRequest struct {
	Text      string `json:"text" validate:"required,max=500"`
	IsCorrect bool   `json:"is_correct"`
	Order     int    `json:"order" validate:"min=0"`
}
