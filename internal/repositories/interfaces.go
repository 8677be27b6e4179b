package repositories

import (
	"time"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type TestFilters struct {
	Status    *models.TestStatus `json:"status"`
	CreatedBy *string            `json:"created_by"`
	Search    string             `json:"search"`
	DateFrom  *time.Time         `json:"date_from"`
	DateTo    *time.Time         `json:"date_to"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "title", "start_at"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type AttemptFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	MemberID  *string               `json:"member_id"`
	TestID    *uint                 `json:"test_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// ===== SHARED HELPER STRUCTS =====

type AnswerGrade struct {
	ID       uint    `json:"answer_id"`
	Points   float64 `json:"points"`
	Note     *string `json:"note"`
	GraderID string  `json:"grader_id"`
}

// TelemetryTotals carries the client's cumulative proctoring counters.
type TelemetryTotals struct {
	TabSwitchCount     int     `json:"tab_switch_count"`
	TimeOffPageSeconds float64 `json:"time_off_page_seconds"`
}

// ===== SHARED STATISTICS STRUCTS =====

type AttemptStats struct {
	TotalAttempts     int     `json:"total_attempts"`
	SubmittedAttempts int     `json:"submitted_attempts"`
	InProgress        int     `json:"in_progress"`
	AverageScore      float64 `json:"average_score"`
	AverageTabSwitch  float64 `json:"average_tab_switch"`
}

type GradingStats struct {
	TotalAnswers   int `json:"total_answers"`
	GradedAnswers  int `json:"graded_answers"`
	PendingAnswers int `json:"pending_answers"`
}
