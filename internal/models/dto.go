package models

import (
	"time"
)

// ===== PAGINATION & FILTERING =====

type ListTestsParams struct {
	Page    int        `json:"page" validate:"min=0"`
	Size    int        `json:"size" validate:"min=1,max=100"`
	Status  TestStatus `json:"status"`
	Search  string     `json:"search"`
	SortBy  string     `json:"sort_by"`
	SortDir string     `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type ListAttemptsParams struct {
	Page     int           `json:"page" validate:"min=0"`
	Size     int           `json:"size" validate:"min=1,max=100"`
	TestID   *uint         `json:"test_id"`
	MemberID *string       `json:"member_id"`
	Status   AttemptStatus `json:"status"`
	DateFrom *time.Time    `json:"date_from"`
	DateTo   *time.Time    `json:"date_to"`
	SortBy   string        `json:"sort_by"`
	SortDir  string        `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type PaginatedResponse struct {
	Content          interface{} `json:"content"`
	TotalElements    int64       `json:"total_elements"`
	TotalPages       int         `json:"total_pages"`
	Size             int         `json:"size"`
	Page             int         `json:"page"`
	First            bool        `json:"first"`
	Last             bool        `json:"last"`
	NumberOfElements int         `json:"number_of_elements"`
	Empty            bool        `json:"empty"`
}

// ===== TEST SUMMARY / LISTING DTOs =====

// AvailabilityBucket is the UI grouping for a test relative to a member:
// not yet open, currently takeable, or closed/exhausted. The same derivation
// runs server-side before a start is allowed.
type AvailabilityBucket string

const (
	BucketScheduled AvailabilityBucket = "scheduled"
	BucketOpened    AvailabilityBucket = "opened"
	BucketCompleted AvailabilityBucket = "completed"
)

type TestSummary struct {
	ID               uint               `json:"id"`
	Title            string             `json:"title"`
	DurationMinutes  int                `json:"duration_minutes"`
	Status           TestStatus         `json:"status"`
	StartAt          *time.Time         `json:"start_at"`
	EndAt            *time.Time         `json:"end_at"`
	AllowLateUntil   *time.Time         `json:"allow_late_until"`
	MaxAttempts      *int               `json:"max_attempts"`
	HasPassword      bool               `json:"has_password"`
	QuestionsCount   int                `json:"questions_count"`
	TotalPoints      float64            `json:"total_points"`
	Bucket           AvailabilityBucket `json:"bucket"`
	AttemptsUsed     int                `json:"attempts_used"`
	HasActiveAttempt bool               `json:"has_active_attempt"`
}

// ===== TEST STATUS MANAGEMENT =====

type ChangeTestStatusRequest struct {
	Status TestStatus `json:"status" validate:"required,oneof=Draft Published Archived"`
	Reason *string    `json:"reason" validate:"omitempty,max=500"`
}

type TestStatusChangeResponse struct {
	OldStatus TestStatus `json:"old_status"`
	NewStatus TestStatus `json:"new_status"`
	ChangedAt time.Time  `json:"changed_at"`
	ChangedBy string     `json:"changed_by"`
	Reason    *string    `json:"reason"`
}

// ===== ROSTER / EXPORT DTOs =====

type MemberResultRow struct {
	MemberID           string        `json:"member_id"`
	MemberName         string        `json:"member_name"`
	MemberEmail        string        `json:"member_email"`
	AttemptID          uint          `json:"attempt_id"`
	Status             AttemptStatus `json:"status"`
	StartedAt          time.Time     `json:"started_at"`
	SubmittedAt        *time.Time    `json:"submitted_at"`
	GradeEarned        *float64      `json:"grade_earned"`
	GradedPoints       float64       `json:"graded_points"`
	TotalPoints        float64       `json:"total_points"`
	GradingComplete    bool          `json:"grading_complete"`
	TabSwitchCount     int           `json:"tab_switch_count"`
	TimeOffPageSeconds float64       `json:"time_off_page_seconds"`
}

type TestStats struct {
	TotalAttempts     int     `json:"total_attempts"`
	SubmittedAttempts int     `json:"submitted_attempts"`
	InProgress        int     `json:"in_progress"`
	AverageScore      float64 `json:"average_score"`
	AverageTabSwitch  float64 `json:"average_tab_switch"`
}
