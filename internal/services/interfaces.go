package services

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Use business validator types
type CreateTestRequest = validator.TestCreateRequest
type UpdateTestRequest = validator.TestUpdateRequest

type TestResponse struct {
	*models.Test
	CanEdit    bool `json:"can_edit"`
	CanPublish bool `json:"can_publish"`
	CanTake    bool `json:"can_take"`
}

type TestListResponse struct {
	Tests []*models.TestSummary `json:"tests"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
}

// ===== ATTEMPT RELATED DTOs =====

type StartAttemptRequest struct {
	TestID            uint    `json:"test_id" validate:"required"`
	Password          *string `json:"password" validate:"omitempty,max=72"`
	ClientFingerprint *string `json:"client_fingerprint" validate:"omitempty,max=255"`

	// Set by the handler from the connection, never from the body
	IPAddress *string `json:"-"`
	UserAgent *string `json:"-"`
}

type AttemptResponse struct {
	*models.Attempt
	Resumed   bool       `json:"resumed"`
	CanSubmit bool       `json:"can_submit"`
	Deadline  *time.Time `json:"deadline,omitempty"`

	// Questions for taking, with correctness flags stripped
	Questions []*TakingQuestion `json:"questions,omitempty"`
}

// TakingQuestion is a question as seen by a learner mid-attempt. Option
// correctness, numeric keys, and explanations never appear here.
type TakingQuestion struct {
	ID      uint                `json:"id"`
	Type    models.QuestionType `json:"type"`
	Text    string              `json:"text"`
	Points  float64             `json:"points"`
	Order   int                 `json:"order"`
	Options []TakingOption      `json:"options,omitempty"`
}

type TakingOption struct {
	ID    uint   `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// SaveAnswerRequest carries one answer payload. At most one of the three
// content fields may be set, and it must match the question type: option IDs
// for select questions, a number for numeric, text for short/long text. An
// empty payload clears the stored answer for that question.
type SaveAnswerRequest struct {
	QuestionID        uint     `json:"question_id" validate:"required"`
	SelectedOptionIDs []uint   `json:"selected_option_ids,omitempty"`
	NumericAnswer     *float64 `json:"numeric_answer,omitempty"`
	AnswerText        *string  `json:"answer_text,omitempty" validate:"omitempty,max=10000"`
}

// ===== PROCTORING DTOs =====

type ProctorEventRequest struct {
	Kind       models.ProctorEventKind `json:"kind" validate:"required,oneof=tab_switch blur"`
	OccurredAt *time.Time              `json:"occurred_at"`
	Metadata   datatypes.JSON          `json:"metadata,omitempty"`
}

// TelemetryFlushRequest carries the client's cumulative counters. The stored
// values only ever move up; a stale or repeated flush cannot regress them.
type TelemetryFlushRequest struct {
	TabSwitchCount     int     `json:"tab_switch_count" validate:"min=0"`
	TimeOffPageSeconds float64 `json:"time_off_page_seconds" validate:"min=0"`
}

type TelemetryResponse struct {
	AttemptID          uint    `json:"attempt_id"`
	TabSwitchCount     int     `json:"tab_switch_count"`
	TimeOffPageSeconds float64 `json:"time_off_page_seconds"`
}

// ===== GRADING DTOs =====

type GradeAnswerRequest struct {
	Points float64 `json:"points" validate:"min=0"`
	Note   *string `json:"note" validate:"omitempty,max=1000"`
}

type GradingResult struct {
	AnswerID      uint      `json:"answer_id"`
	QuestionID    uint      `json:"question_id"`
	PointsAwarded float64   `json:"points_awarded"`
	MaxPoints     float64   `json:"max_points"`
	IsCorrect     *bool     `json:"is_correct,omitempty"`
	GradedAt      time.Time `json:"graded_at"`
	GradedBy      *string   `json:"graded_by,omitempty"`
}

type AttemptGradingResult struct {
	AttemptID       uint            `json:"attempt_id"`
	GradedPoints    float64         `json:"graded_points"`
	TotalPoints     float64         `json:"total_points"`
	GradingComplete bool            `json:"grading_complete"`
	Answers         []GradingResult `json:"answers"`
}

// ===== RESULTS / DISCLOSURE DTOs =====

// AttemptResultView is the learner-facing projection of a finished attempt.
// What it contains depends entirely on the test's release mode and release
// time; fields beyond the disclosure tier stay zero.
type AttemptResultView struct {
	AttemptID      uint                 `json:"attempt_id"`
	TestID         uint                 `json:"test_id"`
	TestTitle      string               `json:"test_title"`
	Status         models.AttemptStatus `json:"status"`
	StartedAt      time.Time            `json:"started_at"`
	SubmittedAt    *time.Time           `json:"submitted_at"`
	ScoresReleased bool                 `json:"scores_released"`

	// Populated from score_only upward. TotalPoints covers graded
	// questions only, so a partially graded attempt never presents its
	// earned points against an ungraded denominator.
	GradeEarned       *float64 `json:"grade_earned,omitempty"`
	GradedPoints      *float64 `json:"graded_points,omitempty"`
	TotalPoints       *float64 `json:"total_points,omitempty"`
	GradingInProgress bool     `json:"grading_in_progress"`

	// Populated from score_with_wrong upward
	Questions []QuestionResult `json:"questions,omitempty"`
}

// QuestionResult is one question's slice of the disclosure projection.
// score_with_wrong reveals only the correct/incorrect boolean per question;
// everything past that, including the learner's own stored response, is
// full_test only.
type QuestionResult struct {
	QuestionID uint                `json:"question_id"`
	Order      int                 `json:"order"`
	Type       models.QuestionType `json:"type"`
	Points     float64             `json:"points"`
	IsCorrect  *bool               `json:"is_correct,omitempty"`

	// full_test only
	Text              string         `json:"text,omitempty"`
	SelectedOptionIDs []uint         `json:"selected_option_ids,omitempty"`
	NumericAnswer     *float64       `json:"numeric_answer,omitempty"`
	AnswerText        *string        `json:"answer_text,omitempty"`
	PointsAwarded     *float64       `json:"points_awarded,omitempty"`
	Options           []ResultOption `json:"options,omitempty"`
	CorrectOptionIDs  []uint         `json:"correct_option_ids,omitempty"`
	ExpectedNumeric   *float64       `json:"expected_numeric,omitempty"`
	Explanation       *string        `json:"explanation,omitempty"`
	GraderNote        *string        `json:"grader_note,omitempty"`
}

type ResultOption struct {
	ID    uint   `json:"id"`
	Text  string `json:"text"`
	Order int    `json:"order"`
}

// ===== SERVICE INTERFACES =====

type TestService interface {
	// Core CRUD operations
	Create(ctx context.Context, req *CreateTestRequest, creatorID string) (*TestResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*TestResponse, error)
	GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*TestResponse, error)
	Update(ctx context.Context, id uint, req *UpdateTestRequest, userID string) (*TestResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	// List with per-member availability buckets
	List(ctx context.Context, params models.ListTestsParams, memberID string) (*TestListResponse, error)

	// Status management
	ChangeStatus(ctx context.Context, id uint, req *models.ChangeTestStatusRequest, userID string) (*models.TestStatusChangeResponse, error)
	Publish(ctx context.Context, id uint, userID string) error
	Archive(ctx context.Context, id uint, userID string) error

	// Statistics
	GetStats(ctx context.Context, id uint, userID string) (*models.TestStats, error)
}

type AttemptService interface {
	// Start creates a new attempt or resumes the member's in-progress one.
	// Availability, password, and attempt-count gates all run server-side
	// inside one transaction.
	Start(ctx context.Context, req *StartAttemptRequest, member *models.Member) (*AttemptResponse, error)

	// Submit is the one-way terminal transition. Submitting an already
	// submitted attempt is a no-op returning the same terminal state.
	Submit(ctx context.Context, attemptID uint, memberID string) (*AttemptResponse, error)

	// SaveAnswer upserts one answer; repeated saves for the same question
	// overwrite, last write wins.
	SaveAnswer(ctx context.Context, attemptID uint, req *SaveAnswerRequest, memberID string) error

	// Get operations
	GetByID(ctx context.Context, id uint, userID string, isAdmin bool) (*AttemptResponse, error)
	GetCurrentAttempt(ctx context.Context, testID uint, memberID string) (*AttemptResponse, error)
	GetAttemptCount(ctx context.Context, testID uint, memberID string) (int, error)

	// List operations (admin)
	List(ctx context.Context, params models.ListAttemptsParams, userID string, isAdmin bool) ([]*models.Attempt, int64, error)
}

type ProctoringService interface {
	// RecordEvent appends one discrete event to the attempt's audit log.
	RecordEvent(ctx context.Context, attemptID uint, req *ProctorEventRequest, memberID string) error

	// FlushTelemetry reconciles cumulative counters, taking the max of
	// stored and reported values.
	FlushTelemetry(ctx context.Context, attemptID uint, req *TelemetryFlushRequest, memberID string) (*TelemetryResponse, error)

	// ListEvents returns the append-only log in occurrence order (admin).
	ListEvents(ctx context.Context, attemptID uint, userID string, isAdmin bool) ([]*models.ProctorEvent, error)
}

type GradingService interface {
	// AutoGradeAttempt grades every objectively gradable answer of a
	// submitted attempt and updates the attempt's running grade.
	AutoGradeAttempt(ctx context.Context, attemptID uint) (*AttemptGradingResult, error)

	// GradeAnswer records a manual grade, clamped to [0, question points],
	// and recomputes the attempt's running grade.
	GradeAnswer(ctx context.Context, answerID uint, req *GradeAnswerRequest, grader *models.Member) (*GradingResult, error)

	// GetGradingStats reports grading progress for an attempt (admin).
	GetGradingStats(ctx context.Context, attemptID uint, userID string, isAdmin bool) (*repositories.GradingStats, error)
}

type ResultsService interface {
	// ViewAttempt projects an attempt through the test's disclosure policy.
	// Admins previewing a result see exactly what the learner sees.
	ViewAttempt(ctx context.Context, attemptID uint, memberID string, isAdmin bool) (*AttemptResultView, error)

	// ListTestResults returns the per-member result roster (admin).
	ListTestResults(ctx context.Context, testID uint, userID string, isAdmin bool) ([]*models.MemberResultRow, error)
}

type ExportService interface {
	// ExportTestResults renders the result roster as a spreadsheet (admin).
	ExportTestResults(ctx context.Context, testID uint, userID string, isAdmin bool) ([]byte, string, error)
}

// NotificationEventService publishes domain events; a publish failure never
// fails the user operation that triggered it.
type NotificationEventService interface {
	NotifyAttemptStarted(ctx context.Context, attempt *models.Attempt, resumed bool)
	NotifyAttemptSubmitted(ctx context.Context, attempt *models.Attempt, answerCount int)
	NotifyAnswerGraded(ctx context.Context, answer *models.Answer, graderID string)
	NotifyProctorEvent(ctx context.Context, attempt *models.Attempt, kind models.ProctorEventKind, occurredAt time.Time)
	NotifyTestStatusChanged(ctx context.Context, testID uint, oldStatus, newStatus models.TestStatus, changedBy string)
	Close() error
}

// ===== SERVICE MANAGER =====

type ServiceManager interface {
	// Core service getters
	Test() TestService
	Attempt() AttemptService
	Proctoring() ProctoringService
	Grading() GradingService
	Results() ResultsService
	Export() ExportService
	Events() NotificationEventService

	// Health and lifecycle
	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
