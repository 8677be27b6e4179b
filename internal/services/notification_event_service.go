package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/events"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

// notificationEventService turns domain happenings into published events.
// Every Notify method is best-effort: a broker failure is logged and the
// triggering operation proceeds unaffected.
type notificationEventService struct {
	repo           repositories.Repository
	eventPublisher events.EventPublisher
	logger         *slog.Logger
	validator      *validator.Validator
}

func NewNotificationEventService(repo repositories.Repository, publisher events.EventPublisher, logger *slog.Logger, validator *validator.Validator) NotificationEventService {
	return &notificationEventService{
		repo:           repo,
		eventPublisher: publisher,
		logger:         logger,
		validator:      validator,
	}
}

func (s *notificationEventService) NotifyAttemptStarted(ctx context.Context, attempt *models.Attempt, resumed bool) {
	s.publish(ctx, events.EventAttemptStarted, events.AttemptStartedEvent{
		AttemptID: attempt.ID,
		TestID:    attempt.TestID,
		MemberID:  attempt.MemberID,
		Resumed:   resumed,
	})
}

func (s *notificationEventService) NotifyAttemptSubmitted(ctx context.Context, attempt *models.Attempt, answerCount int) {
	submittedAt := time.Now().UTC()
	if attempt.SubmittedAt != nil {
		submittedAt = *attempt.SubmittedAt
	}

	s.publish(ctx, events.EventAttemptSubmitted, events.AttemptSubmittedEvent{
		AttemptID:   attempt.ID,
		TestID:      attempt.TestID,
		MemberID:    attempt.MemberID,
		SubmittedAt: submittedAt,
		AnswerCount: answerCount,
		AutoGraded:  true,
		GradeEarned: attempt.GradeEarned,
	})
}

func (s *notificationEventService) NotifyAnswerGraded(ctx context.Context, answer *models.Answer, graderID string) {
	points := 0.0
	if answer.PointsAwarded != nil {
		points = *answer.PointsAwarded
	}

	s.publish(ctx, events.EventAnswerGraded, events.AnswerGradedEvent{
		AttemptID:     answer.AttemptID,
		AnswerID:      answer.ID,
		QuestionID:    answer.QuestionID,
		PointsAwarded: points,
		GradedBy:      graderID,
	})
}

func (s *notificationEventService) NotifyProctorEvent(ctx context.Context, attempt *models.Attempt, kind models.ProctorEventKind, occurredAt time.Time) {
	s.publish(ctx, events.EventProctorRecorded, events.ProctorRecordedEvent{
		AttemptID:  attempt.ID,
		TestID:     attempt.TestID,
		MemberID:   attempt.MemberID,
		Kind:       string(kind),
		OccurredAt: occurredAt,
	})
}

func (s *notificationEventService) NotifyTestStatusChanged(ctx context.Context, testID uint, oldStatus, newStatus models.TestStatus, changedBy string) {
	eventType := events.EventTestPublished
	if newStatus == models.StatusArchived {
		eventType = events.EventTestArchived
	}

	s.publish(ctx, eventType, events.TestStatusChangedEvent{
		TestID:    testID,
		OldStatus: string(oldStatus),
		NewStatus: string(newStatus),
		ChangedBy: changedBy,
	})
}

func (s *notificationEventService) Close() error {
	return s.eventPublisher.Close()
}

func (s *notificationEventService) publish(ctx context.Context, eventType string, payload interface{}) {
	event := events.NewEvent(eventType, payload)
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event",
			"event_type", eventType,
			"event_id", event.ID,
			"error", err)
	}
}
