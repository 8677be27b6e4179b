package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/repositories"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

type proctoringService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	events    NotificationEventService
}

func NewProctoringService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, events NotificationEventService) ProctoringService {
	return &proctoringService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		events:    events,
	}
}

// RecordEvent appends one discrete proctoring event. The log is append-only;
// nothing here or elsewhere updates or deletes a recorded event.
func (s *proctoringService) RecordEvent(ctx context.Context, attemptID uint, req *ProctorEventRequest, memberID string) error {
	if err := s.validator.Struct(req); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	attempt, err := s.getOwnedActiveAttempt(ctx, attemptID, memberID, "record_proctor_event")
	if err != nil {
		return err
	}

	occurredAt := time.Now().UTC()
	if req.OccurredAt != nil {
		occurredAt = req.OccurredAt.UTC()
	}

	event := &models.ProctorEvent{
		AttemptID:  attemptID,
		Kind:       req.Kind,
		OccurredAt: occurredAt,
		Metadata:   req.Metadata,
	}

	if err := s.repo.ProctorEvent().Append(ctx, nil, event); err != nil {
		return fmt.Errorf("failed to append proctor event: %w", err)
	}

	s.events.NotifyProctorEvent(ctx, attempt, req.Kind, occurredAt)

	s.logger.Debug("Proctor event recorded",
		"attempt_id", attemptID,
		"kind", req.Kind)
	return nil
}

// FlushTelemetry reconciles the client's cumulative counters with the stored
// ones. The client reports totals, not deltas, so a repeated or reordered
// flush is safe: each stored counter keeps the max it has ever seen.
func (s *proctoringService) FlushTelemetry(ctx context.Context, attemptID uint, req *TelemetryFlushRequest, memberID string) (*TelemetryResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var resp *TelemetryResponse
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		attempt, err := txRepo.Attempt().GetByIDForUpdate(ctx, nil, attemptID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to get attempt: %w", err)
		}

		if attempt.MemberID != memberID {
			return NewPermissionError(memberID, attemptID, "attempt", "flush_telemetry", "not owned by member")
		}
		if !attempt.IsActive() {
			return ErrAttemptNotActive
		}

		if err := txRepo.Attempt().RaiseTelemetry(ctx, nil, attemptID, repositories.TelemetryTotals{
			TabSwitchCount:     req.TabSwitchCount,
			TimeOffPageSeconds: req.TimeOffPageSeconds,
		}); err != nil {
			return err
		}

		resp = &TelemetryResponse{
			AttemptID:          attemptID,
			TabSwitchCount:     maxInt(attempt.TabSwitchCount, req.TabSwitchCount),
			TimeOffPageSeconds: maxFloat(attempt.TimeOffPageSeconds, req.TimeOffPageSeconds),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *proctoringService) ListEvents(ctx context.Context, attemptID uint, userID string, isAdmin bool) ([]*models.ProctorEvent, error) {
	if !isAdmin {
		return nil, NewPermissionError(userID, attemptID, "attempt", "list_proctor_events", "insufficient permissions")
	}

	if _, err := s.repo.Attempt().GetByID(ctx, attemptID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	events, err := s.repo.ProctorEvent().GetByAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to list proctor events: %w", err)
	}
	return events, nil
}

// getOwnedActiveAttempt loads an attempt and checks ownership and liveness.
func (s *proctoringService) getOwnedActiveAttempt(ctx context.Context, attemptID uint, memberID, action string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if attempt.MemberID != memberID {
		return nil, NewPermissionError(memberID, attemptID, "attempt", action, "not owned by member")
	}
	if !attempt.IsActive() {
		return nil, ErrAttemptNotActive
	}
	return attempt, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
