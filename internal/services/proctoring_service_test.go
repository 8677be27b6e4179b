package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/events"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

func newProctoringServiceForTest(repo *fakeRepository) ProctoringService {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	v := validator.New()
	eventSvc := NewNotificationEventService(repo, events.NewMockEventPublisher(logger), logger, v)
	return NewProctoringService(repo, nil, logger, v, eventSvc)
}

func proctoringFixture(t *testing.T) (*fakeRepository, ProctoringService, AttemptService, uint) {
	t.Helper()
	repo := newFakeRepository()
	repo.addTest(openTest(1))
	attemptSvc := newAttemptServiceForTest(repo)
	proctoringSvc := newProctoringServiceForTest(repo)

	started, err := attemptSvc.Start(context.Background(), &StartAttemptRequest{TestID: 1}, learner("m1"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return repo, proctoringSvc, attemptSvc, started.Attempt.ID
}

func TestProctoringService_RecordEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("appends to the log", func(t *testing.T) {
		repo, svc, _, attemptID := proctoringFixture(t)

		occurred := time.Now().UTC().Add(-time.Minute)
		err := svc.RecordEvent(ctx, attemptID, &ProctorEventRequest{
			Kind:       models.ProctorTabSwitch,
			OccurredAt: &occurred,
		}, "m1")
		if err != nil {
			t.Fatalf("record: %v", err)
		}

		stored, _ := repo.ProctorEvent().GetByAttempt(ctx, attemptID)
		if len(stored) != 1 {
			t.Fatalf("event rows = %d, want 1", len(stored))
		}
		if stored[0].Kind != models.ProctorTabSwitch {
			t.Errorf("kind = %s, want tab_switch", stored[0].Kind)
		}
		if !stored[0].OccurredAt.Equal(occurred) {
			t.Errorf("occurred_at = %v, want %v", stored[0].OccurredAt, occurred)
		}
	})

	t.Run("repeated events accumulate", func(t *testing.T) {
		repo, svc, _, attemptID := proctoringFixture(t)

		for i := 0; i < 3; i++ {
			if err := svc.RecordEvent(ctx, attemptID, &ProctorEventRequest{Kind: models.ProctorBlur}, "m1"); err != nil {
				t.Fatalf("record %d: %v", i, err)
			}
		}

		count, _ := repo.ProctorEvent().CountByAttempt(ctx, attemptID)
		if count != 3 {
			t.Errorf("event count = %d, want 3", count)
		}
	})

	t.Run("rejected for non-owner", func(t *testing.T) {
		_, svc, _, attemptID := proctoringFixture(t)

		err := svc.RecordEvent(ctx, attemptID, &ProctorEventRequest{Kind: models.ProctorBlur}, "m2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})

	t.Run("rejected after submit", func(t *testing.T) {
		_, svc, attemptSvc, attemptID := proctoringFixture(t)
		if _, err := attemptSvc.Submit(ctx, attemptID, "m1"); err != nil {
			t.Fatalf("submit: %v", err)
		}

		err := svc.RecordEvent(ctx, attemptID, &ProctorEventRequest{Kind: models.ProctorBlur}, "m1")
		if !errors.Is(err, ErrAttemptNotActive) {
			t.Errorf("expected ErrAttemptNotActive, got %v", err)
		}
	})

	t.Run("attempt not found", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newProctoringServiceForTest(repo)

		err := svc.RecordEvent(ctx, 99, &ProctorEventRequest{Kind: models.ProctorBlur}, "m1")
		if !errors.Is(err, ErrAttemptNotFound) {
			t.Errorf("expected ErrAttemptNotFound, got %v", err)
		}
	})
}

func TestProctoringService_FlushTelemetry(t *testing.T) {
	ctx := context.Background()

	t.Run("counters only move up", func(t *testing.T) {
		repo, svc, _, attemptID := proctoringFixture(t)

		resp, err := svc.FlushTelemetry(ctx, attemptID, &TelemetryFlushRequest{
			TabSwitchCount:     5,
			TimeOffPageSeconds: 30.5,
		}, "m1")
		if err != nil {
			t.Fatalf("first flush: %v", err)
		}
		if resp.TabSwitchCount != 5 || resp.TimeOffPageSeconds != 30.5 {
			t.Errorf("response = %+v, want 5 and 30.5", resp)
		}

		// Stale flush from a lagging tab must not regress the counters.
		resp, err = svc.FlushTelemetry(ctx, attemptID, &TelemetryFlushRequest{
			TabSwitchCount:     2,
			TimeOffPageSeconds: 10,
		}, "m1")
		if err != nil {
			t.Fatalf("stale flush: %v", err)
		}
		if resp.TabSwitchCount != 5 || resp.TimeOffPageSeconds != 30.5 {
			t.Errorf("response after stale flush = %+v, want 5 and 30.5", resp)
		}

		stored := repo.attempts[attemptID]
		if stored.TabSwitchCount != 5 || stored.TimeOffPageSeconds != 30.5 {
			t.Errorf("stored counters = (%d, %v), want (5, 30.5)",
				stored.TabSwitchCount, stored.TimeOffPageSeconds)
		}
	})

	t.Run("counters reconcile independently", func(t *testing.T) {
		repo, svc, _, attemptID := proctoringFixture(t)

		if _, err := svc.FlushTelemetry(ctx, attemptID, &TelemetryFlushRequest{
			TabSwitchCount:     10,
			TimeOffPageSeconds: 5,
		}, "m1"); err != nil {
			t.Fatalf("first flush: %v", err)
		}
		resp, err := svc.FlushTelemetry(ctx, attemptID, &TelemetryFlushRequest{
			TabSwitchCount:     3,
			TimeOffPageSeconds: 60,
		}, "m1")
		if err != nil {
			t.Fatalf("second flush: %v", err)
		}
		if resp.TabSwitchCount != 10 || resp.TimeOffPageSeconds != 60 {
			t.Errorf("response = %+v, want max per counter (10, 60)", resp)
		}

		stored := repo.attempts[attemptID]
		if stored.TabSwitchCount != 10 || stored.TimeOffPageSeconds != 60 {
			t.Errorf("stored counters = (%d, %v), want (10, 60)",
				stored.TabSwitchCount, stored.TimeOffPageSeconds)
		}
	})

	t.Run("rejected after submit", func(t *testing.T) {
		_, svc, attemptSvc, attemptID := proctoringFixture(t)
		if _, err := attemptSvc.Submit(ctx, attemptID, "m1"); err != nil {
			t.Fatalf("submit: %v", err)
		}

		_, err := svc.FlushTelemetry(ctx, attemptID, &TelemetryFlushRequest{TabSwitchCount: 1}, "m1")
		if !errors.Is(err, ErrAttemptNotActive) {
			t.Errorf("expected ErrAttemptNotActive, got %v", err)
		}
	})

	t.Run("rejected for non-owner", func(t *testing.T) {
		_, svc, _, attemptID := proctoringFixture(t)

		_, err := svc.FlushTelemetry(ctx, attemptID, &TelemetryFlushRequest{TabSwitchCount: 1}, "m2")
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})
}

func TestProctoringService_ListEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("admin sees events in occurrence order", func(t *testing.T) {
		_, svc, _, attemptID := proctoringFixture(t)

		base := time.Now().UTC().Add(-time.Hour)
		later := base.Add(10 * time.Minute)
		// Recorded out of order on purpose.
		if err := svc.RecordEvent(ctx, attemptID, &ProctorEventRequest{
			Kind: models.ProctorBlur, OccurredAt: &later,
		}, "m1"); err != nil {
			t.Fatalf("record: %v", err)
		}
		if err := svc.RecordEvent(ctx, attemptID, &ProctorEventRequest{
			Kind: models.ProctorTabSwitch, OccurredAt: &base,
		}, "m1"); err != nil {
			t.Fatalf("record: %v", err)
		}

		listed, err := svc.ListEvents(ctx, attemptID, "a1", true)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(listed) != 2 {
			t.Fatalf("events = %d, want 2", len(listed))
		}
		if listed[0].Kind != models.ProctorTabSwitch || listed[1].Kind != models.ProctorBlur {
			t.Errorf("order = [%s, %s], want occurrence order", listed[0].Kind, listed[1].Kind)
		}
	})

	t.Run("non-admin denied", func(t *testing.T) {
		_, svc, _, attemptID := proctoringFixture(t)

		_, err := svc.ListEvents(ctx, attemptID, "m1", false)
		var permErr *PermissionError
		if !errors.As(err, &permErr) {
			t.Errorf("expected PermissionError, got %v", err)
		}
	})

	t.Run("attempt not found", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newProctoringServiceForTest(repo)

		_, err := svc.ListEvents(ctx, 99, "a1", true)
		if !errors.Is(err, ErrAttemptNotFound) {
			t.Errorf("expected ErrAttemptNotFound, got %v", err)
		}
	})
}
