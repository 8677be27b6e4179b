package services

import (
	"time"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
)

// Availability is computed fresh on every gate check. The client shows the
// same buckets, but the server never trusts a client-side verdict.

// IsTestAvailable reports whether a test can be started or written to at the
// given instant. A test with no start time is never available; a test with
// neither end time nor late allowance has no hard close.
func IsTestAvailable(test *models.Test, now time.Time) bool {
	if test.Status != models.StatusPublished {
		return false
	}
	if test.StartAt == nil || now.Before(*test.StartAt) {
		return false
	}
	if deadline := test.Deadline(); deadline != nil && now.After(*deadline) {
		return false
	}
	return true
}

// IsTestCompleted reports whether the test is over for a specific identity.
// Past the deadline it is completed for everyone. Before the deadline, a
// finite max-attempts test is completed only for identities that used up
// their attempts; unlimited tests never complete by count.
func IsTestCompleted(test *models.Test, attemptsUsed int, now time.Time) bool {
	if deadline := test.Deadline(); deadline != nil && now.After(*deadline) {
		return true
	}
	if test.MaxAttempts != nil && attemptsUsed >= *test.MaxAttempts {
		return true
	}
	return false
}

// BucketFor classifies a test for roster display from one identity's
// perspective.
func BucketFor(test *models.Test, attemptsUsed int, now time.Time) models.AvailabilityBucket {
	if IsTestCompleted(test, attemptsUsed, now) {
		return models.BucketCompleted
	}
	if test.StartAt != nil && now.Before(*test.StartAt) {
		return models.BucketScheduled
	}
	return models.BucketOpened
}

// AreScoresReleased reports whether the disclosure gate is open. Scores are
// never released while a release timestamp sits in the future, and never for
// tests that were taken down to draft.
func AreScoresReleased(test *models.Test, now time.Time) bool {
	if test.ScoreReleaseMode == models.ReleaseNone {
		return false
	}
	if test.Status == models.StatusDraft {
		return false
	}
	if test.ReleaseScoresAt != nil && now.Before(*test.ReleaseScoresAt) {
		return false
	}
	return true
}
