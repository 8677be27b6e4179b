package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for business rule failures. Handlers map these onto HTTP
// status codes and stable error codes.
var (
	// Test errors
	ErrTestNotFound     = errors.New("test not found")
	ErrTestNotAvailable = errors.New("test is not available")
	ErrTestNotPublished = errors.New("test is not published")

	// Start gate errors
	ErrPasswordRequired   = errors.New("test password required")
	ErrPasswordIncorrect  = errors.New("test password incorrect")
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")

	// Attempt errors
	ErrAttemptNotFound         = errors.New("attempt not found")
	ErrAttemptNotActive        = errors.New("attempt is not active")
	ErrAttemptAlreadySubmitted = errors.New("attempt already submitted")

	// Answer errors
	ErrQuestionNotFound   = errors.New("question not found")
	ErrInvalidOption      = errors.New("selected option does not belong to question")
	ErrInvalidAnswerShape = errors.New("answer payload does not match question type")
	ErrAnswerNotFound     = errors.New("answer not found")

	// Results errors
	ErrScoresNotReleased = errors.New("scores are not released")

	// Member errors
	ErrMemberNotFound = errors.New("member not found")
	ErrUnauthorized   = errors.New("unauthorized")
)

// PermissionError carries who tried to do what to which resource.
type PermissionError struct {
	UserID     string
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError wraps a domain rule violation with a stable code.
type BusinessRuleError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessRuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessRuleError) Unwrap() error {
	return e.Err
}

func NewBusinessRuleError(code, message string, err error) *BusinessRuleError {
	return &BusinessRuleError{Code: code, Message: message, Err: err}
}
