package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/services"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/utils"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

// ErrorResponse is the uniform error body for every handler.
type ErrorResponse struct {
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler carries shared plumbing for all handlers.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// LogRequest logs the handler entry with request-scoped fields.
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	if requestID, ok := c.Get("request_id"); ok {
		args = append(args, "request_id", requestID)
	}
	h.logger.Info(msg, args...)
}

// parseIDParam parses a numeric path parameter, writing a 400 and returning
// zero on failure. Callers bail out when they get zero.
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
			Details: raw,
		})
		return 0
	}
	return uint(id)
}

// handleServiceError translates service-layer errors into HTTP responses.
// Sentinel gate failures carry machine-readable codes so clients can branch
// without string matching.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "VALIDATION_FAILED",
			Message: "Validation failed",
			Details: validationErrs,
		})
		return
	}

	var permErr *services.PermissionError
	if errors.As(err, &permErr) {
		c.JSON(http.StatusForbidden, ErrorResponse{
			Code:    "FORBIDDEN",
			Message: permErr.Error(),
		})
		return
	}

	var ruleErr *services.BusinessRuleError
	if errors.As(err, &ruleErr) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Code:    ruleErr.Code,
			Message: ruleErr.Message,
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrTestNotFound),
		errors.Is(err, services.ErrAttemptNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrAnswerNotFound),
		errors.Is(err, services.ErrMemberNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "NOT_FOUND",
			Message: err.Error(),
		})

	case errors.Is(err, services.ErrPasswordRequired):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Code:    "PASSWORD_REQUIRED",
			Message: "This test requires a password to start",
		})

	case errors.Is(err, services.ErrPasswordIncorrect):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Code:    "PASSWORD_INCORRECT",
			Message: "The provided test password is incorrect",
		})

	case errors.Is(err, services.ErrMaxAttemptsReached):
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    "MAX_ATTEMPTS_REACHED",
			Message: "No attempts remain for this test",
		})

	case errors.Is(err, services.ErrTestNotAvailable),
		errors.Is(err, services.ErrTestNotPublished):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Code:    "NOT_AVAILABLE",
			Message: "The test is not available right now",
		})

	case errors.Is(err, services.ErrAttemptNotActive),
		errors.Is(err, services.ErrAttemptAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{
			Code:    "ATTEMPT_NOT_ACTIVE",
			Message: err.Error(),
		})

	case errors.Is(err, services.ErrInvalidAnswerShape),
		errors.Is(err, services.ErrInvalidOption):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_ANSWER",
			Message: err.Error(),
		})

	case errors.Is(err, services.ErrScoresNotReleased):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Code:    "SCORES_NOT_RELEASED",
			Message: "Scores for this test have not been released",
		})

	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Code:    "UNAUTHORIZED",
			Message: "Authentication required",
		})

	default:
		h.logger.Error("Unhandled service error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL_ERROR",
			Message: "An internal error occurred",
		})
	}
}
