package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/services"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/utils"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewAttemptHandler(
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts a new test attempt or resumes the active one
// @Summary Start test attempt
// @Description Starts a new attempt; if the member already has an in-progress attempt on the test it is resumed instead
// @Tags attempts
// @Accept json
// @Produce json
// @Param attempt body services.StartAttemptRequest true "Start attempt data"
// @Success 201 {object} SuccessResponse{data=services.AttemptResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting test attempt")

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	member, err := GetMemberFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	// Connection metadata comes from the request, never the body
	ip := c.ClientIP()
	ua := c.Request.UserAgent()
	req.IPAddress = &ip
	req.UserAgent = &ua

	attempt, err := h.attemptService.Start(c.Request.Context(), &req, member)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// SubmitAttempt submits a test attempt
// @Summary Submit test attempt
// @Description Finalizes an attempt; submitting an already submitted attempt is a no-op
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=services.AttemptResponse}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Submitting test attempt", "attempt_id", id)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	attempt, err := h.attemptService.Submit(c.Request.Context(), id, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// SaveAnswer saves or replaces one answer in an attempt
// @Summary Save answer
// @Description Upserts the answer for a question; repeated saves overwrite, last write wins
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answer body services.SaveAnswerRequest true "Answer data"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/answers [put]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Saving answer", "attempt_id", attemptID)

	var req services.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if errs := h.validator.Struct(&req); errs != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: errs,
		})
		return
	}

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.attemptService.SaveAnswer(c.Request.Context(), attemptID, &req, memberID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer saved successfully"})
}

// GetAttempt retrieves an attempt by ID
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=services.AttemptResponse}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting attempt", "attempt_id", id)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, memberID, IsAdminFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetCurrentAttempt retrieves the caller's active attempt for a test
// @Summary Get current attempt
// @Tags attempts
// @Produce json
// @Param test_id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=services.AttemptResponse}
// @Failure 404 {object} ErrorResponse
// @Router /attempts/current/{test_id} [get]
func (h *AttemptHandler) GetCurrentAttempt(c *gin.Context) {
	testID := h.parseIDParam(c, "test_id")
	if testID == 0 {
		return
	}

	h.LogRequest(c, "Getting current attempt", "test_id", testID)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	attempt, err := h.attemptService.GetCurrentAttempt(c.Request.Context(), testID, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetAttemptCount returns how many attempts the caller has used on a test
// @Summary Get attempt count
// @Tags attempts
// @Produce json
// @Param test_id path uint true "Test ID"
// @Success 200 {object} SuccessResponse
// @Router /attempts/count/{test_id} [get]
func (h *AttemptHandler) GetAttemptCount(c *gin.Context) {
	testID := h.parseIDParam(c, "test_id")
	if testID == 0 {
		return
	}

	h.LogRequest(c, "Getting attempt count", "test_id", testID)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	count, err := h.attemptService.GetAttemptCount(c.Request.Context(), testID, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"test_id":       testID,
		"attempts_used": count,
	})
}

// ListAttempts lists attempts with filters
// @Summary List attempts
// @Description Lists attempts with optional filtering (admin)
// @Tags attempts
// @Produce json
// @Param page query int false "Page number" default(0)
// @Param size query int false "Page size" default(20)
// @Param status query string false "Attempt status"
// @Param test_id query uint false "Test ID"
// @Param member_id query string false "Member ID"
// @Success 200 {object} models.PaginatedResponse
// @Failure 403 {object} ErrorResponse
// @Router /attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	h.LogRequest(c, "Listing attempts")

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	params := h.parseListAttemptsParams(c)
	attempts, total, err := h.attemptService.List(c.Request.Context(), params, memberID, IsAdminFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	totalPages := 0
	if params.Size > 0 {
		totalPages = int((total + int64(params.Size) - 1) / int64(params.Size))
	}

	c.JSON(http.StatusOK, models.PaginatedResponse{
		Content:          attempts,
		TotalElements:    total,
		TotalPages:       totalPages,
		Size:             params.Size,
		Page:             params.Page,
		First:            params.Page == 0,
		Last:             params.Page >= totalPages-1,
		NumberOfElements: len(attempts),
		Empty:            len(attempts) == 0,
	})
}

func (h *AttemptHandler) parseListAttemptsParams(c *gin.Context) models.ListAttemptsParams {
	params := models.ListAttemptsParams{
		Page:    0,
		Size:    20,
		SortBy:  c.DefaultQuery("sort_by", "started_at"),
		SortDir: c.DefaultQuery("sort_dir", "desc"),
	}

	if page, err := strconv.Atoi(c.DefaultQuery("page", "0")); err == nil && page >= 0 {
		params.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("size", "20")); err == nil && size > 0 && size <= 100 {
		params.Size = size
	}
	if status := c.Query("status"); status != "" {
		params.Status = models.AttemptStatus(status)
	}
	if testID, err := strconv.ParseUint(c.Query("test_id"), 10, 32); err == nil && testID > 0 {
		id := uint(testID)
		params.TestID = &id
	}
	if memberID := c.Query("member_id"); memberID != "" {
		params.MemberID = &memberID
	}
	if from := c.Query("date_from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			params.DateFrom = &t
		}
	}
	if to := c.Query("date_to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			params.DateTo = &t
		}
	}

	return params
}
