package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/services"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/utils"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
	validator      *validator.Validator
}

func NewGradingHandler(
	gradingService services.GradingService,
	validator *validator.Validator,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
		validator:      validator,
	}
}

// GradeAnswer records a manual grade for one answer
// @Summary Grade answer
// @Description Records a manual grade; points are clamped to the question's worth
// @Tags grading
// @Accept json
// @Produce json
// @Param answer_id path uint true "Answer ID"
// @Param grade body services.GradeAnswerRequest true "Grade data"
// @Success 200 {object} SuccessResponse{data=services.GradingResult}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /grading/answers/{answer_id} [post]
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	answerID := h.parseIDParam(c, "answer_id")
	if answerID == 0 {
		return
	}

	h.LogRequest(c, "Grading answer", "answer_id", answerID)

	var req services.GradeAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	grader, err := GetMemberFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	result, err := h.gradingService.GradeAnswer(c.Request.Context(), answerID, &req, grader)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AutoGradeAttempt re-runs objective grading on a submitted attempt
// @Summary Auto-grade attempt
// @Description Re-scores every objectively gradable answer of a submitted attempt
// @Tags grading
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=services.AttemptGradingResult}
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /grading/attempts/{attempt_id}/auto [post]
func (h *GradingHandler) AutoGradeAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Auto-grading attempt", "attempt_id", attemptID)

	result, err := h.gradingService.AutoGradeAttempt(c.Request.Context(), attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetGradingStats reports grading progress for an attempt
// @Summary Get grading stats
// @Tags grading
// @Produce json
// @Param attempt_id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=repositories.GradingStats}
// @Failure 403 {object} ErrorResponse
// @Router /grading/attempts/{attempt_id}/stats [get]
func (h *GradingHandler) GetGradingStats(c *gin.Context) {
	attemptID := h.parseIDParam(c, "attempt_id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Getting grading stats", "attempt_id", attemptID)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	stats, err := h.gradingService.GetGradingStats(c.Request.Context(), attemptID, memberID, IsAdminFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
