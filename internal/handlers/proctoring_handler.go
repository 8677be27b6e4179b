package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/services"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/utils"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

type ProctoringHandler struct {
	BaseHandler
	proctoringService services.ProctoringService
	validator         *validator.Validator
}

func NewProctoringHandler(
	proctoringService services.ProctoringService,
	validator *validator.Validator,
	logger utils.Logger,
) *ProctoringHandler {
	return &ProctoringHandler{
		BaseHandler:       NewBaseHandler(logger),
		proctoringService: proctoringService,
		validator:         validator,
	}
}

// RecordEvent records one proctoring event on an attempt
// @Summary Record proctor event
// @Description Appends a tab-switch or blur event to the attempt's audit log
// @Tags proctoring
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param event body services.ProctorEventRequest true "Proctor event"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/proctor-events [post]
func (h *ProctoringHandler) RecordEvent(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req services.ProctorEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.proctoringService.RecordEvent(c.Request.Context(), attemptID, &req, memberID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{Message: "Proctor event recorded"})
}

// FlushTelemetry reconciles the client's cumulative counters
// @Summary Flush proctoring telemetry
// @Description Reports cumulative tab-switch and off-page counters; stored values never decrease
// @Tags proctoring
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param telemetry body services.TelemetryFlushRequest true "Cumulative counters"
// @Success 200 {object} SuccessResponse{data=services.TelemetryResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/telemetry [post]
func (h *ProctoringHandler) FlushTelemetry(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req services.TelemetryFlushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	resp, err := h.proctoringService.FlushTelemetry(c.Request.Context(), attemptID, &req, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListEvents lists the proctoring log of an attempt
// @Summary List proctor events
// @Description Returns the append-only event log in occurrence order (admin)
// @Tags proctoring
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=[]models.ProctorEvent}
// @Failure 403 {object} ErrorResponse
// @Router /attempts/{id}/proctor-events [get]
func (h *ProctoringHandler) ListEvents(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Listing proctor events", "attempt_id", attemptID)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	events, err := h.proctoringService.ListEvents(c.Request.Context(), attemptID, memberID, IsAdminFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"attempt_id": attemptID,
		"events":     events,
		"count":      len(events),
	})
}
