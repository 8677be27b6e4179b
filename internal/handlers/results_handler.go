package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/services"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/utils"
)

type ResultsHandler struct {
	BaseHandler
	resultsService services.ResultsService
	exportService  services.ExportService
}

func NewResultsHandler(
	resultsService services.ResultsService,
	exportService services.ExportService,
	logger utils.Logger,
) *ResultsHandler {
	return &ResultsHandler{
		BaseHandler:    NewBaseHandler(logger),
		resultsService: resultsService,
		exportService:  exportService,
	}
}

// ViewAttemptResult projects an attempt through the test's disclosure policy
// @Summary View attempt result
// @Description Returns the attempt result; the visible fields depend on the test's score release mode and release time
// @Tags results
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=services.AttemptResultView}
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/result [get]
func (h *ResultsHandler) ViewAttemptResult(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	h.LogRequest(c, "Viewing attempt result", "attempt_id", attemptID)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	view, err := h.resultsService.ViewAttempt(c.Request.Context(), attemptID, memberID, IsAdminFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListTestResults returns the per-member result roster for a test
// @Summary List test results
// @Description Returns every attempt on the test with member, score and telemetry columns (admin)
// @Tags results
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=[]models.MemberResultRow}
// @Failure 403 {object} ErrorResponse
// @Router /tests/{id}/results [get]
func (h *ResultsHandler) ListTestResults(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}

	h.LogRequest(c, "Listing test results", "test_id", testID)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	rows, err := h.resultsService.ListTestResults(c.Request.Context(), testID, memberID, IsAdminFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"test_id": testID,
		"results": rows,
		"count":   len(rows),
	})
}

// ExportTestResults downloads the result roster as a spreadsheet
// @Summary Export test results
// @Description Streams the result roster as an xlsx workbook (admin)
// @Tags results
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Test ID"
// @Success 200 {file} binary
// @Failure 403 {object} ErrorResponse
// @Router /tests/{id}/results/export [get]
func (h *ResultsHandler) ExportTestResults(c *gin.Context) {
	testID := h.parseIDParam(c, "id")
	if testID == 0 {
		return
	}

	h.LogRequest(c, "Exporting test results", "test_id", testID)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	data, filename, err := h.exportService.ExportTestResults(c.Request.Context(), testID, memberID, IsAdminFromContext(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
