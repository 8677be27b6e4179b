package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/matthewnoahkim/sciolyteams-sub001/internal/models"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/services"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/utils"
	"github.com/matthewnoahkim/sciolyteams-sub001/internal/validator"
)

type TestHandler struct {
	BaseHandler
	testService services.TestService
	validator   *validator.Validator
}

func NewTestHandler(
	testService services.TestService,
	validator *validator.Validator,
	logger utils.Logger,
) *TestHandler {
	return &TestHandler{
		BaseHandler: NewBaseHandler(logger),
		testService: testService,
		validator:   validator,
	}
}

// CreateTest creates a new test
// @Summary Create test
// @Description Creates a new test with questions and answer keys
// @Tags tests
// @Accept json
// @Produce json
// @Param test body services.CreateTestRequest true "Test data"
// @Success 201 {object} SuccessResponse{data=services.TestResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /tests [post]
func (h *TestHandler) CreateTest(c *gin.Context) {
	h.LogRequest(c, "Creating test")

	var req services.CreateTestRequest
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

	test, err := h.testService.Create(c.Request.Context(), &req, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, test)
}

// GetTest retrieves a test by ID
// @Summary Get test
// @Description Retrieves a test by its ID
// @Tags tests
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=services.TestResponse}
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id} [get]
func (h *TestHandler) GetTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting test", "test_id", id)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	test, err := h.testService.GetByID(c.Request.Context(), id, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

// GetTestWithQuestions retrieves a test with its questions
// @Summary Get test with questions
// @Description Retrieves a test with questions; answer keys are stripped for non-owners
// @Tags tests
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=services.TestResponse}
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id}/details [get]
func (h *TestHandler) GetTestWithQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting test with questions", "test_id", id)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	test, err := h.testService.GetByIDWithQuestions(c.Request.Context(), id, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

// UpdateTest updates a test
// @Summary Update test
// @Description Updates a test's settings; only the creator may update
// @Tags tests
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param test body services.UpdateTestRequest true "Update data"
// @Success 200 {object} SuccessResponse{data=services.TestResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /tests/{id} [put]
func (h *TestHandler) UpdateTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Updating test", "test_id", id)

	var req services.UpdateTestRequest
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

	test, err := h.testService.Update(c.Request.Context(), id, &req, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

// DeleteTest deletes a draft test
// @Summary Delete test
// @Description Deletes a test; only drafts can be deleted
// @Tags tests
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /tests/{id} [delete]
func (h *TestHandler) DeleteTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Deleting test", "test_id", id)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.testService.Delete(c.Request.Context(), id, memberID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Test deleted successfully"})
}

// ListTests lists tests with availability buckets
// @Summary List tests
// @Description Lists tests grouped by availability relative to the caller
// @Tags tests
// @Produce json
// @Param page query int false "Page number" default(0)
// @Param size query int false "Page size" default(20)
// @Param status query string false "Test status"
// @Param search query string false "Title search"
// @Success 200 {object} SuccessResponse{data=services.TestListResponse}
// @Failure 500 {object} ErrorResponse
// @Router /tests [get]
func (h *TestHandler) ListTests(c *gin.Context) {
	h.LogRequest(c, "Listing tests")

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	params := h.parseListTestsParams(c)
	tests, err := h.testService.List(c.Request.Context(), params, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tests)
}

// ChangeTestStatus transitions a test through its lifecycle
// @Summary Change test status
// @Description Transitions a test between Draft, Published and Archived
// @Tags tests
// @Accept json
// @Produce json
// @Param id path uint true "Test ID"
// @Param status body models.ChangeTestStatusRequest true "Status change"
// @Success 200 {object} SuccessResponse{data=models.TestStatusChangeResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /tests/{id}/status [put]
func (h *TestHandler) ChangeTestStatus(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Changing test status", "test_id", id)

	var req models.ChangeTestStatusRequest
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

	result, err := h.testService.ChangeStatus(c.Request.Context(), id, &req, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// PublishTest publishes a draft test
// @Summary Publish test
// @Tags tests
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse
// @Failure 422 {object} ErrorResponse
// @Router /tests/{id}/publish [post]
func (h *TestHandler) PublishTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Publishing test", "test_id", id)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.testService.Publish(c.Request.Context(), id, memberID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Test published successfully"})
}

// ArchiveTest archives a test
// @Summary Archive test
// @Tags tests
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse
// @Failure 422 {object} ErrorResponse
// @Router /tests/{id}/archive [post]
func (h *TestHandler) ArchiveTest(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Archiving test", "test_id", id)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.testService.Archive(c.Request.Context(), id, memberID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Test archived successfully"})
}

// GetTestStats returns attempt statistics for a test
// @Summary Get test statistics
// @Tags tests
// @Produce json
// @Param id path uint true "Test ID"
// @Success 200 {object} SuccessResponse{data=models.TestStats}
// @Failure 403 {object} ErrorResponse
// @Router /tests/{id}/stats [get]
func (h *TestHandler) GetTestStats(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Getting test stats", "test_id", id)

	memberID, err := GetMemberIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	stats, err := h.testService.GetStats(c.Request.Context(), id, memberID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *TestHandler) parseListTestsParams(c *gin.Context) models.ListTestsParams {
	params := models.ListTestsParams{
		Page:    0,
		Size:    20,
		SortBy:  c.DefaultQuery("sort_by", "created_at"),
		SortDir: c.DefaultQuery("sort_dir", "desc"),
		Search:  c.Query("search"),
	}

	if page, err := strconv.Atoi(c.DefaultQuery("page", "0")); err == nil && page >= 0 {
		params.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("size", "20")); err == nil && size > 0 && size <= 100 {
		params.Size = size
	}
	if status := c.Query("status"); status != "" {
		params.Status = models.TestStatus(status)
	}

	return params
}
