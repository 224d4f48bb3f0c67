package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusrec/records-api/internal/dto"
	"github.com/campusrec/records-api/internal/models"
	"github.com/campusrec/records-api/internal/service"
	appErrors "github.com/campusrec/records-api/pkg/errors"
	"github.com/campusrec/records-api/pkg/response"
)

// TestHandler exposes assessment endpoints including mark submission,
// result listing and exports.
type TestHandler struct {
	tests   *service.TestService
	results *service.ResultService
}

// NewTestHandler constructs handler.
func NewTestHandler(tests *service.TestService, results *service.ResultService) *TestHandler {
	return &TestHandler{tests: tests, results: results}
}

// List godoc
// @Summary List tests
// @Tags Tests
// @Produce json
// @Param subjectId query string false "Filter by subject"
// @Param type query string false "Filter by type"
// @Param from query string false "Earliest test date (YYYY-MM-DD)"
// @Param to query string false "Latest test date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /tests [get]
func (h *TestHandler) List(c *gin.Context) {
	page, pageSize := paginationFromQuery(c)
	filter := models.TestFilter{
		SubjectID: c.Query("subjectId"),
		Search:    c.Query("search"),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if testType := c.Query("type"); testType != "" {
		t := models.TestType(testType)
		filter.Type = &t
	}
	if active := c.Query("active"); active != "" {
		v := active == "true"
		filter.Active = &v
	}
	if from := c.Query("from"); from != "" {
		if ts, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = &ts
		}
	}
	if to := c.Query("to"); to != "" {
		if ts, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = &ts
		}
	}

	tests, total, err := h.tests.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tests, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// Get godoc
// @Summary Get one test
// @Tags Tests
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Router /tests/{id} [get]
func (h *TestHandler) Get(c *gin.Context) {
	test, err := h.tests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// Create godoc
// @Summary Schedule a test
// @Tags Tests
// @Accept json
// @Produce json
// @Param payload body dto.CreateTestRequest true "Test payload"
// @Success 201 {object} response.Envelope
// @Router /tests [post]
func (h *TestHandler) Create(c *gin.Context) {
	var req dto.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	test, err := h.tests.Create(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, test)
}

// Update godoc
// @Summary Update a test
// @Tags Tests
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param payload body dto.UpdateTestRequest true "Partial update"
// @Success 200 {object} response.Envelope
// @Router /tests/{id} [put]
func (h *TestHandler) Update(c *gin.Context) {
	var req dto.UpdateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	test, err := h.tests.Update(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, test, nil)
}

// Delete godoc
// @Summary Delete a test and its results
// @Tags Tests
// @Param id path string true "Test ID"
// @Success 204
// @Router /tests/{id} [delete]
func (h *TestHandler) Delete(c *gin.Context) {
	if err := h.tests.Delete(c.Request.Context(), c.Param("id"), claimsFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SubmitMarks godoc
// @Summary Submit marks for a test
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Test ID"
// @Param payload body dto.SubmitMarksRequest true "Batch of mark entries"
// @Success 200 {object} response.Envelope
// @Router /tests/{id}/marks [post]
func (h *TestHandler) SubmitMarks(c *gin.Context) {
	var req dto.SubmitMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	resp, err := h.results.SubmitMarks(c.Request.Context(), c.Param("id"), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}

// Results godoc
// @Summary List results of a test with statistics
// @Tags Results
// @Produce json
// @Param id path string true "Test ID"
// @Success 200 {object} response.Envelope
// @Router /tests/{id}/results [get]
func (h *TestHandler) Results(c *gin.Context) {
	page, pageSize := paginationFromQuery(c)
	filter := models.ResultFilter{
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	if passed := c.Query("passed"); passed != "" {
		v := passed == "true"
		filter.Passed = &v
	}

	sheet, total, err := h.results.GetTestResults(c.Request.Context(), c.Param("id"), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}

// Export godoc
// @Summary Export the result sheet of a test
// @Tags Results
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Test ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /tests/{id}/results/export [get]
func (h *TestHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.Query("format"))
	payload, contentType, err := h.results.ExportTestResults(c.Request.Context(), c.Param("id"), format, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if format == service.ExportPDF {
		ext = "pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=results-%s.%s", c.Param("id"), ext))
	c.Data(http.StatusOK, contentType, payload)
}
