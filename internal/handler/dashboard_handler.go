package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusrec/records-api/internal/middleware"
	"github.com/campusrec/records-api/internal/models"
	"github.com/campusrec/records-api/internal/service"
	"github.com/campusrec/records-api/pkg/response"
)

// DashboardHandler exposes performance dashboards.
type DashboardHandler struct {
	performance *service.PerformanceService
	results     *service.ResultService
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(performance *service.PerformanceService, results *service.ResultService) *DashboardHandler {
	return &DashboardHandler{performance: performance, results: results}
}

// Student godoc
// @Summary Per-student performance dashboard
// @Tags Dashboard
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /dashboard/student/{id} [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	resp, cached, err := h.performance.StudentDashboard(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, resp, nil, middleware.ExtractMeta(c))
}

// Class godoc
// @Summary Cohort-wide performance dashboard
// @Tags Dashboard
// @Produce json
// @Param subjectId query string false "Scope to one subject"
// @Success 200 {object} response.Envelope
// @Router /dashboard/class [get]
func (h *DashboardHandler) Class(c *gin.Context) {
	resp, cached, err := h.performance.ClassDashboard(c.Request.Context(), c.Query("subjectId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, resp, nil, middleware.ExtractMeta(c))
}

// Admin godoc
// @Summary System-wide counts and recent activity
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	resp, cached, err := h.performance.AdminDashboard(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, resp, nil, middleware.ExtractMeta(c))
}

// StudentResults godoc
// @Summary List one student's results
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/results [get]
func (h *DashboardHandler) StudentResults(c *gin.Context) {
	page, pageSize := paginationFromQuery(c)
	filter := models.ResultFilter{
		SubjectID: c.Query("subjectId"),
		Page:      page,
		PageSize:  pageSize,
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}

	results, total, err := h.results.ListStudentResults(c.Request.Context(), c.Param("id"), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total})
}
