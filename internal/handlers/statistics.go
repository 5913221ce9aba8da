package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"heysheet/internal/models"
	"heysheet/internal/services"

	"github.com/gin-gonic/gin"
)

// DashboardHandler serves the form owner's analytics views. The caller's
// user id comes from the gateway in X-User-ID.
type DashboardHandler struct {
	formService       *services.FormService
	submissionService *services.SubmissionService
	statisticsService *services.StatisticsService
}

func NewDashboardHandler(formService *services.FormService, submissionService *services.SubmissionService, statisticsService *services.StatisticsService) *DashboardHandler {
	return &DashboardHandler{
		formService:       formService,
		submissionService: submissionService,
		statisticsService: statisticsService,
	}
}

// ownedForm writes the error response and returns nil unless the caller owns the form.
func (h *DashboardHandler) ownedForm(c *gin.Context) *models.Form {
	userID := c.GetHeader(UserIDHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil
	}
	form, err := h.formService.GetByID(c.Request.Context(), c.Param("formId"))
	if errors.Is(err, services.ErrFormNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Form not found"})
		return nil
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load form"})
		return nil
	}
	if form.OwnerID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "Form not found"})
		return nil
	}
	return form
}

// GetFormAnalytics returns breakdowns and the daily trend for a form
// GET /api/v1/forms/:formId/analytics?days=30
func (h *DashboardHandler) GetFormAnalytics(c *gin.Context) {
	form := h.ownedForm(c)
	if form == nil {
		return
	}

	days := 30
	if d := c.Query("days"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil && parsed > 0 && parsed <= 365 {
			days = parsed
		}
	}

	result, err := h.statisticsService.FormAnalytics(c.Request.Context(), form.ID, days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"days":             days,
		"submission_count": form.SubmissionCount,
		"analytics":        result,
	})
}

// ListSubmissions GET /api/v1/forms/:formId/submissions?limit=50&offset=0
func (h *DashboardHandler) ListSubmissions(c *gin.Context) {
	form := h.ownedForm(c)
	if form == nil {
		return
	}

	limit, offset := pagination(c, 50, 200)
	submissions, total, err := h.submissionService.List(c.Request.Context(), form.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"submissions": submissions,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

func pagination(c *gin.Context, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
