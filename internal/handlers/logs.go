package handlers

import (
	"net/http"

	"heysheet/internal/services"

	"github.com/gin-gonic/gin"
)

// LogsHandler serves operator views: request logs and dead-lettered webhooks.
type LogsHandler struct {
	activityLogService *services.ActivityLogService
	deliveryLogService *services.DeliveryLogService
}

func NewLogsHandler(activityLogService *services.ActivityLogService, deliveryLogService *services.DeliveryLogService) *LogsHandler {
	return &LogsHandler{
		activityLogService: activityLogService,
		deliveryLogService: deliveryLogService,
	}
}

// GetLogs GET /api/v1/logs?method=POST&path=/submit&limit=100&offset=0
func (h *LogsHandler) GetLogs(c *gin.Context) {
	limit, offset := pagination(c, 100, 1000)
	logs, total, err := h.activityLogService.GetLogs(c.Query("method"), c.Query("path"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":   logs,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetDeadLetters GET /api/v1/webhooks/dead-letters
func (h *LogsHandler) GetDeadLetters(c *gin.Context) {
	limit, offset := pagination(c, 100, 1000)
	deliveries, total, err := h.deliveryLogService.ListDeadLetters(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deliveries": deliveries,
		"total":      total,
	})
}
