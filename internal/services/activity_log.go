package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"heysheet/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxLoggedBody = 10000

// sanitizeUTF8 ensures the string is valid UTF-8, replacing invalid bytes
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "�")
}

type ActivityLogService struct {
	db      *gorm.DB
	pending sync.WaitGroup
}

func NewActivityLogService(db *gorm.DB) *ActivityLogService {
	return &ActivityLogService{db: db}
}

func (s *ActivityLogService) LogRequest(c *gin.Context, statusCode int, responseTime time.Duration) {
	clientIP := c.ClientIP()
	if clientIP == "" {
		clientIP = c.Request.RemoteAddr
	}

	queryParams := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			queryParams[key] = values[0]
		}
	}
	queryParamsJSON, _ := json.Marshal(queryParams)

	var requestBody string
	if body, exists := c.Get("request_body"); exists {
		if bodyStr, ok := body.(string); ok {
			requestBody = bodyStr
		}
	}

	activityLog := &models.ActivityLog{
		ID:           uuid.New().String(),
		Method:       c.Request.Method,
		Path:         c.Request.URL.Path,
		UserAgent:    c.Request.UserAgent(),
		IPAddress:    clientIP,
		RequestBody:  sanitizeUTF8(requestBody),
		QueryParams:  string(queryParamsJSON),
		StatusCode:   statusCode,
		ResponseTime: responseTime.Milliseconds(),
		UserID:       c.GetHeader("X-User-ID"),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	// Saved in the background so logging never delays the response.
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.db.Create(activityLog).Error; err != nil {
			log.Printf("Failed to save activity log: %v", err)
		}
	}()
}

// Flush waits for background writes to finish.
func (s *ActivityLogService) Flush() {
	s.pending.Wait()
}

// GetLogs returns logs newest first. method and path filter when non-empty.
func (s *ActivityLogService) GetLogs(method, path string, limit, offset int) ([]models.ActivityLog, int64, error) {
	var logs []models.ActivityLog
	var total int64

	query := s.db.Model(&models.ActivityLog{})
	if method != "" {
		query = query.Where("method = ?", strings.ToUpper(method))
	}
	if path != "" {
		query = query.Where("path LIKE ?", "%"+path+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count logs: %w", err)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Order("created_at DESC").Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch logs: %w", err)
	}
	return logs, total, nil
}

// LoggingMiddleware records every request. Multipart bodies are summarised
// instead of stored; request headers, including the API key, are never stored.
func (s *ActivityLogService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if c.Request.Method == "POST" && c.Request.Body != nil {
			contentType := c.GetHeader("Content-Type")
			if strings.HasPrefix(contentType, "multipart/") {
				c.Set("request_body", fmt.Sprintf("[multipart body: %d bytes]", c.Request.ContentLength))
			} else if bodyBytes, err := io.ReadAll(c.Request.Body); err == nil {
				c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
				if len(bodyBytes) > maxLoggedBody {
					c.Set("request_body", fmt.Sprintf("[Large body: %d bytes] %s...", len(bodyBytes), string(bodyBytes[:100])))
				} else if len(bodyBytes) > 0 {
					c.Set("request_body", redactSecrets(bodyBytes))
				}
			}
		}

		c.Next()

		s.LogRequest(c, c.Writer.Status(), time.Since(start))
	}
}

var redactedKeys = []string{"secret", "password", "token"}

// redactSecrets masks credential-like top-level keys of a JSON object body.
func redactSecrets(body []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return string(body)
	}
	changed := false
	for _, key := range redactedKeys {
		if _, ok := obj[key]; ok {
			obj[key] = json.RawMessage(`"[redacted]"`)
			changed = true
		}
	}
	if !changed {
		return string(body)
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return ""
	}
	return string(out)
}
