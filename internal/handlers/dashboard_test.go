package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"heysheet/internal/dbtest"
	"heysheet/internal/models"
	"heysheet/internal/services"
	"heysheet/internal/storage"
)

func TestDashboardAnalyticsOwnerOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	stats := services.NewStatisticsService(db)
	subs := services.NewSubmissionService(db, stats)
	forms := services.NewFormService(db, 5)
	db.Create(&models.Form{ID: "form-1", OwnerID: "owner", Name: "Contact", Slug: "contact"})

	for i := 0; i < 2; i++ {
		if _, err := subs.HandleSubmission(context.Background(), models.SubmissionRequest{
			EndpointSlug: "contact",
			FormData:     map[string]any{"n": i},
			ClientInfo:   models.AnalyticsRecord{Referrer: "direct", DeviceType: models.DeviceDesktop, Browser: models.BrowserFirefox},
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	h := NewDashboardHandler(forms, subs, stats)
	router := gin.New()
	router.GET("/api/v1/forms/:formId/analytics", h.GetFormAnalytics)
	router.GET("/api/v1/forms/:formId/submissions", h.ListSubmissions)

	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/v1/forms/form-1/analytics", nil, nil), http.StatusUnauthorized)
	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/v1/forms/form-1/analytics", nil, map[string]string{UserIDHeader: "intruder"}), http.StatusNotFound)
	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/v1/forms/missing/analytics", nil, map[string]string{UserIDHeader: "owner"}), http.StatusNotFound)

	rec := doJSONRequest(t, router, http.MethodGet, "/api/v1/forms/form-1/analytics?days=7", nil, map[string]string{UserIDHeader: "owner"})
	assertStatus(t, rec, http.StatusOK)
	var body struct {
		Days            int                  `json:"days"`
		SubmissionCount int64                `json:"submission_count"`
		Analytics       models.FormAnalytics `json:"analytics"`
	}
	decodeJSON(t, rec.Body.Bytes(), &body)
	if body.Days != 7 || body.SubmissionCount != 2 || body.Analytics.Total != 2 || body.Analytics.Browsers["Firefox"] != 2 {
		t.Fatalf("unexpected analytics %+v", body)
	}

	rec = doJSONRequest(t, router, http.MethodGet, "/api/v1/forms/form-1/submissions?limit=1", nil, map[string]string{UserIDHeader: "owner"})
	assertStatus(t, rec, http.StatusOK)
	var page struct {
		Submissions []models.Submission `json:"submissions"`
		Total       int64               `json:"total"`
	}
	decodeJSON(t, rec.Body.Bytes(), &page)
	if page.Total != 2 || len(page.Submissions) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestLogsRequireAdminKeyAndRedactSecrets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := dbtest.Open(t)
	activity := services.NewActivityLogService(db)
	h := NewLogsHandler(activity, services.NewDeliveryLogService(db, nil))

	router := gin.New()
	router.Use(activity.LoggingMiddleware())
	router.POST("/echo", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	admin := router.Group("/api/v1", RequireAdminKey("admin-key"))
	admin.GET("/logs", h.GetLogs)
	admin.GET("/webhooks/dead-letters", h.GetDeadLetters)

	doJSONRequest(t, router, http.MethodPost, "/echo", map[string]string{"webhookUrl": "http://x", "secret": "s3cret"}, nil)
	activity.Flush()

	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/v1/logs", nil, nil), http.StatusUnauthorized)
	rec := doJSONRequest(t, router, http.MethodGet, "/api/v1/logs?method=post", nil, map[string]string{AdminKeyHeader: "admin-key"})
	assertStatus(t, rec, http.StatusOK)

	var body struct {
		Logs  []models.ActivityLog `json:"logs"`
		Total int64                `json:"total"`
	}
	decodeJSON(t, rec.Body.Bytes(), &body)
	if body.Total != 1 || body.Logs[0].Path != "/echo" {
		t.Fatalf("unexpected logs %+v", body)
	}
	if strings.Contains(body.Logs[0].RequestBody, "s3cret") || !strings.Contains(body.Logs[0].RequestBody, "[redacted]") {
		t.Fatalf("secret not redacted: %q", body.Logs[0].RequestBody)
	}

	assertStatus(t, doJSONRequest(t, router, http.MethodGet, "/api/v1/webhooks/dead-letters", nil, map[string]string{AdminKeyHeader: "admin-key"}), http.StatusOK)
}

func TestServeSignedFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	local, err := storage.NewLocalStorageClient(t.TempDir(), "http://localhost/files", "secret")
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	objectName := "form-submissions/form-1/receipts/sub-1.pdf"
	if _, err := local.UploadFile(context.Background(), strings.NewReader("%PDF"), objectName, "application/pdf"); err != nil {
		t.Fatalf("upload: %v", err)
	}

	router := gin.New()
	router.GET("/files/*filepath", NewFilesHandler(local).ServeFile)

	signed, _ := local.GetSignedURL(objectName, time.Minute)
	u, _ := url.Parse(signed)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+objectName+"?"+u.RawQuery, nil))
	assertStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "%PDF" || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected response %q %q", rec.Body.String(), rec.Header().Get("Content-Type"))
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+objectName+"?expires=9999999999&signature=bad", nil))
	assertStatus(t, rec, http.StatusForbidden)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files/"+objectName, nil))
	assertStatus(t, rec, http.StatusForbidden)
}
