package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"heysheet/internal/analytics"
	"heysheet/internal/domains"
	"heysheet/internal/models"
	"heysheet/internal/services"
	"heysheet/internal/uploads"
	"heysheet/internal/worker"

	"github.com/gin-gonic/gin"
)

type FormLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.Form, error)
	PlanLimitFor(ctx context.Context, ownerID string) (models.PlanLimit, error)
}

type SubmissionStore interface {
	HandleSubmission(ctx context.Context, req models.SubmissionRequest) (*models.SubmissionResult, error)
	Fail(ctx context.Context, id string, message string) error
}

type UploadProcessor interface {
	Process(ctx context.Context, params uploads.Params) (*uploads.Result, error)
	Discard(objectNames []string)
}

type JobQueue interface {
	Enqueue(job worker.Job) error
}

// SubmissionHandler is the public ingestion endpoint.
type SubmissionHandler struct {
	apiKeys         []string
	forms           FormLookup
	store           SubmissionStore
	uploads         UploadProcessor
	geo             analytics.GeoLocator
	jobs            JobQueue
	maxRequestBytes int64
}

type SubmissionHandlerOptions struct {
	APIKeys      []string
	MaxRequestMB int
	Geo          analytics.GeoLocator // optional
	Jobs         JobQueue             // optional
}

// requestOverheadMB is added to the largest plan file size for scalar
// fields and multipart framing.
const requestOverheadMB = 10

// requestLimitBytes returns the body cap. A non-positive maxMB derives it
// from the largest plan limit so no plan's files are refused as too large.
func requestLimitBytes(maxMB int) int64 {
	if maxMB <= 0 {
		maxMB = models.LargestPlanFileSizeMB() + requestOverheadMB
	}
	return int64(maxMB) << 20
}

func NewSubmissionHandler(forms FormLookup, store SubmissionStore, processor UploadProcessor, opts SubmissionHandlerOptions) *SubmissionHandler {
	maxBytes := requestLimitBytes(opts.MaxRequestMB)
	if opts.MaxRequestMB > 0 && opts.MaxRequestMB < models.LargestPlanFileSizeMB() {
		log.Printf("Warning: MAX_REQUEST_MB=%d is below the largest plan file limit (%dMB)", opts.MaxRequestMB, models.LargestPlanFileSizeMB())
	}
	return &SubmissionHandler{
		apiKeys:         opts.APIKeys,
		forms:           forms,
		store:           store,
		uploads:         processor,
		geo:             opts.Geo,
		jobs:            opts.Jobs,
		maxRequestBytes: maxBytes,
	}
}

func reject(c *gin.Context, status int, message string) {
	c.JSON(status, models.SubmissionResult{Success: false, Message: message})
}

// Submit accepts a form submission.
// POST /api/v1/submit/:slug
func (h *SubmissionHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	if !validKey(c.GetHeader(APIKeyHeader), h.apiKeys) {
		reject(c, http.StatusUnauthorized, "Invalid or missing API key")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes)
	entries, err := parseEntries(c.Request)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reject(c, http.StatusRequestEntityTooLarge, "Request body is too large")
			return
		}
		reject(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	slug := c.Param("slug")
	prepared, ok := h.prepareFormData(c, slug, entries)
	if !ok {
		return
	}

	info := models.ClientInfo{
		IPAddress:      c.ClientIP(),
		UserAgent:      c.Request.UserAgent(),
		IsMobile:       c.GetHeader("sec-ch-ua-mobile") == "?1",
		Referer:        c.GetHeader("Referer"),
		AcceptLanguage: c.GetHeader("Accept-Language"),
	}
	if h.geo != nil {
		geo, err := h.geo.Lookup(ctx, info.IPAddress)
		if err != nil {
			log.Printf("submission: geolocation lookup for %s failed: %v", info.IPAddress, err)
		} else {
			info.Geo = geo
		}
	}
	record := analytics.CollectAnalytics(info)

	result, err := h.store.HandleSubmission(ctx, models.SubmissionRequest{
		EndpointSlug: slug,
		FormData:     prepared.Data,
		ClientInfo:   record,
	})
	if err != nil {
		log.Printf("submission: failed to persist submission for %q: %v", slug, err)
		h.uploads.Discard(prepared.Objects)
		reject(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !result.Success {
		h.uploads.Discard(prepared.Objects)
	}

	if result.Success && h.jobs != nil {
		if err := h.jobs.Enqueue(worker.Job{SubmissionID: result.SubmissionID}); err != nil {
			log.Printf("submission: failed to queue post-processing for %s: %v", result.SubmissionID, err)
			if err := h.store.Fail(ctx, result.SubmissionID, "post-processing not queued: "+err.Error()); err != nil {
				log.Printf("submission: failed to mark %s failed: %v", result.SubmissionID, err)
			}
		}
	}

	c.JSON(http.StatusOK, result)
}

// scalarsOnly keeps the non-file entries for submissions that persistence
// will reject.
func scalarsOnly(entries []uploads.Entry) *uploads.Result {
	data := make(map[string]any, len(entries))
	for _, e := range entries {
		if e.File == nil {
			data[e.Name] = e.Value
		}
	}
	return &uploads.Result{Data: data}
}

// prepareFormData runs the form-specific checks and file uploads. It writes
// the response and returns false when the request must stop.
func (h *SubmissionHandler) prepareFormData(c *gin.Context, slug string, entries []uploads.Entry) (*uploads.Result, bool) {
	ctx := c.Request.Context()

	form, err := h.forms.GetBySlug(ctx, slug)
	if errors.Is(err, services.ErrFormNotFound) {
		// Persistence owns the "Form not found" answer.
		return scalarsOnly(entries), true
	}
	if err != nil {
		log.Printf("submission: failed to load form %q: %v", slug, err)
		reject(c, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}

	if rejection := domains.ValidateDomains(form.AllowedDomains, c.Request.Header); rejection != nil {
		reject(c, rejection.Status, rejection.Message)
		return nil, false
	}
	if !form.IsActive {
		// Persistence rejects inactive forms; nothing is uploaded for them.
		return scalarsOnly(entries), true
	}

	fields, err := models.DecodeFields(form.Fields)
	if err != nil {
		log.Printf("submission: form %s has an invalid field schema, skipping field validation: %v", form.ID, err)
	} else if err := models.ValidateValues(fields, entryValues(entries)); err != nil {
		var fieldErr *models.FieldError
		if errors.As(err, &fieldErr) {
			reject(c, http.StatusBadRequest, fieldErr.Message)
			return nil, false
		}
		reject(c, http.StatusBadRequest, "Invalid submission")
		return nil, false
	}

	limit, err := h.forms.PlanLimitFor(ctx, form.OwnerID)
	if err != nil {
		log.Printf("submission: failed to load plan limit for %s: %v", form.OwnerID, err)
		reject(c, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}

	prepared, err := h.uploads.Process(ctx, uploads.Params{
		Entries:   entries,
		Policy:    form.UploadPolicy(),
		PlanLimit: limit,
		FormID:    form.ID,
	})
	if err != nil {
		var vErr *uploads.ValidationError
		if errors.As(err, &vErr) {
			reject(c, http.StatusBadRequest, vErr.Message)
			return nil, false
		}
		log.Printf("submission: file upload for form %s failed: %v", form.ID, err)
		reject(c, http.StatusInternalServerError, "Internal server error")
		return nil, false
	}
	return prepared, true
}
