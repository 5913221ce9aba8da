package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"heysheet/internal/models"
	"heysheet/internal/webhook"
	"heysheet/internal/worker"

	"github.com/google/uuid"
)

type SheetAppender interface {
	AppendRow(ctx context.Context, spreadsheetID, sheetName string, values []any) error
}

type ReceiptRenderer interface {
	Render(ctx context.Context, form *models.Form, submission *models.Submission) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, webhookURL, text string) error
}

type WebhookSender interface {
	Attempt(ctx context.Context, job webhook.Job) (*webhook.DeliveryResult, error)
}

// PostProcessDeps are the optional downstream integrations. A nil field
// disables that integration.
type PostProcessDeps struct {
	Sheets   SheetAppender
	Receipts ReceiptRenderer
	Slack    Notifier
	Webhooks WebhookSender
}

// PostProcessService performs the downstream delivery of an accepted
// submission. It runs on the worker pool, after the caller has been answered.
type PostProcessService struct {
	submissions *SubmissionService
	stats       *StatisticsService
	deps        PostProcessDeps
}

func NewPostProcessService(submissions *SubmissionService, stats *StatisticsService, deps PostProcessDeps) *PostProcessService {
	return &PostProcessService{submissions: submissions, stats: stats, deps: deps}
}

// Handle is the worker.Handler for post-processing jobs.
func (s *PostProcessService) Handle(ctx context.Context, job worker.Job) error {
	return s.Process(ctx, job.SubmissionID)
}

// Exhausted marks a submission failed once its job ran out of attempts.
func (s *PostProcessService) Exhausted(job worker.Job, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.submissions.Fail(ctx, job.SubmissionID, cause.Error()); err != nil {
		log.Printf("postprocess: failed to mark submission %s failed: %v", job.SubmissionID, err)
	}
}

// Process returns an error only for failures worth retrying. Sheet sync is
// the only such integration; the others are logged and skipped. Each step
// that reaches an external system is recorded on the submission, so a retried
// job resumes after the last recorded step.
func (s *PostProcessService) Process(ctx context.Context, submissionID string) error {
	sub, err := s.submissions.Get(ctx, submissionID)
	if errors.Is(err, ErrSubmissionNotFound) {
		log.Printf("postprocess: submission %s no longer exists, skipping", submissionID)
		return nil
	}
	if err != nil {
		return err
	}
	if sub.Status == models.SubmissionProcessed {
		return nil
	}
	form := sub.Form
	if form == nil {
		return fmt.Errorf("submission %s has no form", submissionID)
	}

	if form.SpreadsheetID != "" && sub.SyncedAt == nil {
		if s.deps.Sheets == nil {
			log.Printf("postprocess: form %s has a spreadsheet but sheet sync is not configured", form.ID)
		} else {
			if err := s.deps.Sheets.AppendRow(ctx, form.SpreadsheetID, form.SheetName, sheetRow(form, sub)); err != nil {
				return fmt.Errorf("sheet sync: %w", err)
			}
			if err := s.submissions.MarkSynced(ctx, sub.ID); err != nil {
				return fmt.Errorf("record sheet sync: %w", err)
			}
		}
	}

	if form.PDFReceipts && s.deps.Receipts != nil && sub.ReceiptPath == "" {
		objectName, err := s.deps.Receipts.Render(ctx, form, sub)
		if err != nil {
			log.Printf("postprocess: receipt for submission %s failed: %v", sub.ID, err)
		} else if err := s.submissions.SetReceiptPath(ctx, sub.ID, objectName); err != nil {
			log.Printf("postprocess: failed to save receipt path for %s: %v", sub.ID, err)
		}
	}

	if sub.NotifiedAt == nil {
		s.dispatchWebhooks(ctx, form, sub)

		if form.SlackWebhookURL != "" && s.deps.Slack != nil {
			if err := s.deps.Slack.Notify(ctx, form.SlackWebhookURL, slackMessage(form, sub)); err != nil {
				log.Printf("postprocess: slack notification for %s failed: %v", sub.ID, err)
			}
		}
		if err := s.submissions.MarkNotified(ctx, sub.ID); err != nil {
			return fmt.Errorf("record notifications: %w", err)
		}
	}

	if err := s.submissions.MarkProcessed(ctx, sub.ID); err != nil {
		return err
	}
	if s.stats != nil {
		if err := s.stats.Record(ctx, models.EventSubmissionProcessed, form.ID); err != nil {
			log.Printf("postprocess: failed to record statistics: %v", err)
		}
	}
	return nil
}

// dispatchWebhooks makes the first attempt for each webhook; failed attempts
// continue on the retry queue.
func (s *PostProcessService) dispatchWebhooks(ctx context.Context, form *models.Form, sub *models.Submission) {
	if s.deps.Webhooks == nil || len(form.Webhooks) == 0 {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event":         "submission.created",
		"form_id":       form.ID,
		"form_name":     form.Name,
		"submission_id": sub.ID,
		"data":          sub.Data,
		"analytics":     sub.Analytics.Data(),
		"created_at":    sub.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("postprocess: failed to encode webhook payload for %s: %v", sub.ID, err)
		return
	}

	for _, hook := range form.Webhooks {
		if !hook.IsActive {
			continue
		}
		job := webhook.Job{
			ID:           deliveryJobID(sub.ID, hook.ID),
			FormID:       form.ID,
			SubmissionID: sub.ID,
			WebhookURL:   hook.URL,
			Payload:      payload,
			Secret:       hook.Secret,
		}
		if _, err := s.deps.Webhooks.Attempt(ctx, job); err != nil {
			log.Printf("postprocess: webhook %s for form %s rejected: %v", hook.ID, form.ID, err)
		}
	}
}

// deliveryJobID is stable per submission and webhook so receivers can
// deduplicate on it.
func deliveryJobID(submissionID, webhookID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(submissionID+"/"+webhookID)).String()
}

func sheetRow(form *models.Form, sub *models.Submission) []any {
	columns, _ := submissionColumns(form, sub.Data)
	row := make([]any, 0, len(columns)+2)
	row = append(row, sub.CreatedAt.UTC().Format(time.RFC3339), sub.ID)
	for _, key := range columns {
		row = append(row, cellValue(sub.Data[key]))
	}
	return row
}

func slackMessage(form *models.Form, sub *models.Submission) string {
	columns, labels := submissionColumns(form, sub.Data)
	var b strings.Builder
	fmt.Fprintf(&b, "New submission for *%s*", form.Name)
	for _, key := range columns {
		if v := cellValue(sub.Data[key]); v != "" {
			fmt.Fprintf(&b, "\n• %s: %s", labels[key], v)
		}
	}
	return b.String()
}

func cellValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, cellValue(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		raw, _ := json.Marshal(val)
		return string(raw)
	default:
		return fmt.Sprint(val)
	}
}
