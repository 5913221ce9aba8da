package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"heysheet/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionService is the persistence boundary for submissions.
type SubmissionService struct {
	db    *gorm.DB
	stats *StatisticsService
}

func NewSubmissionService(db *gorm.DB, stats *StatisticsService) *SubmissionService {
	return &SubmissionService{db: db, stats: stats}
}

// HandleSubmission atomically resolves the form by slug and stores the
// submission. A rejected submission is reported through the result, not the
// error; the error is reserved for storage failures.
func (s *SubmissionService) HandleSubmission(ctx context.Context, req models.SubmissionRequest) (*models.SubmissionResult, error) {
	var result *models.SubmissionResult
	var formID string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var form models.Form
		if err := tx.Where("slug = ?", req.EndpointSlug).First(&form).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = &models.SubmissionResult{Success: false, Message: "Form not found"}
				return nil
			}
			return err
		}
		if !form.IsActive {
			result = &models.SubmissionResult{Success: false, Message: "This form is not accepting submissions"}
			return nil
		}

		data := req.FormData
		if data == nil {
			data = map[string]any{}
		}
		submission := &models.Submission{
			ID:        uuid.New().String(),
			FormID:    form.ID,
			Data:      datatypes.JSONMap(data),
			Analytics: datatypes.NewJSONType(req.ClientInfo),
			Status:    models.SubmissionPending,
		}
		if err := tx.Create(submission).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Form{}).
			Where("id = ?", form.ID).
			UpdateColumn("submission_count", gorm.Expr("submission_count + ?", 1)).Error; err != nil {
			return err
		}

		formID = form.ID
		result = &models.SubmissionResult{Success: true, SubmissionID: submission.ID}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store submission for %q: %w", req.EndpointSlug, err)
	}

	if result.Success && s.stats != nil {
		if err := s.stats.Record(ctx, models.EventSubmissionReceived, formID); err != nil {
			log.Printf("submission: failed to record statistics: %v", err)
		}
	}
	return result, nil
}

// Get loads a submission with its form and the form's active webhooks.
func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	var submission models.Submission
	err := s.db.WithContext(ctx).
		Preload("Form").
		Preload("Form.Webhooks", "is_active = ?", true).
		Where("id = ?", id).
		First(&submission).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission %s: %w", id, err)
	}
	return &submission, nil
}

// List returns a page of a form's submissions, newest first, and the total count.
func (s *SubmissionService) List(ctx context.Context, formID string, limit, offset int) ([]models.Submission, int64, error) {
	var submissions []models.Submission
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Submission{}).Where("form_id = ?", formID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Order("created_at DESC").Find(&submissions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch submissions: %w", err)
	}
	return submissions, total, nil
}

func (s *SubmissionService) MarkProcessed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]any{
		"status":        models.SubmissionProcessed,
		"processed_at":  now,
		"error_message": "",
	})
}

func (s *SubmissionService) MarkFailed(ctx context.Context, id string, message string) error {
	now := time.Now().UTC()
	return s.update(ctx, id, map[string]any{
		"status":        models.SubmissionFailed,
		"processed_at":  now,
		"error_message": message,
	})
}

// Fail marks a submission failed and counts it as such for its form.
func (s *SubmissionService) Fail(ctx context.Context, id string, message string) error {
	if err := s.MarkFailed(ctx, id, message); err != nil {
		return err
	}
	if s.stats == nil {
		return nil
	}
	var formID string
	if err := s.db.WithContext(ctx).Model(&models.Submission{}).Where("id = ?", id).Pluck("form_id", &formID).Error; err != nil {
		log.Printf("submission: failed to load form of %s: %v", id, err)
	}
	if err := s.stats.Record(ctx, models.EventSubmissionFailed, formID); err != nil {
		log.Printf("submission: failed to record statistics: %v", err)
	}
	return nil
}

// MarkSynced records that the spreadsheet row was appended.
func (s *SubmissionService) MarkSynced(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]any{"synced_at": time.Now().UTC()})
}

// MarkNotified records that webhooks and Slack were dispatched.
func (s *SubmissionService) MarkNotified(ctx context.Context, id string) error {
	return s.update(ctx, id, map[string]any{"notified_at": time.Now().UTC()})
}

func (s *SubmissionService) SetReceiptPath(ctx context.Context, id string, objectName string) error {
	return s.update(ctx, id, map[string]any{"receipt_path": objectName})
}

func (s *SubmissionService) update(ctx context.Context, id string, columns map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.Submission{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		return fmt.Errorf("failed to update submission %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSubmissionNotFound
	}
	return nil
}
