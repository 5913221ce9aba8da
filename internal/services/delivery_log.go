package services

import (
	"context"
	"fmt"
	"log"

	"heysheet/internal/models"
	"heysheet/internal/webhook"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeliveryLogService stores final webhook outcomes. Dead-lettered rows are
// what operators review for deliveries that ran out of retries.
type DeliveryLogService struct {
	db    *gorm.DB
	stats *StatisticsService
}

func NewDeliveryLogService(db *gorm.DB, stats *StatisticsService) *DeliveryLogService {
	return &DeliveryLogService{db: db, stats: stats}
}

func (s *DeliveryLogService) RecordDelivered(ctx context.Context, job webhook.Job, result *webhook.DeliveryResult) error {
	return s.record(ctx, job, result, models.DeliveryDelivered, models.EventWebhookDelivered)
}

func (s *DeliveryLogService) RecordDeadLetter(ctx context.Context, job webhook.Job, result *webhook.DeliveryResult) error {
	return s.record(ctx, job, result, models.DeliveryDeadLettered, models.EventWebhookDeadLettered)
}

func (s *DeliveryLogService) record(ctx context.Context, job webhook.Job, result *webhook.DeliveryResult, status models.DeliveryStatus, event models.EventType) error {
	delivery := &models.WebhookDelivery{
		ID:           uuid.New().String(),
		JobID:        job.ID,
		FormID:       job.FormID,
		SubmissionID: job.SubmissionID,
		URL:          job.WebhookURL,
		Status:       status,
		Attempts:     job.Retries + 1,
		StatusCode:   result.Status,
		StatusText:   result.StatusText,
		Payload:      datatypes.JSON(job.Payload),
	}
	if err := s.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return fmt.Errorf("failed to store webhook delivery: %w", err)
	}
	if s.stats != nil {
		if err := s.stats.Record(ctx, event, job.FormID); err != nil {
			log.Printf("webhook: failed to record statistics: %v", err)
		}
	}
	return nil
}

// ListDeadLetters returns dead-lettered deliveries, newest first.
func (s *DeliveryLogService) ListDeadLetters(ctx context.Context, limit, offset int) ([]models.WebhookDelivery, int64, error) {
	var deliveries []models.WebhookDelivery
	var total int64

	query := s.db.WithContext(ctx).Model(&models.WebhookDelivery{}).Where("status = ?", models.DeliveryDeadLettered)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Order("created_at DESC").Find(&deliveries).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch dead letters: %w", err)
	}
	return deliveries, total, nil
}

var _ webhook.Recorder = (*DeliveryLogService)(nil)
