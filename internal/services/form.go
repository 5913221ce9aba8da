package services

import (
	"context"
	"errors"
	"fmt"

	"heysheet/internal/models"

	"gorm.io/gorm"
)

var ErrFormNotFound = errors.New("form not found")

type FormService struct {
	db           *gorm.DB
	defaultLimit models.PlanLimit
}

// NewFormService uses defaultMaxFileSizeMB for owners without an account row.
func NewFormService(db *gorm.DB, defaultMaxFileSizeMB int) *FormService {
	limit := (&models.Account{Plan: models.PlanFree}).Limit()
	if defaultMaxFileSizeMB > 0 {
		limit.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	return &FormService{db: db, defaultLimit: limit}
}

// GetBySlug resolves a routing slug, including inactive forms.
func (s *FormService) GetBySlug(ctx context.Context, slug string) (*models.Form, error) {
	var form models.Form
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&form).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to load form %q: %w", slug, err)
	}
	return &form, nil
}

// GetByID loads a form with its active webhooks.
func (s *FormService) GetByID(ctx context.Context, id string) (*models.Form, error) {
	var form models.Form
	err := s.db.WithContext(ctx).
		Preload("Webhooks", "is_active = ?", true).
		Where("id = ?", id).
		First(&form).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to load form %s: %w", id, err)
	}
	return &form, nil
}

func (s *FormService) PlanLimitFor(ctx context.Context, ownerID string) (models.PlanLimit, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("id = ?", ownerID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.defaultLimit, nil
	}
	if err != nil {
		return models.PlanLimit{}, fmt.Errorf("failed to load account %s: %w", ownerID, err)
	}
	return account.Limit(), nil
}
