package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"heysheet/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type StatisticsService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStatisticsService(db *gorm.DB) *StatisticsService {
	return &StatisticsService{db: db, now: time.Now}
}

func (s *StatisticsService) today() time.Time {
	return s.now().UTC().Truncate(24 * time.Hour)
}

// IncrementStat adds one to today's counter for eventType and formID,
// creating the row on first use.
func (s *StatisticsService) IncrementStat(ctx context.Context, eventType models.EventType, formID string) error {
	today := s.today()
	db := s.db.WithContext(ctx)

	var stat models.Statistics
	err := scopeForm(db.Where("event_type = ? AND date = ?", eventType, today), formID).First(&stat).Error
	if err == nil {
		return db.Model(&stat).UpdateColumn("count", gorm.Expr("count + ?", 1)).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to load statistics: %w", err)
	}

	stat = models.Statistics{
		ID:        uuid.New().String(),
		EventType: eventType,
		FormID:    formID,
		Date:      today,
		Count:     1,
	}
	if err := db.Create(&stat).Error; err != nil {
		// Another request created today's row first.
		return scopeForm(db.Model(&models.Statistics{}).Where("event_type = ? AND date = ?", eventType, today), formID).
			UpdateColumn("count", gorm.Expr("count + ?", 1)).Error
	}
	return nil
}

// Record increments the global counter and, when formID is set, the form's counter.
func (s *StatisticsService) Record(ctx context.Context, eventType models.EventType, formID string) error {
	if err := s.IncrementStat(ctx, eventType, ""); err != nil {
		log.Printf("statistics: failed to record global %s: %v", eventType, err)
	}
	if formID == "" {
		return nil
	}
	if err := s.IncrementStat(ctx, eventType, formID); err != nil {
		return fmt.Errorf("failed to record %s for form %s: %w", eventType, formID, err)
	}
	return nil
}

// GetTimeSeries returns one point per day for the last days days, oldest first,
// with zero-count days filled in.
func (s *StatisticsService) GetTimeSeries(ctx context.Context, eventType models.EventType, days int, formID string) ([]models.TimeSeriesPoint, error) {
	if days <= 0 {
		days = 30
	}
	end := s.today()
	start := end.AddDate(0, 0, -(days - 1))

	var rows []models.Statistics
	err := scopeForm(s.db.WithContext(ctx).Where("event_type = ? AND date >= ?", eventType, start), formID).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get time series: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Date.UTC().Format("2006-01-02")] += r.Count
	}

	points := make([]models.TimeSeriesPoint, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		points = append(points, models.TimeSeriesPoint{Date: key, Count: counts[key]})
	}
	return points, nil
}

// FormAnalytics aggregates the analytics snapshots of a form's submissions
// from the last days days.
func (s *StatisticsService) FormAnalytics(ctx context.Context, formID string, days int) (*models.FormAnalytics, error) {
	if days <= 0 {
		days = 30
	}
	since := s.today().AddDate(0, 0, -(days - 1))

	var submissions []models.Submission
	err := s.db.WithContext(ctx).
		Select("id", "status", "analytics").
		Where("form_id = ? AND created_at >= ?", formID, since).
		Find(&submissions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions for analytics: %w", err)
	}

	result := &models.FormAnalytics{
		FormID:    formID,
		ByStatus:  map[string]int64{},
		Devices:   map[string]int64{},
		Browsers:  map[string]int64{},
		Countries: map[string]int64{},
		Referrers: map[string]int64{},
	}
	for _, sub := range submissions {
		result.Total++
		result.ByStatus[string(sub.Status)]++

		record := sub.Analytics.Data()
		if record.DeviceType != "" {
			result.Devices[string(record.DeviceType)]++
		}
		if record.Browser != "" {
			result.Browsers[string(record.Browser)]++
		}
		country := "unknown"
		if record.Country != nil && *record.Country != "" {
			country = *record.Country
		}
		result.Countries[country]++
		if record.Referrer != "" {
			result.Referrers[record.Referrer]++
		}
	}

	trend, err := s.GetTimeSeries(ctx, models.EventSubmissionReceived, days, formID)
	if err != nil {
		return nil, err
	}
	result.Trend = trend
	return result, nil
}

// scopeForm limits a statistics query to one form, or to the global rows.
func scopeForm(query *gorm.DB, formID string) *gorm.DB {
	if formID != "" {
		return query.Where("form_id = ?", formID)
	}
	return query.Where("form_id IS NULL OR form_id = ''")
}
