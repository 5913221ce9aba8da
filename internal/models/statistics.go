package models

import (
	"time"
)

// EventType represents the type of statistical event
type EventType string

const (
	EventSubmissionReceived  EventType = "submission_received"
	EventSubmissionProcessed EventType = "submission_processed"
	EventSubmissionFailed    EventType = "submission_failed"
	EventWebhookDelivered    EventType = "webhook_delivered"
	EventWebhookDeadLettered EventType = "webhook_dead_lettered"
)

// Statistics tracks counts per form per day. An empty FormID is the global row.
type Statistics struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	EventType EventType `gorm:"type:varchar(50);not null;index" json:"event_type"`
	FormID    string    `gorm:"type:varchar(36);index" json:"form_id,omitempty"`
	Date      time.Time `gorm:"not null;index" json:"date"` // Day-level granularity (UTC midnight)
	Count     int64     `gorm:"not null;default:0" json:"count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Statistics) TableName() string {
	return "statistics"
}

// TimeSeriesPoint represents a single point in time-based statistics
type TimeSeriesPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// FormAnalytics is the dashboard view of a single form.
type FormAnalytics struct {
	FormID    string            `json:"form_id"`
	Total     int64             `json:"total"`
	ByStatus  map[string]int64  `json:"by_status"`
	Devices   map[string]int64  `json:"devices"`
	Browsers  map[string]int64  `json:"browsers"`
	Countries map[string]int64  `json:"countries"`
	Referrers map[string]int64  `json:"referrers"`
	Trend     []TimeSeriesPoint `json:"trend"`
}
