package models

import (
	"time"

	"gorm.io/datatypes"
)

type DeliveryStatus string

const (
	DeliveryDelivered    DeliveryStatus = "delivered"
	DeliveryDeadLettered DeliveryStatus = "dead_lettered"
)

// WebhookDelivery records the final outcome of a webhook job. Dead-lettered
// rows are the operator-visible trail for deliveries that ran out of retries.
type WebhookDelivery struct {
	ID           string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	JobID        string         `gorm:"type:varchar(36);index" json:"job_id"`
	FormID       string         `gorm:"type:varchar(36);index" json:"form_id,omitempty"`
	SubmissionID string         `gorm:"type:varchar(36);index" json:"submission_id,omitempty"`
	URL          string         `gorm:"not null" json:"url"`
	Status       DeliveryStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Attempts     int            `json:"attempts"`
	StatusCode   int            `json:"status_code"`
	StatusText   string         `json:"status_text,omitempty"`
	Payload      datatypes.JSON `json:"payload,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (WebhookDelivery) TableName() string {
	return "webhook_deliveries"
}
