package models

import (
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionProcessed SubmissionStatus = "processed"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission is one accepted form response. Rows are never deleted here.
type Submission struct {
	ID           string                               `gorm:"type:varchar(36);primaryKey" json:"id"`
	FormID       string                               `gorm:"type:varchar(36);not null;index" json:"form_id"`
	Data         datatypes.JSONMap                    `json:"data"`
	Analytics    datatypes.JSONType[AnalyticsRecord] `json:"analytics"`
	Status       SubmissionStatus                     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ErrorMessage string                               `json:"error_message,omitempty"`
	ReceiptPath  string                               `json:"receipt_path,omitempty"`
	SyncedAt     *time.Time                           `json:"synced_at,omitempty"`   // spreadsheet row appended
	NotifiedAt   *time.Time                           `json:"notified_at,omitempty"` // webhooks and Slack dispatched
	CreatedAt    time.Time                            `gorm:"index" json:"created_at"`
	ProcessedAt  *time.Time                           `json:"processed_at,omitempty"`
	UpdatedAt    time.Time                            `json:"updated_at"`

	Form *Form `gorm:"foreignKey:FormID" json:"-"`
}

func (Submission) TableName() string {
	return "submissions"
}

// SubmissionRequest is the input of the atomic "handle submission" operation.
type SubmissionRequest struct {
	EndpointSlug string          `json:"endpoint_slug"`
	FormData     map[string]any  `json:"form_data"`
	ClientInfo   AnalyticsRecord `json:"client_info"`
}

// SubmissionResult is returned verbatim to the submitting client.
type SubmissionResult struct {
	Success      bool   `json:"success"`
	SubmissionID string `json:"submission_id,omitempty"`
	Message      string `json:"message,omitempty"`
}
