package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Form is a published form addressed by its routing slug.
type Form struct {
	ID       string `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID  string `gorm:"type:varchar(191);not null;index" json:"owner_id"`
	Name     string `gorm:"not null" json:"name"`
	Slug     string `gorm:"type:varchar(191);not null;uniqueIndex" json:"slug"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	// Origins allowed to post to the public endpoint. Empty means unrestricted.
	AllowedDomains datatypes.JSONSlice[string] `json:"allowed_domains"`

	UploadsEnabled   bool                        `gorm:"default:false" json:"uploads_enabled"`
	MaxFiles         int                         `gorm:"default:5" json:"max_files"` // <= 0 means no count limit
	AllowedFileTypes datatypes.JSONSlice[string] `json:"allowed_file_types"`

	Fields datatypes.JSON `json:"fields"` // JSON array decoded by DecodeFields

	// Integrations
	SpreadsheetID   string `gorm:"type:varchar(191)" json:"spreadsheet_id,omitempty"`
	SheetName       string `json:"sheet_name,omitempty"`
	SlackWebhookURL string `json:"-"`
	PDFReceipts     bool   `gorm:"default:false" json:"pdf_receipts"`

	SubmissionCount int64 `gorm:"not null;default:0" json:"submission_count"`

	Webhooks []Webhook `gorm:"foreignKey:FormID" json:"webhooks,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Form) TableName() string {
	return "forms"
}

// UploadPolicy returns the per-form file upload configuration.
func (f *Form) UploadPolicy() UploadPolicy {
	return UploadPolicy{
		Enabled:          f.UploadsEnabled,
		MaxFiles:         f.MaxFiles,
		AllowedFileTypes: []string(f.AllowedFileTypes),
	}
}

// UploadPolicy gates whether and which files may be attached to a submission.
type UploadPolicy struct {
	Enabled          bool     `json:"enabled"`
	MaxFiles         int      `json:"max_files"`
	AllowedFileTypes []string `json:"allowed_file_types"`
}

// Webhook is an outbound delivery target configured on a form.
type Webhook struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	FormID    string         `gorm:"type:varchar(36);not null;index" json:"form_id"`
	URL       string         `gorm:"not null" json:"url"`
	Secret    string         `json:"-"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Webhook) TableName() string {
	return "form_webhooks"
}
