package models

import "time"

type ActivityLog struct {
	ID           string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Method       string    `gorm:"type:varchar(10)" json:"method"`
	Path         string    `gorm:"index" json:"path"`
	UserAgent    string    `json:"user_agent"`
	IPAddress    string    `gorm:"type:varchar(64)" json:"ip_address"`
	RequestBody  string    `gorm:"type:text" json:"request_body,omitempty"`
	QueryParams  string    `gorm:"type:text" json:"query_params,omitempty"`
	StatusCode   int       `json:"status_code"`
	ResponseTime int64     `json:"response_time"` // milliseconds
	UserID       string    `gorm:"type:varchar(191);index" json:"user_id,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
