package models

import "time"

type Plan string

const (
	PlanFree     Plan = "free"
	PlanPro      Plan = "pro"
	PlanBusiness Plan = "business"
)

var planFileSizeMB = map[Plan]int{
	PlanFree:     5,
	PlanPro:      25,
	PlanBusiness: 100,
}

// LargestPlanFileSizeMB is the highest per-file limit any plan grants.
func LargestPlanFileSizeMB() int {
	largest := 0
	for _, mb := range planFileSizeMB {
		if mb > largest {
			largest = mb
		}
	}
	return largest
}

// Account holds per-user plan settings. ID is the identity provider's user id.
type Account struct {
	ID            string    `gorm:"type:varchar(191);primaryKey" json:"id"`
	Plan          Plan      `gorm:"type:varchar(20);default:'free'" json:"plan"`
	MaxFileSizeMB int       `gorm:"default:0" json:"max_file_size_mb"` // overrides the plan default when > 0
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

// PlanLimit is the per-account ceiling enforced on top of the form's upload policy.
type PlanLimit struct {
	MaxFileSizeMB int `json:"max_file_size_mb"`
}

// Limit resolves the effective plan limit for the account.
func (a *Account) Limit() PlanLimit {
	if a.MaxFileSizeMB > 0 {
		return PlanLimit{MaxFileSizeMB: a.MaxFileSizeMB}
	}
	if mb, ok := planFileSizeMB[a.Plan]; ok {
		return PlanLimit{MaxFileSizeMB: mb}
	}
	return PlanLimit{MaxFileSizeMB: planFileSizeMB[PlanFree]}
}
