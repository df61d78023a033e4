package models

import "time"

// ExtractionSchedule configures periodic extraction for one tenant.
// Exactly zero-or-one per tenant.
type ExtractionSchedule struct {
	TenantID   string    `gorm:"primaryKey" json:"tenant_id"`
	Kind       string    `json:"kind"`       // "interval" or "cron"
	Expression string    `json:"expression"` // duration string or cron line
	IsActive   bool      `json:"is_active"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName sets the extraction_schedules table name
func (ExtractionSchedule) TableName() string {
	return "extraction_schedules"
}
