package interfaces

import (
	"time"

	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// ScheduleStatus is the live view of one scheduled tenant job
type ScheduleStatus struct {
	TenantID   string     `json:"tenant_id"`
	Kind       string     `json:"kind"`
	Expression string     `json:"expression"`
	NextRun    *time.Time `json:"next_run,omitempty"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	IsRunning  bool       `json:"is_running"`
}

// SchedulerService is the single-process schedule engine. Mutations operate
// on both the persisted schedule row and the live job table.
type SchedulerService interface {
	// Start loads every active schedule from storage and begins firing
	Start() error

	// Stop drains in-flight jobs within the grace period, then returns; jobs
	// still running after that are not cancelled by Stop.
	Stop(grace time.Duration) error

	// ApplySchedule persists the schedule and adds, replaces or removes the
	// live job according to IsActive.
	ApplySchedule(schedule *models.ExtractionSchedule) error

	// RemoveSchedule deletes the persisted row and the live job
	RemoveSchedule(tenantID string) error

	// Statuses lists the live job table
	Statuses() []ScheduleStatus
}
