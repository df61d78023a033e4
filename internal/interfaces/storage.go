package interfaces

import (
	"context"

	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// TenantStorage is typed access to the tenants table
type TenantStorage interface {
	GetTenant(ctx context.Context, id string) (*models.Tenant, error)
	ListActiveTenants(ctx context.Context) ([]*models.Tenant, error)
	SaveTenant(ctx context.Context, tenant *models.Tenant) error
	// DeleteTenant removes a tenant and cascades to its processes, tasks and
	// schedules.
	DeleteTenant(ctx context.Context, id string) error
}

// ProcessStorage is typed access to the processes table. Lookups return
// (nil, nil) when no row matches.
type ProcessStorage interface {
	GetProcess(ctx context.Context, id string) (*models.Process, error)
	GetByNumber(ctx context.Context, tenantID, processNumber string) (*models.Process, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*models.Process, error)
	// UpsertProcess persists one process in a single transaction, keyed by
	// (tenant_id, process_number).
	UpsertProcess(ctx context.Context, process *models.Process) error
	DeleteByTenant(ctx context.Context, tenantID string) error
}

// ExtractionTaskStorage is typed access to the extraction_tasks table
type ExtractionTaskStorage interface {
	SaveExtractionTask(ctx context.Context, task *models.ExtractionTask) error
	GetExtractionTask(ctx context.Context, id string) (*models.ExtractionTask, error)
	ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.ExtractionTask, error)
	// MarkOrphans transitions any task still running to failed/orphaned.
	// Called once on startup; returns the number of rows touched.
	MarkOrphans(ctx context.Context) (int64, error)
}

// DownloadTaskStorage is typed access to the download_tasks table
type DownloadTaskStorage interface {
	SaveDownloadTask(ctx context.Context, task *models.DownloadTask) error
	GetDownloadTask(ctx context.Context, id string) (*models.DownloadTask, error)
	MarkOrphans(ctx context.Context) (int64, error)
}

// DocumentHistoryStorage is append-only access to the document_history table
type DocumentHistoryStorage interface {
	AppendHistory(ctx context.Context, entry *models.DocumentHistory) error
	ListByProcess(ctx context.Context, processID string) ([]*models.DocumentHistory, error)
	CountByDocument(ctx context.Context, processID, documentNumber string, status models.DocumentStatus) (int64, error)
}

// ScheduleStorage is typed access to the extraction_schedules table
type ScheduleStorage interface {
	GetSchedule(ctx context.Context, tenantID string) (*models.ExtractionSchedule, error)
	ListActiveSchedules(ctx context.Context) ([]*models.ExtractionSchedule, error)
	SaveSchedule(ctx context.Context, schedule *models.ExtractionSchedule) error
	DeleteSchedule(ctx context.Context, tenantID string) error
}

// SystemConfigStorage is typed access to the system_config table
type SystemConfigStorage interface {
	GetConfigValue(ctx context.Context, key string) (string, error)
	SetConfigValue(ctx context.Context, key, value string) error
}

// StorageManager exposes the typed storages over one database handle
type StorageManager interface {
	TenantStorage() TenantStorage
	ProcessStorage() ProcessStorage
	ExtractionTaskStorage() ExtractionTaskStorage
	DownloadTaskStorage() DownloadTaskStorage
	DocumentHistoryStorage() DocumentHistoryStorage
	ScheduleStorage() ScheduleStorage
	SystemConfigStorage() SystemConfigStorage
	Close() error
}
