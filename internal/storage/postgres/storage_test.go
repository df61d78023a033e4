package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Tenant{},
		&models.Process{},
		&models.ExtractionTask{},
		&models.DownloadTask{},
		&models.DocumentHistory{},
		&models.ExtractionSchedule{},
		&models.SystemConfig{},
	))
	return NewManagerWithDB(common.GetLogger(), db)
}

func TestTenantStorage_SaveGetDelete(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	tenant := &models.Tenant{
		ID:             "t1",
		Name:           "Test Institution",
		UpstreamURL:    "https://sei.example.gov.br",
		ScraperVersion: "4.2.0",
		IsActive:       true,
	}
	require.NoError(t, m.TenantStorage().SaveTenant(ctx, tenant))

	got, err := m.TenantStorage().GetTenant(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Test Institution", got.Name)

	missing, err := m.TenantStorage().GetTenant(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	active, err := m.TenantStorage().ListActiveTenants(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestTenantStorage_DeleteCascades(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.TenantStorage().SaveTenant(ctx, &models.Tenant{ID: "t1", IsActive: true}))

	process := &models.Process{
		ID:            common.NewProcessID(),
		TenantID:      "t1",
		ProcessNumber: "12345.001234/2024-56",
	}
	require.NoError(t, m.ProcessStorage().UpsertProcess(ctx, process))
	require.NoError(t, m.ScheduleStorage().SaveSchedule(ctx, &models.ExtractionSchedule{
		TenantID: "t1", Kind: "interval", Expression: "30m", IsActive: true,
	}))
	require.NoError(t, m.ExtractionTaskStorage().SaveExtractionTask(ctx, &models.ExtractionTask{
		ID: common.NewExtractionTaskID(), TenantID: "t1", Status: models.TaskCompleted,
	}))
	require.NoError(t, m.DocumentHistoryStorage().AppendHistory(ctx, &models.DocumentHistory{
		ID: common.NewHistoryID(), ProcessID: process.ID, DocumentNumber: "10000001",
		Action: models.HistoryActionDownload, NewStatus: models.DocumentDownloaded, Timestamp: time.Now(),
	}))

	require.NoError(t, m.TenantStorage().DeleteTenant(ctx, "t1"))

	gotProcess, err := m.ProcessStorage().GetProcess(ctx, process.ID)
	require.NoError(t, err)
	assert.Nil(t, gotProcess)

	schedules, err := m.ScheduleStorage().ListActiveSchedules(ctx)
	require.NoError(t, err)
	assert.Empty(t, schedules)

	history, err := m.DocumentHistoryStorage().ListByProcess(ctx, process.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestProcessStorage_UpsertIsKeyedByTenantAndNumber(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	first := &models.Process{
		ID:            common.NewProcessID(),
		TenantID:      "t1",
		ProcessNumber: "12345.001234/2024-56",
		AccessType:    models.AccessPartial,
	}
	require.NoError(t, m.ProcessStorage().UpsertProcess(ctx, first))

	// Second upsert for the same (tenant, number) updates in place
	second := &models.Process{
		ID:             common.NewProcessID(),
		TenantID:       "t1",
		ProcessNumber:  "12345.001234/2024-56",
		AccessType:     models.AccessIntegral,
		Category:       models.CategoryRestricted,
		CategoryStatus: models.CategoryCategorized,
	}
	require.NoError(t, m.ProcessStorage().UpsertProcess(ctx, second))

	all, err := m.ProcessStorage().ListByTenant(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.AccessIntegral, all[0].AccessType)
	assert.Equal(t, first.ID, all[0].ID, "original row ID is preserved")

	// Same number under another tenant is a distinct row
	other := &models.Process{
		ID:            common.NewProcessID(),
		TenantID:      "t2",
		ProcessNumber: "12345.001234/2024-56",
	}
	require.NoError(t, m.ProcessStorage().UpsertProcess(ctx, other))

	got, err := m.ProcessStorage().GetByNumber(ctx, "t2", "12345.001234/2024-56")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, other.ID, got.ID)
}

func TestExtractionTaskStorage_MarkOrphans(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	running := &models.ExtractionTask{ID: "task_a", TenantID: "t1", Status: models.TaskRunning}
	completed := &models.ExtractionTask{ID: "task_b", TenantID: "t1", Status: models.TaskCompleted}
	require.NoError(t, m.ExtractionTaskStorage().SaveExtractionTask(ctx, running))
	require.NoError(t, m.ExtractionTaskStorage().SaveExtractionTask(ctx, completed))

	count, err := m.ExtractionTaskStorage().MarkOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := m.ExtractionTaskStorage().GetExtractionTask(ctx, "task_a")
	require.NoError(t, err)
	assert.Equal(t, models.TaskFailed, got.Status)
	assert.Equal(t, models.TaskReasonOrphaned, got.ErrorMessage)

	untouched, err := m.ExtractionTaskStorage().GetExtractionTask(ctx, "task_b")
	require.NoError(t, err)
	assert.Equal(t, models.TaskCompleted, untouched.Status)
}

func TestDocumentHistoryStorage_CountByDocument(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	for _, status := range []models.DocumentStatus{models.DocumentError, models.DocumentDownloaded} {
		require.NoError(t, m.DocumentHistoryStorage().AppendHistory(ctx, &models.DocumentHistory{
			ID:             common.NewHistoryID(),
			ProcessID:      "p1",
			DocumentNumber: "10000001",
			Action:         models.HistoryActionDownload,
			NewStatus:      status,
			Timestamp:      time.Now(),
		}))
	}

	count, err := m.DocumentHistoryStorage().CountByDocument(ctx, "p1", "10000001", models.DocumentDownloaded)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSystemConfigStorage_RoundTrip(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	value, err := m.SystemConfigStorage().GetConfigValue(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, m.SystemConfigStorage().SetConfigValue(ctx,
		models.SystemConfigNotificationWebhooks, `{"webhooks":["https://hooks.example.com/a"]}`))

	value, err = m.SystemConfigStorage().GetConfigValue(ctx, models.SystemConfigNotificationWebhooks)
	require.NoError(t, err)
	assert.Contains(t, value, "hooks.example.com")
}
