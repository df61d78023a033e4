package postgres

import (
	"github.com/ternarybob/arbor"
	"gorm.io/gorm"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
)

// Manager implements the StorageManager interface over one GORM handle
type Manager struct {
	db       *gorm.DB
	tenant   interfaces.TenantStorage
	process  interfaces.ProcessStorage
	extTask  interfaces.ExtractionTaskStorage
	dlTask   interfaces.DownloadTaskStorage
	history  interfaces.DocumentHistoryStorage
	schedule interfaces.ScheduleStorage
	sysCfg   interfaces.SystemConfigStorage
	logger   arbor.ILogger
}

// NewManager opens the database and wires the typed storages
func NewManager(logger arbor.ILogger, cfg *common.DatabaseConfig) (interfaces.StorageManager, error) {
	db, err := InitDB(cfg)
	if err != nil {
		return nil, err
	}
	return NewManagerWithDB(logger, db), nil
}

// NewManagerWithDB wires the typed storages over an existing handle.
// Used by tests running against in-memory SQLite.
func NewManagerWithDB(logger arbor.ILogger, db *gorm.DB) *Manager {
	manager := &Manager{
		db:       db,
		tenant:   NewTenantStorage(db, logger),
		process:  NewProcessStorage(db, logger),
		extTask:  NewExtractionTaskStorage(db, logger),
		dlTask:   NewDownloadTaskStorage(db, logger),
		history:  NewDocumentHistoryStorage(db, logger),
		schedule: NewScheduleStorage(db, logger),
		sysCfg:   NewSystemConfigStorage(db, logger),
		logger:   logger,
	}

	logger.Info().Msg("Storage manager initialized")

	return manager
}

func (m *Manager) TenantStorage() interfaces.TenantStorage                   { return m.tenant }
func (m *Manager) ProcessStorage() interfaces.ProcessStorage                 { return m.process }
func (m *Manager) ExtractionTaskStorage() interfaces.ExtractionTaskStorage   { return m.extTask }
func (m *Manager) DownloadTaskStorage() interfaces.DownloadTaskStorage       { return m.dlTask }
func (m *Manager) DocumentHistoryStorage() interfaces.DocumentHistoryStorage { return m.history }
func (m *Manager) ScheduleStorage() interfaces.ScheduleStorage               { return m.schedule }
func (m *Manager) SystemConfigStorage() interfaces.SystemConfigStorage       { return m.sysCfg }

// Close closes the underlying database connection
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
