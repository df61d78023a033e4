package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// ProcessStorage implements the ProcessStorage interface
type ProcessStorage struct {
	db     *gorm.DB
	logger arbor.ILogger
}

// NewProcessStorage creates a new ProcessStorage instance
func NewProcessStorage(db *gorm.DB, logger arbor.ILogger) interfaces.ProcessStorage {
	return &ProcessStorage{db: db, logger: logger}
}

func (s *ProcessStorage) GetProcess(ctx context.Context, id string) (*models.Process, error) {
	var process models.Process
	if err := s.db.WithContext(ctx).First(&process, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get process: %w", err)
	}
	return &process, nil
}

func (s *ProcessStorage) GetByNumber(ctx context.Context, tenantID, processNumber string) (*models.Process, error) {
	var process models.Process
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND process_number = ?", tenantID, processNumber).
		First(&process).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get process by number: %w", err)
	}
	return &process, nil
}

func (s *ProcessStorage) ListByTenant(ctx context.Context, tenantID string) ([]*models.Process, error) {
	var processes []*models.Process
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Find(&processes).Error; err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	return processes, nil
}

// UpsertProcess persists one process in a single transaction keyed by
// (tenant_id, process_number). Per-process commits bound the blast radius of
// a failed worker to that one process.
func (s *ProcessStorage) UpsertProcess(ctx context.Context, process *models.Process) error {
	if process.TenantID == "" || process.ProcessNumber == "" {
		return fmt.Errorf("tenant ID and process number are required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "process_number"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"links", "documents", "access_type", "best_current_link",
				"category", "category_status", "authority", "nickname",
				"no_valid_links", "last_updated", "updated_at",
			}),
		}).Create(process).Error
	})
	if err != nil {
		return fmt.Errorf("%w: upsert process %s: %v", interfaces.ErrPersistence, process.ProcessNumber, err)
	}
	return nil
}

func (s *ProcessStorage) DeleteByTenant(ctx context.Context, tenantID string) error {
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Delete(&models.Process{}).Error; err != nil {
		return fmt.Errorf("failed to delete processes: %w", err)
	}
	return nil
}
