package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"gorm.io/gorm"

	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// TenantStorage implements the TenantStorage interface
type TenantStorage struct {
	db     *gorm.DB
	logger arbor.ILogger
}

// NewTenantStorage creates a new TenantStorage instance
func NewTenantStorage(db *gorm.DB, logger arbor.ILogger) interfaces.TenantStorage {
	return &TenantStorage{db: db, logger: logger}
}

func (s *TenantStorage) GetTenant(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &tenant, nil
}

func (s *TenantStorage) ListActiveTenants(ctx context.Context) ([]*models.Tenant, error) {
	var tenants []*models.Tenant
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("failed to list active tenants: %w", err)
	}
	return tenants, nil
}

func (s *TenantStorage) SaveTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if err := s.db.WithContext(ctx).Save(tenant).Error; err != nil {
		return fmt.Errorf("failed to save tenant: %w", err)
	}
	return nil
}

// DeleteTenant removes the tenant row and cascades to its processes, tasks
// and schedule in one transaction.
func (s *TenantStorage) DeleteTenant(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var processIDs []string
		if err := tx.Model(&models.Process{}).Where("tenant_id = ?", id).Pluck("id", &processIDs).Error; err != nil {
			return err
		}
		if len(processIDs) > 0 {
			if err := tx.Where("process_id IN ?", processIDs).Delete(&models.DocumentHistory{}).Error; err != nil {
				return err
			}
			if err := tx.Where("process_id IN ?", processIDs).Delete(&models.DownloadTask{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.Process{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.ExtractionTask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.ExtractionSchedule{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Tenant{}, "id = ?", id).Error; err != nil {
			return err
		}
		s.logger.Info().Str("tenant_id", id).Int("processes", len(processIDs)).Msg("Tenant deleted with cascade")
		return nil
	})
}
