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

// ScheduleStorage implements the ScheduleStorage interface
type ScheduleStorage struct {
	db     *gorm.DB
	logger arbor.ILogger
}

// NewScheduleStorage creates a new ScheduleStorage instance
func NewScheduleStorage(db *gorm.DB, logger arbor.ILogger) interfaces.ScheduleStorage {
	return &ScheduleStorage{db: db, logger: logger}
}

func (s *ScheduleStorage) GetSchedule(ctx context.Context, tenantID string) (*models.ExtractionSchedule, error) {
	var schedule models.ExtractionSchedule
	if err := s.db.WithContext(ctx).First(&schedule, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return &schedule, nil
}

func (s *ScheduleStorage) ListActiveSchedules(ctx context.Context) ([]*models.ExtractionSchedule, error) {
	var schedules []*models.ExtractionSchedule
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("failed to list active schedules: %w", err)
	}
	return schedules, nil
}

func (s *ScheduleStorage) SaveSchedule(ctx context.Context, schedule *models.ExtractionSchedule) error {
	if schedule.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if err := s.db.WithContext(ctx).Save(schedule).Error; err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	return nil
}

func (s *ScheduleStorage) DeleteSchedule(ctx context.Context, tenantID string) error {
	if err := s.db.WithContext(ctx).Delete(&models.ExtractionSchedule{}, "tenant_id = ?", tenantID).Error; err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	return nil
}
