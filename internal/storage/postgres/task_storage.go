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

// ExtractionTaskStorage implements the ExtractionTaskStorage interface
type ExtractionTaskStorage struct {
	db     *gorm.DB
	logger arbor.ILogger
}

// NewExtractionTaskStorage creates a new ExtractionTaskStorage instance
func NewExtractionTaskStorage(db *gorm.DB, logger arbor.ILogger) interfaces.ExtractionTaskStorage {
	return &ExtractionTaskStorage{db: db, logger: logger}
}

func (s *ExtractionTaskStorage) SaveExtractionTask(ctx context.Context, task *models.ExtractionTask) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if err := s.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("failed to save extraction task: %w", err)
	}
	return nil
}

func (s *ExtractionTaskStorage) GetExtractionTask(ctx context.Context, id string) (*models.ExtractionTask, error) {
	var task models.ExtractionTask
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get extraction task: %w", err)
	}
	return &task, nil
}

func (s *ExtractionTaskStorage) ListByTenant(ctx context.Context, tenantID string, limit int) ([]*models.ExtractionTask, error) {
	var tasks []*models.ExtractionTask
	query := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list extraction tasks: %w", err)
	}
	return tasks, nil
}

// MarkOrphans transitions tasks left running by a previous process to
// failed/orphaned. Called once on startup before the scheduler begins.
func (s *ExtractionTaskStorage) MarkOrphans(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.ExtractionTask{}).
		Where("status = ?", models.TaskRunning).
		Updates(map[string]interface{}{
			"status":        models.TaskFailed,
			"error_message": models.TaskReasonOrphaned,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark orphaned extraction tasks: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.Warn().Int64("count", result.RowsAffected).Msg("Orphaned extraction tasks marked as failed")
	}
	return result.RowsAffected, nil
}

// DownloadTaskStorage implements the DownloadTaskStorage interface
type DownloadTaskStorage struct {
	db     *gorm.DB
	logger arbor.ILogger
}

// NewDownloadTaskStorage creates a new DownloadTaskStorage instance
func NewDownloadTaskStorage(db *gorm.DB, logger arbor.ILogger) interfaces.DownloadTaskStorage {
	return &DownloadTaskStorage{db: db, logger: logger}
}

func (s *DownloadTaskStorage) SaveDownloadTask(ctx context.Context, task *models.DownloadTask) error {
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}
	if err := s.db.WithContext(ctx).Save(task).Error; err != nil {
		return fmt.Errorf("failed to save download task: %w", err)
	}
	return nil
}

func (s *DownloadTaskStorage) GetDownloadTask(ctx context.Context, id string) (*models.DownloadTask, error) {
	var task models.DownloadTask
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get download task: %w", err)
	}
	return &task, nil
}

func (s *DownloadTaskStorage) MarkOrphans(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.DownloadTask{}).
		Where("status = ?", models.TaskRunning).
		Update("status", models.TaskFailed)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to mark orphaned download tasks: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.Warn().Int64("count", result.RowsAffected).Msg("Orphaned download tasks marked as failed")
	}
	return result.RowsAffected, nil
}
