package postgres

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"gorm.io/gorm"

	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// DocumentHistoryStorage implements the DocumentHistoryStorage interface.
// The table is append-only; rows are never updated or deleted outside the
// tenant cascade.
type DocumentHistoryStorage struct {
	db     *gorm.DB
	logger arbor.ILogger
}

// NewDocumentHistoryStorage creates a new DocumentHistoryStorage instance
func NewDocumentHistoryStorage(db *gorm.DB, logger arbor.ILogger) interfaces.DocumentHistoryStorage {
	return &DocumentHistoryStorage{db: db, logger: logger}
}

func (s *DocumentHistoryStorage) AppendHistory(ctx context.Context, entry *models.DocumentHistory) error {
	if entry.ID == "" {
		return fmt.Errorf("history ID is required")
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append document history: %w", err)
	}
	return nil
}

func (s *DocumentHistoryStorage) ListByProcess(ctx context.Context, processID string) ([]*models.DocumentHistory, error) {
	var entries []*models.DocumentHistory
	err := s.db.WithContext(ctx).
		Where("process_id = ?", processID).
		Order("timestamp ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list document history: %w", err)
	}
	return entries, nil
}

func (s *DocumentHistoryStorage) CountByDocument(ctx context.Context, processID, documentNumber string, status models.DocumentStatus) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.DocumentHistory{}).
		Where("process_id = ? AND document_number = ? AND new_status = ?", processID, documentNumber, status).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count document history: %w", err)
	}
	return count, nil
}
