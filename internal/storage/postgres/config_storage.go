package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"gorm.io/gorm"

	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// SystemConfigStorage implements the SystemConfigStorage interface
type SystemConfigStorage struct {
	db     *gorm.DB
	logger arbor.ILogger
}

// NewSystemConfigStorage creates a new SystemConfigStorage instance
func NewSystemConfigStorage(db *gorm.DB, logger arbor.ILogger) interfaces.SystemConfigStorage {
	return &SystemConfigStorage{db: db, logger: logger}
}

// GetConfigValue returns the stored JSON value for key, or "" when unset
func (s *SystemConfigStorage) GetConfigValue(ctx context.Context, key string) (string, error) {
	var config models.SystemConfig
	if err := s.db.WithContext(ctx).First(&config, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get config value: %w", err)
	}
	return config.Value, nil
}

func (s *SystemConfigStorage) SetConfigValue(ctx context.Context, key, value string) error {
	config := models.SystemConfig{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Save(&config).Error; err != nil {
		return fmt.Errorf("failed to set config value: %w", err)
	}
	return nil
}
