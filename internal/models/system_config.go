package models

import "time"

// SystemConfigNotificationWebhooks is the key holding a JSON object whose
// "webhooks" field lists the URLs the notifier posts to.
const SystemConfigNotificationWebhooks = "notification_webhooks"

// SystemConfig is a key/value bag for process-wide settings
type SystemConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `gorm:"type:json" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the system_config table name
func (SystemConfig) TableName() string {
	return "system_config"
}
