package models

import (
	"time"
)

// Credentials is the plaintext credential pair for one tenant's upstream
// account. Instances live only inside the pipeline process for the duration
// of a single run; the persisted form is always the vault ciphertext.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Tenant is one administrative boundary (institution) with its own upstream
// URL, credentials and process corpus.
type Tenant struct {
	ID                   string    `gorm:"primaryKey" json:"id"`
	Name                 string    `json:"name"`
	UpstreamURL          string    `gorm:"column:upstream_url" json:"upstream_url"`
	ScraperVersion       string    `json:"scraper_version"`
	IsActive             bool      `json:"is_active"`
	EncryptedCredentials []byte    `json:"-"`
	ExtraMetadata        string    `gorm:"type:json" json:"extra_metadata,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// TableName sets the tenants table name
func (Tenant) TableName() string {
	return "tenants"
}
