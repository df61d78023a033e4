package models

import (
	"encoding/json"
	"time"
)

// AccessType classifies how much of a process the tenant account can see
type AccessType string

const (
	AccessIntegral AccessType = "integral"
	AccessPartial  AccessType = "partial"
	AccessError    AccessType = "error"
)

// LinkStatus is the health of one upstream access link
type LinkStatus string

const (
	LinkActive   LinkStatus = "active"
	LinkInactive LinkStatus = "inactive"
)

// DocumentStatus tracks the download lifecycle of one document
type DocumentStatus string

const (
	DocumentNotDownloaded DocumentStatus = "not_downloaded"
	DocumentDownloaded    DocumentStatus = "downloaded"
	DocumentError         DocumentStatus = "error"
	DocumentPartial       DocumentStatus = "partial" // downloaded but upload deferred
)

// CategoryStatus tracks whether an operator has categorized a process
type CategoryStatus string

const (
	CategoryPending     CategoryStatus = "pending"
	CategoryCategorized CategoryStatus = "categorized"
)

// CategoryRestricted is the category that allows document extraction on
// partial-access processes. Integral-access processes are always set to it.
const CategoryRestricted = "restricted"

// CheckTimeFormat is the timestamp layout used inside links/documents JSON
const CheckTimeFormat = "2006-01-02 15:04:05"

// LinkCheck is one history entry for a link
type LinkCheck struct {
	CheckedAt  string     `json:"checked_at"`
	Status     LinkStatus `json:"status"`
	AccessType AccessType `json:"access_type"`
}

// LinkRecord is the stored state of one upstream access link
type LinkRecord struct {
	Status      LinkStatus  `json:"status"`
	AccessType  AccessType  `json:"access_type"`
	LastChecked string      `json:"last_checked"`
	History     []LinkCheck `json:"history"`
}

// DocumentRecord is the stored state of one document within a process
type DocumentRecord struct {
	Type        string         `json:"type"`
	Date        string         `json:"date"` // dd/mm/yyyy as shown upstream
	Status      DocumentStatus `json:"status"`
	LastChecked string         `json:"last_checked"`
	Signer      string         `json:"signer,omitempty"`
	StoragePath string         `json:"storage_path,omitempty"`
}

// Process is one unit of record in the upstream system. The links and
// documents maps are persisted as opaque JSON columns; use LinkMap /
// DocumentMap to work with typed values inside the core.
type Process struct {
	ID              string         `gorm:"primaryKey" json:"id"`
	TenantID        string         `gorm:"index;uniqueIndex:idx_tenant_process_number" json:"tenant_id"`
	ProcessNumber   string         `gorm:"uniqueIndex:idx_tenant_process_number" json:"process_number"`
	Links           string         `gorm:"type:json" json:"links"`
	Documents       string         `gorm:"type:json" json:"documents"`
	AccessType      AccessType     `json:"access_type"`
	BestCurrentLink string         `json:"best_current_link"`
	Category        string         `json:"category"`
	CategoryStatus  CategoryStatus `json:"category_status"`
	Authority       string         `json:"authority"`
	Nickname        string         `json:"nickname"`
	NoValidLinks    bool           `json:"no_valid_links"`
	LastUpdated     string         `json:"last_updated"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// TableName sets the processes table name
func (Process) TableName() string {
	return "processes"
}

// LinkMap deserializes the links column
func (p *Process) LinkMap() (map[string]LinkRecord, error) {
	links := make(map[string]LinkRecord)
	if p.Links == "" {
		return links, nil
	}
	if err := json.Unmarshal([]byte(p.Links), &links); err != nil {
		return nil, err
	}
	return links, nil
}

// SetLinkMap serializes the links column
func (p *Process) SetLinkMap(links map[string]LinkRecord) error {
	data, err := json.Marshal(links)
	if err != nil {
		return err
	}
	p.Links = string(data)
	return nil
}

// DocumentMap deserializes the documents column
func (p *Process) DocumentMap() (map[string]DocumentRecord, error) {
	docs := make(map[string]DocumentRecord)
	if p.Documents == "" {
		return docs, nil
	}
	if err := json.Unmarshal([]byte(p.Documents), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// SetDocumentMap serializes the documents column
func (p *Process) SetDocumentMap(docs map[string]DocumentRecord) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	p.Documents = string(data)
	return nil
}

// processAlias mirrors Process for JSON decoding without recursion
type processAlias Process

// UnmarshalJSON accepts the legacy "Autoridade" capitalization as an inbound
// alias for authority. The stored column name is canonical; the alias is
// honored only when the canonical key is absent.
func (p *Process) UnmarshalJSON(data []byte) error {
	var alias processAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*p = Process(alias)

	if p.Authority == "" {
		var legacy struct {
			Autoridade string `json:"Autoridade"`
		}
		if err := json.Unmarshal(data, &legacy); err == nil && legacy.Autoridade != "" {
			p.Authority = legacy.Autoridade
		}
	}
	return nil
}
