package models

import (
	"encoding/json"
	"time"
)

// History actions
const (
	HistoryActionDownload = "download"
)

// DownloadDetails is the timing breakdown stored in the history details
// column for one download attempt.
type DownloadDetails struct {
	DocumentType     string     `json:"document_type,omitempty"`
	DocumentDate     string     `json:"document_date,omitempty"`
	Signer           string     `json:"signer,omitempty"`
	FileName         string     `json:"file_name,omitempty"`
	FileSizeBytes    int64      `json:"file_size_bytes,omitempty"`
	StoragePath      string     `json:"storage_path,omitempty"`
	DownloadStarted  *time.Time `json:"download_started,omitempty"`
	DownloadFinished *time.Time `json:"download_finished,omitempty"`
	UploadStarted    *time.Time `json:"upload_started,omitempty"`
	UploadFinished   *time.Time `json:"upload_finished,omitempty"`
	TotalDurationMS  int64      `json:"total_duration_ms"`
	Error            string     `json:"error,omitempty"`
}

// DocumentHistory is an append-only audit row for one download attempt
type DocumentHistory struct {
	ID             string         `gorm:"primaryKey" json:"id"`
	ProcessID      string         `gorm:"index" json:"process_id"`
	DocumentNumber string         `gorm:"index" json:"document_number"`
	Action         string         `json:"action"`
	NewStatus      DocumentStatus `json:"new_status"`
	Timestamp      time.Time      `json:"timestamp"`
	Details        string         `gorm:"type:json" json:"details,omitempty"`
}

// TableName sets the document_history table name
func (DocumentHistory) TableName() string {
	return "document_history"
}

// SetDetails serializes the timing breakdown
func (h *DocumentHistory) SetDetails(details *DownloadDetails) error {
	data, err := json.Marshal(details)
	if err != nil {
		return err
	}
	h.Details = string(data)
	return nil
}

// DetailMap deserializes the timing breakdown
func (h *DocumentHistory) DetailMap() (*DownloadDetails, error) {
	var details DownloadDetails
	if h.Details == "" {
		return &details, nil
	}
	if err := json.Unmarshal([]byte(h.Details), &details); err != nil {
		return nil, err
	}
	return &details, nil
}
