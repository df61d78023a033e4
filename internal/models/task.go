package models

import (
	"encoding/json"
	"time"
)

// TaskStatus is the lifecycle state of a background task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Failure reasons recorded in the task error message
const (
	TaskReasonOrphaned  = "orphaned"
	TaskReasonCancelled = "cancelled"
)

// ExtractionSummary aggregates the outcome of one extraction run
type ExtractionSummary struct {
	Discovered       int `json:"discovered"`
	NewProcesses     int `json:"new_processes"`
	UpdatedProcesses int `json:"updated_processes"`
	NewDocuments     int `json:"new_documents"`
	Failures         int `json:"failures"`
}

// ToJSON serializes the summary for the task row
func (s *ExtractionSummary) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SummaryFromJSON deserializes a stored result summary
func SummaryFromJSON(data string) (*ExtractionSummary, error) {
	var summary ExtractionSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ExtractionTask is the durable record of one extraction run.
// Never updated after reaching a terminal state.
type ExtractionTask struct {
	ID            string     `gorm:"primaryKey" json:"id"`
	TenantID      string     `gorm:"index" json:"tenant_id"`
	Status        TaskStatus `json:"status"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Progress      int        `json:"progress"` // 0-100
	ResultSummary string     `gorm:"type:json" json:"result_summary,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// TableName sets the extraction_tasks table name
func (ExtractionTask) TableName() string {
	return "extraction_tasks"
}

// DownloadResult is the per-document outcome of a download task
type DownloadResult struct {
	Uploaded bool   `json:"uploaded"`
	Reason   string `json:"reason,omitempty"`
}

// DownloadTask is the durable record of one document download run
type DownloadTask struct {
	ID                 string     `gorm:"primaryKey" json:"id"`
	ProcessID          string     `gorm:"index" json:"process_id"`
	Status             TaskStatus `json:"status"`
	RequestedDocuments string     `gorm:"type:json" json:"requested_documents"` // JSON list; empty means ALL
	Results            string     `gorm:"type:json" json:"results,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// TableName sets the download_tasks table name
func (DownloadTask) TableName() string {
	return "download_tasks"
}

// SetRequestedDocuments serializes the requested document list
func (t *DownloadTask) SetRequestedDocuments(docs []string) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return err
	}
	t.RequestedDocuments = string(data)
	return nil
}

// SetResults serializes the per-document result map
func (t *DownloadTask) SetResults(results map[string]DownloadResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	t.Results = string(data)
	return nil
}

// ResultMap deserializes the per-document result map
func (t *DownloadTask) ResultMap() (map[string]DownloadResult, error) {
	results := make(map[string]DownloadResult)
	if t.Results == "" {
		return results, nil
	}
	if err := json.Unmarshal([]byte(t.Results), &results); err != nil {
		return nil, err
	}
	return results, nil
}
