package common

import (
	"github.com/google/uuid"
)

// NewProcessID generates a unique process row ID
// Format: proc_<uuid>
func NewProcessID() string {
	return "proc_" + uuid.New().String()
}

// NewExtractionTaskID generates a unique extraction task ID
// Format: task_<uuid>
func NewExtractionTaskID() string {
	return "task_" + uuid.New().String()
}

// NewDownloadTaskID generates a unique download task ID
// Format: dl_<uuid>
func NewDownloadTaskID() string {
	return "dl_" + uuid.New().String()
}

// NewHistoryID generates a unique document history row ID
func NewHistoryID() string {
	return uuid.New().String()
}
