package interfaces

import "github.com/IzacPS/conecta-sei-backend/internal/models"

// Task kinds tracked by the control plane
const (
	TaskKindExtraction = "extraction"
	TaskKindDownload   = "download"
)

// TaskInfo is the in-memory view of one background task
type TaskInfo struct {
	ID       string            `json:"id"`
	Kind     string            `json:"kind"`
	Subject  string            `json:"subject"` // tenant id or process id
	Status   models.TaskStatus `json:"status"`
	Progress int               `json:"progress"`
	Error    string            `json:"error,omitempty"`
}

// TaskRegistry is the process-wide task control plane. In-memory state is
// authoritative while a task runs; terminal state lives in the database.
type TaskRegistry interface {
	Track(id, kind, subject string)
	SetStatus(id string, status models.TaskStatus)
	SetProgress(id string, progress int)
	SetError(id string, message string)
	Get(id string) (TaskInfo, bool)
	Running() []TaskInfo
	// Done drops a task from the in-memory registry once it reached a
	// terminal state and the database row is current.
	Done(id string)
}
