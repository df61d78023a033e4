package tasks

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// Registry is the in-memory task control plane. State here is authoritative
// only while a task runs; terminal state is read from the database. Writes
// are rare (one per task state change) and guarded by a single lock.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[string]interfaces.TaskInfo
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.TaskRegistry = (*Registry)(nil)

// NewRegistry creates an empty registry
func NewRegistry(logger arbor.ILogger) *Registry {
	return &Registry{
		tasks:  make(map[string]interfaces.TaskInfo),
		logger: logger,
	}
}

func (r *Registry) Track(id, kind, subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[id] = interfaces.TaskInfo{
		ID:      id,
		Kind:    kind,
		Subject: subject,
		Status:  models.TaskPending,
	}
}

func (r *Registry) SetStatus(id string, status models.TaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.tasks[id]; ok {
		info.Status = status
		r.tasks[id] = info
	}
}

func (r *Registry) SetProgress(id string, progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.tasks[id]; ok {
		info.Progress = progress
		r.tasks[id] = info
	}
}

func (r *Registry) SetError(id string, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if info, ok := r.tasks[id]; ok {
		info.Error = message
		r.tasks[id] = info
	}
}

func (r *Registry) Get(id string) (interfaces.TaskInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.tasks[id]
	return info, ok
}

func (r *Registry) Running() []interfaces.TaskInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var running []interfaces.TaskInfo
	for _, info := range r.tasks {
		if info.Status == models.TaskRunning {
			running = append(running, info)
		}
	}
	return running
}

func (r *Registry) Done(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

// RecoverOrphans transitions database tasks left running by a previous
// process to failed. Extraction tasks record the orphaned reason in their
// error message; download task rows have no error field, so only their
// status changes. Called once on startup, before the scheduler begins firing.
func RecoverOrphans(ctx context.Context, store interfaces.StorageManager, logger arbor.ILogger) error {
	extractions, err := store.ExtractionTaskStorage().MarkOrphans(ctx)
	if err != nil {
		return err
	}
	downloads, err := store.DownloadTaskStorage().MarkOrphans(ctx)
	if err != nil {
		return err
	}
	if extractions+downloads > 0 {
		logger.Info().
			Int64("extraction_tasks", extractions).
			Int64("download_tasks", downloads).
			Msg("Recovered orphaned tasks from previous run")
	}
	return nil
}
