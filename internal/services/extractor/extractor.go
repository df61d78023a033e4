package extractor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// Service is the process extraction pipeline. Phase A discovers the visible
// process list on one browser page; phase B fans out per-process workers
// with bounded parallelism, each owning its own session.
type Service struct {
	logger   arbor.ILogger
	cfg      *common.Config
	store    interfaces.StorageManager
	registry interfaces.ScraperRegistry
	pool     interfaces.BrowserPool
	vault    interfaces.CredentialVault
	tasks    interfaces.TaskRegistry
	notifier interfaces.Notifier
	baseCtx  context.Context

	// Per-tenant advisory lock: at most one extraction per tenant. The held
	// value is the active task id, returned to coalescing callers.
	lockMu sync.Mutex
	active map[string]string
}

// Compile-time assertion
var _ interfaces.ExtractionRunner = (*Service)(nil)

// NewService wires the extraction pipeline. baseCtx bounds the lifetime of
// background runs; cancelling it aborts in-flight extractions.
func NewService(
	baseCtx context.Context,
	cfg *common.Config,
	store interfaces.StorageManager,
	registry interfaces.ScraperRegistry,
	pool interfaces.BrowserPool,
	vault interfaces.CredentialVault,
	tasks interfaces.TaskRegistry,
	notifier interfaces.Notifier,
	logger arbor.ILogger,
) *Service {
	return &Service{
		logger:   logger,
		cfg:      cfg,
		store:    store,
		registry: registry,
		pool:     pool,
		vault:    vault,
		tasks:    tasks,
		notifier: notifier,
		baseCtx:  baseCtx,
		active:   make(map[string]string),
	}
}

// StartExtraction begins a background extraction for the tenant and returns
// the task id immediately. A request for a tenant with a run already active
// coalesces onto the running task.
func (s *Service) StartExtraction(ctx context.Context, tenantID string) (string, error) {
	s.lockMu.Lock()
	if taskID, ok := s.active[tenantID]; ok {
		s.lockMu.Unlock()
		s.logger.Info().
			Str("tenant_id", tenantID).
			Str("task_id", taskID).
			Msg("Extraction already active, coalescing")
		return taskID, nil
	}
	taskID := common.NewExtractionTaskID()
	s.active[tenantID] = taskID
	s.lockMu.Unlock()

	task := &models.ExtractionTask{
		ID:       taskID,
		TenantID: tenantID,
		Status:   models.TaskPending,
	}
	if err := s.store.ExtractionTaskStorage().SaveExtractionTask(ctx, task); err != nil {
		s.releaseTenant(tenantID)
		return "", err
	}
	s.tasks.Track(taskID, interfaces.TaskKindExtraction, tenantID)

	go func() {
		defer common.RecoverWithCrashFile()
		defer s.releaseTenant(tenantID)

		runCtx, cancel := context.WithTimeout(s.baseCtx, s.cfg.Extractor.RunTimeout)
		defer cancel()

		s.run(runCtx, tenantID, task)
	}()

	return taskID, nil
}

func (s *Service) releaseTenant(tenantID string) {
	s.lockMu.Lock()
	delete(s.active, tenantID)
	s.lockMu.Unlock()
}

// run drives one extraction to a terminal task state
func (s *Service) run(ctx context.Context, tenantID string, task *models.ExtractionTask) {
	started := time.Now()
	task.Status = models.TaskRunning
	task.StartedAt = &started
	if err := s.store.ExtractionTaskStorage().SaveExtractionTask(ctx, task); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to persist running task")
	}
	s.tasks.SetStatus(task.ID, models.TaskRunning)

	summary, runErr := s.extract(ctx, tenantID, task)

	finished := time.Now()
	task.FinishedAt = &finished

	switch {
	case runErr == nil:
		task.Status = models.TaskCompleted
		task.Progress = 100
		if data, err := summary.ToJSON(); err == nil {
			task.ResultSummary = data
		}
		s.logger.Info().
			Str("tenant_id", tenantID).
			Str("task_id", task.ID).
			Int("discovered", summary.Discovered).
			Int("new_processes", summary.NewProcesses).
			Int("new_documents", summary.NewDocuments).
			Int("failures", summary.Failures).
			Dur("duration", finished.Sub(started)).
			Msg("Extraction completed")
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		task.Status = models.TaskFailed
		task.ErrorMessage = models.TaskReasonCancelled
		s.logger.Warn().
			Str("tenant_id", tenantID).
			Str("task_id", task.ID).
			Msg("Extraction cancelled")
	default:
		task.Status = models.TaskFailed
		task.ErrorMessage = runErr.Error()
		s.logger.Error().
			Err(runErr).
			Str("tenant_id", tenantID).
			Str("task_id", task.ID).
			Msg("Extraction failed")
	}

	// Terminal state must land in the database before the registry forgets
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.ExtractionTaskStorage().SaveExtractionTask(saveCtx, task); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to persist terminal task state")
	}
	s.tasks.SetStatus(task.ID, task.Status)
	if task.ErrorMessage != "" {
		s.tasks.SetError(task.ID, task.ErrorMessage)
	}
	s.tasks.Done(task.ID)
}

// extract runs both phases and returns the run summary. Run-level errors
// (configuration, discovery, browser bring-up) propagate out; per-process
// failures accumulate in the summary.
func (s *Service) extract(ctx context.Context, tenantID string, task *models.ExtractionTask) (*models.ExtractionSummary, error) {
	summary := &models.ExtractionSummary{}

	tenant, err := s.store.TenantStorage().GetTenant(ctx, tenantID)
	if err != nil {
		return summary, err
	}
	if tenant == nil {
		return summary, fmt.Errorf("%w: tenant %s not found", interfaces.ErrConfig, tenantID)
	}
	if !tenant.IsActive {
		return summary, fmt.Errorf("%w: tenant %s is inactive", interfaces.ErrConfig, tenantID)
	}

	scraper, err := s.registry.Get(tenant.ScraperVersion)
	if err != nil {
		return summary, err
	}

	creds, err := s.vault.DecryptCredentials(tenant.EncryptedCredentials)
	if err != nil {
		return summary, err
	}

	// Phase A: discovery, single-threaded on one page
	discovered, err := s.discover(ctx, tenant, creds, scraper)
	if err != nil {
		return summary, err
	}
	summary.Discovered = len(discovered)

	s.logger.Info().
		Str("tenant_id", tenant.ID).
		Int("discovered", len(discovered)).
		Msg("Process discovery finished")

	if len(discovered) == 0 {
		return summary, nil
	}

	existing, err := s.loadExisting(ctx, tenant.ID)
	if err != nil {
		return summary, err
	}

	// Phase B: bounded per-process worker fan-out
	results := s.fanOut(ctx, tenant, creds, scraper, discovered, existing, task)

	var pending []interfaces.PendingProcess
	var notices []interfaces.NewDocumentsNotice
	for _, r := range results {
		if r.failed {
			summary.Failures++
			continue
		}
		if r.isNew {
			summary.NewProcesses++
		} else if r.updated {
			summary.UpdatedProcesses++
		}
		summary.NewDocuments += r.newDocCount
		if r.pendingCategorization {
			pending = append(pending, interfaces.PendingProcess{
				ProcessNumber: r.processNumber,
				LinkID:        r.bestLink,
				Nickname:      r.nickname,
			})
		}
		if r.newDocCount > 0 {
			notices = append(notices, interfaces.NewDocumentsNotice{
				ProcessNumber:     r.processNumber,
				Nickname:          r.nickname,
				DocumentsBySigner: r.newDocsBySigner,
			})
		}
	}

	// Post-phase notifications, snapshot-based by design
	s.notifier.NotifyPendingProcesses(ctx, tenant.ID, pending)
	s.notifier.NotifyNewDocuments(ctx, tenant.ID, notices)

	return summary, nil
}

// discover runs phase A on its own session and groups the listing into one
// entry per process number, preserving listing order of the links.
func (s *Service) discover(ctx context.Context, tenant *models.Tenant, creds models.Credentials, scraper interfaces.Scraper) (map[string][]string, error) {
	session, err := s.pool.Acquire(ctx, tenant, creds, scraper)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(session)

	if err := session.Navigate(ctx, scraper.ProcessListURL(tenant.UpstreamURL)); err != nil {
		return nil, err
	}

	refs, err := scraper.ListProcesses(ctx, session)
	if err != nil {
		return nil, err
	}

	discovered := make(map[string][]string)
	for _, ref := range refs {
		discovered[ref.ProcessNumber] = append(discovered[ref.ProcessNumber], ref.LinkID)
	}
	return discovered, nil
}

func (s *Service) loadExisting(ctx context.Context, tenantID string) (map[string]*models.Process, error) {
	processes, err := s.store.ProcessStorage().ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	existing := make(map[string]*models.Process, len(processes))
	for _, p := range processes {
		existing[p.ProcessNumber] = p
	}
	return existing, nil
}

// fanOut runs one worker per discovered process under a semaphore of the
// configured capacity. Worker completion order is not observable.
func (s *Service) fanOut(
	ctx context.Context,
	tenant *models.Tenant,
	creds models.Credentials,
	scraper interfaces.Scraper,
	discovered map[string][]string,
	existing map[string]*models.Process,
	task *models.ExtractionTask,
) []*workerResult {
	limit := s.cfg.Extractor.WorkerLimit
	if limit <= 0 {
		limit = 5
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		results   []*workerResult
		completed int
	)
	sem := make(chan struct{}, limit)
	total := len(discovered)

	for processNumber, linkIDs := range discovered {
		select {
		case <-ctx.Done():
			// Workers already started finish their navigation and exit;
			// remaining processes are skipped.
			wg.Wait()
			return results
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(processNumber string, linkIDs []string) {
			defer wg.Done()
			defer func() { <-sem }()

			result := s.runWorker(ctx, tenant, creds, scraper, processNumber, linkIDs, existing[processNumber])

			mu.Lock()
			results = append(results, result)
			completed++
			progress := completed * 100 / total
			mu.Unlock()

			s.tasks.SetProgress(task.ID, progress)
			task.Progress = progress
			if err := s.store.ExtractionTaskStorage().SaveExtractionTask(ctx, task); err != nil {
				s.logger.Debug().Err(err).Str("task_id", task.ID).Msg("Progress persist failed")
			}
		}(processNumber, linkIDs)
	}

	wg.Wait()
	return results
}

// runWorker wraps the per-process worker with session scoping and panic
// containment. A panicking worker must not leak its browser context.
func (s *Service) runWorker(
	ctx context.Context,
	tenant *models.Tenant,
	creds models.Credentials,
	scraper interfaces.Scraper,
	processNumber string,
	linkIDs []string,
	existing *models.Process,
) (result *workerResult) {
	result = &workerResult{processNumber: processNumber}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("tenant_id", tenant.ID).
				Str("process_number", processNumber).
				Str("stage", "worker").
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in process worker")
			result.failed = true
		}
	}()

	session, err := s.pool.Acquire(ctx, tenant, creds, scraper)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("tenant_id", tenant.ID).
			Str("process_number", processNumber).
			Str("stage", "acquire").
			Msg("Worker could not acquire browser session")
		result.failed = true
		return result
	}
	defer s.pool.Release(session)

	worker := &processWorker{
		service:  s,
		tenant:   tenant,
		scraper:  scraper,
		session:  session,
		existing: existing,
	}
	if err := worker.process(ctx, processNumber, linkIDs, result); err != nil {
		s.logger.Error().
			Err(err).
			Str("tenant_id", tenant.ID).
			Str("process_number", processNumber).
			Str("link_id", result.bestLink).
			Str("stage", result.stage).
			Msg("Process worker failed")
		result.failed = true
	}
	return result
}
