package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// jobEntry is one live scheduled tenant with metadata
type jobEntry struct {
	tenantID   string
	kind       string
	expression string
	cronID     cron.EntryID
	lastRun    *time.Time
	isRunning  bool
}

// Service is the single-process in-memory schedule engine. It loads every
// active schedule at startup and fires the extractor per tenant. Missed
// fires coalesce: a fire due while the prior run is active is dropped, not
// queued.
type Service struct {
	logger  arbor.ILogger
	store   interfaces.StorageManager
	runner  interfaces.ExtractionRunner
	cron    *cron.Cron
	jobMu   sync.Mutex // protects jobs map and entry state
	jobs    map[string]*jobEntry
	running bool
	wg      sync.WaitGroup // in-flight job handlers, drained on Stop
}

// Compile-time assertion
var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates the scheduler
func NewService(store interfaces.StorageManager, runner interfaces.ExtractionRunner, logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
		store:  store,
		runner: runner,
		cron:   cron.New(),
		jobs:   make(map[string]*jobEntry),
	}
}

// Start loads active schedules from storage and begins firing
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schedules, err := s.store.ScheduleStorage().ListActiveSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load schedules: %w", err)
	}

	loaded := 0
	for _, schedule := range schedules {
		if err := s.addJob(schedule); err != nil {
			s.logger.Error().
				Err(err).
				Str("tenant_id", schedule.TenantID).
				Msg("Failed to register schedule, skipping")
			continue
		}
		loaded++
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Int("schedules", loaded).Msg("Scheduler started")
	return nil
}

// Stop drains in-flight jobs within the grace period, then returns.
// Runs still active after the grace period are abandoned to the extractor's
// own run timeout.
func (s *Service) Stop(grace time.Duration) error {
	if !s.running {
		return nil
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(grace):
		s.logger.Warn().Msg("Cron drain exceeded grace period")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info().Msg("Scheduler stopped, all jobs drained")
	case <-time.After(grace):
		s.logger.Warn().Msg("Scheduler stopped with jobs still in flight")
	}

	s.running = false
	return nil
}

// ApplySchedule persists the schedule row and reconciles the live job table:
// active schedules are (re-)added, inactive ones removed.
func (s *Service) ApplySchedule(schedule *models.ExtractionSchedule) error {
	if err := common.ValidateScheduleExpression(schedule.Kind, schedule.Expression); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.ScheduleStorage().SaveSchedule(ctx, schedule); err != nil {
		return err
	}

	s.removeJob(schedule.TenantID)
	if !schedule.IsActive {
		s.logger.Info().Str("tenant_id", schedule.TenantID).Msg("Schedule disabled")
		return nil
	}
	return s.addJob(schedule)
}

// RemoveSchedule deletes the persisted row and the live job
func (s *Service) RemoveSchedule(tenantID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.ScheduleStorage().DeleteSchedule(ctx, tenantID); err != nil {
		return err
	}
	s.removeJob(tenantID)
	return nil
}

// Statuses lists the live job table
func (s *Service) Statuses() []interfaces.ScheduleStatus {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	statuses := make([]interfaces.ScheduleStatus, 0, len(s.jobs))
	for _, entry := range s.jobs {
		status := interfaces.ScheduleStatus{
			TenantID:   entry.tenantID,
			Kind:       entry.kind,
			Expression: entry.expression,
			LastRun:    entry.lastRun,
			IsRunning:  entry.isRunning,
		}
		for _, cronEntry := range s.cron.Entries() {
			if cronEntry.ID == entry.cronID {
				next := cronEntry.Next
				status.NextRun = &next
				break
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// addJob registers one schedule with the cron engine
func (s *Service) addJob(schedule *models.ExtractionSchedule) error {
	tenantID := schedule.TenantID

	var cronSchedule cron.Schedule
	switch schedule.Kind {
	case common.ScheduleKindInterval:
		interval, err := common.ParseInterval(schedule.Expression)
		if err != nil {
			return fmt.Errorf("invalid interval for tenant %s: %w", tenantID, err)
		}
		cronSchedule = cron.Every(interval)
	case common.ScheduleKindCron:
		parsed, err := common.CronSchedule(schedule.Expression)
		if err != nil {
			return fmt.Errorf("invalid cron line for tenant %s: %w", tenantID, err)
		}
		cronSchedule = parsed
	default:
		return fmt.Errorf("unknown schedule kind %q for tenant %s", schedule.Kind, tenantID)
	}

	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	entry := &jobEntry{
		tenantID:   tenantID,
		kind:       schedule.Kind,
		expression: schedule.Expression,
	}
	entry.cronID = s.cron.Schedule(cronSchedule, cron.FuncJob(func() {
		s.fire(tenantID)
	}))
	s.jobs[tenantID] = entry

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("kind", schedule.Kind).
		Str("expression", schedule.Expression).
		Msg("Schedule registered")
	return nil
}

func (s *Service) removeJob(tenantID string) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if entry, ok := s.jobs[tenantID]; ok {
		s.cron.Remove(entry.cronID)
		delete(s.jobs, tenantID)
	}
}

// fire runs one scheduled extraction. A fire due while the tenant's prior
// run is still active is dropped; the extractor's per-tenant lock coalesces
// the request onto the running task.
func (s *Service) fire(tenantID string) {
	s.jobMu.Lock()
	entry, ok := s.jobs[tenantID]
	if !ok {
		s.jobMu.Unlock()
		return
	}
	if entry.isRunning {
		s.jobMu.Unlock()
		s.logger.Debug().Str("tenant_id", tenantID).Msg("Prior run still active, dropping fire")
		return
	}
	entry.isRunning = true
	s.jobMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().
					Str("tenant_id", tenantID).
					Str("panic", fmt.Sprintf("%v", r)).
					Msg("PANIC RECOVERED in scheduled extraction")
			}
			now := time.Now()
			s.jobMu.Lock()
			if entry, ok := s.jobs[tenantID]; ok {
				entry.isRunning = false
				entry.lastRun = &now
			}
			s.jobMu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		// Inactive tenants are an operator decision, not a fault: skip the
		// fire instead of piling up failed task rows.
		tenant, err := s.store.TenantStorage().GetTenant(ctx, tenantID)
		if err != nil {
			s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("Scheduled fire could not load tenant")
			return
		}
		if tenant == nil || !tenant.IsActive {
			s.logger.Warn().Str("tenant_id", tenantID).Msg("Tenant missing or inactive, skipping scheduled extraction")
			return
		}

		taskID, err := s.runner.StartExtraction(ctx, tenantID)
		if err != nil {
			s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("Scheduled extraction failed to start")
			return
		}
		s.logger.Info().
			Str("tenant_id", tenantID).
			Str("task_id", taskID).
			Msg("Scheduled extraction started")
	}()
}
