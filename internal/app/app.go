package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/scrapers"
	"github.com/IzacPS/conecta-sei-backend/internal/services/browser"
	"github.com/IzacPS/conecta-sei-backend/internal/services/downloader"
	"github.com/IzacPS/conecta-sei-backend/internal/services/extractor"
	"github.com/IzacPS/conecta-sei-backend/internal/services/notify"
	"github.com/IzacPS/conecta-sei-backend/internal/services/objectstore"
	"github.com/IzacPS/conecta-sei-backend/internal/services/scheduler"
	"github.com/IzacPS/conecta-sei-backend/internal/services/tasks"
	"github.com/IzacPS/conecta-sei-backend/internal/services/vault"
	"github.com/IzacPS/conecta-sei-backend/internal/storage/postgres"

	// Scraper plugins register themselves at startup
	_ "github.com/IzacPS/conecta-sei-backend/internal/scrapers/v4/v420"
)

// App holds the wired pipeline. Singletons (object store, plugin registry,
// scheduler) are initialized once here and passed as explicit dependencies
// so tests stay deterministic.
type App struct {
	Config     *common.Config
	Logger     arbor.ILogger
	Storage    interfaces.StorageManager
	Registry   interfaces.ScraperRegistry
	Pool       *browser.Pool
	Vault      interfaces.CredentialVault
	Tasks      interfaces.TaskRegistry
	Objects    interfaces.ObjectStore
	Notifier   interfaces.Notifier
	Extractor  *extractor.Service
	Downloader *downloader.Service
	Scheduler  interfaces.SchedulerService

	cancel context.CancelFunc
}

// New wires every component. Startup order: storage, orphan recovery,
// singletons, browser pool, pipeline services, scheduler.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	storage, err := postgres.NewManager(logger, &config.Database)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	taskRegistry := tasks.NewRegistry(logger)
	if err := tasks.RecoverOrphans(ctx, storage, logger); err != nil {
		logger.Warn().Err(err).Msg("Orphaned task recovery failed")
	}

	credentialVault, err := vault.New(config.Vault.EncryptionKey)
	if err != nil {
		cancel()
		storage.Close()
		return nil, err
	}

	objects := objectstore.Instance(config.ObjectStore, logger)
	registry := scrapers.Default()
	logger.Info().Strs("versions", registry.Versions()).Msg("Scraper plugins registered")

	pool := browser.NewPool(config.Browser, logger)
	if err := pool.Start(); err != nil {
		cancel()
		storage.Close()
		return nil, fmt.Errorf("failed to start browser pool: %w", err)
	}

	notifier := notify.NewNotifier(storage.SystemConfigStorage(), logger)

	extractorService := extractor.NewService(
		ctx, config, storage, registry, pool, credentialVault, taskRegistry, notifier, logger)
	downloaderService := downloader.NewService(
		ctx, config, storage, objects, registry, pool, credentialVault, taskRegistry, logger)

	schedulerService := scheduler.NewService(storage, extractorService, logger)
	if err := schedulerService.Start(); err != nil {
		cancel()
		pool.Shutdown()
		storage.Close()
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	return &App{
		Config:     config,
		Logger:     logger,
		Storage:    storage,
		Registry:   registry,
		Pool:       pool,
		Vault:      credentialVault,
		Tasks:      taskRegistry,
		Objects:    objects,
		Notifier:   notifier,
		Extractor:  extractorService,
		Downloader: downloaderService,
		Scheduler:  schedulerService,
		cancel:     cancel,
	}, nil
}

// Shutdown drains the scheduler, aborts in-flight runs and releases every
// shared resource, in reverse startup order.
func (a *App) Shutdown() {
	a.Logger.Info().Msg("Shutting down")

	if err := a.Scheduler.Stop(a.Config.Scheduler.ShutdownGrace); err != nil {
		a.Logger.Warn().Err(err).Msg("Scheduler stop reported error")
	}

	// Cancelling the base context tells running workers to finish their
	// current navigation, release their sessions and exit.
	a.cancel()

	if err := a.Pool.Shutdown(); err != nil {
		a.Logger.Warn().Err(err).Msg("Browser pool shutdown reported error")
	}
	if err := a.Storage.Close(); err != nil {
		a.Logger.Warn().Err(err).Msg("Storage close reported error")
	}

	a.Logger.Info().Msg("Shutdown complete")
}
