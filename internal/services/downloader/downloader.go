package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/ternarybob/arbor"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
	"github.com/IzacPS/conecta-sei-backend/internal/services/objectstore"
)

var reservedChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// Service downloads documents for one process, normalizes them to PDF,
// uploads to the object store and records history. Invoking it twice for
// the same document is safe: a downloaded document is skipped.
type Service struct {
	logger   arbor.ILogger
	cfg      *common.Config
	store    interfaces.StorageManager
	objects  interfaces.ObjectStore
	registry interfaces.ScraperRegistry
	pool     interfaces.BrowserPool
	vault    interfaces.CredentialVault
	tasks    interfaces.TaskRegistry
	baseCtx  context.Context
}

// Compile-time assertion
var _ interfaces.DownloadRunner = (*Service)(nil)

// NewService wires the document downloader
func NewService(
	baseCtx context.Context,
	cfg *common.Config,
	store interfaces.StorageManager,
	objects interfaces.ObjectStore,
	registry interfaces.ScraperRegistry,
	pool interfaces.BrowserPool,
	vault interfaces.CredentialVault,
	tasks interfaces.TaskRegistry,
	logger arbor.ILogger,
) *Service {
	return &Service{
		logger:   logger,
		cfg:      cfg,
		store:    store,
		objects:  objects,
		registry: registry,
		pool:     pool,
		vault:    vault,
		tasks:    tasks,
		baseCtx:  baseCtx,
	}
}

// StartDownload begins a background download run for the process and returns
// the task id immediately. An empty document list selects every document
// still pending download.
func (s *Service) StartDownload(ctx context.Context, processID string, documentNumbers []string) (string, error) {
	taskID := common.NewDownloadTaskID()

	task := &models.DownloadTask{
		ID:        taskID,
		ProcessID: processID,
		Status:    models.TaskPending,
	}
	if err := task.SetRequestedDocuments(documentNumbers); err != nil {
		return "", err
	}
	if err := s.store.DownloadTaskStorage().SaveDownloadTask(ctx, task); err != nil {
		return "", err
	}
	s.tasks.Track(taskID, interfaces.TaskKindDownload, processID)

	go func() {
		defer common.RecoverWithCrashFile()

		runCtx, cancel := context.WithTimeout(s.baseCtx, s.cfg.Extractor.RunTimeout)
		defer cancel()

		s.run(runCtx, task, documentNumbers)
	}()

	return taskID, nil
}

// Run executes a download synchronously. Exposed for callers that already
// run in the background (and for tests).
func (s *Service) Run(ctx context.Context, task *models.DownloadTask, documentNumbers []string) error {
	return s.execute(ctx, task, documentNumbers)
}

func (s *Service) run(ctx context.Context, task *models.DownloadTask, documentNumbers []string) {
	if err := s.execute(ctx, task, documentNumbers); err != nil {
		s.logger.Error().
			Err(err).
			Str("task_id", task.ID).
			Str("process_id", task.ProcessID).
			Msg("Download task failed")
	}
}

func (s *Service) execute(ctx context.Context, task *models.DownloadTask, documentNumbers []string) error {
	started := time.Now()
	task.Status = models.TaskRunning
	task.StartedAt = &started
	if err := s.store.DownloadTaskStorage().SaveDownloadTask(ctx, task); err != nil {
		return err
	}
	s.tasks.SetStatus(task.ID, models.TaskRunning)

	results, runErr := s.download(ctx, task, documentNumbers)

	finished := time.Now()
	task.FinishedAt = &finished
	if err := task.SetResults(results); err != nil {
		s.logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to serialize download results")
	}

	if runErr != nil {
		task.Status = models.TaskFailed
	} else {
		task.Status = models.TaskCompleted
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.DownloadTaskStorage().SaveDownloadTask(saveCtx, task); err != nil {
		s.logger.Error().Err(err).Str("task_id", task.ID).Msg("Failed to persist terminal download task")
	}
	s.tasks.SetStatus(task.ID, task.Status)
	s.tasks.Done(task.ID)

	return runErr
}

// download walks the selected documents one by one. A single document
// failure moves on to the next. The whole task fails when the process or
// tenant is missing, the process has no valid link, the scraper or the
// credentials cannot be resolved, no browser session can be acquired, or the
// process page cannot be opened.
func (s *Service) download(ctx context.Context, task *models.DownloadTask, documentNumbers []string) (map[string]models.DownloadResult, error) {
	results := make(map[string]models.DownloadResult)

	process, err := s.store.ProcessStorage().GetProcess(ctx, task.ProcessID)
	if err != nil {
		return results, err
	}
	if process == nil {
		return results, fmt.Errorf("%w: process %s not found", interfaces.ErrConfig, task.ProcessID)
	}
	if process.NoValidLinks || process.BestCurrentLink == "" {
		return results, fmt.Errorf("%w: process %s has no valid links", interfaces.ErrConfig, process.ProcessNumber)
	}

	tenant, err := s.store.TenantStorage().GetTenant(ctx, process.TenantID)
	if err != nil {
		return results, err
	}
	if tenant == nil {
		return results, fmt.Errorf("%w: tenant %s not found", interfaces.ErrConfig, process.TenantID)
	}

	scraper, err := s.registry.Get(tenant.ScraperVersion)
	if err != nil {
		return results, err
	}
	creds, err := s.vault.DecryptCredentials(tenant.EncryptedCredentials)
	if err != nil {
		return results, err
	}

	docs, err := process.DocumentMap()
	if err != nil {
		return results, err
	}

	selected := selectDocuments(docs, documentNumbers)
	if len(selected) == 0 {
		return results, nil
	}

	session, err := s.pool.Acquire(ctx, tenant, creds, scraper)
	if err != nil {
		// No browser context at all: the task fails
		return results, err
	}
	defer s.pool.Release(session)

	if err := scraper.OpenProcess(ctx, session, tenant.UpstreamURL, process.BestCurrentLink); err != nil {
		return results, err
	}

	for i, docNumber := range selected {
		record := docs[docNumber]

		if record.Status == models.DocumentDownloaded {
			results[docNumber] = models.DownloadResult{Uploaded: true, Reason: "already downloaded"}
			continue
		}

		status, detail := s.downloadOne(ctx, session, scraper, tenant, process, docNumber, record)

		record.Status = status
		record.LastChecked = time.Now().Format(models.CheckTimeFormat)
		if detail.StoragePath != "" {
			record.StoragePath = detail.StoragePath
		}
		docs[docNumber] = record

		results[docNumber] = models.DownloadResult{
			Uploaded: status == models.DocumentDownloaded,
			Reason:   detail.Error,
		}

		// Commit per document to bound the blast radius of later failures
		if err := process.SetDocumentMap(docs); err == nil {
			if err := s.store.ProcessStorage().UpsertProcess(ctx, process); err != nil {
				s.logger.Error().
					Err(err).
					Str("process_number", process.ProcessNumber).
					Str("document_number", docNumber).
					Msg("Failed to persist document status")
			}
		}

		s.tasks.SetProgress(task.ID, (i+1)*100/len(selected))
	}

	return results, nil
}

// downloadOne runs the full fetch/convert/upload sequence for one document
// and appends its history row on every exit path.
func (s *Service) downloadOne(
	ctx context.Context,
	session interfaces.BrowserSession,
	scraper interfaces.Scraper,
	tenant *models.Tenant,
	process *models.Process,
	docNumber string,
	record models.DocumentRecord,
) (models.DocumentStatus, *models.DownloadDetails) {
	started := time.Now()
	details := &models.DownloadDetails{
		DocumentType:    record.Type,
		DocumentDate:    record.Date,
		Signer:          record.Signer,
		DownloadStarted: &started,
	}
	status := models.DocumentError

	defer func() {
		finished := time.Now()
		details.TotalDurationMS = finished.Sub(started).Milliseconds()

		history := &models.DocumentHistory{
			ID:             common.NewHistoryID(),
			ProcessID:      process.ID,
			DocumentNumber: docNumber,
			Action:         models.HistoryActionDownload,
			NewStatus:      status,
			Timestamp:      finished,
		}
		if err := history.SetDetails(details); err == nil {
			if err := s.store.DocumentHistoryStorage().AppendHistory(ctx, history); err != nil {
				s.logger.Error().
					Err(err).
					Str("document_number", docNumber).
					Msg("Failed to append document history")
			}
		}
	}()

	// Scratch space scoped to this document; released on all exit paths
	tempDir, err := os.MkdirTemp("", "conectasei-doc-")
	if err != nil {
		details.Error = err.Error()
		return status, details
	}
	defer os.RemoveAll(tempDir)

	file, err := scraper.DownloadDocument(ctx, session, docNumber)
	if err != nil {
		details.Error = err.Error()
		s.logger.Error().
			Err(err).
			Str("tenant_id", tenant.ID).
			Str("process_number", process.ProcessNumber).
			Str("document_number", docNumber).
			Str("stage", "download").
			Msg("Document download failed")
		return status, details
	}

	downloadDone := time.Now()
	details.DownloadFinished = &downloadDone

	localPath, err := s.normalizeFile(ctx, session, file, tempDir, docNumber, record)
	if err != nil {
		details.Error = err.Error()
		return status, details
	}
	details.FileName = filepath.Base(localPath)
	if info, err := os.Stat(localPath); err == nil {
		details.FileSizeBytes = info.Size()
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		details.Error = err.Error()
		return status, details
	}

	uploadStart := time.Now()
	details.UploadStarted = &uploadStart

	storagePath := objectstore.DocumentPath(tenant.ID, process.ProcessNumber, docNumber)
	uploaded := s.objects.Upload(ctx, storagePath, data)

	uploadDone := time.Now()
	details.UploadFinished = &uploadDone

	if !uploaded {
		// Download succeeded, upload did not: a later run retries the upload
		details.Error = "object store upload failed"
		status = models.DocumentPartial
		s.logger.Warn().
			Str("process_number", process.ProcessNumber).
			Str("document_number", docNumber).
			Str("stage", "upload").
			Msg("Document downloaded but upload deferred")
		return status, details
	}

	details.StoragePath = storagePath
	status = models.DocumentDownloaded

	s.logger.Info().
		Str("process_number", process.ProcessNumber).
		Str("document_number", docNumber).
		Str("storage_path", storagePath).
		Int64("size_bytes", details.FileSizeBytes).
		Msg("Document uploaded")

	return status, details
}

// normalizeFile moves the captured download into the scratch dir under its
// final name, converting HTML payloads to PDF with the browser engine.
func (s *Service) normalizeFile(
	ctx context.Context,
	session interfaces.BrowserSession,
	file *interfaces.DownloadedFile,
	tempDir, docNumber string,
	record models.DocumentRecord,
) (string, error) {
	filename := ProcessFilename(file.SuggestedFilename, docNumber, record.Type)
	localPath := filepath.Join(tempDir, filename)
	if err := os.Rename(file.Path, localPath); err != nil {
		return "", fmt.Errorf("failed to move download: %w", err)
	}

	if strings.EqualFold(filepath.Ext(localPath), ".html") {
		s.logger.Debug().Str("document_number", docNumber).Msg("Converting HTML document to PDF")

		pdfBytes, err := session.PrintToPDF(ctx, "file://"+localPath)
		if err != nil {
			return "", err
		}

		pdfPath := strings.TrimSuffix(localPath, filepath.Ext(localPath)) + ".pdf"
		if err := os.WriteFile(pdfPath, pdfBytes, 0644); err != nil {
			return "", fmt.Errorf("failed to write converted PDF: %w", err)
		}
		if err := os.Remove(localPath); err != nil {
			s.logger.Warn().Err(err).Str("path", localPath).Msg("Failed to remove HTML original")
		}
		localPath = pdfPath
	}

	// Sanity-check the payload; upstream sometimes serves broken files
	if err := api.ValidateFile(localPath, nil); err != nil {
		s.logger.Warn().
			Err(err).
			Str("document_number", docNumber).
			Msg("Downloaded file failed PDF validation, uploading as-is")
	}

	return localPath, nil
}

// ProcessFilename prepends the document type when the upstream suggested a
// bare 8-digit filename, sanitizing filesystem-reserved characters.
func ProcessFilename(suggested, docNumber, docType string) string {
	if suggested == "" {
		suggested = docNumber + ".pdf"
	}
	ext := filepath.Ext(suggested)
	stem := strings.TrimSuffix(filepath.Base(suggested), ext)

	if common.IsValidDocumentNumber(stem) {
		if docType == "" {
			docType = "Documento"
		}
		name := reservedChars.ReplaceAllString(docType+"_"+stem+ext, "_")
		return name
	}
	return reservedChars.ReplaceAllString(filepath.Base(suggested), "_")
}

// selectDocuments resolves the requested set: an explicit list is honored
// as-is (minus unknown numbers); the default picks every document still
// pending download, including prior errors and deferred uploads.
func selectDocuments(docs map[string]models.DocumentRecord, requested []string) []string {
	var selected []string
	if len(requested) > 0 {
		for _, number := range requested {
			if _, ok := docs[number]; ok {
				selected = append(selected, number)
			}
		}
	} else {
		for number, record := range docs {
			switch record.Status {
			case models.DocumentNotDownloaded, models.DocumentError, models.DocumentPartial:
				selected = append(selected, number)
			}
		}
	}
	sort.Strings(selected)
	return selected
}
