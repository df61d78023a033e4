package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
	"github.com/IzacPS/conecta-sei-backend/internal/services/tasks"
	"github.com/IzacPS/conecta-sei-backend/internal/services/vault"
	"github.com/IzacPS/conecta-sei-backend/internal/storage/postgres"
)

const (
	testTenantID  = "t1"
	testProcessNo = "12345.001234/2024-56"
	testDocNumber = "20000001"
)

// fakeObjectStore records uploads and can be told to fail them
type fakeObjectStore struct {
	mu         sync.Mutex
	failUpload bool
	objects    map[string][]byte
	uploads    int
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte)}
}

func (f *fakeObjectStore) Enabled() bool { return !f.failUpload }
func (f *fakeObjectStore) Upload(ctx context.Context, path string, data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpload {
		return false
	}
	f.objects[path] = data
	f.uploads++
	return true
}
func (f *fakeObjectStore) Delete(ctx context.Context, path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, path)
	return true
}
func (f *fakeObjectStore) URLFor(path string) string { return "https://store.test/" + path }

func (f *fakeObjectStore) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[path]
	return ok
}

func (f *fakeObjectStore) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads
}

// fakeSession satisfies BrowserSession; PrintToPDF produces a stub PDF
type fakeSession struct{}

func (f *fakeSession) Navigate(ctx context.Context, url string) error            { return nil }
func (f *fakeSession) WaitVisible(ctx context.Context, selector string) error    { return nil }
func (f *fakeSession) Click(ctx context.Context, selector string) error          { return nil }
func (f *fakeSession) Fill(ctx context.Context, selector, value string) error    { return nil }
func (f *fakeSession) Text(ctx context.Context, selector string) (string, error) { return "", nil }
func (f *fakeSession) ElementCount(ctx context.Context, selector string) (int, error) {
	return 0, nil
}
func (f *fakeSession) OuterHTML(ctx context.Context) (string, error)   { return "", nil }
func (f *fakeSession) Evaluate(ctx context.Context, expr string) error { return nil }
func (f *fakeSession) ExpectDownload(ctx context.Context, trigger func(ctx context.Context) error) (*interfaces.DownloadedFile, error) {
	return nil, fmt.Errorf("not used")
}
func (f *fakeSession) PrintToPDF(ctx context.Context, url string) ([]byte, error) {
	return []byte("%PDF-1.4\nconverted"), nil
}
func (f *fakeSession) TenantID() string    { return testTenantID }
func (f *fakeSession) BaseURL() string     { return "https://sei.example.gov.br" }
func (f *fakeSession) DownloadDir() string { return "" }

type fakePool struct {
	failAcquire bool
}

func (f *fakePool) Acquire(ctx context.Context, tenant *models.Tenant, creds models.Credentials, scraper interfaces.Scraper) (interfaces.BrowserSession, error) {
	if f.failAcquire {
		return nil, fmt.Errorf("%w: browser unavailable", interfaces.ErrConfig)
	}
	return &fakeSession{}, nil
}
func (f *fakePool) Release(session interfaces.BrowserSession) {}
func (f *fakePool) Shutdown() error                           { return nil }

// fakeScraper serves a scripted downloaded file per document
type fakeScraper struct {
	mu        sync.Mutex
	filename  string // suggested filename for every download
	content   []byte
	downloads int
}

func (f *fakeScraper) Version() string { return "4.2.0" }
func (f *fakeScraper) Family() string  { return "v4" }
func (f *fakeScraper) DetectVersion(context.Context, interfaces.BrowserPage) (string, error) {
	return "4.2.0", nil
}
func (f *fakeScraper) Login(context.Context, interfaces.BrowserPage, string, string) error {
	return nil
}
func (f *fakeScraper) ProcessListURL(base string) string     { return base }
func (f *fakeScraper) ProcessURL(base, linkID string) string { return base + "/" + linkID }
func (f *fakeScraper) ListProcesses(context.Context, interfaces.BrowserPage) ([]interfaces.ProcessRef, error) {
	return nil, nil
}
func (f *fakeScraper) OpenProcess(context.Context, interfaces.BrowserPage, string, string) error {
	return nil
}
func (f *fakeScraper) ClassifyAccess(context.Context, interfaces.BrowserPage) (models.AccessType, error) {
	return models.AccessIntegral, nil
}
func (f *fakeScraper) ExtractAuthority(context.Context, interfaces.BrowserPage) (string, error) {
	return "", nil
}
func (f *fakeScraper) ListDocuments(context.Context, interfaces.BrowserPage) ([]interfaces.ScrapedDocument, error) {
	return nil, nil
}

func (f *fakeScraper) DownloadDocument(ctx context.Context, page interfaces.BrowserPage, docNumber string) (*interfaces.DownloadedFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloads++

	dir, err := os.MkdirTemp("", "fake-dl-")
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "capture")
	if err := os.WriteFile(path, f.content, 0644); err != nil {
		return nil, err
	}
	return &interfaces.DownloadedFile{Path: path, SuggestedFilename: f.filename}, nil
}

func (f *fakeScraper) LoginSelectors() interfaces.LoginSelectors { return interfaces.LoginSelectors{} }
func (f *fakeScraper) ProcessSelectors() interfaces.ProcessSelectors {
	return interfaces.ProcessSelectors{}
}
func (f *fakeScraper) DocumentSelectors() interfaces.DocumentSelectors {
	return interfaces.DocumentSelectors{}
}

func (f *fakeScraper) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads
}

type fakeRegistry struct {
	scraper interfaces.Scraper
}

func (f *fakeRegistry) Register(scraper interfaces.Scraper) { f.scraper = scraper }
func (f *fakeRegistry) Get(version string) (interfaces.Scraper, error) {
	return f.scraper, nil
}
func (f *fakeRegistry) Versions() []string { return []string{"4.2.0"} }

type testEnv struct {
	service   *Service
	store     interfaces.StorageManager
	objects   *fakeObjectStore
	scraper   *fakeScraper
	pool      *fakePool
	processID string
}

func newTestEnv(t *testing.T, scraper *fakeScraper) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Tenant{}, &models.Process{}, &models.ExtractionTask{},
		&models.DownloadTask{}, &models.DocumentHistory{},
		&models.ExtractionSchedule{}, &models.SystemConfig{},
	))
	store := postgres.NewManagerWithDB(common.GetLogger(), db)

	v, err := vault.New("test-key")
	require.NoError(t, err)
	encrypted, err := v.EncryptCredentials(models.Credentials{Email: "u@e.br", Password: "pw"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.TenantStorage().SaveTenant(ctx, &models.Tenant{
		ID:                   testTenantID,
		UpstreamURL:          "https://sei.example.gov.br",
		ScraperVersion:       "4.2.0",
		IsActive:             true,
		EncryptedCredentials: encrypted,
	}))

	process := &models.Process{
		ID:              common.NewProcessID(),
		TenantID:        testTenantID,
		ProcessNumber:   testProcessNo,
		AccessType:      models.AccessIntegral,
		BestCurrentLink: "ABC",
	}
	require.NoError(t, process.SetDocumentMap(map[string]models.DocumentRecord{
		testDocNumber: {Type: "Report", Date: "05/08/2024", Status: models.DocumentNotDownloaded, Signer: "Dr. Silva"},
	}))
	require.NoError(t, store.ProcessStorage().UpsertProcess(ctx, process))

	objects := newFakeObjectStore()
	pool := &fakePool{}
	cfg := common.DefaultConfig()
	cfg.Vault.EncryptionKey = "test-key"

	service := NewService(
		context.Background(), cfg, store, objects, &fakeRegistry{scraper: scraper},
		pool, v, tasks.NewRegistry(common.GetLogger()), common.GetLogger())

	return &testEnv{
		service:   service,
		store:     store,
		objects:   objects,
		scraper:   scraper,
		pool:      pool,
		processID: process.ID,
	}
}

func (e *testEnv) runOnce(t *testing.T, docs []string) *models.DownloadTask {
	t.Helper()
	task := &models.DownloadTask{ID: common.NewDownloadTaskID(), ProcessID: e.processID}
	require.NoError(t, task.SetRequestedDocuments(docs))
	require.NoError(t, e.service.Run(context.Background(), task, docs))
	return task
}

func (e *testEnv) documentRecord(t *testing.T) models.DocumentRecord {
	t.Helper()
	process, err := e.store.ProcessStorage().GetProcess(context.Background(), e.processID)
	require.NoError(t, err)
	docs, err := process.DocumentMap()
	require.NoError(t, err)
	return docs[testDocNumber]
}

func TestDownload_HTMLConvertedToPDF(t *testing.T) {
	scraper := &fakeScraper{
		filename: testDocNumber + ".html",
		content:  []byte("<html><body>rendered document</body></html>"),
	}
	env := newTestEnv(t, scraper)

	task := env.runOnce(t, nil)
	assert.Equal(t, models.TaskCompleted, task.Status)

	results, err := task.ResultMap()
	require.NoError(t, err)
	require.Contains(t, results, testDocNumber)
	assert.True(t, results[testDocNumber].Uploaded)

	canonicalPath := testTenantID + "/" + testProcessNo + "/" + testDocNumber + ".pdf"
	assert.True(t, env.objects.has(canonicalPath), "object exists at the canonical path")

	record := env.documentRecord(t)
	assert.Equal(t, models.DocumentDownloaded, record.Status)
	assert.Equal(t, canonicalPath, record.StoragePath)

	// Exactly one history row with new_status=downloaded
	count, err := env.store.DocumentHistoryStorage().CountByDocument(
		context.Background(), env.processID, testDocNumber, models.DocumentDownloaded)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	history, err := env.store.DocumentHistoryStorage().ListByProcess(context.Background(), env.processID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	details, err := history[0].DetailMap()
	require.NoError(t, err)
	assert.NotNil(t, details.DownloadStarted)
	assert.NotNil(t, details.UploadFinished)
	assert.GreaterOrEqual(t, details.TotalDurationMS, int64(0))
	assert.Equal(t, "Report", details.DocumentType)
}

func TestDownload_UploadFailureIsRecoverable(t *testing.T) {
	scraper := &fakeScraper{
		filename: testDocNumber + ".pdf",
		content:  []byte("%PDF-1.4\noriginal"),
	}
	env := newTestEnv(t, scraper)
	env.objects.failUpload = true

	task := env.runOnce(t, nil)
	assert.Equal(t, models.TaskCompleted, task.Status, "a document failure does not fail the task")

	record := env.documentRecord(t)
	assert.Equal(t, models.DocumentPartial, record.Status, "download succeeded, upload did not")

	count, err := env.store.DocumentHistoryStorage().CountByDocument(
		context.Background(), env.processID, testDocNumber, models.DocumentPartial)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Object store recovers; the next run upgrades the document
	env.objects.failUpload = false
	env.runOnce(t, nil)

	record = env.documentRecord(t)
	assert.Equal(t, models.DocumentDownloaded, record.Status)
	assert.Equal(t, 1, env.objects.uploadCount())
}

func TestDownload_SecondRunSkipsDownloaded(t *testing.T) {
	scraper := &fakeScraper{
		filename: testDocNumber + ".pdf",
		content:  []byte("%PDF-1.4\noriginal"),
	}
	env := newTestEnv(t, scraper)

	env.runOnce(t, nil)
	require.Equal(t, models.DocumentDownloaded, env.documentRecord(t).Status)
	require.Equal(t, 1, env.scraper.downloadCount())

	task := env.runOnce(t, []string{testDocNumber})
	results, err := task.ResultMap()
	require.NoError(t, err)
	assert.True(t, results[testDocNumber].Uploaded)
	assert.Equal(t, "already downloaded", results[testDocNumber].Reason)

	// Exactly one download and one upload across both runs
	assert.Equal(t, 1, env.scraper.downloadCount())
	assert.Equal(t, 1, env.objects.uploadCount())
}

func TestDownload_NoBrowserContextFailsTask(t *testing.T) {
	scraper := &fakeScraper{filename: testDocNumber + ".pdf", content: []byte("%PDF-1.4")}
	env := newTestEnv(t, scraper)
	env.pool.failAcquire = true

	task := &models.DownloadTask{ID: common.NewDownloadTaskID(), ProcessID: env.processID}
	require.NoError(t, task.SetRequestedDocuments(nil))
	err := env.service.Run(context.Background(), task, nil)
	require.Error(t, err)
	assert.Equal(t, models.TaskFailed, task.Status)
}

func TestDownload_ProcessWithoutValidLinks(t *testing.T) {
	scraper := &fakeScraper{filename: testDocNumber + ".pdf", content: []byte("%PDF-1.4")}
	env := newTestEnv(t, scraper)

	process, err := env.store.ProcessStorage().GetProcess(context.Background(), env.processID)
	require.NoError(t, err)
	process.NoValidLinks = true
	require.NoError(t, env.store.ProcessStorage().UpsertProcess(context.Background(), process))

	task := &models.DownloadTask{ID: common.NewDownloadTaskID(), ProcessID: env.processID}
	require.NoError(t, task.SetRequestedDocuments(nil))
	err = env.service.Run(context.Background(), task, nil)
	require.Error(t, err)
}

func TestProcessFilename(t *testing.T) {
	tests := []struct {
		suggested string
		docNumber string
		docType   string
		want      string
	}{
		{"20000001.pdf", "20000001", "Despacho", "Despacho_20000001.pdf"},
		{"20000001.html", "20000001", "Relatório 1/2", "Relatório 1_2_20000001.html"},
		{"20000001.pdf", "20000001", "", "Documento_20000001.pdf"},
		{"already-named.pdf", "20000001", "Despacho", "already-named.pdf"},
		{"", "20000001", "Despacho", "Despacho_20000001.pdf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProcessFilename(tt.suggested, tt.docNumber, tt.docType), "suggested=%q", tt.suggested)
	}
}

func TestSelectDocuments(t *testing.T) {
	docs := map[string]models.DocumentRecord{
		"10000001": {Status: models.DocumentNotDownloaded},
		"10000002": {Status: models.DocumentDownloaded},
		"10000003": {Status: models.DocumentError},
		"10000004": {Status: models.DocumentPartial},
	}

	assert.Equal(t, []string{"10000001", "10000003", "10000004"}, selectDocuments(docs, nil))
	assert.Equal(t, []string{"10000002"}, selectDocuments(docs, []string{"10000002"}))
	assert.Empty(t, selectDocuments(docs, []string{"99999999"}))
}
