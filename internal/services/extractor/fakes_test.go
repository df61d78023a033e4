package extractor

import (
	"context"
	"fmt"
	"sync"

	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// fakeSession satisfies BrowserSession without a browser. The fake scraper
// does all the work, so the page operations are inert.
type fakeSession struct {
	tenantID string
	baseURL  string
}

func (f *fakeSession) Navigate(ctx context.Context, url string) error         { return nil }
func (f *fakeSession) WaitVisible(ctx context.Context, selector string) error { return nil }
func (f *fakeSession) Click(ctx context.Context, selector string) error       { return nil }
func (f *fakeSession) Fill(ctx context.Context, selector, value string) error { return nil }
func (f *fakeSession) Text(ctx context.Context, selector string) (string, error) {
	return "", nil
}
func (f *fakeSession) ElementCount(ctx context.Context, selector string) (int, error) {
	return 0, nil
}
func (f *fakeSession) OuterHTML(ctx context.Context) (string, error) { return "", nil }
func (f *fakeSession) Evaluate(ctx context.Context, expression string) error {
	return nil
}
func (f *fakeSession) ExpectDownload(ctx context.Context, trigger func(ctx context.Context) error) (*interfaces.DownloadedFile, error) {
	return nil, fmt.Errorf("not supported")
}
func (f *fakeSession) PrintToPDF(ctx context.Context, url string) ([]byte, error) {
	return nil, fmt.Errorf("not supported")
}
func (f *fakeSession) TenantID() string    { return f.tenantID }
func (f *fakeSession) BaseURL() string     { return f.baseURL }
func (f *fakeSession) DownloadDir() string { return "" }

// fakePool hands out fake sessions and counts acquire/release pairs
type fakePool struct {
	mu       sync.Mutex
	acquired int
	released int
	failWith error
}

func (f *fakePool) Acquire(ctx context.Context, tenant *models.Tenant, creds models.Credentials, scraper interfaces.Scraper) (interfaces.BrowserSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.acquired++
	return &fakeSession{tenantID: tenant.ID, baseURL: tenant.UpstreamURL}, nil
}

func (f *fakePool) Release(session interfaces.BrowserSession) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
}

func (f *fakePool) Shutdown() error { return nil }

// fakeScraper scripts upstream behavior per link id
type fakeScraper struct {
	mu        sync.Mutex
	listing   []interfaces.ProcessRef
	access    map[string]models.AccessType // link id -> classification
	navFail   map[string]bool              // link id -> navigation always fails
	documents []interfaces.ScrapedDocument
	authority string
	opened    []string // link ids navigated to, in order
}

func (f *fakeScraper) Version() string { return "4.2.0" }
func (f *fakeScraper) Family() string  { return "v4" }
func (f *fakeScraper) DetectVersion(context.Context, interfaces.BrowserPage) (string, error) {
	return "4.2.0", nil
}
func (f *fakeScraper) Login(context.Context, interfaces.BrowserPage, string, string) error {
	return nil
}
func (f *fakeScraper) ProcessListURL(base string) string { return base + "/list" }
func (f *fakeScraper) ProcessURL(base, linkID string) string {
	return base + "/process/" + linkID
}
func (f *fakeScraper) ListProcesses(context.Context, interfaces.BrowserPage) ([]interfaces.ProcessRef, error) {
	return f.listing, nil
}

func (f *fakeScraper) OpenProcess(ctx context.Context, page interfaces.BrowserPage, baseURL, linkID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, linkID)
	if f.navFail[linkID] {
		return fmt.Errorf("%w: link %s unreachable", interfaces.ErrNavigation, linkID)
	}
	return nil
}

func (f *fakeScraper) ClassifyAccess(ctx context.Context, page interfaces.BrowserPage) (models.AccessType, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.opened) == 0 {
		return models.AccessError, nil
	}
	current := f.opened[len(f.opened)-1]
	if access, ok := f.access[current]; ok {
		return access, nil
	}
	return models.AccessError, nil
}

func (f *fakeScraper) ExtractAuthority(context.Context, interfaces.BrowserPage) (string, error) {
	return f.authority, nil
}
func (f *fakeScraper) ListDocuments(context.Context, interfaces.BrowserPage) ([]interfaces.ScrapedDocument, error) {
	return f.documents, nil
}
func (f *fakeScraper) DownloadDocument(context.Context, interfaces.BrowserPage, string) (*interfaces.DownloadedFile, error) {
	return nil, fmt.Errorf("not supported")
}
func (f *fakeScraper) LoginSelectors() interfaces.LoginSelectors { return interfaces.LoginSelectors{} }
func (f *fakeScraper) ProcessSelectors() interfaces.ProcessSelectors {
	return interfaces.ProcessSelectors{}
}
func (f *fakeScraper) DocumentSelectors() interfaces.DocumentSelectors {
	return interfaces.DocumentSelectors{}
}

func (f *fakeScraper) openedLinks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

// fakeNotifier records the post-run notices
type fakeNotifier struct {
	mu      sync.Mutex
	pending []interfaces.PendingProcess
	notices []interfaces.NewDocumentsNotice
}

func (f *fakeNotifier) NotifyPendingProcesses(ctx context.Context, tenantID string, pending []interfaces.PendingProcess) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, pending...)
}

func (f *fakeNotifier) NotifyNewDocuments(ctx context.Context, tenantID string, notices []interfaces.NewDocumentsNotice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notices...)
}

// fakeRegistry serves one scraper for every version
type fakeRegistry struct {
	scraper interfaces.Scraper
	missing bool
}

func (f *fakeRegistry) Register(scraper interfaces.Scraper) { f.scraper = scraper }
func (f *fakeRegistry) Get(version string) (interfaces.Scraper, error) {
	if f.missing {
		return nil, fmt.Errorf("%w: no scraper registered for version %q", interfaces.ErrConfig, version)
	}
	return f.scraper, nil
}
func (f *fakeRegistry) Versions() []string { return []string{"4.2.0"} }
