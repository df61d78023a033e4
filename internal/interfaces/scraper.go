package interfaces

import (
	"context"

	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// ProcessRef is one (process number, access link) pair discovered on the
// process listing page. A process may appear under several links.
type ProcessRef struct {
	ProcessNumber string
	LinkID        string
}

// ScrapedDocument is one document row read from a process page
type ScrapedDocument struct {
	Number string
	Type   string
	Date   string // dd/mm/yyyy as rendered upstream
	Signer string
}

// LoginSelectors locates the login form
type LoginSelectors struct {
	Email    string
	Password string
	Submit   string
	Error    string
	LoggedIn string
}

// ProcessSelectors locates the process listing and process view
type ProcessSelectors struct {
	ListTable        string
	ListRows         string
	ListLink         string
	LocationBar      string
	IntegralKeywords []string
	PartialKeywords  []string
	AuthorityCell    string
	Loading          string
}

// DocumentSelectors locates the document table on a process view
type DocumentSelectors struct {
	Table      string
	Rows       string
	NumberCell string
	TypeCell   string
	DateCell   string
	SignerCell string
}

// Scraper is the version-agnostic capability interface every upstream
// scraper plugin exposes. Plugins are registered per exact version string;
// a family-level default implementation carries the shared behavior and
// version plugins override only what differs.
type Scraper interface {
	// Version is the exact upstream version this plugin serves (e.g. "4.2.0")
	Version() string

	// Family is the upstream version family (e.g. "v4")
	Family() string

	// DetectVersion inspects a loaded page and returns a version string, or
	// "" when this plugin does not recognize the page. Advisory only; used
	// during onboarding.
	DetectVersion(ctx context.Context, page BrowserPage) (string, error)

	// Login drives the login form. Errors wrap ErrAuth on bad credentials
	// and ErrNavigation otherwise.
	Login(ctx context.Context, page BrowserPage, email, password string) error

	// ProcessListURL resolves the process listing page against the tenant's
	// upstream origin.
	ProcessListURL(baseURL string) string

	// ProcessURL resolves a process view URL from a normalized link id
	ProcessURL(baseURL, linkID string) string

	// ListProcesses reads the process listing page into (number, link) pairs
	ListProcesses(ctx context.Context, page BrowserPage) ([]ProcessRef, error)

	// OpenProcess navigates to a process view and waits for the document
	// table to be ready.
	OpenProcess(ctx context.Context, page BrowserPage, baseURL, linkID string) error

	// ClassifyAccess determines the access level from the loaded process view
	ClassifyAccess(ctx context.Context, page BrowserPage) (models.AccessType, error)

	// ExtractAuthority reads the authority from the loaded process view, or
	// "" when not present.
	ExtractAuthority(ctx context.Context, page BrowserPage) (string, error)

	// ListDocuments reads the document table from the loaded process view
	ListDocuments(ctx context.Context, page BrowserPage) ([]ScrapedDocument, error)

	// DownloadDocument triggers the download of one document from the loaded
	// process view, applying any version-specific modifier, and returns the
	// captured file. Implementations must tolerate JavaScript dialogs.
	DownloadDocument(ctx context.Context, page BrowserPage, docNumber string) (*DownloadedFile, error)

	// Selector tables, declarative per spec
	LoginSelectors() LoginSelectors
	ProcessSelectors() ProcessSelectors
	DocumentSelectors() DocumentSelectors
}

// ScraperRegistry maps upstream version strings to plugin instances.
// Populated once at startup, read-only thereafter.
type ScraperRegistry interface {
	Register(scraper Scraper)
	Get(version string) (Scraper, error)
	Versions() []string
}
