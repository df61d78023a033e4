package interfaces

import (
	"context"

	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// DownloadedFile is a captured browser download on local disk
type DownloadedFile struct {
	Path              string
	SuggestedFilename string
}

// BrowserPage is the navigation surface a scraper plugin drives. A page is
// not safe for concurrent use; each worker holds its own session.
type BrowserPage interface {
	// Navigate loads a URL and waits for the load event, bounded by the
	// configured navigation timeout. Errors wrap ErrNavigation.
	Navigate(ctx context.Context, url string) error

	// WaitVisible blocks until the CSS selector matches a visible node
	WaitVisible(ctx context.Context, selector string) error

	// Click dispatches a trusted click on the first match
	Click(ctx context.Context, selector string) error

	// Fill replaces the value of an input element
	Fill(ctx context.Context, selector, value string) error

	// Text returns the trimmed inner text of the first match, or "" when
	// the selector matches nothing
	Text(ctx context.Context, selector string) (string, error)

	// ElementCount returns how many nodes match the selector
	ElementCount(ctx context.Context, selector string) (int, error)

	// OuterHTML snapshots the full document markup
	OuterHTML(ctx context.Context) (string, error)

	// Evaluate runs a JavaScript expression, discarding the result
	Evaluate(ctx context.Context, expression string) error

	// ExpectDownload runs trigger and waits for the resulting browser
	// download to complete, returning the captured file.
	ExpectDownload(ctx context.Context, trigger func(ctx context.Context) error) (*DownloadedFile, error)

	// PrintToPDF renders a URL (typically file://) to PDF bytes using the
	// browser engine.
	PrintToPDF(ctx context.Context, url string) ([]byte, error)
}

// BrowserSession is a scoped, logged-in page bound to one tenant. Release
// through the pool is guaranteed-idempotent and must run on every worker
// exit path, including panic.
type BrowserSession interface {
	BrowserPage

	// TenantID identifies the tenant this session is logged in as
	TenantID() string

	// BaseURL is the upstream origin for resolving relative links
	BaseURL() string

	// DownloadDir is the session-scoped scratch directory for downloads
	DownloadDir() string
}

// BrowserPool acquires and releases browser sessions. Acquire returns a page
// already at the upstream origin and logged in with the tenant credentials.
type BrowserPool interface {
	Acquire(ctx context.Context, tenant *models.Tenant, creds models.Credentials, scraper Scraper) (BrowserSession, error)
	Release(session BrowserSession)
	Shutdown() error
}
