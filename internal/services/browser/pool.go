package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// Pool manages one shared headless browser process and hands out per-worker
// tab contexts. Sessions are logged in for their tenant on acquisition and
// released idempotently; release must run on every worker exit path.
type Pool struct {
	cfg    common.BrowserConfig
	logger arbor.ILogger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	initialized   bool

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter // navigation pacing per tenant
}

// Compile-time assertion
var _ interfaces.BrowserPool = (*Pool)(nil)

// NewPool creates an uninitialized pool
func NewPool(cfg common.BrowserConfig, logger arbor.ILogger) *Pool {
	return &Pool{
		cfg:      cfg,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Start launches the shared browser process and verifies it responds
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return fmt.Errorf("browser pool already initialized")
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("disable-gpu", p.cfg.DisableGPU),
		chromedp.Flag("no-sandbox", p.cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(p.cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Startup smoke test
	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	p.initialized = true

	p.logger.Info().
		Bool("headless", p.cfg.Headless).
		Str("user_agent", p.cfg.UserAgent).
		Msg("Browser pool initialized")

	return nil
}

// Acquire creates a new tab context for the tenant, points it at the
// upstream origin and logs in with the given credentials. The returned
// session is single-worker; callers must Release it on every exit path.
func (p *Pool) Acquire(ctx context.Context, tenant *models.Tenant, creds models.Credentials, scraper interfaces.Scraper) (interfaces.BrowserSession, error) {
	p.mu.Lock()
	if !p.initialized {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: browser pool not initialized", interfaces.ErrConfig)
	}
	parent := p.browserCtx
	p.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(parent)

	downloadDir, err := os.MkdirTemp("", "conectasei-dl-")
	if err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	session := &Session{
		tenantID:    tenant.ID,
		baseURL:     tenant.UpstreamURL,
		ctx:         tabCtx,
		cancel:      tabCancel,
		navTimeout:  p.cfg.NavTimeout,
		limiter:     p.tenantLimiter(tenant.ID),
		downloadDir: downloadDir,
		logger:      p.logger,
	}
	session.installListeners()

	if err := session.configureDownloads(ctx); err != nil {
		p.Release(session)
		return nil, err
	}

	if err := session.Navigate(ctx, tenant.UpstreamURL); err != nil {
		p.Release(session)
		return nil, err
	}

	if err := p.login(ctx, session, creds, scraper); err != nil {
		p.Release(session)
		return nil, err
	}

	p.logger.Debug().
		Str("tenant_id", tenant.ID).
		Msg("Browser session acquired")

	return session, nil
}

// login drives the plugin login, tolerating one expired-session retry
func (p *Pool) login(ctx context.Context, session *Session, creds models.Credentials, scraper interfaces.Scraper) error {
	selectors := scraper.LoginSelectors()
	if selectors.LoggedIn != "" {
		if count, err := session.ElementCount(ctx, selectors.LoggedIn); err == nil && count > 0 {
			return nil
		}
	}

	err := scraper.Login(ctx, session, creds.Email, creds.Password)
	if err == nil {
		return nil
	}
	if !errors.Is(err, interfaces.ErrAuth) {
		return err
	}

	// One re-login attempt; a second auth failure is fatal to the run
	p.logger.Warn().
		Str("tenant_id", session.tenantID).
		Msg("Login failed, retrying once")
	if err := session.Navigate(ctx, session.baseURL); err != nil {
		return err
	}
	return scraper.Login(ctx, session, creds.Email, creds.Password)
}

// Release closes the session context and removes its scratch space.
// Safe to call more than once and from deferred panic paths.
func (p *Pool) Release(session interfaces.BrowserSession) {
	s, ok := session.(*Session)
	if !ok || s == nil {
		return
	}
	s.releaseOnce.Do(func() {
		s.cancel()
		if s.downloadDir != "" {
			_ = os.RemoveAll(s.downloadDir)
		}
		p.logger.Debug().Str("tenant_id", s.tenantID).Msg("Browser session released")
	})
}

// Shutdown tears down the shared browser process
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil
	}

	// Close cleanly so Chromium flushes its profile before the allocator dies
	closeCtx, closeCancel := context.WithTimeout(p.browserCtx, 5*time.Second)
	_ = chromedp.Run(closeCtx, browser.Close())
	closeCancel()

	p.browserCancel()
	p.allocCancel()
	p.initialized = false

	p.logger.Info().Msg("Browser pool shut down")
	return nil
}

func (p *Pool) tenantLimiter(tenantID string) *rate.Limiter {
	p.limiterMu.Lock()
	defer p.limiterMu.Unlock()

	limiter, ok := p.limiters[tenantID]
	if !ok {
		interval := p.cfg.NavInterval
		if interval <= 0 {
			interval = 500 * time.Millisecond
		}
		limiter = rate.NewLimiter(rate.Every(interval), 1)
		p.limiters[tenantID] = limiter
	}
	return limiter
}
