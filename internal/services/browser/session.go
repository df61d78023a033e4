package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
)

// Session is one tab context bound to a tenant. Not safe for concurrent use
// by multiple workers; each worker holds its own session for its lifetime.
type Session struct {
	tenantID    string
	baseURL     string
	ctx         context.Context
	cancel      context.CancelFunc
	navTimeout  time.Duration
	limiter     *rate.Limiter
	downloadDir string
	logger      arbor.ILogger
	releaseOnce sync.Once

	dlMu      sync.Mutex
	dlPending *pendingDownload
}

// pendingDownload tracks one armed ExpectDownload call
type pendingDownload struct {
	begun chan *browser.EventDownloadWillBegin
	done  chan string // completed download GUID
}

// Compile-time assertion
var _ interfaces.BrowserSession = (*Session)(nil)

func (s *Session) TenantID() string    { return s.tenantID }
func (s *Session) BaseURL() string     { return s.baseURL }
func (s *Session) DownloadDir() string { return s.downloadDir }

// installListeners wires dialog auto-dismissal and download tracking.
// Any JavaScript dialog opened during navigation is dismissed to prevent
// hangs; download lifecycle events feed ExpectDownload.
func (s *Session) installListeners() {
	chromedp.ListenTarget(s.ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventJavascriptDialogOpening:
			s.logger.Debug().
				Str("tenant_id", s.tenantID).
				Str("message", e.Message).
				Msg("Dismissing JavaScript dialog")
			go func() {
				_ = chromedp.Run(s.ctx, page.HandleJavaScriptDialog(false))
			}()
		case *browser.EventDownloadWillBegin:
			s.dlMu.Lock()
			pending := s.dlPending
			s.dlMu.Unlock()
			if pending != nil {
				select {
				case pending.begun <- e:
				default:
				}
			}
		case *browser.EventDownloadProgress:
			if e.State == browser.DownloadProgressStateCompleted {
				s.dlMu.Lock()
				pending := s.dlPending
				s.dlMu.Unlock()
				if pending != nil {
					select {
					case pending.done <- e.GUID:
					default:
					}
				}
			}
		}
	})
}

// configureDownloads routes browser downloads into the session scratch dir,
// named by GUID so concurrent sessions never collide.
func (s *Session) configureDownloads(ctx context.Context) error {
	return s.run(ctx, s.navTimeout,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(s.downloadDir).
			WithEventsEnabled(true),
	)
}

// run executes chromedp actions bounded by the given timeout and the
// caller's cancellation signal.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Navigate loads a URL, paced by the per-tenant limiter
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", interfaces.ErrNavigation, err)
	}
	if err := s.run(ctx, s.navTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("%w: navigate %s: %v", interfaces.ErrNavigation, url, err)
	}
	return nil
}

func (s *Session) WaitVisible(ctx context.Context, selector string) error {
	if err := s.run(ctx, s.navTimeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: wait for %s: %v", interfaces.ErrNavigation, selector, err)
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, s.navTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("%w: click %s: %v", interfaces.ErrPlugin, selector, err)
	}
	return nil
}

func (s *Session) Fill(ctx context.Context, selector, value string) error {
	if err := s.run(ctx, s.navTimeout,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, value, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("%w: fill %s: %v", interfaces.ErrPlugin, selector, err)
	}
	return nil
}

// Text returns the inner text of the first match without waiting for the
// node to exist; an absent selector yields "".
func (s *Session) Text(ctx context.Context, selector string) (string, error) {
	var text string
	expr := fmt.Sprintf(
		`(() => { const el = document.querySelector(%s); return el ? el.innerText : ""; })()`,
		jsString(selector),
	)
	if err := s.run(ctx, s.navTimeout, chromedp.Evaluate(expr, &text)); err != nil {
		return "", fmt.Errorf("%w: read text %s: %v", interfaces.ErrPlugin, selector, err)
	}
	return strings.TrimSpace(text), nil
}

func (s *Session) ElementCount(ctx context.Context, selector string) (int, error) {
	var count int
	expr := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(selector))
	if err := s.run(ctx, s.navTimeout, chromedp.Evaluate(expr, &count)); err != nil {
		return 0, fmt.Errorf("%w: count %s: %v", interfaces.ErrPlugin, selector, err)
	}
	return count, nil
}

func (s *Session) OuterHTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, s.navTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: snapshot page: %v", interfaces.ErrPlugin, err)
	}
	return html, nil
}

func (s *Session) Evaluate(ctx context.Context, expression string) error {
	if err := s.run(ctx, s.navTimeout, chromedp.Evaluate(expression, nil)); err != nil {
		return fmt.Errorf("%w: evaluate: %v", interfaces.ErrPlugin, err)
	}
	return nil
}

// ExpectDownload arms download tracking, runs trigger and waits for the
// browser to finish writing the file. Downloads land in the session scratch
// directory named by GUID.
func (s *Session) ExpectDownload(ctx context.Context, trigger func(ctx context.Context) error) (*interfaces.DownloadedFile, error) {
	pending := &pendingDownload{
		begun: make(chan *browser.EventDownloadWillBegin, 1),
		done:  make(chan string, 1),
	}

	s.dlMu.Lock()
	s.dlPending = pending
	s.dlMu.Unlock()
	defer func() {
		s.dlMu.Lock()
		s.dlPending = nil
		s.dlMu.Unlock()
	}()

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	var begun *browser.EventDownloadWillBegin
	select {
	case begun = <-pending.begun:
	case <-time.After(s.navTimeout):
		return nil, fmt.Errorf("%w: download did not start", interfaces.ErrNavigation)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", interfaces.ErrNavigation, ctx.Err())
	}

	// Completion can lag the begin event by the full transfer time
	for {
		select {
		case guid := <-pending.done:
			if guid != begun.GUID {
				continue
			}
			return &interfaces.DownloadedFile{
				Path:              filepath.Join(s.downloadDir, guid),
				SuggestedFilename: begun.SuggestedFilename,
			}, nil
		case <-time.After(2 * s.navTimeout):
			return nil, fmt.Errorf("%w: download did not complete", interfaces.ErrNavigation)
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", interfaces.ErrNavigation, ctx.Err())
		}
	}
}

// PrintToPDF renders a URL to PDF bytes with the browser engine
func (s *Session) PrintToPDF(ctx context.Context, url string) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, s.navTimeout,
		chromedp.Navigate(url),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27). // A4
				WithPaperHeight(11.69).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: print to pdf: %v", interfaces.ErrNavigation, err)
	}
	return buf, nil
}

// jsString quotes a Go string as a JavaScript string literal
func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
