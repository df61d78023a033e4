package v4

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// Family is the upstream generation this package serves
const Family = "v4"

var (
	linkIDRe        = regexp.MustCompile(`id_procedimento_externo=([^&]+)`)
	versionLabelRe  = regexp.MustCompile(`(4\.\d+\.\d+)`)
	restrictedAlert = "alert("
)

// Base carries the family-level default behavior for every v4 upstream
// release. Version plugins embed a Base value and override only the
// operations that differ; the selector tables and quirk flags are plain
// data a constructor can adjust.
type Base struct {
	version     string
	login       interfaces.LoginSelectors
	process     interfaces.ProcessSelectors
	document    interfaces.DocumentSelectors
	altDownload bool // hold ALT while clicking document links
}

// Compile-time assertion
var _ interfaces.Scraper = (*Base)(nil)

// NewBase builds family defaults for the given exact version
func NewBase(version string) *Base {
	return &Base{
		version:  version,
		login:    DefaultLoginSelectors(),
		process:  DefaultProcessSelectors(),
		document: DefaultDocumentSelectors(),
	}
}

func (b *Base) Version() string { return b.version }
func (b *Base) Family() string  { return Family }

func (b *Base) LoginSelectors() interfaces.LoginSelectors       { return b.login }
func (b *Base) ProcessSelectors() interfaces.ProcessSelectors   { return b.process }
func (b *Base) DocumentSelectors() interfaces.DocumentSelectors { return b.document }

// SetAltDownload toggles the ALT-modifier download quirk
func (b *Base) SetAltDownload(alt bool) { b.altDownload = alt }

// DetectVersion reads the version label from the page footer. Advisory only.
func (b *Base) DetectVersion(ctx context.Context, page interfaces.BrowserPage) (string, error) {
	text, err := page.Text(ctx, ".infraVersao, #divInfraVersao")
	if err != nil {
		return "", err
	}
	if match := versionLabelRe.FindStringSubmatch(text); match != nil {
		return match[1], nil
	}
	return "", nil
}

// Login drives the login form. The caller has already navigated to the
// upstream origin.
func (b *Base) Login(ctx context.Context, page interfaces.BrowserPage, email, password string) error {
	if err := page.Fill(ctx, b.login.Email, email); err != nil {
		return fmt.Errorf("%w: %w", interfaces.ErrNavigation, err)
	}
	if err := page.Fill(ctx, b.login.Password, password); err != nil {
		return fmt.Errorf("%w: %w", interfaces.ErrNavigation, err)
	}
	if err := page.Click(ctx, b.login.Submit); err != nil {
		return fmt.Errorf("%w: %w", interfaces.ErrNavigation, err)
	}

	if msg, err := page.Text(ctx, b.login.Error); err == nil && msg != "" {
		return fmt.Errorf("%w: %s", interfaces.ErrAuth, msg)
	}

	count, err := page.ElementCount(ctx, b.login.LoggedIn)
	if err != nil {
		return fmt.Errorf("%w: %w", interfaces.ErrNavigation, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: login verification failed", interfaces.ErrAuth)
	}
	return nil
}

func (b *Base) ProcessListURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/") + "/controlador.php?acao=procedimento_controlar"
}

func (b *Base) ProcessURL(baseURL, linkID string) string {
	return strings.TrimSuffix(baseURL, "/") +
		"/controlador_externo.php?acao=procedimento_visualizar&id_procedimento_externo=" + linkID
}

// ListProcesses reads the listing table into (number, link) pairs. A process
// listed under several units yields one pair per distinct link.
func (b *Base) ListProcesses(ctx context.Context, page interfaces.BrowserPage) ([]interfaces.ProcessRef, error) {
	if err := page.WaitVisible(ctx, b.process.ListTable); err != nil {
		return nil, err
	}
	html, err := page.OuterHTML(ctx)
	if err != nil {
		return nil, err
	}
	return b.parseProcessList(html)
}

// parseProcessList extracts process refs from a listing page snapshot
func (b *Base) parseProcessList(html string) ([]interfaces.ProcessRef, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse process list: %v", interfaces.ErrPlugin, err)
	}

	var refs []interfaces.ProcessRef
	seen := make(map[string]bool)

	doc.Find(b.process.ListRows).Each(func(_ int, row *goquery.Selection) {
		link := row.Find(b.process.ListLink).First()
		if link.Length() == 0 {
			return
		}

		number := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if !common.IsValidProcessNumber(number) || href == "" {
			return
		}

		linkID := NormalizeLinkID(href)
		if linkID == "" {
			return
		}

		key := number + "|" + linkID
		if seen[key] {
			return
		}
		seen[key] = true

		refs = append(refs, interfaces.ProcessRef{ProcessNumber: number, LinkID: linkID})
	})

	return refs, nil
}

// NormalizeLinkID extracts the stable link identifier from a process href
func NormalizeLinkID(href string) string {
	if match := linkIDRe.FindStringSubmatch(href); match != nil {
		return match[1]
	}
	return ""
}

// OpenProcess navigates to a process view and waits until it is ready.
// The location bar renders on every access level, including denials.
func (b *Base) OpenProcess(ctx context.Context, page interfaces.BrowserPage, baseURL, linkID string) error {
	if err := page.Navigate(ctx, b.ProcessURL(baseURL, linkID)); err != nil {
		return err
	}
	return page.WaitVisible(ctx, b.process.LocationBar)
}

// ClassifyAccess decides the access level from the location bar text
func (b *Base) ClassifyAccess(ctx context.Context, page interfaces.BrowserPage) (models.AccessType, error) {
	text, err := page.Text(ctx, b.process.LocationBar)
	if err != nil {
		return models.AccessError, err
	}
	return ClassifyLocationText(text, b.process.IntegralKeywords, b.process.PartialKeywords), nil
}

// ClassifyLocationText maps location-bar text to an access type
func ClassifyLocationText(text string, integralKeywords, partialKeywords []string) models.AccessType {
	for _, keyword := range integralKeywords {
		if strings.Contains(text, keyword) {
			return models.AccessIntegral
		}
	}
	for _, keyword := range partialKeywords {
		if strings.Contains(text, keyword) {
			return models.AccessPartial
		}
	}
	return models.AccessError
}

// ExtractAuthority reads the authority cell from the loaded process view
func (b *Base) ExtractAuthority(ctx context.Context, page interfaces.BrowserPage) (string, error) {
	text, err := page.Text(ctx, b.process.AuthorityCell)
	if err != nil {
		return "", err
	}
	return ParseAuthority(text), nil
}

// ParseAuthority extracts the authority name from the upstream
// "UNIT - ROLE - Name" rendering
func ParseAuthority(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	parts := strings.Split(text, "-")
	switch {
	case len(parts) >= 3:
		return strings.TrimSpace(parts[2])
	case len(parts) == 2:
		return strings.TrimSpace(parts[1])
	default:
		return text
	}
}

// ListDocuments reads the document table from the loaded process view
func (b *Base) ListDocuments(ctx context.Context, page interfaces.BrowserPage) ([]interfaces.ScrapedDocument, error) {
	if err := page.WaitVisible(ctx, b.document.Table); err != nil {
		return nil, err
	}
	html, err := page.OuterHTML(ctx)
	if err != nil {
		return nil, err
	}
	return b.parseDocuments(html)
}

// parseDocuments extracts document rows from a process view snapshot.
// Restricted rows (alert on click) are skipped.
func (b *Base) parseDocuments(html string) ([]interfaces.ScrapedDocument, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse documents: %v", interfaces.ErrPlugin, err)
	}

	var documents []interfaces.ScrapedDocument

	doc.Find(b.document.Rows).Each(func(_ int, row *goquery.Selection) {
		link := row.Find(b.document.NumberCell).First()
		if link.Length() == 0 {
			return
		}
		if onclick, ok := link.Attr("onclick"); ok && strings.Contains(onclick, restrictedAlert) {
			return
		}

		number := strings.TrimSpace(link.Text())
		if !common.IsValidDocumentNumber(number) {
			return
		}

		documents = append(documents, interfaces.ScrapedDocument{
			Number: number,
			Type:   strings.TrimSpace(row.Find(b.document.TypeCell).First().Text()),
			Date:   strings.TrimSpace(row.Find(b.document.DateCell).First().Text()),
			Signer: strings.TrimSpace(row.Find(b.document.SignerCell).First().Text()),
		})
	})

	return documents, nil
}

// DownloadDocument triggers one document download from the loaded process
// view. The family default dispatches a plain click; versions that require
// the ALT modifier set altDownload.
func (b *Base) DownloadDocument(ctx context.Context, page interfaces.BrowserPage, docNumber string) (*interfaces.DownloadedFile, error) {
	return page.ExpectDownload(ctx, func(ctx context.Context) error {
		return page.Evaluate(ctx, clickDocumentExpr(b.document.Table, docNumber, b.altDownload))
	})
}

// clickDocumentExpr dispatches a click on the anchor whose text is exactly
// the document number, optionally with the ALT modifier held.
func clickDocumentExpr(tableSelector, docNumber string, alt bool) string {
	return fmt.Sprintf(`(() => {
	const links = Array.from(document.querySelectorAll(%q + " a"));
	const target = links.find(a => a.textContent.trim() === %q);
	if (!target) { throw new Error("document link not found: " + %q); }
	target.dispatchEvent(new MouseEvent("click", {bubbles: true, cancelable: true, altKey: %t}));
})()`, tableSelector, docNumber, docNumber, alt)
}
