package extractor

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// workerResult is the per-process outcome fed into the run aggregates
type workerResult struct {
	processNumber         string
	isNew                 bool
	updated               bool
	failed                bool
	pendingCategorization bool
	nickname              string
	bestLink              string
	stage                 string
	newDocCount           int
	newDocsBySigner       map[string][]string
}

// processWorker handles one process: link validation, access classification
// and document listing in a single pass over the process's links.
type processWorker struct {
	service  *Service
	tenant   *models.Tenant
	scraper  interfaces.Scraper
	session  interfaces.BrowserSession
	existing *models.Process
}

// linkOutcome is the validation result of one candidate link
type linkOutcome struct {
	linkID string
	access models.AccessType
	ok     bool
}

func (w *processWorker) process(ctx context.Context, processNumber string, discoveredLinks []string, result *workerResult) error {
	now := time.Now().Format(models.CheckTimeFormat)
	result.stage = "merge"

	process := w.existing
	if process == nil {
		process = &models.Process{
			ID:            common.NewProcessID(),
			TenantID:      w.tenant.ID,
			ProcessNumber: processNumber,
		}
		result.isNew = true
	}
	result.nickname = process.Nickname

	links, err := process.LinkMap()
	if err != nil {
		return err
	}
	docs, err := process.DocumentMap()
	if err != nil {
		return err
	}

	// Discovery joins links additively: a link never seen before starts
	// active and unchecked.
	for _, linkID := range discoveredLinks {
		if _, ok := links[linkID]; !ok {
			links[linkID] = models.LinkRecord{Status: models.LinkActive}
		}
	}

	candidates := orderCandidates(links, discoveredLinks)

	// Validate candidates in order. Every visited link gets a history entry;
	// the pass stops early only once an integral link has been seen and the
	// remaining candidates were all discovered in earlier runs.
	result.stage = "validate"
	var outcomes []linkOutcome
	discoveredSet := make(map[string]bool, len(discoveredLinks))
	for _, id := range discoveredLinks {
		discoveredSet[id] = true
	}
	lastDiscovered := -1
	for i, id := range candidates {
		if discoveredSet[id] {
			lastDiscovered = i
		}
	}

	haveIntegral := false
	for i, linkID := range candidates {
		if haveIntegral && i > lastDiscovered {
			break
		}

		access, ok, err := w.validateLink(ctx, linkID)
		if err != nil {
			return err // plugin classification error, fatal to this process
		}

		record := links[linkID]
		record.LastChecked = now
		if ok {
			record.Status = models.LinkActive
			record.AccessType = access
		} else {
			record.Status = models.LinkInactive
			record.AccessType = models.AccessError
		}
		record.History = append(record.History, models.LinkCheck{
			CheckedAt:  now,
			Status:     record.Status,
			AccessType: record.AccessType,
		})
		links[linkID] = record

		outcomes = append(outcomes, linkOutcome{linkID: linkID, access: access, ok: ok})
		if ok && access == models.AccessIntegral {
			haveIntegral = true
		}
	}

	best := chooseBest(outcomes)

	if best == nil {
		// Every link failed: disable the process. A disabled process is not
		// a run failure.
		process.NoValidLinks = true
		for id, record := range links {
			record.Status = models.LinkInactive
			links[id] = record
		}
		process.AccessType = models.AccessError
		return w.persist(ctx, process, links, docs, now, result)
	}

	process.NoValidLinks = false
	process.BestCurrentLink = best.linkID
	process.AccessType = best.access
	result.bestLink = best.linkID

	// Categorization policy. Manual edits to category and nickname survive;
	// integral access forces the restricted category.
	extractDocs := false
	switch best.access {
	case models.AccessIntegral:
		process.Category = models.CategoryRestricted
		process.CategoryStatus = models.CategoryCategorized
		extractDocs = true
	case models.AccessPartial:
		if process.CategoryStatus != models.CategoryCategorized {
			process.CategoryStatus = models.CategoryPending
			result.pendingCategorization = true
		} else if process.Category == models.CategoryRestricted {
			extractDocs = true
		}
	}

	if extractDocs {
		result.stage = "documents"
		reopen := outcomes[len(outcomes)-1].linkID != best.linkID
		if err := w.extractDocuments(ctx, process, best.linkID, reopen, docs, now, result); err != nil {
			return err
		}
	}

	result.stage = "persist"
	return w.persist(ctx, process, links, docs, now, result)
}

// validateLink opens the process view through one link and classifies the
// access level. Navigation timeouts are retried once; persistent navigation
// failure reports (access error, ok=false) rather than an error.
func (w *processWorker) validateLink(ctx context.Context, linkID string) (models.AccessType, bool, error) {
	err := w.scraper.OpenProcess(ctx, w.session, w.tenant.UpstreamURL, linkID)
	if err != nil && errors.Is(err, interfaces.ErrNavigation) {
		w.service.logger.Warn().
			Str("tenant_id", w.tenant.ID).
			Str("link_id", linkID).
			Msg("Navigation failed, retrying once")
		err = w.scraper.OpenProcess(ctx, w.session, w.tenant.UpstreamURL, linkID)
	}
	if err != nil {
		if errors.Is(err, interfaces.ErrNavigation) {
			return models.AccessError, false, nil
		}
		return models.AccessError, false, err
	}

	access, err := w.scraper.ClassifyAccess(ctx, w.session)
	if err != nil {
		return models.AccessError, false, err
	}
	if access == models.AccessError {
		return models.AccessError, false, nil
	}
	return access, true, nil
}

// extractDocuments reads authority and the document table from the best
// link's page, re-opening it if a later candidate was visited since.
func (w *processWorker) extractDocuments(ctx context.Context, process *models.Process, bestLink string, reopen bool, docs map[string]models.DocumentRecord, now string, result *workerResult) error {
	if reopen {
		if err := w.scraper.OpenProcess(ctx, w.session, w.tenant.UpstreamURL, bestLink); err != nil {
			return err
		}
	}

	if process.Authority == "" {
		authority, err := w.scraper.ExtractAuthority(ctx, w.session)
		if err == nil && authority != "" {
			process.Authority = authority
		}
	}

	scraped, err := w.scraper.ListDocuments(ctx, w.session)
	if err != nil {
		return err
	}

	result.newDocsBySigner = make(map[string][]string)
	for _, doc := range scraped {
		record, known := docs[doc.Number]

		// New-document delta: unseen numbers, or prior attempts that errored
		if !known || record.Status == models.DocumentError {
			signer := doc.Signer
			if signer == "" {
				signer = "unknown"
			}
			result.newDocsBySigner[signer] = append(result.newDocsBySigner[signer], doc.Number)
			result.newDocCount++
			record.Status = models.DocumentNotDownloaded
		}

		// Downloaded status and storage path survive re-listing
		record.Type = doc.Type
		record.Date = doc.Date
		record.Signer = doc.Signer
		record.LastChecked = now
		docs[doc.Number] = record
	}

	return nil
}

func (w *processWorker) persist(ctx context.Context, process *models.Process, links map[string]models.LinkRecord, docs map[string]models.DocumentRecord, now string, result *workerResult) error {
	if err := process.SetLinkMap(links); err != nil {
		return err
	}
	if err := process.SetDocumentMap(docs); err != nil {
		return err
	}
	process.LastUpdated = now

	if err := w.service.store.ProcessStorage().UpsertProcess(ctx, process); err != nil {
		return err
	}
	if !result.isNew {
		result.updated = true
	}
	return nil
}

// orderCandidates sorts the process's links for validation: most recent
// successful check first, ties broken by lexicographic link id. Links without
// a successful check sort last, in listing order of this run's discovery.
func orderCandidates(links map[string]models.LinkRecord, discoveredLinks []string) []string {
	ids := make([]string, 0, len(links))
	for id := range links {
		ids = append(ids, id)
	}

	discoveredOrder := make(map[string]int, len(discoveredLinks))
	for i, id := range discoveredLinks {
		discoveredOrder[id] = i
	}

	lastSuccess := func(record models.LinkRecord) string {
		for i := len(record.History) - 1; i >= 0; i-- {
			if record.History[i].Status == models.LinkActive {
				return record.History[i].CheckedAt
			}
		}
		return ""
	}

	sort.Slice(ids, func(a, b int) bool {
		sa, sb := lastSuccess(links[ids[a]]), lastSuccess(links[ids[b]])
		if sa != sb {
			// CheckTimeFormat timestamps compare lexicographically
			return sa > sb
		}
		oa, oka := discoveredOrder[ids[a]]
		ob, okb := discoveredOrder[ids[b]]
		if sa == "" && oka && okb && oa != ob {
			return oa < ob
		}
		return ids[a] < ids[b]
	})

	return ids
}

// chooseBest picks the link to keep as best_current_link: integral beats
// partial; within the same level the earliest validated candidate wins,
// which is the one with the most recent past success.
func chooseBest(outcomes []linkOutcome) *linkOutcome {
	var best *linkOutcome
	for i := range outcomes {
		o := &outcomes[i]
		if !o.ok {
			continue
		}
		if best == nil {
			best = o
			continue
		}
		if best.access != models.AccessIntegral && o.access == models.AccessIntegral {
			best = o
		}
	}
	return best
}
