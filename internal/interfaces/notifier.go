package interfaces

import "context"

// PendingProcess is one process that entered pending categorization during
// an extraction run.
type PendingProcess struct {
	ProcessNumber string `json:"process_number"`
	LinkID        string `json:"link_id,omitempty"`
	Nickname      string `json:"nickname,omitempty"`
}

// NewDocumentsNotice groups the new documents of one process by signer
type NewDocumentsNotice struct {
	ProcessNumber     string              `json:"process_number"`
	Nickname          string              `json:"nickname,omitempty"`
	DocumentsBySigner map[string][]string `json:"documents_by_signer"`
}

// Notifier dispatches post-run notices. Deliberately snapshot-based: the
// payloads describe this run only, no diffing over time. Transport failures
// are logged by implementations and never fail the run.
type Notifier interface {
	NotifyPendingProcesses(ctx context.Context, tenantID string, pending []PendingProcess)
	NotifyNewDocuments(ctx context.Context, tenantID string, notices []NewDocumentsNotice)
}
