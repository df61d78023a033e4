package interfaces

import "context"

// ExtractionRunner starts extraction runs. StartExtraction returns
// immediately with a task id; concurrent requests for the same tenant
// coalesce onto the already-running task.
type ExtractionRunner interface {
	StartExtraction(ctx context.Context, tenantID string) (taskID string, err error)
}

// DownloadRunner starts document download runs for one process. An empty
// document list means every document still pending download.
type DownloadRunner interface {
	StartDownload(ctx context.Context, processID string, documentNumbers []string) (taskID string, err error)
}
