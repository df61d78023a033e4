package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"

	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
	"github.com/IzacPS/conecta-sei-backend/internal/models"
)

// Notifier posts extraction deltas to the webhook URLs configured under the
// notification_webhooks system_config key. Payloads are snapshots of one
// run; transport failures are logged and never fail the run.
type Notifier struct {
	client *resty.Client
	config interfaces.SystemConfigStorage
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.Notifier = (*Notifier)(nil)

// NewNotifier creates a webhook notifier
func NewNotifier(config interfaces.SystemConfigStorage, logger arbor.ILogger) *Notifier {
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second)

	return &Notifier{
		client: client,
		config: config,
		logger: logger,
	}
}

type webhookConfig struct {
	Webhooks []string `json:"webhooks"`
}

type pendingPayload struct {
	Event     string                      `json:"event"`
	TenantID  string                      `json:"tenant_id"`
	Processes []interfaces.PendingProcess `json:"processes"`
}

type documentsPayload struct {
	Event    string                          `json:"event"`
	TenantID string                          `json:"tenant_id"`
	Notices  []interfaces.NewDocumentsNotice `json:"notices"`
}

// NotifyPendingProcesses announces processes that entered pending
// categorization during this run.
func (n *Notifier) NotifyPendingProcesses(ctx context.Context, tenantID string, pending []interfaces.PendingProcess) {
	if len(pending) == 0 {
		return
	}
	n.post(ctx, tenantID, "processes.pending_categorization", pendingPayload{
		Event:     "processes.pending_categorization",
		TenantID:  tenantID,
		Processes: pending,
	})
}

// NotifyNewDocuments announces the new documents of this run, grouped by
// signer per process.
func (n *Notifier) NotifyNewDocuments(ctx context.Context, tenantID string, notices []interfaces.NewDocumentsNotice) {
	if len(notices) == 0 {
		return
	}
	n.post(ctx, tenantID, "documents.new", documentsPayload{
		Event:    "documents.new",
		TenantID: tenantID,
		Notices:  notices,
	})
}

func (n *Notifier) post(ctx context.Context, tenantID, event string, payload interface{}) {
	webhooks := n.webhooks(ctx)
	if len(webhooks) == 0 {
		n.logger.Debug().Str("tenant_id", tenantID).Str("event", event).Msg("No notification webhooks configured")
		return
	}

	for _, url := range webhooks {
		resp, err := n.client.R().
			SetContext(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(payload).
			Post(url)
		if err != nil {
			n.logger.Warn().
				Err(err).
				Str("tenant_id", tenantID).
				Str("event", event).
				Msg("Notification delivery failed")
			continue
		}
		if resp.IsError() {
			n.logger.Warn().
				Int("status", resp.StatusCode()).
				Str("tenant_id", tenantID).
				Str("event", event).
				Msg("Notification endpoint returned error")
		}
	}
}

func (n *Notifier) webhooks(ctx context.Context) []string {
	raw, err := n.config.GetConfigValue(ctx, models.SystemConfigNotificationWebhooks)
	if err != nil || raw == "" {
		return nil
	}
	var cfg webhookConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		n.logger.Warn().Err(err).Msg("Malformed notification webhook configuration")
		return nil
	}
	return cfg.Webhooks
}
