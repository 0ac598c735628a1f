package reporter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	vbErrors "vbackup/internal/errors"
	"vbackup/internal/logging"
	"vbackup/internal/modules"
)

// WebhookConfig is the opaque reporter configuration for the "webhook" type.
type WebhookConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// Webhook posts JSON events to an HTTP endpoint, grounded on
// shared/triggers/auto_trigger.go's triggerViaWebhook.
type Webhook struct {
	cfg    WebhookConfig
	client *http.Client
	logger *logging.StructuredLogger
}

func NewWebhook(raw json.RawMessage, args modules.Args) (modules.Reporter, error) {
	var cfg WebhookConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, vbErrors.NewModuleConstructionError("reporter.webhook", "webhook", "invalid config", err)
	}
	if cfg.URL == "" {
		return nil, vbErrors.NewModuleConstructionError("reporter.webhook", "webhook", "url is required", nil)
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &Webhook{
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		logger: args.Logger.WithComponent("reporter.webhook"),
	}, nil
}

func (w *Webhook) Init() error { return nil }

type webhookPayload struct {
	Kind    string `json:"kind"`
	Module  string `json:"module,omitempty"`
	RunType string `json:"run_type,omitempty"`
	Label   string `json:"label,omitempty"`
	Status  string `json:"status,omitempty"`
	Size    string `json:"size_type,omitempty"`
	Bytes   int64  `json:"bytes,omitempty"`
}

func (w *Webhook) Report(event modules.Event) error {
	payload := webhookPayload{
		Module:  event.Module,
		RunType: string(event.RunType),
		Label:   event.Label,
		Status:  string(event.Status),
		Size:    string(event.Size),
		Bytes:   event.Bytes,
	}
	switch event.Kind {
	case modules.EventOperation:
		payload.Kind = "operation"
	case modules.EventStatus:
		payload.Kind = "status"
	case modules.EventSize:
		payload.Kind = "size"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return vbErrors.NewReporterError("webhook", "cannot encode event", err)
	}

	resp, err := w.client.Post(w.cfg.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return vbErrors.NewReporterError("webhook", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return vbErrors.NewReporterError("webhook", "endpoint returned an error status", nil)
	}
	return nil
}

func (w *Webhook) Clear() error { return nil }
