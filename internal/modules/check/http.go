package check

import (
	"encoding/json"
	"net/http"
	"time"

	vbErrors "vbackup/internal/errors"
	"vbackup/internal/logging"
	"vbackup/internal/model"
	"vbackup/internal/modules"
)

// HTTPConfig is the opaque check configuration for the "http" check type.
type HTTPConfig struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// HTTP gates a run on an HTTP endpoint returning a 2xx status within a
// timeout, grounded on shared/triggers/auto_trigger.go's
// triggerViaWebhook probe pattern.
type HTTP struct {
	name   string
	cfg    HTTPConfig
	client *http.Client
	logger *logging.StructuredLogger
}

func NewHTTP(name string, raw json.RawMessage, paths model.ModulePaths, args modules.Args) (modules.Check, error) {
	var cfg HTTPConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, vbErrors.NewModuleConstructionError("check.http", "http", "invalid config", err)
	}
	if cfg.URL == "" {
		return nil, vbErrors.NewModuleConstructionError("check.http", "http", "url is required", nil)
	}
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 10
	}
	return &HTTP{
		name:   name,
		cfg:    cfg,
		client: &http.Client{Timeout: time.Duration(timeout) * time.Second},
		logger: args.Logger.WithComponent("check.http"),
	}, nil
}

func (h *HTTP) Init() error { return nil }

func (h *HTTP) Check(timing model.ExecutionTiming) (bool, error) {
	resp, err := h.client.Get(h.cfg.URL)
	if err != nil {
		return false, vbErrors.NewCheckError(h.name, "http check request failed", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

func (h *HTTP) Update(timing model.ExecutionTiming) error { return nil }

func (h *HTTP) Clear() error { return nil }
