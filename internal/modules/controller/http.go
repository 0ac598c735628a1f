package controller

import (
	"encoding/json"
	"net/http"
	"time"

	vbErrors "vbackup/internal/errors"
	"vbackup/internal/logging"
	"vbackup/internal/modules"
)

// HTTPConfig is the opaque controller configuration for the "http"
// controller type.
type HTTPConfig struct {
	Host           string `json:"host"`
	WakeURL        string `json:"wake_url"`
	StatusURL      string `json:"status_url"`
	StopURL        string `json:"stop_url,omitempty"`
	PollInterval   int    `json:"poll_interval_seconds,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	Insecure       bool   `json:"insecure,omitempty"`
	Password       string `json:"password,omitempty"`
}

// HTTP wakes a remote device with an HTTP POST and polls a status
// endpoint until it reports ready or the deadline elapses, re-expressing
// the begin/poll/end state machine of the original's
// modules/controller/mqtt.rs over plain HTTP since no MQTT client
// exists anywhere in the example corpus this repository draws from.
//
// HTTP implements Bundleable: two controller configs addressing the
// same host fold into one instance, merging Insecure by disjunction
// and PollInterval by minimum, per spec §4.3's quality-of-service rule.
type HTTP struct {
	name   string
	cfg    HTTPConfig
	client *http.Client
	logger *logging.StructuredLogger
}

func NewHTTP(name string, raw json.RawMessage, args modules.Args) (modules.Controller, error) {
	var cfg HTTPConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, vbErrors.NewModuleConstructionError("controller.http", "http", "invalid config", err)
	}
	if cfg.Host == "" || cfg.WakeURL == "" || cfg.StatusURL == "" {
		return nil, vbErrors.NewModuleConstructionError("controller.http", "http", "host, wake_url and status_url are required", nil)
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 600
	}
	return &HTTP{
		name:   name,
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: args.Logger.WithComponent("controller.http"),
	}, nil
}

func (h *HTTP) Init() error { return nil }

// Begin posts to WakeURL, then polls StatusURL using the elapsed-time
// pattern of spec §5: on each iteration recompute the remaining budget
// and fail with a timeout once it reaches zero.
func (h *HTTP) Begin() (bool, error) {
	resp, err := h.client.Post(h.cfg.WakeURL, "application/json", nil)
	if err != nil {
		return false, vbErrors.NewControllerError(h.name, "wake request failed", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return false, nil
	}

	deadline := time.Now().Add(time.Duration(h.cfg.TimeoutSeconds) * time.Second)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, vbErrors.NewControllerError(h.name, "timed out waiting for remote to become ready", nil)
		}

		statusResp, err := h.client.Get(h.cfg.StatusURL)
		if err == nil {
			ready := statusResp.StatusCode >= 200 && statusResp.StatusCode < 300
			statusResp.Body.Close()
			if ready {
				return true, nil
			}
		}

		wait := time.Duration(h.cfg.PollInterval) * time.Second
		if wait > remaining {
			wait = remaining
		}
		time.Sleep(wait)
	}
}

func (h *HTTP) End() error {
	if h.cfg.StopURL == "" {
		return nil
	}
	resp, err := h.client.Post(h.cfg.StopURL, "application/json", nil)
	if err != nil {
		return vbErrors.NewControllerError(h.name, "stop request failed", err)
	}
	resp.Body.Close()
	return nil
}

func (h *HTTP) Clear() error { return nil }

// TryBundle folds other into this controller iff they address the same
// host and carry the same password (password mismatch rejects the
// bundle per spec §4.3). On success this instance's QoS-like fields are
// merged: Insecure by disjunction, PollInterval by minimum.
func (h *HTTP) TryBundle(name string, raw json.RawMessage) (bool, error) {
	var other HTTPConfig
	if err := json.Unmarshal(raw, &other); err != nil {
		return false, vbErrors.NewModuleConstructionError("controller.http", "http", "invalid config for bundling", err)
	}
	if other.Host != h.cfg.Host {
		return false, nil
	}
	if other.Password != h.cfg.Password {
		h.logger.Warning("bundle", "rejecting controller bundle due to password mismatch", map[string]interface{}{"host": h.cfg.Host})
		return false, nil
	}
	h.cfg.Insecure = h.cfg.Insecure || other.Insecure
	if other.PollInterval > 0 && other.PollInterval < h.cfg.PollInterval {
		h.cfg.PollInterval = other.PollInterval
	}
	return true, nil
}
