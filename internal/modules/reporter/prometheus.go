package reporter

import (
	"encoding/json"

	vbErrors "vbackup/internal/errors"
	"vbackup/internal/metrics"
	"vbackup/internal/modules"
)

// PrometheusConfig is the opaque reporter configuration for the
// "prometheus" reporter type. An empty config is valid: metrics are
// recorded against the process-wide collectors either way; Port only
// controls whether this reporter also stands up an HTTP exposer.
type PrometheusConfig struct {
	Port int `json:"port,omitempty"`
}

// Prometheus records status and size events as Prometheus counters and
// gauges, grounded directly on the teacher's internal/metrics/metrics.go
// and internal/server/metrics.go.
type Prometheus struct {
	metrics *metrics.RunMetrics
	server  *metrics.Server
}

func NewPrometheus(raw json.RawMessage, args modules.Args) (modules.Reporter, error) {
	var cfg PrometheusConfig
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, vbErrors.NewModuleConstructionError("reporter.prometheus", "prometheus", "invalid config", err)
		}
	}
	p := &Prometheus{metrics: metrics.NewRunMetrics()}
	if cfg.Port > 0 {
		p.server = metrics.NewServer(cfg.Port, args.Logger.WithComponent("reporter.prometheus"))
	}
	return p, nil
}

func (p *Prometheus) Init() error {
	if p.server != nil {
		p.server.StartAsync()
	}
	return nil
}

func (p *Prometheus) Report(event modules.Event) error {
	switch event.Kind {
	case modules.EventStatus:
		p.metrics.UnitsTotal.WithLabelValues(string(event.RunType), string(event.Status)).Inc()
	case modules.EventSize:
		switch event.Size {
		case modules.SizeBackup:
			p.metrics.BackupBytesTotal.Add(float64(event.Bytes))
		case modules.SizeSync:
			p.metrics.SyncBytesTotal.Add(float64(event.Bytes))
		}
	}
	return nil
}

func (p *Prometheus) Clear() error { return nil }
