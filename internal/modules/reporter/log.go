package reporter

import (
	"encoding/json"

	"vbackup/internal/logging"
	"vbackup/internal/modules"
)

// Log re-emits every event through the structured logger. It is the
// zero-configuration default sink: a run with no reporters configured
// still gets one status line per unit via this reporter.
type Log struct {
	logger *logging.StructuredLogger
}

func NewLog(raw json.RawMessage, args modules.Args) (modules.Reporter, error) {
	return &Log{logger: args.Logger.WithComponent("reporter.log")}, nil
}

func (l *Log) Init() error { return nil }

func (l *Log) Report(event modules.Event) error {
	fields := map[string]interface{}{
		"module":   event.Module,
		"run_type": string(event.RunType),
	}
	switch event.Kind {
	case modules.EventOperation:
		l.logger.Info("operation", event.Label, fields)
	case modules.EventStatus:
		fields["status"] = string(event.Status)
		l.logger.Info("status", string(event.Status), fields)
	case modules.EventSize:
		fields["size_type"] = string(event.Size)
		fields["bytes"] = event.Bytes
		l.logger.Info("size", "size event", fields)
	}
	return nil
}

func (l *Log) Clear() error { return nil }
