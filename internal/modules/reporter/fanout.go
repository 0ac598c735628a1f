// Package reporter holds concrete Reporter sinks and the fanout that
// multiplexes events to all of them with best-effort delivery (spec §4.8).
package reporter

import (
	vbErrors "vbackup/internal/errors"
	"vbackup/internal/logging"
	"vbackup/internal/modules"
)

// Fanout composes zero or more concrete reporters. Every operation is
// best-effort: each sink is invoked regardless of whether an earlier
// one failed, and errors are folded into one MultiError rather than
// short-circuiting — grounded on the original's
// modules/reporting/mod.rs ReportingModule::accumulate.
type Fanout struct {
	sinks  []modules.Reporter
	logger *logging.StructuredLogger
}

// NewFanout constructs a Fanout from already-constructed sinks. Sinks
// that failed to construct are expected to have been dropped by the
// caller already (with a logged error), matching spec §4.8's "a sink
// that fails to construct drops out... but does not abort the run".
func NewFanout(sinks []modules.Reporter, logger *logging.StructuredLogger) *Fanout {
	return &Fanout{sinks: sinks, logger: logger}
}

func (f *Fanout) Init() error {
	multi := vbErrors.NewMultiError("reporter.fanout", "init")
	for _, sink := range f.sinks {
		if err := sink.Init(); err != nil {
			multi.Add(vbErrors.NewReporterError("fanout", "sink init failed", err))
		}
	}
	return multi.ToError()
}

// Report delivers event to every sink, accumulating failures without
// aborting delivery to the rest.
func (f *Fanout) Report(event modules.Event) error {
	multi := vbErrors.NewMultiError("reporter.fanout", "report")
	for _, sink := range f.sinks {
		if err := sink.Report(event); err != nil {
			multi.Add(vbErrors.NewReporterError("fanout", "sink report failed", err))
		}
	}
	if err := multi.ToError(); err != nil {
		f.logger.Error("report", "one or more reporter sinks failed", map[string]interface{}{"error": err.Error()})
	}
	return nil // reporter errors never affect orchestration result (spec §7)
}

func (f *Fanout) Clear() error {
	multi := vbErrors.NewMultiError("reporter.fanout", "clear")
	for _, sink := range f.sinks {
		if err := sink.Clear(); err != nil {
			multi.Add(vbErrors.NewReporterError("fanout", "sink clear failed", err))
		}
	}
	return multi.ToError()
}
