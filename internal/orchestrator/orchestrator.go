// Package orchestrator wires configuration loading, the preprocessor,
// bundler, scheduler and executor into the single run a CLI invocation
// performs, modeled on the teacher's internal/orchestrator/backup_orchestrator.go
// top-level sequencing.
package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"vbackup/internal/bundler"
	"vbackup/internal/config"
	vbErrors "vbackup/internal/errors"
	"vbackup/internal/executor"
	"vbackup/internal/logging"
	"vbackup/internal/model"
	"vbackup/internal/modules"
	"vbackup/internal/modules/reporter"
	"vbackup/internal/preprocessor"
	"vbackup/internal/registry"
	"vbackup/internal/scheduler"
)

// Options mirrors the CLI invocation flags that affect a run (spec §6).
type Options struct {
	ConfigPath       string // -c/--config, the base config.json path
	VolumeName       string // -n/--name
	DryRun           bool
	Force            bool
	NoDocker         bool
	NoReporting      bool
	OverrideDisabled bool
	// RoleFilter restricts execution to "backup" or "sync" units only;
	// empty runs both (the "run" operation).
	RoleFilter string
}

// Orchestrator holds the components assembled once per run.
type Orchestrator struct {
	logger   *logging.StructuredLogger
	registry *modules.Registry
}

// New constructs an Orchestrator with the default module registry.
func New(logger *logging.StructuredLogger) *Orchestrator {
	return &Orchestrator{logger: logger, registry: registry.Default()}
}

// Run loads configuration, preprocesses, bundles, schedules and
// executes every eligible unit for opts. It returns an error for
// failures that abort the whole run (e.g. cannot load base config).
// Per-volume failures are logged and never stop the remaining units;
// if any unit failed, Run returns a RunIncompleteError after all units
// have been attempted (spec §7).
func (o *Orchestrator) Run(opts Options) error {
	o.logger = o.logger.WithRunID(uuid.NewString())

	base, err := config.LoadPathBase(opts.ConfigPath)
	if err != nil {
		return err
	}
	paths := &config.Paths{Base: *base}

	volumes, loadErrs := config.LoadVolumes(base.ConfigDir)
	for _, e := range loadErrs {
		o.logger.Error("orchestrator", "failed to load a volume configuration", map[string]interface{}{"error": e.Error()})
	}

	frames, err := config.LoadTimeFrames(base.TimeFramesFile)
	if err != nil {
		return err
	}

	auth, err := config.LoadAuthData(base.AuthDataFile)
	if err != nil {
		return err
	}

	rep := o.buildReporter(base, opts)
	if err := rep.Init(); err != nil {
		o.logger.Error("orchestrator", "reporter fanout init reported errors", map[string]interface{}{"error": err.Error()})
	}
	defer func() {
		if err := rep.Clear(); err != nil {
			o.logger.Error("orchestrator", "reporter fanout clear reported errors", map[string]interface{}{"error": err.Error()})
		}
	}()

	_ = rep.Report(modules.Event{Kind: modules.EventOperation, RunType: modules.RunTypeRun, Label: "START"})
	defer func() { _ = rep.Report(modules.Event{Kind: modules.EventOperation, RunType: modules.RunTypeRun, Label: "DONE"}) }()

	args := modules.Args{DryRun: opts.DryRun, Force: opts.Force, NoDocker: opts.NoDocker, Logger: o.logger}
	pOpts := preprocessor.Options{Force: opts.Force, OverrideDisabled: opts.OverrideDisabled, VolumeFilter: opts.VolumeName}

	pp := preprocessor.New(paths, frames, auth, o.registry, args, pOpts, time.Now(), rep)
	units := pp.Run(volumes)
	units = filterByRole(units, opts.RoleFilter)

	b := bundler.New(o.logger)
	units = b.Run(units)

	units = scheduler.Order(units)

	o.logger.Info("orchestrator", "executing scheduled units", map[string]interface{}{"count": len(units)})
	ex := executor.New(o.registry, args, rep, o.logger)
	if failed := ex.Run(units); failed > 0 {
		return vbErrors.NewRunIncompleteError(failed, len(units))
	}

	return nil
}

// List runs the preprocessor, bundler and scheduler and prints the
// resulting units. It constructs no backup or sync module and writes
// no savedata. The preprocessor still constructs and initializes any
// configured check and controller modules and runs the checks, as in
// Run, so their side effects still happen (the file_age check's Init
// creates its data directory under save_dir).
func (o *Orchestrator) List(opts Options) error {
	base, err := config.LoadPathBase(opts.ConfigPath)
	if err != nil {
		return err
	}
	paths := &config.Paths{Base: *base}

	volumes, loadErrs := config.LoadVolumes(base.ConfigDir)
	for _, e := range loadErrs {
		o.logger.Error("orchestrator", "failed to load a volume configuration", map[string]interface{}{"error": e.Error()})
	}

	frames, err := config.LoadTimeFrames(base.TimeFramesFile)
	if err != nil {
		return err
	}
	auth, err := config.LoadAuthData(base.AuthDataFile)
	if err != nil {
		return err
	}

	args := modules.Args{DryRun: true, Force: opts.Force, NoDocker: opts.NoDocker, Logger: o.logger}
	pOpts := preprocessor.Options{Force: opts.Force, OverrideDisabled: opts.OverrideDisabled, VolumeFilter: opts.VolumeName}

	pp := preprocessor.New(paths, frames, auth, o.registry, args, pOpts, time.Now(), nil)
	units := pp.Run(volumes)
	units = filterByRole(units, opts.RoleFilter)
	units = bundler.New(o.logger).Run(units)
	units = scheduler.Order(units)

	for _, u := range units {
		switch unit := u.(type) {
		case *model.BackupUnit:
			frameIDs := make([]string, 0, len(unit.Timings))
			for _, t := range unit.Timings {
				frameIDs = append(frameIDs, t.Reference.Frame)
			}
			fmt.Printf("backup  %-20s type=%-12s frames=%v\n", unit.VolumeName(), unit.BackupConfig.BackupType, frameIDs)
		case *model.SyncUnit:
			fmt.Printf("sync    %-20s type=%-12s frame=%s\n", unit.VolumeName(), unit.SyncConfig.SyncType, unit.Timing.Reference.Frame)
		case *model.SyncControllerBundle:
			for _, m := range unit.Units {
				fmt.Printf("sync    %-20s type=%-12s frame=%s bundle=%s\n", m.VolumeName(), m.SyncConfig.SyncType, m.Timing.Reference.Frame, unit.ID)
			}
		}
	}
	return nil
}

// Restore runs a single volume's backup or sync module Restore
// operation against destination instead of its usual Backup/Sync,
// bypassing time-frame gating entirely since a restore is always an
// explicit, operator-initiated action.
func (o *Orchestrator) Restore(opts Options, role, destination string) error {
	if opts.VolumeName == "" {
		return vbErrors.New(vbErrors.ErrCodeValidation, "orchestrator", "restore", "restore requires -n/--name")
	}

	base, err := config.LoadPathBase(opts.ConfigPath)
	if err != nil {
		return err
	}
	paths := &config.Paths{Base: *base}

	volumes, loadErrs := config.LoadVolumes(base.ConfigDir)
	for _, e := range loadErrs {
		o.logger.Error("orchestrator", "failed to load a volume configuration", map[string]interface{}{"error": e.Error()})
	}

	var cfg *model.Configuration
	for _, v := range volumes {
		if v.Name == opts.VolumeName {
			cfg = v
			break
		}
	}
	if cfg == nil {
		return vbErrors.New(vbErrors.ErrCodeConfiguration, "orchestrator", "restore", "no such volume: "+opts.VolumeName)
	}

	args := modules.Args{DryRun: opts.DryRun, Force: true, NoDocker: opts.NoDocker, Logger: o.logger}

	switch role {
	case "backup":
		if cfg.Backup == nil {
			return vbErrors.New(vbErrors.ErrCodeConfiguration, "orchestrator", "restore", "volume has no backup configuration")
		}
		modulePaths := paths.ModulePathsFor("backup", cfg)
		mod, err := o.registry.NewBackup(cfg.Backup.BackupType, cfg.Name, cfg.Backup.Config, modulePaths, args)
		if err != nil {
			return err
		}
		if err := mod.Init(); err != nil {
			return err
		}
		defer mod.Clear()
		return mod.Restore(destination)
	case "sync":
		if cfg.Sync == nil {
			return vbErrors.New(vbErrors.ErrCodeConfiguration, "orchestrator", "restore", "volume has no sync configuration")
		}
		modulePaths := paths.ModulePathsFor("sync", cfg)
		mod, err := o.registry.NewSync(cfg.Sync.SyncType, cfg.Name, cfg.Sync.Config, modulePaths, args)
		if err != nil {
			return err
		}
		if err := mod.Init(); err != nil {
			return err
		}
		defer mod.Clear()
		return mod.Restore(destination)
	default:
		return vbErrors.New(vbErrors.ErrCodeValidation, "orchestrator", "restore", "role must be backup or sync")
	}
}

// buildReporter constructs the fanout from the reporting config file.
// Construction failures for individual sinks are logged and dropped
// (spec §4.8); if nothing is configured, the fanout still carries the
// log reporter so a run is never silent. With NoReporting set, the
// fanout has no sinks at all.
func (o *Orchestrator) buildReporter(base *config.PathBase, opts Options) *reporter.Fanout {
	args := modules.Args{DryRun: opts.DryRun, Force: opts.Force, NoDocker: opts.NoDocker, Logger: o.logger}

	if opts.NoReporting {
		return reporter.NewFanout(nil, o.logger.WithComponent("reporter.fanout"))
	}

	var sinks []modules.Reporter
	logSink, err := reporter.NewLog(nil, args)
	if err == nil {
		sinks = append(sinks, logSink)
	}

	configs, err := config.LoadReporters(base.ReportingFile)
	if err != nil {
		o.logger.Error("orchestrator", "failed to load reporting configuration", map[string]interface{}{"error": err.Error()})
	}
	for _, c := range configs {
		sink, err := o.registry.NewReporter(c.ReporterType, c.Config, args)
		if err != nil {
			o.logger.Error("orchestrator", "reporter construction failed, dropping sink", map[string]interface{}{"type": c.ReporterType, "error": err.Error()})
			continue
		}
		sinks = append(sinks, sink)
	}

	return reporter.NewFanout(sinks, o.logger.WithComponent("reporter.fanout"))
}

// filterByRole restricts units to a single role ("backup" or "sync"),
// used by the "backup" and "sync" CLI operations (spec §6); an empty
// role runs both, as the "run" operation does.
func filterByRole(units []model.Unit, role string) []model.Unit {
	if role == "" {
		return units
	}
	var out []model.Unit
	for _, u := range units {
		switch role {
		case "backup":
			if u.Kind() == model.KindBackup {
				out = append(out, u)
			}
		case "sync":
			if u.Kind() == model.KindSync || u.Kind() == model.KindSyncControllerBundle {
				out = append(out, u)
			}
		}
	}
	return out
}

// ErrAborted returns err unchanged if it is already a StandardError and
// otherwise wraps it under ErrCodeUnknown as a run-aborting error.
func ErrAborted(err error) *vbErrors.StandardError {
	if se, ok := err.(*vbErrors.StandardError); ok {
		return se
	}
	return vbErrors.NewWithCause(vbErrors.ErrCodeUnknown, "orchestrator", "run", "run aborted", err)
}
