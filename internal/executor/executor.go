// Package executor drives the per-unit state machines (spec §4.5–§4.7):
// construct module, init, run, persist savedata on success, always
// clear. Grounded on the original's processing/backup.rs, processing/sync.rs
// and processing/mod.rs run loop.
package executor

import (
	"time"

	"vbackup/internal/logging"
	"vbackup/internal/model"
	"vbackup/internal/modules"
	"vbackup/internal/modules/controller"
	"vbackup/internal/savedata"
)

// Reporter is the narrow surface the executor needs from the
// configured reporting fanout.
type Reporter interface {
	Report(event modules.Event) error
}

// Executor runs a scheduled list of units to completion.
type Executor struct {
	registry *modules.Registry
	args     modules.Args
	reporter Reporter
	logger   *logging.StructuredLogger
}

func New(registry *modules.Registry, args modules.Args, reporter Reporter, logger *logging.StructuredLogger) *Executor {
	return &Executor{registry: registry, args: args, reporter: reporter, logger: logger.WithComponent("executor")}
}

// Run drives every unit in order, never aborting the batch because one
// unit failed (spec §7: one volume's failure never blocks another's).
// It returns the number of units that ended in an operational error,
// so the orchestrator can report a single aggregate result for the run.
func (e *Executor) Run(units []model.Unit) int {
	failed := 0
	for _, u := range units {
		var ok bool
		switch unit := u.(type) {
		case *model.BackupUnit:
			ok = e.runBackup(unit)
		case *model.SyncUnit:
			ok = e.runSync(unit, unit.Controller, true)
		case *model.SyncControllerBundle:
			ok = e.runBundle(unit)
		default:
			ok = true
		}
		if !ok {
			failed++
		}
	}
	return failed
}

func (e *Executor) report(kind modules.EventKind, moduleType string, runType modules.RunType, status modules.Status) {
	if err := e.reporter.Report(modules.Event{Kind: kind, Module: moduleType, RunType: runType, Status: status}); err != nil {
		e.logger.Error("report", "reporter fanout returned an error", map[string]interface{}{"error": err.Error()})
	}
}

// runBackup drives one backup unit and reports whether it completed
// without an operational error.
func (e *Executor) runBackup(unit *model.BackupUnit) bool {
	volume := unit.VolumeName()
	log := e.logger.WithVolume(volume)
	moduleType := unit.BackupConfig.BackupType

	backup, err := e.registry.NewBackup(moduleType, volume, unit.BackupConfig.Config, unit.Paths, e.args)
	if err != nil {
		log.Error("backup", "module construction failed", map[string]interface{}{"error": err.Error()})
		e.report(modules.EventStatus, moduleType, modules.RunTypeBackup, modules.StatusError)
		e.clearCheck(unit.Check, log)
		return false
	}

	if err := backup.Init(); err != nil {
		log.Error("backup", "module init failed", map[string]interface{}{"error": err.Error()})
		e.report(modules.EventStatus, moduleType, modules.RunTypeBackup, modules.StatusError)
		e.clearCheck(unit.Check, log)
		_ = backup.Clear()
		return false
	}

	e.report(modules.EventStatus, moduleType, modules.RunTypeBackup, modules.StatusStart)
	runErr := backup.Backup(unit.Timings)
	success := runErr == nil
	if runErr != nil {
		log.Error("backup", "backup operation failed", map[string]interface{}{"error": runErr.Error()})
		e.report(modules.EventStatus, moduleType, modules.RunTypeBackup, modules.StatusError)
	} else {
		e.applyBackupSuccess(unit, log)
		e.report(modules.EventStatus, moduleType, modules.RunTypeBackup, modules.StatusDone)
	}

	e.clearCheck(unit.Check, log)
	if err := backup.Clear(); err != nil {
		log.Warning("backup", "module clear failed", map[string]interface{}{"error": err.Error()})
	}
	return success
}

// applyBackupSuccess updates savedata for every eligible frame and
// persists it atomically, unless dry-run (spec §4.5 step 4).
func (e *Executor) applyBackupSuccess(unit *model.BackupUnit, log *logging.StructuredLogger) {
	for _, timing := range unit.Timings {
		entry := model.NewTimeEntry(timing.ExecutionTime)
		unit.SaveData.LastSave[timing.Reference.Frame] = entry
		next := timing.ExecutionTime.Add(time.Duration(timing.Frame.Interval) * time.Second)
		unit.SaveData.NextSave[timing.Reference.Frame] = model.TimeEntry{
			Timestamp: next.Unix(),
			Date:      next.UTC().Format("2006-01-02 15:04:05"),
		}
		if unit.Check != nil {
			if err := unit.Check.Update(timing); err != nil {
				log.Warning("backup", "check update failed", map[string]interface{}{"frame": timing.Frame.Identifier, "error": err.Error()})
			}
		}
	}

	if e.args.DryRun {
		return
	}
	if err := savedata.Write(unit.SaveData); err != nil {
		log.Error("backup", "savedata persist failed", map[string]interface{}{"error": err.Error()})
	}
}

func (e *Executor) clearCheck(check model.CheckHandle, log *logging.StructuredLogger) {
	if check == nil {
		return
	}
	if err := check.Clear(); err != nil {
		log.Warning("check", "check clear failed", map[string]interface{}{"error": err.Error()})
	}
}

// runSync drives one sync unit and reports whether it completed
// without an operational error; a controller-skip is not a failure.
// ctrl is nil, the unit's own controller, or a shared bundle
// controller; owns is false when called from within a bundle, in
// which case Begin goes through the bundle's memoized wrapper and
// End/Clear are left to the bundle.
func (e *Executor) runSync(unit *model.SyncUnit, ctrl model.ControllerHandle, owns bool) bool {
	volume := unit.VolumeName()
	log := e.logger.WithVolume(volume)
	moduleType := unit.SyncConfig.SyncType

	sync, err := e.registry.NewSync(moduleType, volume, unit.SyncConfig.Config, unit.Paths, e.args)
	if err != nil {
		log.Error("sync", "module construction failed", map[string]interface{}{"error": err.Error()})
		e.report(modules.EventStatus, moduleType, modules.RunTypeSync, modules.StatusError)
		e.clearCheck(unit.Check, log)
		return false
	}

	if err := sync.Init(); err != nil {
		log.Error("sync", "module init failed", map[string]interface{}{"error": err.Error()})
		e.report(modules.EventStatus, moduleType, modules.RunTypeSync, modules.StatusError)
		e.clearCheck(unit.Check, log)
		_ = sync.Clear()
		return false
	}

	if ctrl != nil {
		ready, err := ctrl.Begin()
		if err != nil {
			log.Error("sync", "controller begin failed", map[string]interface{}{"error": err.Error()})
			e.report(modules.EventStatus, moduleType, modules.RunTypeSync, modules.StatusError)
			e.finishSync(unit, ctrl, owns, sync, log)
			return false
		}
		if !ready {
			log.Debug("sync", "controller reports remote unavailable, skipping", nil)
			e.report(modules.EventStatus, moduleType, modules.RunTypeSync, modules.StatusSkip)
			e.finishSync(unit, ctrl, owns, sync, log)
			return true
		}
	}

	e.report(modules.EventStatus, moduleType, modules.RunTypeSync, modules.StatusStart)
	runErr := sync.Sync()
	success := runErr == nil
	if runErr != nil {
		log.Error("sync", "sync operation failed", map[string]interface{}{"error": runErr.Error()})
		e.report(modules.EventStatus, moduleType, modules.RunTypeSync, modules.StatusError)
	} else {
		e.applySyncSuccess(unit, log)
		e.report(modules.EventStatus, moduleType, modules.RunTypeSync, modules.StatusDone)
	}

	e.finishSync(unit, ctrl, owns, sync, log)
	return success
}

func (e *Executor) applySyncSuccess(unit *model.SyncUnit, log *logging.StructuredLogger) {
	unit.SaveData.LastSync[unit.Timing.Reference.Frame] = model.NewTimeEntry(unit.Timing.ExecutionTime)
	if unit.Check != nil {
		if err := unit.Check.Update(unit.Timing); err != nil {
			log.Warning("sync", "check update failed", map[string]interface{}{"error": err.Error()})
		}
	}
	if e.args.DryRun {
		return
	}
	if err := savedata.Write(unit.SaveData); err != nil {
		log.Error("sync", "savedata persist failed", map[string]interface{}{"error": err.Error()})
	}
}

func (e *Executor) finishSync(unit *model.SyncUnit, ctrl model.ControllerHandle, owns bool, sync modules.Sync, log *logging.StructuredLogger) {
	if owns && ctrl != nil {
		if err := ctrl.End(); err != nil {
			log.Warning("sync", "controller end failed", map[string]interface{}{"error": err.Error()})
		}
		if err := ctrl.Clear(); err != nil {
			log.Warning("sync", "controller clear failed", map[string]interface{}{"error": err.Error()})
		}
	}
	e.clearCheck(unit.Check, log)
	if err := sync.Clear(); err != nil {
		log.Warning("sync", "module clear failed", map[string]interface{}{"error": err.Error()})
	}
}

// runBundle drives every contained sync unit against the shared bundle
// controller, then finalizes the controller exactly once (spec §4.7).
// It reports success only if every contained sync and the final
// controller teardown succeeded.
func (e *Executor) runBundle(bundle *model.SyncControllerBundle) bool {
	success := true
	for _, unit := range bundle.Units {
		if !e.runSync(unit, bundle.Controller, false) {
			success = false
		}
	}

	if b, ok := bundle.Controller.(*controller.Bundle); ok {
		if err := b.Done(); err != nil {
			e.logger.Error("bundle", "bundle finalization failed", map[string]interface{}{"id": bundle.ID, "error": err.Error()})
			success = false
		}
	}
	return success
}
