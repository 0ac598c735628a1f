// Package preprocessor implements the eight-pass pipeline that turns
// raw volume configurations into independent executable units (spec
// §4.1), grounded directly on the original implementation's
// processing/preprocessor.rs.
package preprocessor

import (
	"time"

	"vbackup/internal/config"
	"vbackup/internal/logging"
	"vbackup/internal/model"
	"vbackup/internal/modules"
	"vbackup/internal/savedata"
)

// Options carries the process-wide flags that gate preprocessor behavior.
type Options struct {
	Force            bool
	OverrideDisabled bool
	VolumeFilter     string // -n/--name: restrict to a single volume, "" = all
}

// Reporter is the narrow surface the preprocessor needs to emit the
// "disabled" status event for volumes and sub-configs it drops before
// they ever reach the executor.
type Reporter interface {
	Report(event modules.Event) error
}

// Preprocessor runs the eight passes over a batch of volumes.
type Preprocessor struct {
	paths    *config.Paths
	frames   map[string]model.TimeFrame
	auth     config.AuthData
	registry *modules.Registry
	args     modules.Args
	opts     Options
	logger   *logging.StructuredLogger
	now      time.Time
	reporter Reporter
}

// New constructs a Preprocessor. now is the single wall-clock sample
// captured at the start of the run (spec §4.1 pass 5: "a single
// wall-clock sample captured at the start of this pass" — in practice
// captured once for the whole run so every unit shares one instant).
// reporter may be nil (e.g. a dry-run listing), in which case disabled
// status events are silently skipped.
func New(paths *config.Paths, frames map[string]model.TimeFrame, auth config.AuthData, registry *modules.Registry, args modules.Args, opts Options, now time.Time, reporter Reporter) *Preprocessor {
	return &Preprocessor{
		paths: paths, frames: frames, auth: auth, registry: registry,
		args: args, opts: opts, logger: args.Logger.WithComponent("preprocessor"), now: now,
		reporter: reporter,
	}
}

// reportDisabled emits a "disabled" status event for a volume or
// sub-config dropped by passFilterDisabledAndFlatten, so every volume
// still gets exactly one status event per role per run (spec §7).
func (p *Preprocessor) reportDisabled(moduleType string, runType modules.RunType) {
	if p.reporter == nil {
		return
	}
	event := modules.Event{Kind: modules.EventStatus, Module: moduleType, RunType: runType, Status: modules.StatusDisabled}
	if err := p.reporter.Report(event); err != nil {
		p.logger.Error("report", "reporter fanout returned an error", map[string]interface{}{"error": err.Error()})
	}
}

// builder is an in-flight unit under construction; it carries either a
// backup or sync payload (never both) plus the configuration/savedata
// it shares with its sibling from the same volume.
type builder struct {
	cfg      *model.Configuration
	saveData *model.SaveData

	isBackup     bool
	backupConfig *model.BackupConfiguration
	backupPaths  model.ModulePaths
	backupTiming []model.ExecutionTiming
	backupCheck  modules.Check

	syncConfig  *model.SyncConfiguration
	syncPaths   model.ModulePaths
	syncTiming  *model.ExecutionTiming
	syncCheck   modules.Check
	syncCtrl    modules.Controller
	ctrlConfig  *model.ControllerConfiguration
}

// Run executes all eight passes and returns the resulting units. Per
// spec §4.1 the pipeline is fail-soft: a failure on one volume is
// logged and drops that volume; it never aborts sibling volumes.
func (p *Preprocessor) Run(volumes []*model.Configuration) []model.Unit {
	builders := p.passFilterDisabledAndFlatten(volumes)
	builders = p.passLoadSavedata(builders)
	builders = p.passTimeFrameFilter(builders)
	builders = p.passLoadChecks(builders)
	builders = p.passAdditionalCheckFilter(builders)
	builders = p.passLoadControllers(builders)
	return p.assemble(builders)
}

// passFilterDisabledAndFlatten implements passes 1 (filter disabled),
// 2 (resolve module paths), and 4 (flatten) together: there is no
// intermediate representation worth materializing for path resolution
// alone, so the plain-data shape is flattened directly into builders.
func (p *Preprocessor) passFilterDisabledAndFlatten(volumes []*model.Configuration) []*builder {
	var out []*builder
	for _, cfg := range volumes {
		if p.opts.VolumeFilter != "" && cfg.Name != p.opts.VolumeFilter {
			continue
		}
		if cfg.Disabled && !p.opts.OverrideDisabled {
			p.logger.Debug("filter_disabled", "dropping disabled volume", map[string]interface{}{"volume": cfg.Name})
			if cfg.Backup != nil {
				p.reportDisabled(cfg.Backup.BackupType, modules.RunTypeBackup)
			}
			if cfg.Sync != nil {
				p.reportDisabled(cfg.Sync.SyncType, modules.RunTypeSync)
			}
			continue
		}

		backupEnabled := cfg.Backup != nil && (!cfg.Backup.Disabled || p.opts.OverrideDisabled)
		syncEnabled := cfg.Sync != nil && (!cfg.Sync.Disabled || p.opts.OverrideDisabled)

		if cfg.Backup != nil && !backupEnabled {
			p.logger.Debug("filter_disabled", "dropping disabled backup sub-config", map[string]interface{}{"volume": cfg.Name})
			p.reportDisabled(cfg.Backup.BackupType, modules.RunTypeBackup)
		}
		if cfg.Sync != nil && !syncEnabled {
			p.logger.Debug("filter_disabled", "dropping disabled sync sub-config", map[string]interface{}{"volume": cfg.Name})
			p.reportDisabled(cfg.Sync.SyncType, modules.RunTypeSync)
		}

		if backupEnabled {
			b := &builder{cfg: cfg, isBackup: true, backupConfig: cfg.Backup, backupPaths: p.paths.ModulePathsFor("backup", cfg)}
			out = append(out, b)
		}
		if syncEnabled {
			s := &builder{cfg: cfg, isBackup: false, syncConfig: cfg.Sync, syncPaths: p.paths.ModulePathsFor("sync", cfg)}
			out = append(out, s)
		}
	}
	return out
}

// passLoadSavedata implements pass 3. The backup and sync builder
// derived from the same volume share one SaveData value — this loop
// loads at most once per volume name and hands out the same pointer.
func (p *Preprocessor) passLoadSavedata(builders []*builder) []*builder {
	cache := map[string]*model.SaveData{}
	var out []*builder
	for _, b := range builders {
		path := b.backupPaths.SaveDataPath
		if !b.isBackup {
			path = b.syncPaths.SaveDataPath
		}
		sd, ok := cache[b.cfg.Name]
		if !ok {
			loaded, err := savedata.Load(path)
			if err != nil {
				p.logger.Error("load_savedata", "dropping volume: cannot load savedata", map[string]interface{}{"volume": b.cfg.Name, "error": err.Error()})
				cache[b.cfg.Name] = nil
				continue
			}
			sd = loaded
			cache[b.cfg.Name] = sd
		}
		if sd == nil {
			continue
		}
		b.saveData = sd
		out = append(out, b)
	}
	return out
}

// passTimeFrameFilter implements pass 5.
func (p *Preprocessor) passTimeFrameFilter(builders []*builder) []*builder {
	var out []*builder
	for _, b := range builders {
		if b.isBackup {
			var timings []model.ExecutionTiming
			for _, ref := range b.backupConfig.TimeFrames {
				timing, ok := p.resolveTiming(b.cfg.Name, ref, b.saveData.LastSave)
				if ok {
					timings = append(timings, timing)
				}
			}
			if len(timings) == 0 {
				p.logger.Debug("time_frame_filter", "dropping backup unit: no eligible frames", map[string]interface{}{"volume": b.cfg.Name})
				continue
			}
			b.backupTiming = timings
			out = append(out, b)
			continue
		}

		timing, ok := p.resolveTiming(b.cfg.Name, b.syncConfig.Interval, b.saveData.LastSync)
		if !ok {
			p.logger.Debug("time_frame_filter", "dropping sync unit: not eligible", map[string]interface{}{"volume": b.cfg.Name})
			continue
		}
		b.syncTiming = &timing
		out = append(out, b)
	}
	return out
}

func (p *Preprocessor) resolveTiming(volume string, ref model.TimeFrameReference, last map[string]model.TimeEntry) (model.ExecutionTiming, bool) {
	frame, ok := p.frames[ref.Frame]
	if !ok {
		p.logger.Error("time_frame_filter", "unknown time frame referenced", map[string]interface{}{"volume": volume, "frame": ref.Frame})
		return model.ExecutionTiming{}, false
	}
	if ref.Amount == 0 {
		p.logger.Warning("time_frame_filter", "frame declared with amount 0, produces nothing", map[string]interface{}{"volume": volume, "frame": ref.Frame})
		return model.ExecutionTiming{}, false
	}

	entry, hasEntry := last[ref.Frame]
	eligible := p.opts.Force || !hasEntry || entry.Timestamp+frame.Interval < p.now.Unix()
	if !eligible {
		return model.ExecutionTiming{}, false
	}

	var lastRun *model.TimeEntry
	if hasEntry {
		e := entry
		lastRun = &e
	}
	return model.ExecutionTiming{Reference: ref, Frame: frame, LastRun: lastRun, ExecutionTime: p.now}, true
}

// passLoadChecks implements pass 6.
func (p *Preprocessor) passLoadChecks(builders []*builder) []*builder {
	var out []*builder
	for _, b := range builders {
		var checkCfg *model.CheckConfiguration
		var paths model.ModulePaths
		if b.isBackup {
			checkCfg, paths = b.backupConfig.Check, b.backupPaths
		} else {
			checkCfg, paths = b.syncConfig.Check, b.syncPaths
		}
		if checkCfg == nil {
			out = append(out, b)
			continue
		}

		check, err := p.registry.NewCheck(checkCfg.CheckType, b.cfg.Name, checkCfg.Config, paths, p.args)
		if err != nil {
			p.logger.Error("load_checks", "dropping unit: check construction failed", map[string]interface{}{"volume": b.cfg.Name, "error": err.Error()})
			continue
		}
		if err := check.Init(); err != nil {
			p.logger.Error("load_checks", "dropping unit: check init failed", map[string]interface{}{"volume": b.cfg.Name, "error": err.Error()})
			continue
		}
		if b.isBackup {
			b.backupCheck = check
		} else {
			b.syncCheck = check
		}
		out = append(out, b)
	}
	return out
}

// passAdditionalCheckFilter implements pass 7.
func (p *Preprocessor) passAdditionalCheckFilter(builders []*builder) []*builder {
	if p.opts.Force {
		return builders
	}

	var out []*builder
	for _, b := range builders {
		if b.isBackup {
			if b.backupCheck == nil {
				out = append(out, b)
				continue
			}
			var surviving []model.ExecutionTiming
			for _, timing := range b.backupTiming {
				ready, err := b.backupCheck.Check(timing)
				if err != nil {
					p.logger.Error("additional_check_filter", "check error, treating frame as not ready", map[string]interface{}{"volume": b.cfg.Name, "frame": timing.Frame.Identifier, "error": err.Error()})
					continue
				}
				if ready {
					surviving = append(surviving, timing)
				}
			}
			if len(surviving) == 0 {
				continue
			}
			b.backupTiming = surviving
			out = append(out, b)
			continue
		}

		if b.syncCheck == nil {
			out = append(out, b)
			continue
		}
		ready, err := b.syncCheck.Check(*b.syncTiming)
		if err != nil {
			p.logger.Error("additional_check_filter", "check error, dropping sync unit", map[string]interface{}{"volume": b.cfg.Name, "error": err.Error()})
			continue
		}
		if ready {
			out = append(out, b)
		}
	}
	return out
}

// passLoadControllers implements pass 8 (sync builders only).
func (p *Preprocessor) passLoadControllers(builders []*builder) []*builder {
	var out []*builder
	for _, b := range builders {
		if b.isBackup || b.syncConfig.Controller == nil {
			out = append(out, b)
			continue
		}

		ctrlCfg := b.syncConfig.Controller
		ctrl, err := p.registry.NewController(ctrlCfg.ControllerType, b.cfg.Name, ctrlCfg.Config, p.args)
		if err != nil {
			p.logger.Error("load_controllers", "dropping sync unit: controller construction failed", map[string]interface{}{"volume": b.cfg.Name, "error": err.Error()})
			continue
		}
		if err := ctrl.Init(); err != nil {
			p.logger.Error("load_controllers", "dropping sync unit: controller init failed", map[string]interface{}{"volume": b.cfg.Name, "error": err.Error()})
			continue
		}
		b.syncCtrl = ctrl
		b.ctrlConfig = ctrlCfg
		out = append(out, b)
	}
	return out
}

// assemble converts surviving builders into the tagged ExecutableUnit
// variants the bundler and scheduler operate on.
func (p *Preprocessor) assemble(builders []*builder) []model.Unit {
	units := make([]model.Unit, 0, len(builders))
	for _, b := range builders {
		if b.isBackup {
			var check model.CheckHandle
			if b.backupCheck != nil {
				check = b.backupCheck
			}
			units = append(units, &model.BackupUnit{
				Configuration: b.cfg,
				BackupConfig:  b.backupConfig,
				Check:         check,
				Paths:         b.backupPaths,
				SaveData:      b.saveData,
				Timings:       b.backupTiming,
			})
			continue
		}

		var check model.CheckHandle
		if b.syncCheck != nil {
			check = b.syncCheck
		}
		var ctrl model.ControllerHandle
		if b.syncCtrl != nil {
			ctrl = b.syncCtrl
		}
		units = append(units, &model.SyncUnit{
			Configuration: b.cfg,
			SyncConfig:    b.syncConfig,
			Check:         check,
			Controller:    ctrl,
			Paths:         b.syncPaths,
			SaveData:      b.saveData,
			Timing:        *b.syncTiming,
		})
	}
	return units
}
