// Package modules defines the five plug-in capability kinds (spec §6)
// and a construction registry. Concrete implementations live in the
// backup, sync, check, controller, and reporter subpackages.
package modules

import (
	"encoding/json"

	vbErrors "vbackup/internal/errors"
	"vbackup/internal/logging"
	"vbackup/internal/model"
)

// Args carries the process-wide invocation flags every module
// constructor receives, mirroring spec §6's "new(name, cfg, paths,
// args)" contract.
type Args struct {
	DryRun   bool
	Force    bool
	NoDocker bool
	Logger   *logging.StructuredLogger
}

// Backup is the capability contract a concrete backup module implements.
type Backup interface {
	Init() error
	Backup(timings []model.ExecutionTiming) error
	Restore(destination string) error
	Clear() error
}

// Sync is the capability contract a concrete sync module implements.
type Sync interface {
	Init() error
	Sync() error
	Restore(destination string) error
	Clear() error
}

// Check is the capability contract a concrete check module implements.
// model.CheckHandle is the narrower view the executor/preprocessor see.
type Check interface {
	model.CheckHandle
	Init() error
}

// Controller is the capability contract a concrete controller module
// implements. model.ControllerHandle is the narrower executor view.
type Controller interface {
	model.ControllerHandle
	Init() error
}

// Bundleable is the optional sub-capability of Controller: a
// controller type that supports coalescing multiple sync units behind
// one shared instance (spec §4.3).
type Bundleable interface {
	Controller
	// TryBundle attempts to fold another unit's controller config into
	// this instance. Returns true if compatible and folded in.
	TryBundle(name string, cfg json.RawMessage) (bool, error)
}

// Reporter is the capability contract a concrete reporter module implements.
type Reporter interface {
	Init() error
	Report(event Event) error
	Clear() error
}

// EventKind discriminates the three reporter event shapes (spec §4.8).
type EventKind int

const (
	EventOperation EventKind = iota
	EventStatus
	EventSize
)

// RunType names the kind of run an event pertains to.
type RunType string

const (
	RunTypeRun    RunType = "run"
	RunTypeBackup RunType = "backup"
	RunTypeSync   RunType = "sync"
)

// Status is the terminal or transitional state of a status event.
type Status string

const (
	StatusStart    Status = "start"
	StatusDone     Status = "done"
	StatusError    Status = "error"
	StatusSkip     Status = "skip"
	StatusDisabled Status = "disabled"
)

// SizeType names which byte total a size event reports.
type SizeType string

const (
	SizeOriginal SizeType = "original"
	SizeBackup   SizeType = "backup"
	SizeSync     SizeType = "sync"
)

// Event is the single envelope type passed to Reporter.Report.
type Event struct {
	Kind    EventKind
	Module  string
	RunType RunType
	Label   string // operation label, for EventOperation
	Status  Status
	Size    SizeType
	Bytes   int64
}

// BackupFactory constructs a concrete Backup module by type name.
type BackupFactory func(name string, cfg json.RawMessage, paths model.ModulePaths, args Args) (Backup, error)

// SyncFactory constructs a concrete Sync module by type name.
type SyncFactory func(name string, cfg json.RawMessage, paths model.ModulePaths, args Args) (Sync, error)

// CheckFactory constructs a concrete Check module by type name.
type CheckFactory func(name string, cfg json.RawMessage, paths model.ModulePaths, args Args) (Check, error)

// ControllerFactory constructs a concrete Controller module by type name.
type ControllerFactory func(name string, cfg json.RawMessage, args Args) (Controller, error)

// ReporterFactory constructs a concrete Reporter module from its opaque config.
type ReporterFactory func(cfg json.RawMessage, args Args) (Reporter, error)

// Registry is the process-wide table of module constructors, populated
// at startup by each concrete module's init or by main wiring.
type Registry struct {
	backups     map[string]BackupFactory
	syncs       map[string]SyncFactory
	checks      map[string]CheckFactory
	controllers map[string]ControllerFactory
	reporters   map[string]ReporterFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backups:     map[string]BackupFactory{},
		syncs:       map[string]SyncFactory{},
		checks:      map[string]CheckFactory{},
		controllers: map[string]ControllerFactory{},
		reporters:   map[string]ReporterFactory{},
	}
}

func (r *Registry) RegisterBackup(name string, f BackupFactory)         { r.backups[name] = f }
func (r *Registry) RegisterSync(name string, f SyncFactory)             { r.syncs[name] = f }
func (r *Registry) RegisterCheck(name string, f CheckFactory)           { r.checks[name] = f }
func (r *Registry) RegisterController(name string, f ControllerFactory) { r.controllers[name] = f }
func (r *Registry) RegisterReporter(name string, f ReporterFactory)     { r.reporters[name] = f }

func (r *Registry) NewBackup(moduleType, name string, cfg json.RawMessage, paths model.ModulePaths, args Args) (Backup, error) {
	f, ok := r.backups[moduleType]
	if !ok {
		return nil, vbErrors.NewModuleConstructionError("registry", moduleType, "unknown backup module type", nil)
	}
	return f(name, cfg, paths, args)
}

func (r *Registry) NewSync(moduleType, name string, cfg json.RawMessage, paths model.ModulePaths, args Args) (Sync, error) {
	f, ok := r.syncs[moduleType]
	if !ok {
		return nil, vbErrors.NewModuleConstructionError("registry", moduleType, "unknown sync module type", nil)
	}
	return f(name, cfg, paths, args)
}

func (r *Registry) NewCheck(moduleType, name string, cfg json.RawMessage, paths model.ModulePaths, args Args) (Check, error) {
	f, ok := r.checks[moduleType]
	if !ok {
		return nil, vbErrors.NewModuleConstructionError("registry", moduleType, "unknown check module type", nil)
	}
	return f(name, cfg, paths, args)
}

func (r *Registry) NewController(moduleType, name string, cfg json.RawMessage, args Args) (Controller, error) {
	f, ok := r.controllers[moduleType]
	if !ok {
		return nil, vbErrors.NewModuleConstructionError("registry", moduleType, "unknown controller module type", nil)
	}
	return f(name, cfg, args)
}

// ControllerFactoryFor exposes the raw factory registered for a
// controller type. The bundler does not use it: it seeds each new
// bundle builder with the first unit's own controller instance.
func (r *Registry) ControllerFactoryFor(moduleType string) (ControllerFactory, bool) {
	f, ok := r.controllers[moduleType]
	return f, ok
}

func (r *Registry) NewReporter(moduleType string, cfg json.RawMessage, args Args) (Reporter, error) {
	f, ok := r.reporters[moduleType]
	if !ok {
		return nil, vbErrors.NewModuleConstructionError("registry", moduleType, "unknown reporter module type", nil)
	}
	return f(cfg, args)
}

// IsBundleable reports whether sample, an already-constructed instance
// of moduleType, implements Bundleable. It constructs nothing itself;
// moduleType is not consulted.
func (r *Registry) IsBundleable(moduleType string, sample Controller) bool {
	_, ok := sample.(Bundleable)
	return ok
}
