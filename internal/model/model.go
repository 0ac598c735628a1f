// Package model holds the core data types the orchestration pipeline
// operates on: time frames, configurations, executable units.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeFrame is an immutable named interval, keyed by Identifier in a
// process-wide mapping loaded once per run.
type TimeFrame struct {
	Identifier string `json:"identifier"`
	Interval   int64  `json:"interval"` // seconds
}

// TimeFrameReference is a volume's declaration of participation in a
// frame. Amount is the retention count; Amount == 0 means "declared
// but produce nothing" and short-circuits in the preprocessor.
type TimeFrameReference struct {
	Frame  string `json:"frame"`
	Amount uint   `json:"amount"`
}

// TimeEntry is written by the executor after a successful backup/sync.
type TimeEntry struct {
	Timestamp int64  `json:"timestamp"`
	Date      string `json:"date,omitempty"`
}

// NewTimeEntry stamps t as a TimeEntry with a human-readable rendering,
// matching the original's "%Y-%m-%d %H:%M:%S" format.
func NewTimeEntry(t time.Time) TimeEntry {
	return TimeEntry{Timestamp: t.Unix(), Date: t.UTC().Format("2006-01-02 15:04:05")}
}

// SaveData is a volume's persistent record of last/next run times per
// frame. A missing frame entry is semantically equivalent to "never".
type SaveData struct {
	LastSave map[string]TimeEntry `json:"lastsave"`
	NextSave map[string]TimeEntry `json:"nextsave"`
	LastSync map[string]TimeEntry `json:"lastsync"`

	// Path is the absolute path the data was loaded from / will be
	// written to. Not serialized.
	Path string `json:"-"`
}

// NewSaveData synthesizes an empty SaveData for a volume with no prior
// persisted file.
func NewSaveData(path string) *SaveData {
	return &SaveData{
		LastSave: map[string]TimeEntry{},
		NextSave: map[string]TimeEntry{},
		LastSync: map[string]TimeEntry{},
		Path:     path,
	}
}

// SourcePath is either a single path or a labeled set of named paths.
type SourcePath struct {
	Single string
	Named  map[string]string
}

// UnmarshalJSON accepts either a bare string or an array of
// {"name":..., "path":...} objects.
func (s *SourcePath) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		s.Single = single
		s.Named = nil
		return nil
	}

	var list []struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("source_path: expected string or named-path list: %w", err)
	}
	named := make(map[string]string, len(list))
	for _, e := range list {
		named[e.Name] = e.Path
	}
	s.Named = named
	s.Single = ""
	return nil
}

// MarshalJSON round-trips either representation.
func (s SourcePath) MarshalJSON() ([]byte, error) {
	if s.Named != nil {
		type entry struct {
			Name string `json:"name"`
			Path string `json:"path"`
		}
		list := make([]entry, 0, len(s.Named))
		for name, path := range s.Named {
			list = append(list, entry{Name: name, Path: path})
		}
		return json.Marshal(list)
	}
	return json.Marshal(s.Single)
}

// IsEmpty reports whether no source path information was set at all.
func (s SourcePath) IsEmpty() bool {
	return s.Single == "" && len(s.Named) == 0
}

// BackupConfiguration describes a volume's optional local backup.
type BackupConfiguration struct {
	Disabled    bool                `json:"disabled,omitempty"`
	BackupType  string              `json:"type"`
	Config      json.RawMessage     `json:"config,omitempty"`
	Check       *CheckConfiguration `json:"check,omitempty"`
	TimeFrames  []TimeFrameReference `json:"timeframes"`
	NoDocker    bool                `json:"no_docker,omitempty"`
}

// SyncConfiguration describes a volume's optional sync to a remote target.
type SyncConfiguration struct {
	Disabled   bool                      `json:"disabled,omitempty"`
	SyncType   string                    `json:"type"`
	Interval   TimeFrameReference        `json:"interval"`
	Config     json.RawMessage           `json:"config,omitempty"`
	Check      *CheckConfiguration       `json:"check,omitempty"`
	Controller *ControllerConfiguration  `json:"controller,omitempty"`
	NoDocker   bool                      `json:"no_docker,omitempty"`
}

// CheckConfiguration is the opaque configuration for an optional check module.
type CheckConfiguration struct {
	CheckType string          `json:"type"`
	Config    json.RawMessage `json:"config,omitempty"`
}

// ControllerConfiguration is the opaque configuration for an optional
// controller module attached to a sync.
type ControllerConfiguration struct {
	ControllerType string          `json:"type"`
	Config         json.RawMessage `json:"config,omitempty"`
}

// Configuration is a single volume's full declaration.
type Configuration struct {
	Name            string               `json:"name"`
	Disabled        bool                 `json:"disabled,omitempty"`
	SourcePath      SourcePath           `json:"source_path"`
	BackupPath      string               `json:"backup_path,omitempty"`
	SaveDataInStore *bool                `json:"savedata_in_store,omitempty"`
	Backup          *BackupConfiguration `json:"backup,omitempty"`
	Sync            *SyncConfiguration   `json:"sync,omitempty"`
}

// ModulePaths is the set of filesystem locations resolved for one
// module role on one volume (spec §4.2).
type ModulePaths struct {
	Source        SourcePath
	Destination   string
	ModuleDataDir string
	SaveDataPath  string
}

// ExecutionTiming is a single executable obligation produced by the
// preprocessor's time-frame filter pass.
type ExecutionTiming struct {
	Reference     TimeFrameReference
	Frame         TimeFrame
	LastRun       *TimeEntry
	ExecutionTime time.Time
}

// UnitKind discriminates the ExecutableUnit tagged variants.
type UnitKind int

const (
	KindBackup UnitKind = iota
	KindSync
	KindSyncControllerBundle
)

// Unit is the common interface satisfied by every executable unit kind.
type Unit interface {
	Kind() UnitKind
	VolumeName() string
}

// BackupUnit is an executable backup obligation: one or more eligible
// time frames to archive in a single pass.
type BackupUnit struct {
	Configuration *Configuration
	BackupConfig  *BackupConfiguration
	Check         CheckHandle
	Paths         ModulePaths
	SaveData      *SaveData
	Timings       []ExecutionTiming
}

func (*BackupUnit) Kind() UnitKind           { return KindBackup }
func (u *BackupUnit) VolumeName() string     { return u.Configuration.Name }

// SyncUnit is an executable sync obligation for exactly one time frame.
type SyncUnit struct {
	Configuration *Configuration
	SyncConfig    *SyncConfiguration
	Check         CheckHandle
	Controller    ControllerHandle // nil if owned by an enclosing bundle or absent
	Paths         ModulePaths
	SaveData      *SaveData
	Timing        ExecutionTiming
}

func (*SyncUnit) Kind() UnitKind       { return KindSync }
func (u *SyncUnit) VolumeName() string { return u.Configuration.Name }

// SyncControllerBundle groups sync units sharing one controller
// instance, whose begin/end run once around the whole group.
type SyncControllerBundle struct {
	ID         string
	Units      []*SyncUnit
	Controller ControllerHandle
}

func (*SyncControllerBundle) Kind() UnitKind { return KindSyncControllerBundle }
func (b *SyncControllerBundle) VolumeName() string {
	if len(b.Units) == 0 {
		return ""
	}
	return b.Units[0].VolumeName()
}

// CheckHandle and ControllerHandle are declared here (rather than in
// internal/modules) to break the import cycle between model and
// modules: model needs the handle types to shape Unit, modules needs
// model's configuration types to construct concrete instances.
type CheckHandle interface {
	Check(timing ExecutionTiming) (bool, error)
	Update(timing ExecutionTiming) error
	Clear() error
}

type ControllerHandle interface {
	Begin() (bool, error)
	End() error
	Clear() error
}
