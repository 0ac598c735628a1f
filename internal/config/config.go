// Package config resolves the base configuration, volume descriptors,
// time frames, and auth data that the orchestrator loads once per run,
// and computes per-volume, per-module-role filesystem paths.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	vbErrors "vbackup/internal/errors"
	"vbackup/internal/model"
)

// PathBase is the base configuration JSON object (spec §6).
type PathBase struct {
	ConfigDir       string `mapstructure:"config_dir" json:"config_dir"`
	SaveDir         string `mapstructure:"save_dir" json:"save_dir"`
	TmpDir          string `mapstructure:"tmp_dir" json:"tmp_dir"`
	TimeFramesFile  string `mapstructure:"timeframes_file" json:"timeframes_file"`
	AuthDataFile    string `mapstructure:"auth_data_file" json:"auth_data_file"`
	ReportingFile   string `mapstructure:"reporting_file" json:"reporting_file"`
	DockerImages    map[string]string `mapstructure:"docker_images" json:"docker_images"`
	SaveDataInStore bool   `mapstructure:"savedata_in_store" json:"savedata_in_store"`
}

// defaults mirror the original's hard-coded fallbacks under /etc/vbackup.
func defaultPathBase() PathBase {
	return PathBase{
		ConfigDir:      "/etc/vbackup",
		SaveDir:        "/var/lib/vbackup",
		TmpDir:         "/tmp/vbackup",
		TimeFramesFile: "/etc/vbackup/timeframes.json",
		AuthDataFile:   "/etc/vbackup/auth.json",
		ReportingFile:  "/etc/vbackup/reporting.json",
		DockerImages:   map[string]string{},
	}
}

// LoadPathBase reads the base configuration file named by path (spec
// -c/--config, default /etc/vbackup/config.json), merged over
// environment variables prefixed VBACKUP_, using viper the way
// ipiton-alert-history-service layers file + env configuration.
func LoadPathBase(path string) (*PathBase, error) {
	v := viper.New()
	base := defaultPathBase()

	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("VBACKUP")
	v.AutomaticEnv()
	v.SetDefault("config_dir", base.ConfigDir)
	v.SetDefault("save_dir", base.SaveDir)
	v.SetDefault("tmp_dir", base.TmpDir)
	v.SetDefault("timeframes_file", base.TimeFramesFile)
	v.SetDefault("auth_data_file", base.AuthDataFile)
	v.SetDefault("reporting_file", base.ReportingFile)
	v.SetDefault("savedata_in_store", base.SaveDataInStore)

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			return nil, vbErrors.NewConfigurationError("config", "load_base", "failed to read base configuration", err)
		}
		// Missing base config file is tolerated; defaults + env apply.
	}

	if err := v.Unmarshal(&base); err != nil {
		return nil, vbErrors.NewConfigurationError("config", "load_base", "failed to decode base configuration", err)
	}
	return &base, nil
}

// Paths is the resolved set of global directories used by the path
// resolver (spec §4.2).
type Paths struct {
	Base PathBase
}

// ModulePathsFor computes ModulePaths for role ("backup" or "sync") on
// volume cfg, per spec §4.2.
func (p *Paths) ModulePathsFor(role string, cfg *model.Configuration) model.ModulePaths {
	var source model.SourcePath
	var destination string

	switch role {
	case "backup":
		source = cfg.SourcePath
		destination = cfg.BackupPath
		if destination == "" {
			destination = filepath.Join(p.Base.SaveDir, cfg.Name)
		}
	case "sync":
		if cfg.Backup != nil {
			destination = cfg.BackupPath
			if destination == "" {
				destination = filepath.Join(p.Base.SaveDir, cfg.Name)
			}
			source = model.SourcePath{Single: destination}
		} else {
			source = cfg.SourcePath
		}
	}

	moduleDataDir := filepath.Join(p.Base.SaveDir, ".module_data", cfg.Name, role)

	savedataInStore := p.Base.SaveDataInStore
	if cfg.SaveDataInStore != nil {
		savedataInStore = *cfg.SaveDataInStore
	}

	var savedataPath string
	if savedataInStore {
		store := destination
		if store == "" {
			store = filepath.Join(p.Base.SaveDir, cfg.Name)
		}
		savedataPath = filepath.Join(store, ".savedata.json")
	} else {
		savedataPath = filepath.Join(p.Base.SaveDir, ".module_data", cfg.Name, "savedata.json")
	}

	return model.ModulePaths{
		Source:        source,
		Destination:   destination,
		ModuleDataDir: moduleDataDir,
		SaveDataPath:  savedataPath,
	}
}

// volumeValidator validates a loaded Configuration's structural
// invariants that json.Unmarshal alone cannot enforce.
var volumeValidator = validator.New()

type volumeValidation struct {
	Name string `validate:"required"`
}

// LoadVolumes reads every *.json file under <config_dir>/volumes/.
// Parse or validation failures are reported per file; the caller
// (preprocessor pass 1 surroundings) decides whether to drop just that
// volume, matching the fail-soft policy of spec §4.1 and §7.
func LoadVolumes(configDir string) ([]*model.Configuration, []error) {
	dir := filepath.Join(configDir, "volumes")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{vbErrors.NewConfigurationError("config", "load_volumes", "cannot list volumes directory", err)}
	}

	var volumes []*model.Configuration
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			errs = append(errs, vbErrors.NewConfigurationError("config", "load_volume", "cannot read "+path, err))
			continue
		}
		var cfg model.Configuration
		if err := json.Unmarshal(data, &cfg); err != nil {
			errs = append(errs, vbErrors.NewConfigurationError("config", "parse_volume", "cannot parse "+path, err))
			continue
		}
		if err := volumeValidator.Struct(volumeValidation{Name: cfg.Name}); err != nil {
			errs = append(errs, vbErrors.NewValidationError("config", "name", "volume in "+path+" is missing a name"))
			continue
		}
		volumes = append(volumes, &cfg)
	}
	return volumes, errs
}

// LoadTimeFrames reads the single JSON object mapping identifier →
// {identifier, interval} at path.
func LoadTimeFrames(path string) (map[string]model.TimeFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vbErrors.NewConfigurationError("config", "load_timeframes", "cannot read timeframes file", err)
	}
	var frames map[string]model.TimeFrame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, vbErrors.NewConfigurationError("config", "parse_timeframes", "cannot parse timeframes file", err)
	}
	for id, f := range frames {
		if f.Identifier == "" {
			f.Identifier = id
			frames[id] = f
		}
	}
	return frames, nil
}

// AuthData is the name-indirection table described by spec §9: Lookup
// maps a name to an opaque JSON value for a module to deserialize into
// its own configuration shape. The orchestrator loads it and passes it
// to the preprocessor, but no concrete module receives it or calls
// Lookup.
type AuthData map[string]json.RawMessage

// LoadAuthData reads the auth data file if it exists; a missing file
// yields an empty table rather than an error, since most deployments
// have no shared credentials to indirect.
func LoadAuthData(path string) (AuthData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return AuthData{}, nil
		}
		return nil, vbErrors.NewConfigurationError("config", "load_auth_data", "cannot read auth data file", err)
	}
	var auth AuthData
	if err := json.Unmarshal(data, &auth); err != nil {
		return nil, vbErrors.NewConfigurationError("config", "parse_auth_data", "cannot parse auth data file", err)
	}
	return auth, nil
}

// Lookup resolves name to its opaque configuration, matching the
// original's auth[name] indirection.
func (a AuthData) Lookup(name string) (json.RawMessage, bool) {
	v, ok := a[name]
	return v, ok
}

// ReporterConfiguration is one entry of the reporting file: a reporter
// type name plus its opaque configuration.
type ReporterConfiguration struct {
	ReporterType string          `json:"type"`
	Config       json.RawMessage `json:"config,omitempty"`
}

// LoadReporters reads the reporting configuration file (spec §4.8). A
// missing file yields no configured sinks rather than an error; the
// orchestrator falls back to the zero-configuration log reporter.
func LoadReporters(path string) ([]ReporterConfiguration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, vbErrors.NewConfigurationError("config", "load_reporters", "cannot read reporting file", err)
	}
	var reporters []ReporterConfiguration
	if err := json.Unmarshal(data, &reporters); err != nil {
		return nil, vbErrors.NewConfigurationError("config", "parse_reporters", "cannot parse reporting file", err)
	}
	return reporters, nil
}
