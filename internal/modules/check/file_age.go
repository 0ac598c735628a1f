// Package check holds concrete Check module implementations.
package check

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	vbErrors "vbackup/internal/errors"
	"vbackup/internal/logging"
	"vbackup/internal/model"
	"vbackup/internal/modules"
)

// FileAgeConfig is the opaque check configuration for the "file_age"
// check type.
type FileAgeConfig struct {
	MarkerFile string `json:"marker_file,omitempty"`
	MaxAgeSec  int64  `json:"max_age_seconds"`
}

// FileAge gates a run on the mtime of a marker file under the module's
// private data directory, grounded on the original's
// modules/check/file_age.rs. A single os.Stat call has no third-party
// library that fits it better than the standard library — see
// DESIGN.md.
type FileAge struct {
	name   string
	cfg    FileAgeConfig
	path   string
	logger *logging.StructuredLogger
}

func NewFileAge(name string, raw json.RawMessage, paths model.ModulePaths, args modules.Args) (modules.Check, error) {
	var cfg FileAgeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, vbErrors.NewModuleConstructionError("check.file_age", "file_age", "invalid config", err)
	}
	if cfg.MaxAgeSec <= 0 {
		return nil, vbErrors.NewModuleConstructionError("check.file_age", "file_age", "max_age_seconds must be positive", nil)
	}
	marker := cfg.MarkerFile
	if marker == "" {
		marker = "last_change"
	}
	return &FileAge{
		name:   name,
		cfg:    cfg,
		path:   filepath.Join(paths.ModuleDataDir, marker),
		logger: args.Logger.WithComponent("check.file_age"),
	}, nil
}

func (f *FileAge) Init() error {
	return os.MkdirAll(filepath.Dir(f.path), 0o755)
}

// Check reports true (run is warranted) when the marker file is
// missing or older than MaxAgeSec.
func (f *FileAge) Check(timing model.ExecutionTiming) (bool, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, vbErrors.NewCheckError(f.name, "cannot stat marker file", err)
	}
	age := time.Since(info.ModTime())
	return age >= time.Duration(f.cfg.MaxAgeSec)*time.Second, nil
}

// Update resets the marker file's mtime to now, recording that the run happened.
func (f *FileAge) Update(timing model.ExecutionTiming) error {
	if err := os.WriteFile(f.path, []byte{}, 0o644); err != nil {
		return vbErrors.NewCheckError(f.name, "cannot update marker file", err)
	}
	now := time.Now()
	return os.Chtimes(f.path, now, now)
}

func (f *FileAge) Clear() error { return nil }
