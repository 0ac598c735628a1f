// Package savedata implements the per-volume persisted run metadata,
// the backup filename convention, and retention pruning (spec §4.9,
// §4.10), grounded on the original implementation's
// util/io/savefile.rs.
package savedata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	vbErrors "vbackup/internal/errors"
	"vbackup/internal/model"
)

// Load reads the savedata file at path. A missing file synthesizes an
// empty SaveData rather than erroring (spec §4.1 pass 3).
func Load(path string) (*model.SaveData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewSaveData(path), nil
		}
		return nil, vbErrors.NewSavedataError(path, "cannot read savedata file", err)
	}

	sd := model.NewSaveData(path)
	if err := json.Unmarshal(data, sd); err != nil {
		return nil, vbErrors.NewSavedataError(path, "cannot parse savedata file", err)
	}
	sd.Path = path
	if sd.LastSave == nil {
		sd.LastSave = map[string]model.TimeEntry{}
	}
	if sd.NextSave == nil {
		sd.NextSave = map[string]model.TimeEntry{}
	}
	if sd.LastSync == nil {
		sd.LastSync = map[string]model.TimeEntry{}
	}
	return sd, nil
}

// Write persists sd atomically: write to a temp file in the same
// directory, then rename, so a crash never leaves a half-written file
// (spec §7's "never lose completed artifacts to a metadata write
// failure" trade-off starts from a write that is itself atomic).
func Write(sd *model.SaveData) error {
	dir := filepath.Dir(sd.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return vbErrors.NewSavedataError(sd.Path, "cannot create savedata directory", err)
	}

	data, err := json.MarshalIndent(sd, "", "  ")
	if err != nil {
		return vbErrors.NewSavedataError(sd.Path, "cannot encode savedata", err)
	}

	tmp, err := os.CreateTemp(dir, ".savedata-*.tmp")
	if err != nil {
		return vbErrors.NewSavedataError(sd.Path, "cannot create temp savedata file", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return vbErrors.NewSavedataError(sd.Path, "cannot write temp savedata file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return vbErrors.NewSavedataError(sd.Path, "cannot close temp savedata file", err)
	}
	if err := os.Rename(tmpPath, sd.Path); err != nil {
		os.Remove(tmpPath)
		return vbErrors.NewSavedataError(sd.Path, "cannot rename temp savedata file into place", err)
	}
	return nil
}

// defaultSuffix is the filename suffix used when a module does not
// specify one (spec §4.10).
const defaultSuffix = "backup"

// FormatFilename builds a filename following
// YYYY-MM-DD_HH-MM-SS_{frame}_{volume}_{suffix}[.{extension}], the
// contract pruning relies on for lexical == chronological ordering.
func FormatFilename(t time.Time, frame, volume, suffix, extension string) string {
	if suffix == "" {
		suffix = defaultSuffix
	}
	iso := t.UTC().Format("2006-01-02_15-04-05")
	name := fmt.Sprintf("%s_%s_%s_%s", iso, frame, volume, suffix)
	if extension != "" {
		name += "." + extension
	}
	return name
}

// Prune enumerates files under dir matching *_{identifier}_* and, if
// the count exceeds amount, removes exactly the oldest one (by lexical
// == chronological sort on the ISO-prefixed name). Callers invoke this
// once per frame per backup (spec §4.9).
func Prune(dir, identifier string, amount uint) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return vbErrors.NewSavedataError(dir, "cannot list directory for pruning", err)
	}

	marker := "_" + identifier + "_"
	var matches []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), marker) {
			matches = append(matches, e.Name())
		}
	}

	if uint(len(matches)) <= amount {
		return nil
	}

	sort.Strings(matches)
	oldest := matches[0]
	if err := os.Remove(filepath.Join(dir, oldest)); err != nil {
		return vbErrors.NewSavedataError(dir, "cannot remove pruned file "+oldest, err)
	}
	return nil
}
