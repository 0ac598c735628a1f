package savedata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vbackup/internal/model"
)

func TestLoad_MissingFileSynthesizesEmpty(t *testing.T) {
	dir := t.TempDir()
	sd, err := Load(filepath.Join(dir, "savedata.json"))
	require.NoError(t, err)
	assert.Empty(t, sd.LastSave)
	assert.Empty(t, sd.NextSave)
	assert.Empty(t, sd.LastSync)
}

func TestWriteThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "savedata.json")

	sd := model.NewSaveData(path)
	sd.LastSave["daily"] = model.NewTimeEntry(time.Unix(1700000000, 0))

	require.NoError(t, Write(sd))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sd.LastSave["daily"].Timestamp, reloaded.LastSave["daily"].Timestamp)
}

func TestFormatFilename(t *testing.T) {
	tm := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2026-01-02_03-04-05_daily_myvol_backup", FormatFilename(tm, "daily", "myvol", "", ""))
	assert.Equal(t, "2026-01-02_03-04-05_daily_myvol_snapshot.tar.gz", FormatFilename(tm, "daily", "myvol", "snapshot", "tar.gz"))
}

func TestPrune_RemovesExactlyOneOldestWhenOverAmount(t *testing.T) {
	dir := t.TempDir()
	names := []string{
		"2026-01-01_00-00-00_daily_vol_backup",
		"2026-01-02_00-00-00_daily_vol_backup",
		"2026-01-03_00-00-00_daily_vol_backup",
	}
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644))
	}

	require.NoError(t, Prune(dir, "daily", 2))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotEqual(t, names[0], e.Name())
	}
}

func TestPrune_NoOpWhenUnderAmount(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-01-01_00-00-00_daily_vol_backup"), []byte("x"), 0o644))

	require.NoError(t, Prune(dir, "daily", 5))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestPrune_IgnoresUnmatchedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-01-01_00-00-00_weekly_vol_backup"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026-01-02_00-00-00_daily_vol_backup"), []byte("x"), 0o644))

	require.NoError(t, Prune(dir, "daily", 0))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "weekly")
}
