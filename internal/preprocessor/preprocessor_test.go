package preprocessor

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vbackup/internal/config"
	"vbackup/internal/logging"
	"vbackup/internal/model"
	"vbackup/internal/modules"
	"vbackup/internal/savedata"
)

func testArgs() modules.Args {
	return modules.Args{Logger: logging.NewStructuredLogger(logging.Config{Level: "error", Format: "json", Output: "stdout"}, "test", "preprocessor")}
}

func testPaths(dir string) *config.Paths {
	return &config.Paths{Base: config.PathBase{SaveDir: dir}}
}

var frames = map[string]model.TimeFrame{
	"daily": {Identifier: "daily", Interval: 86400},
}

func TestRun_DropsDisabledVolume(t *testing.T) {
	dir := t.TempDir()
	cfg := &model.Configuration{
		Name:     "vol1",
		Disabled: true,
		Backup:   &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}},
	}

	p := New(testPaths(dir), frames, config.AuthData{}, modules.NewRegistry(), testArgs(), Options{}, time.Unix(2000000000, 0), nil)
	units := p.Run([]*model.Configuration{cfg})
	assert.Empty(t, units)
}

func TestRun_OverrideDisabledIncludesVolume(t *testing.T) {
	dir := t.TempDir()
	cfg := &model.Configuration{
		Name:     "vol1",
		Disabled: true,
		Backup:   &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}},
	}

	p := New(testPaths(dir), frames, config.AuthData{}, modules.NewRegistry(), testArgs(), Options{OverrideDisabled: true}, time.Unix(2000000000, 0), nil)
	units := p.Run([]*model.Configuration{cfg})
	require.Len(t, units, 1)
	assert.Equal(t, model.KindBackup, units[0].Kind())
}

func TestRun_VolumeFilterRestrictsToOneName(t *testing.T) {
	dir := t.TempDir()
	cfgs := []*model.Configuration{
		{Name: "vol1", Backup: &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}}},
		{Name: "vol2", Backup: &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}}},
	}

	p := New(testPaths(dir), frames, config.AuthData{}, modules.NewRegistry(), testArgs(), Options{VolumeFilter: "vol2"}, time.Unix(2000000000, 0), nil)
	units := p.Run(cfgs)
	require.Len(t, units, 1)
	assert.Equal(t, "vol2", units[0].VolumeName())
}

func TestRun_TimeFrameWithZeroAmountDropsFrame(t *testing.T) {
	dir := t.TempDir()
	cfg := &model.Configuration{
		Name:   "vol1",
		Backup: &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 0}}},
	}

	p := New(testPaths(dir), frames, config.AuthData{}, modules.NewRegistry(), testArgs(), Options{}, time.Unix(2000000000, 0), nil)
	units := p.Run([]*model.Configuration{cfg})
	assert.Empty(t, units)
}

func TestRun_NotEligibleWhenLastSaveRecentAndNotForced(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(2000000000, 0)

	sdPath := filepath.Join(dir, ".module_data", "vol1", "savedata.json")
	sd := model.NewSaveData(sdPath)
	sd.LastSave["daily"] = model.NewTimeEntry(now.Add(-time.Hour))
	require.NoError(t, savedata.Write(sd))

	cfg := &model.Configuration{
		Name:   "vol1",
		Backup: &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}},
	}

	p := New(testPaths(dir), frames, config.AuthData{}, modules.NewRegistry(), testArgs(), Options{}, now, nil)
	units := p.Run([]*model.Configuration{cfg})
	assert.Empty(t, units)
}

func TestRun_ForceIgnoresEligibilityAndAdditionalChecks(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(2000000000, 0)

	sdPath := filepath.Join(dir, ".module_data", "vol1", "savedata.json")
	sd := model.NewSaveData(sdPath)
	sd.LastSave["daily"] = model.NewTimeEntry(now.Add(-time.Hour))
	require.NoError(t, savedata.Write(sd))

	cfg := &model.Configuration{
		Name:   "vol1",
		Backup: &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}},
	}

	reg := modules.NewRegistry()
	reg.RegisterCheck("always_false", func(name string, cfg json.RawMessage, paths model.ModulePaths, args modules.Args) (modules.Check, error) {
		return &fakeCheck{ready: false}, nil
	})
	cfg.Backup.Check = &model.CheckConfiguration{CheckType: "always_false"}

	p := New(testPaths(dir), frames, config.AuthData{}, reg, testArgs(), Options{Force: true}, now, nil)
	units := p.Run([]*model.Configuration{cfg})
	require.Len(t, units, 1)
}

func TestRun_AdditionalCheckFilterDropsUnitWhenNotReady(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(2000000000, 0)

	cfg := &model.Configuration{
		Name:   "vol1",
		Backup: &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}, Check: &model.CheckConfiguration{CheckType: "always_false"}},
	}

	reg := modules.NewRegistry()
	reg.RegisterCheck("always_false", func(name string, cfg json.RawMessage, paths model.ModulePaths, args modules.Args) (modules.Check, error) {
		return &fakeCheck{ready: false}, nil
	})

	p := New(testPaths(dir), frames, config.AuthData{}, reg, testArgs(), Options{}, now, nil)
	units := p.Run([]*model.Configuration{cfg})
	assert.Empty(t, units)
}

func TestRun_SyncUnitGetsController(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(2000000000, 0)

	cfg := &model.Configuration{
		Name: "vol1",
		Sync: &model.SyncConfiguration{
			SyncType:   "rsync",
			Interval:   model.TimeFrameReference{Frame: "daily", Amount: 1},
			Controller: &model.ControllerConfiguration{ControllerType: "proc"},
		},
	}

	reg := modules.NewRegistry()
	reg.RegisterController("proc", func(name string, cfg json.RawMessage, args modules.Args) (modules.Controller, error) {
		return &fakeController{}, nil
	})

	p := New(testPaths(dir), frames, config.AuthData{}, reg, testArgs(), Options{}, now, nil)
	units := p.Run([]*model.Configuration{cfg})
	require.Len(t, units, 1)
	su, ok := units[0].(*model.SyncUnit)
	require.True(t, ok)
	assert.NotNil(t, su.Controller)
}

// fakeCheck satisfies modules.Check for pipeline tests.
type fakeCheck struct {
	ready      bool
	initErr    error
	initCalled bool
}

func (f *fakeCheck) Init() error {
	f.initCalled = true
	return f.initErr
}
func (f *fakeCheck) Check(timing model.ExecutionTiming) (bool, error) { return f.ready, nil }
func (f *fakeCheck) Update(timing model.ExecutionTiming) error        { return nil }
func (f *fakeCheck) Clear() error                                     { return nil }

// fakeController satisfies modules.Controller for pipeline tests.
type fakeController struct {
	initErr    error
	initCalled bool
}

func (f *fakeController) Init() error {
	f.initCalled = true
	return f.initErr
}
func (f *fakeController) Begin() (bool, error) { return true, nil }
func (f *fakeController) End() error           { return nil }
func (f *fakeController) Clear() error         { return nil }

func TestRun_CheckIsInitialized(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(2000000000, 0)

	cfg := &model.Configuration{
		Name:   "vol1",
		Backup: &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}, Check: &model.CheckConfiguration{CheckType: "tracked"}},
	}

	check := &fakeCheck{ready: true}
	reg := modules.NewRegistry()
	reg.RegisterCheck("tracked", func(name string, cfg json.RawMessage, paths model.ModulePaths, args modules.Args) (modules.Check, error) {
		return check, nil
	})

	p := New(testPaths(dir), frames, config.AuthData{}, reg, testArgs(), Options{}, now, nil)
	units := p.Run([]*model.Configuration{cfg})
	require.Len(t, units, 1)
	assert.True(t, check.initCalled)
}

func TestRun_CheckInitFailureDropsUnit(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(2000000000, 0)

	cfg := &model.Configuration{
		Name:   "vol1",
		Backup: &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}, Check: &model.CheckConfiguration{CheckType: "broken"}},
	}

	reg := modules.NewRegistry()
	reg.RegisterCheck("broken", func(name string, cfg json.RawMessage, paths model.ModulePaths, args modules.Args) (modules.Check, error) {
		return &fakeCheck{initErr: assertErr}, nil
	})

	p := New(testPaths(dir), frames, config.AuthData{}, reg, testArgs(), Options{}, now, nil)
	units := p.Run([]*model.Configuration{cfg})
	assert.Empty(t, units)
}

func TestRun_ControllerIsInitialized(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(2000000000, 0)

	cfg := &model.Configuration{
		Name: "vol1",
		Sync: &model.SyncConfiguration{
			SyncType:   "rsync",
			Interval:   model.TimeFrameReference{Frame: "daily", Amount: 1},
			Controller: &model.ControllerConfiguration{ControllerType: "proc"},
		},
	}

	ctrl := &fakeController{}
	reg := modules.NewRegistry()
	reg.RegisterController("proc", func(name string, cfg json.RawMessage, args modules.Args) (modules.Controller, error) {
		return ctrl, nil
	})

	p := New(testPaths(dir), frames, config.AuthData{}, reg, testArgs(), Options{}, now, nil)
	units := p.Run([]*model.Configuration{cfg})
	require.Len(t, units, 1)
	assert.True(t, ctrl.initCalled)
}

func TestRun_ControllerInitFailureDropsUnit(t *testing.T) {
	dir := t.TempDir()
	now := time.Unix(2000000000, 0)

	cfg := &model.Configuration{
		Name: "vol1",
		Sync: &model.SyncConfiguration{
			SyncType:   "rsync",
			Interval:   model.TimeFrameReference{Frame: "daily", Amount: 1},
			Controller: &model.ControllerConfiguration{ControllerType: "broken"},
		},
	}

	reg := modules.NewRegistry()
	reg.RegisterController("broken", func(name string, cfg json.RawMessage, args modules.Args) (modules.Controller, error) {
		return &fakeController{initErr: assertErr}, nil
	})

	p := New(testPaths(dir), frames, config.AuthData{}, reg, testArgs(), Options{}, now, nil)
	units := p.Run([]*model.Configuration{cfg})
	assert.Empty(t, units)
}

type recordingReporter struct{ events []modules.Event }

func (r *recordingReporter) Report(e modules.Event) error {
	r.events = append(r.events, e)
	return nil
}

func TestRun_DisabledVolumeEmitsDisabledStatusForEachRole(t *testing.T) {
	dir := t.TempDir()
	cfg := &model.Configuration{
		Name:     "vol1",
		Disabled: true,
		Backup:   &model.BackupConfiguration{BackupType: "tar", TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}},
		Sync:     &model.SyncConfiguration{SyncType: "rsync", Interval: model.TimeFrameReference{Frame: "daily", Amount: 1}},
	}

	rep := &recordingReporter{}
	p := New(testPaths(dir), frames, config.AuthData{}, modules.NewRegistry(), testArgs(), Options{}, time.Unix(2000000000, 0), rep)
	units := p.Run([]*model.Configuration{cfg})

	assert.Empty(t, units)
	require.Len(t, rep.events, 2)
	for _, e := range rep.events {
		assert.Equal(t, modules.StatusDisabled, e.Status)
	}
}

func TestRun_DisabledSubConfigEmitsDisabledStatus(t *testing.T) {
	dir := t.TempDir()
	cfg := &model.Configuration{
		Name:   "vol1",
		Backup: &model.BackupConfiguration{BackupType: "tar", Disabled: true, TimeFrames: []model.TimeFrameReference{{Frame: "daily", Amount: 3}}},
		Sync:   &model.SyncConfiguration{SyncType: "rsync", Interval: model.TimeFrameReference{Frame: "daily", Amount: 1}},
	}

	rep := &recordingReporter{}
	p := New(testPaths(dir), frames, config.AuthData{}, modules.NewRegistry(), testArgs(), Options{}, time.Unix(2000000000, 0), rep)
	units := p.Run([]*model.Configuration{cfg})

	require.Len(t, units, 1)
	assert.Equal(t, model.KindSync, units[0].Kind())

	require.Len(t, rep.events, 1)
	assert.Equal(t, modules.StatusDisabled, rep.events[0].Status)
	assert.Equal(t, modules.RunTypeBackup, rep.events[0].RunType)
}

var assertErr = &testError{"init failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
