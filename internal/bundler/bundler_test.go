package bundler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vbackup/internal/logging"
	"vbackup/internal/model"
	"vbackup/internal/modules/controller"
)

func testLogger() *logging.StructuredLogger {
	return logging.NewStructuredLogger(logging.Config{Level: "error", Format: "json", Output: "stdout"}, "test", "bundler")
}

// fakeBundleable implements modules.Bundleable, folding every attempt
// unless failErr is set (TryBundle errors) or declineAll is set
// (TryBundle declines).
type fakeBundleable struct {
	foldedNames []string
	declineAll  bool
	failErr     error
}

func (f *fakeBundleable) Init() error          { return nil }
func (f *fakeBundleable) Begin() (bool, error) { return true, nil }
func (f *fakeBundleable) End() error           { return nil }
func (f *fakeBundleable) Clear() error         { return nil }
func (f *fakeBundleable) TryBundle(name string, cfg json.RawMessage) (bool, error) {
	if f.failErr != nil {
		return false, f.failErr
	}
	if f.declineAll {
		return false, nil
	}
	f.foldedNames = append(f.foldedNames, name)
	return true, nil
}

func syncUnit(volume, controllerType string, ctrl model.ControllerHandle) *model.SyncUnit {
	return &model.SyncUnit{
		Configuration: &model.Configuration{Name: volume},
		SyncConfig:    &model.SyncConfiguration{Controller: &model.ControllerConfiguration{ControllerType: controllerType}},
		Controller:    ctrl,
	}
}

func TestRun_SingleMemberGroupStaysPlainSync(t *testing.T) {
	shared := &fakeBundleable{}
	units := []model.Unit{syncUnit("vol1", "process", shared)}

	out := New(testLogger()).Run(units)
	require.Len(t, out, 1)
	_, ok := out[0].(*model.SyncUnit)
	assert.True(t, ok)
}

func TestRun_MultiMemberGroupFoldsIntoBundle(t *testing.T) {
	shared := &fakeBundleable{}
	units := []model.Unit{
		syncUnit("vol1", "process", shared),
		syncUnit("vol2", "process", shared),
	}

	out := New(testLogger()).Run(units)
	require.Len(t, out, 1)
	bundle, ok := out[0].(*model.SyncControllerBundle)
	require.True(t, ok)
	assert.Len(t, bundle.Units, 2)
	assert.Equal(t, []string{"vol2"}, shared.foldedNames)

	for _, m := range bundle.Units {
		assert.Nil(t, m.Controller)
	}
	_, isBundleWrapper := bundle.Controller.(*controller.Bundle)
	assert.True(t, isBundleWrapper)
}

func TestRun_DeclinedBundleRunsStandalone(t *testing.T) {
	shared := &fakeBundleable{declineAll: true}
	units := []model.Unit{
		syncUnit("vol1", "process", shared),
		syncUnit("vol2", "process", shared),
	}

	out := New(testLogger()).Run(units)
	require.Len(t, out, 2)
	for _, u := range out {
		_, ok := u.(*model.SyncUnit)
		assert.True(t, ok)
	}
}

func TestRun_NonBundleableControllerPassesThrough(t *testing.T) {
	plain := &plainController{}
	units := []model.Unit{syncUnit("vol1", "http", plain)}

	out := New(testLogger()).Run(units)
	require.Len(t, out, 1)
	su, ok := out[0].(*model.SyncUnit)
	require.True(t, ok)
	assert.Same(t, plain, su.Controller)
}

type plainController struct{}

func (p *plainController) Init() error          { return nil }
func (p *plainController) Begin() (bool, error) { return true, nil }
func (p *plainController) End() error           { return nil }
func (p *plainController) Clear() error         { return nil }

// selectiveBundleable only accepts folds for names in acceptNames,
// letting tests model a builder that is a bad match for some units of
// its own controller type but a good match for others.
type selectiveBundleable struct {
	acceptNames map[string]bool
	foldedNames []string
}

func (f *selectiveBundleable) Init() error          { return nil }
func (f *selectiveBundleable) Begin() (bool, error) { return true, nil }
func (f *selectiveBundleable) End() error           { return nil }
func (f *selectiveBundleable) Clear() error         { return nil }
func (f *selectiveBundleable) TryBundle(name string, cfg json.RawMessage) (bool, error) {
	if !f.acceptNames[name] {
		return false, nil
	}
	f.foldedNames = append(f.foldedNames, name)
	return true, nil
}

func TestRun_SecondBuilderAcceptsWhenFirstRejects(t *testing.T) {
	firstBuilder := &selectiveBundleable{acceptNames: map[string]bool{}}
	secondBuilder := &selectiveBundleable{acceptNames: map[string]bool{"vol3": true}}
	thirdUnitController := &selectiveBundleable{}

	units := []model.Unit{
		syncUnit("vol1", "process", firstBuilder),
		syncUnit("vol2", "process", secondBuilder),
		syncUnit("vol3", "process", thirdUnitController),
	}

	out := New(testLogger()).Run(units)
	require.Len(t, out, 2)

	var standalone *model.SyncUnit
	var bundle *model.SyncControllerBundle
	for _, u := range out {
		switch v := u.(type) {
		case *model.SyncUnit:
			standalone = v
		case *model.SyncControllerBundle:
			bundle = v
		}
	}

	require.NotNil(t, standalone)
	assert.Equal(t, "vol1", standalone.VolumeName())

	require.NotNil(t, bundle)
	assert.Len(t, bundle.Units, 2)
	assert.ElementsMatch(t, []string{"vol2", "vol3"}, []string{bundle.Units[0].VolumeName(), bundle.Units[1].VolumeName()})
	assert.Equal(t, []string{"vol3"}, secondBuilder.foldedNames)
}

func TestRun_NonSyncUnitPassesThrough(t *testing.T) {
	backup := &model.BackupUnit{Configuration: &model.Configuration{Name: "vol1"}}
	out := New(testLogger()).Run([]model.Unit{backup})
	require.Len(t, out, 1)
	assert.Same(t, backup, out[0])
}
