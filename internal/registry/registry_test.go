package registry

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vbackup/internal/logging"
	"vbackup/internal/model"
	"vbackup/internal/modules"
)

func testArgs() modules.Args {
	return modules.Args{Logger: logging.NewStructuredLogger(logging.Config{Level: "error", Format: "json", Output: "stdout"}, "test", "registry")}
}

// Known module type names are expected to reach their concrete
// constructor instead of the registry's "unknown type" branch. The
// constructors themselves may still fail on missing config, but that
// failure message never contains "unknown".
func TestDefault_RegistersEveryBackupType(t *testing.T) {
	r := Default()
	for _, name := range []string{"tar", "kubernetes"} {
		_, err := r.NewBackup(name, "vol", json.RawMessage(`{}`), model.ModulePaths{}, testArgs())
		if err != nil {
			assert.NotContains(t, err.Error(), "unknown backup module type", "type %q should be registered", name)
		}
	}
}

func TestDefault_RegistersEverySyncType(t *testing.T) {
	r := Default()
	for _, name := range []string{"rsync", "minio"} {
		_, err := r.NewSync(name, "vol", json.RawMessage(`{}`), model.ModulePaths{}, testArgs())
		if err != nil {
			assert.NotContains(t, err.Error(), "unknown sync module type", "type %q should be registered", name)
		}
	}
}

func TestDefault_RegistersEveryCheckType(t *testing.T) {
	r := Default()
	for _, name := range []string{"file_age", "http"} {
		_, err := r.NewCheck(name, "vol", json.RawMessage(`{}`), model.ModulePaths{}, testArgs())
		if err != nil {
			assert.NotContains(t, err.Error(), "unknown check module type", "type %q should be registered", name)
		}
	}
}

func TestDefault_RegistersEveryControllerType(t *testing.T) {
	r := Default()
	for _, name := range []string{"process", "http"} {
		_, err := r.NewController(name, "vol", json.RawMessage(`{}`), testArgs())
		if err != nil {
			assert.NotContains(t, err.Error(), "unknown controller module type", "type %q should be registered", name)
		}
	}
}

func TestDefault_RegistersEveryReporterType(t *testing.T) {
	r := Default()
	for _, name := range []string{"log", "webhook", "prometheus"} {
		_, err := r.NewReporter(name, json.RawMessage(`{}`), testArgs())
		if err != nil {
			assert.NotContains(t, err.Error(), "unknown reporter module type", "type %q should be registered", name)
		}
	}
}

func TestDefault_UnknownTypeIsRejected(t *testing.T) {
	r := Default()
	_, err := r.NewBackup("nonexistent", "vol", json.RawMessage(`{}`), model.ModulePaths{}, testArgs())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown backup module type"))
}
