package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourcePath_UnmarshalSingleString(t *testing.T) {
	var sp SourcePath
	require.NoError(t, json.Unmarshal([]byte(`"/data/volume"`), &sp))
	assert.Equal(t, "/data/volume", sp.Single)
	assert.Nil(t, sp.Named)
	assert.False(t, sp.IsEmpty())
}

func TestSourcePath_UnmarshalNamedList(t *testing.T) {
	var sp SourcePath
	input := `[{"name":"config","path":"/data/config"},{"name":"state","path":"/data/state"}]`
	require.NoError(t, json.Unmarshal([]byte(input), &sp))
	assert.Equal(t, "/data/config", sp.Named["config"])
	assert.Equal(t, "/data/state", sp.Named["state"])
	assert.Empty(t, sp.Single)
}

func TestSourcePath_IsEmpty(t *testing.T) {
	var sp SourcePath
	assert.True(t, sp.IsEmpty())
}

func TestSourcePath_MarshalRoundTrip(t *testing.T) {
	sp := SourcePath{Named: map[string]string{"a": "/p/a"}}
	data, err := json.Marshal(sp)
	require.NoError(t, err)

	var reparsed SourcePath
	require.NoError(t, json.Unmarshal(data, &reparsed))
	assert.Equal(t, sp.Named, reparsed.Named)
}

func TestBackupUnit_KindAndVolumeName(t *testing.T) {
	u := &BackupUnit{Configuration: &Configuration{Name: "vol1"}}
	assert.Equal(t, KindBackup, u.Kind())
	assert.Equal(t, "vol1", u.VolumeName())
}

func TestSyncControllerBundle_VolumeNameFromFirstUnit(t *testing.T) {
	b := &SyncControllerBundle{Units: []*SyncUnit{
		{Configuration: &Configuration{Name: "vol-a"}},
		{Configuration: &Configuration{Name: "vol-b"}},
	}}
	assert.Equal(t, KindSyncControllerBundle, b.Kind())
	assert.Equal(t, "vol-a", b.VolumeName())
}

func TestSyncControllerBundle_VolumeNameEmptyWhenNoUnits(t *testing.T) {
	b := &SyncControllerBundle{}
	assert.Equal(t, "", b.VolumeName())
}
