package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vbackup/internal/model"
)

func vol(name string) *model.Configuration { return &model.Configuration{Name: name} }

func TestOrder_GroupsByKindPreservingRelativeOrder(t *testing.T) {
	sync1 := &model.SyncUnit{Configuration: vol("sync1")}
	backup1 := &model.BackupUnit{Configuration: vol("backup1")}
	bundle1 := &model.SyncControllerBundle{ID: "b1", Units: []*model.SyncUnit{{Configuration: vol("bundled1")}}}
	sync2 := &model.SyncUnit{Configuration: vol("sync2")}
	backup2 := &model.BackupUnit{Configuration: vol("backup2")}

	out := Order([]model.Unit{sync1, backup1, bundle1, sync2, backup2})

	require := assert.New(t)
	require.Len(out, 5)
	require.Equal(model.KindBackup, out[0].Kind())
	require.Equal("backup1", out[0].VolumeName())
	require.Equal(model.KindBackup, out[1].Kind())
	require.Equal("backup2", out[1].VolumeName())
	require.Equal(model.KindSyncControllerBundle, out[2].Kind())
	require.Equal(model.KindSync, out[3].Kind())
	require.Equal("sync1", out[3].VolumeName())
	require.Equal(model.KindSync, out[4].Kind())
	require.Equal("sync2", out[4].VolumeName())
}

func TestOrder_EmptyInput(t *testing.T) {
	out := Order(nil)
	assert.Empty(t, out)
}
