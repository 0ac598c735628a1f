// Package scheduler orders executable units for a run (spec §4.4):
// backups first, then sync-controller bundles, then plain syncs, each
// group preserving the relative order it arrived in.
package scheduler

import "vbackup/internal/model"

// Order returns units regrouped by kind: backups, bundles, syncs.
func Order(units []model.Unit) []model.Unit {
	var backups, bundles, syncs []model.Unit
	for _, u := range units {
		switch u.Kind() {
		case model.KindBackup:
			backups = append(backups, u)
		case model.KindSyncControllerBundle:
			bundles = append(bundles, u)
		case model.KindSync:
			syncs = append(syncs, u)
		}
	}

	ordered := make([]model.Unit, 0, len(units))
	ordered = append(ordered, backups...)
	ordered = append(ordered, bundles...)
	ordered = append(ordered, syncs...)
	return ordered
}
