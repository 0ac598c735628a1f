// Package bundler implements the controller bundler (spec §4.3): sync
// units sharing a compatible bundleable controller are folded behind
// one shared instance so its begin/end driver code runs once instead
// of once per unit. Grounded on the original's modules/controller/bundle.rs
// and the partition/fold loop in processing/controller_bundler.rs's
// handle_controller_bundle.
package bundler

import (
	"fmt"

	"vbackup/internal/logging"
	"vbackup/internal/model"
	"vbackup/internal/modules"
	"vbackup/internal/modules/controller"
)

// Bundler folds compatible sync units into SyncControllerBundle units.
type Bundler struct {
	logger *logging.StructuredLogger
}

func New(logger *logging.StructuredLogger) *Bundler {
	return &Bundler{logger: logger.WithComponent("bundler")}
}

// group is one open builder for a controller type: a shared instance
// plus the members folded into it so far.
type group struct {
	controllerType string
	shared         modules.Bundleable
	members        []*model.SyncUnit
}

// Run partitions the sync units by controller type into one or more
// open builders each, trying every existing builder for a type in
// order before opening a new one (original's handle_controller_bundle:
// a type keys a list of builders, not a single one, since two units of
// the same controller type may simply be incompatible with each
// other's target while each still being bundleable on its own). Groups
// that end up with a single member unbundle back into a plain SyncUnit.
// Non-sync units and sync units without a bundleable controller pass
// through untouched.
func (b *Bundler) Run(units []model.Unit) []model.Unit {
	result := make([]model.Unit, 0, len(units))
	groupsByType := map[string][]*group{}
	var allGroups []*group

	for _, u := range units {
		su, ok := u.(*model.SyncUnit)
		if !ok || su.SyncConfig.Controller == nil || su.Controller == nil {
			result = append(result, u)
			continue
		}

		bundleable, ok := su.Controller.(modules.Bundleable)
		if !ok {
			result = append(result, u)
			continue
		}

		key := su.SyncConfig.Controller.ControllerType
		folded, fallback := b.tryExistingBuilders(groupsByType[key], su)
		if fallback {
			result = append(result, u)
			continue
		}
		if !folded {
			g := &group{controllerType: key, shared: bundleable, members: []*model.SyncUnit{su}}
			groupsByType[key] = append(groupsByType[key], g)
			allGroups = append(allGroups, g)
		}
	}

	for i, g := range allGroups {
		if len(g.members) == 1 {
			result = append(result, g.members[0])
			continue
		}

		bundle := controller.NewBundle(g.shared)
		for _, m := range g.members {
			m.Controller = nil
		}
		id := fmt.Sprintf("%s-%d", g.controllerType, i)
		b.logger.Debug("bundle", "folded sync units behind shared controller", map[string]interface{}{"controller": g.controllerType, "id": id, "units": len(g.members)})
		result = append(result, &model.SyncControllerBundle{ID: id, Units: g.members, Controller: bundle})
	}

	return result
}

// tryExistingBuilders offers su to every open builder for its
// controller type, in order. folded reports whether one accepted it.
// fallback reports a hard error from TryBundle, which runs the unit
// standalone instead of either folding it or opening a new builder for
// it (an error means something is wrong with this unit's config, not
// merely that this particular builder is a bad match).
func (b *Bundler) tryExistingBuilders(candidates []*group, su *model.SyncUnit) (folded, fallback bool) {
	for _, g := range candidates {
		ok, err := g.shared.TryBundle(su.VolumeName(), su.SyncConfig.Controller.Config)
		if err != nil {
			b.logger.Error("bundle", "controller bundling failed, running standalone", map[string]interface{}{"volume": su.VolumeName(), "controller": g.controllerType, "error": err.Error()})
			return false, true
		}
		if ok {
			g.members = append(g.members, su)
			return true, false
		}
		b.logger.Debug("bundle", "controller declined to bundle, trying next builder", map[string]interface{}{"volume": su.VolumeName(), "controller": g.controllerType})
	}
	return false, false
}
