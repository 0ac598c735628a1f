// Package controller holds concrete Controller module implementations:
// remote devices that must be woken/polled before a sync and stopped
// after (spec §4.3, §4.7).
package controller

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"time"

	vbErrors "vbackup/internal/errors"
	"vbackup/internal/logging"
	"vbackup/internal/modules"
)

// ProcessConfig is the opaque controller configuration for the
// "process" controller type.
type ProcessConfig struct {
	WakeCommand  string   `json:"wake_command"`
	WakeArgs     []string `json:"wake_args,omitempty"`
	StopCommand  string   `json:"stop_command,omitempty"`
	StopArgs     []string `json:"stop_args,omitempty"`
	TimeoutSec   int      `json:"timeout_seconds,omitempty"`
}

// Process wakes or verifies a remote device by running an external
// program, grounded on shared/triggers/auto_trigger.go's
// triggerViaProcess and on the original's controller/ping.rs "run an
// external check" shape. Not bundleable: there is no addressing scheme
// across two arbitrary command lines to fold together.
type Process struct {
	name   string
	cfg    ProcessConfig
	logger *logging.StructuredLogger
}

func NewProcess(name string, raw json.RawMessage, args modules.Args) (modules.Controller, error) {
	var cfg ProcessConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, vbErrors.NewModuleConstructionError("controller.process", "process", "invalid config", err)
	}
	if cfg.WakeCommand == "" {
		return nil, vbErrors.NewModuleConstructionError("controller.process", "process", "wake_command is required", nil)
	}
	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 600 // spec §5 default ~10 minutes per stage
	}
	return &Process{name: name, cfg: cfg, logger: args.Logger.WithComponent("controller.process")}, nil
}

func (p *Process) Init() error { return nil }

// Begin runs the wake command; a zero exit code means the remote is ready.
func (p *Process) Begin() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(p.cfg.TimeoutSec)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.cfg.WakeCommand, p.cfg.WakeArgs...)
	cmd.Env = os.Environ()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return false, vbErrors.NewControllerError(p.name, "wake command timed out", ctx.Err())
		}
		return false, nil
	}
	return true, nil
}

// End runs the optional stop command.
func (p *Process) End() error {
	if p.cfg.StopCommand == "" {
		return nil
	}
	cmd := exec.Command(p.cfg.StopCommand, p.cfg.StopArgs...)
	cmd.Env = os.Environ()
	if err := cmd.Run(); err != nil {
		return vbErrors.NewControllerError(p.name, "stop command failed", err)
	}
	return nil
}

func (p *Process) Clear() error { return nil }
