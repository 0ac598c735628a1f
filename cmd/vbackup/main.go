// Command vbackup is the sole entry point for the backup/sync
// orchestrator (spec §6).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"vbackup/internal/lock"
	"vbackup/internal/logging"
	"vbackup/internal/orchestrator"
)

const (
	exitOK              = 0
	exitLockUnavailable = 1
	exitLockBusy        = 2
	exitRunErrors       = 3
	exitLockRelease     = 4
)

var (
	flagName             string
	flagConfig           string
	flagDryRun           bool
	flagVerbose          bool
	flagDebug            bool
	flagQuiet            bool
	flagForce            bool
	flagNoDocker         bool
	flagNoReporting      bool
	flagOverrideDisabled bool
	flagRestoreTo        string
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitRunErrors
	}
	return exitCode
}

// exitCode is set by the executed subcommand; cobra's Execute only
// reports parse/usage errors, so the real exit status flows back here.
var exitCode int

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "vbackup",
		Short:         "Declarative, time-frame-gated backup and sync orchestrator",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&flagName, "name", "n", "", "restrict to a single volume")
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "/etc/vbackup/config.json", "base configuration file")
	root.PersistentFlags().BoolVar(&flagDryRun, "dry-run", false, "no side effects; print what would happen")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose (trace-level) logging")
	root.PersistentFlags().BoolVar(&flagVerbose, "trace", false, "alias for --verbose")
	root.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "debug-level logging")
	root.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "quiet: errors only")
	root.PersistentFlags().BoolVarP(&flagForce, "force", "f", false, "bypass interval and additional-check gating")
	root.PersistentFlags().BoolVarP(&flagNoDocker, "no-docker", "b", false, "disable container wrapping in modules")
	root.PersistentFlags().BoolVar(&flagNoDocker, "bare", false, "alias for --no-docker")
	root.PersistentFlags().BoolVar(&flagNoReporting, "no-reporting", false, "disable reporter fanout")
	root.PersistentFlags().BoolVar(&flagOverrideDisabled, "override-disabled", false, "ignore disabled flags")
	root.PersistentFlags().BoolVar(&flagOverrideDisabled, "run-disabled", false, "alias for --override-disabled")

	root.AddCommand(
		newOperationCommand("run", "Run all eligible backup and sync units", ""),
		newOperationCommand("backup", "Run only eligible backup units", "backup"),
		newOperationCommand("sync", "Run only eligible sync units", "sync"),
		newListCommand(),
		newRestoreCommand(),
		newVersionCommand(),
	)
	return root
}

func newOperationCommand(use, short, roleFilter string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrchestration(roleFilter)
		},
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the executable units a run would process, without executing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger("list")
			defer logger.Sync()
			o := orchestrator.New(logger)
			if err := o.List(buildOptions("")); err != nil {
				exitCode = exitRunErrors
				return err
			}
			exitCode = exitOK
			return nil
		},
	}
}

func newRestoreCommand() *cobra.Command {
	var role string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a volume's backup or sync module to a destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger("restore")
			defer logger.Sync()
			o := orchestrator.New(logger)
			if err := o.Restore(buildOptions(""), role, flagRestoreTo); err != nil {
				exitCode = exitRunErrors
				return err
			}
			exitCode = exitOK
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", "backup", "module role to restore: backup or sync")
	cmd.Flags().StringVar(&flagRestoreTo, "to", "", "destination path to restore into")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("vbackup", version)
			exitCode = exitOK
			return nil
		},
	}
}

// version is overridden at link time via -ldflags "-X main.version=...".
var version = "dev"

func runOrchestration(roleFilter string) error {
	logger := buildLogger("run")
	defer logger.Sync()

	l, err := lock.Acquire(lock.DefaultPath)
	if err != nil {
		if lock.IsBusy(err) {
			logger.Error("lock", "another instance is already running", nil)
			exitCode = exitLockBusy
		} else {
			logger.Error("lock", "cannot acquire lock file", map[string]interface{}{"error": err.Error()})
			exitCode = exitLockUnavailable
		}
		return nil
	}

	o := orchestrator.New(logger)
	runErr := o.Run(buildOptions(roleFilter))

	if releaseErr := l.Release(); releaseErr != nil {
		logger.Error("lock", "failed to release lock file", map[string]interface{}{"error": releaseErr.Error()})
		exitCode = exitLockRelease
		return nil
	}

	if runErr != nil {
		logger.Error("run", "run aborted", map[string]interface{}{"error": runErr.Error()})
		exitCode = exitRunErrors
		return nil
	}

	exitCode = exitOK
	return nil
}

func buildOptions(roleFilter string) orchestrator.Options {
	return orchestrator.Options{
		ConfigPath:       flagConfig,
		VolumeName:       flagName,
		DryRun:           flagDryRun,
		Force:            flagForce,
		NoDocker:         flagNoDocker,
		NoReporting:      flagNoReporting,
		OverrideDisabled: flagOverrideDisabled,
		RoleFilter:       roleFilter,
	}
}

func buildLogger(runName string) *logging.StructuredLogger {
	level := "info"
	switch {
	case flagQuiet:
		level = "error"
	case flagVerbose:
		level = "debug"
	case flagDebug:
		level = "debug"
	}
	cfg := logging.Config{Level: level, Format: "json", Output: "stdout"}
	return logging.NewStructuredLogger(cfg, runName, "cli")
}
