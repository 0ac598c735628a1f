// Package registry wires every concrete module implementation into a
// modules.Registry. It exists as its own package (rather than living
// in internal/modules) so that internal/modules itself stays free of
// a dependency on any concrete module package.
package registry

import (
	"vbackup/internal/modules"
	"vbackup/internal/modules/backup"
	"vbackup/internal/modules/check"
	"vbackup/internal/modules/controller"
	"vbackup/internal/modules/reporter"
	"vbackup/internal/modules/sync"
)

// Default builds a Registry with every concrete module type shipped in
// this tree registered under its type name (spec §4.11).
func Default() *modules.Registry {
	r := modules.NewRegistry()

	r.RegisterBackup("tar", backup.NewTar)
	r.RegisterBackup("kubernetes", backup.NewKubernetes)

	r.RegisterSync("rsync", sync.NewRsync)
	r.RegisterSync("minio", sync.NewMinio)

	r.RegisterCheck("file_age", check.NewFileAge)
	r.RegisterCheck("http", check.NewHTTP)

	r.RegisterController("process", controller.NewProcess)
	r.RegisterController("http", controller.NewHTTP)

	r.RegisterReporter("log", reporter.NewLog)
	r.RegisterReporter("webhook", reporter.NewWebhook)
	r.RegisterReporter("prometheus", reporter.NewPrometheus)

	return r
}
