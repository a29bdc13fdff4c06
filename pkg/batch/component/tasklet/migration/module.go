// Package migration applies embedded SQL migrations with golang-migrate, either for the
// framework metadata schema or as a tasklet step for application tables.
package migration

import (
	"go.uber.org/fx"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/tasklet/migration/filesystem"
)

// Module provides the MigratorProvider and the framework migrations FS.
var Module = fx.Options(
	fx.Provide(NewMigratorProvider),
	filesystem.Module,
)
