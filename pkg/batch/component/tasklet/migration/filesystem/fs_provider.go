// Package filesystem embeds the metadata schema migrations, one directory per database type.
package filesystem

import (
	"embed"
	"io/fs"

	"go.uber.org/fx"
)

//go:embed resource
var resourceFS embed.FS

// Module provides FrameworkMigrationsFS under the name "frameworkMigrationsFS".
var Module = fx.Provide(fx.Annotate(FrameworkMigrationsFS, fx.ResultTags(`name:"frameworkMigrationsFS"`)))

// FrameworkMigrationsFS returns the framework migrations rooted at the dialect directories
// (sqlite, postgres, mysql).
func FrameworkMigrationsFS() fs.FS {
	sub, err := fs.Sub(resourceFS, "resource")
	if err != nil {
		panic(err)
	}
	return sub
}
