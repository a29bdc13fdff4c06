package job

import (
	"embed"
	"io/fs"
)

//go:embed migrations
var migrationsFS embed.FS

// WorkloadMigrationsFS holds the orders and accounts schema of trMigrationJob, one
// directory per database type.
func WorkloadMigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
