package sql

import (
	"context"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/tasklet/migration"
	config "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
)

// JobRepositoryParams holds the dependencies of NewJobRepositoryProvider.
type JobRepositoryParams struct {
	fx.In
	Lifecycle        fx.Lifecycle
	Infra            *config.InfrastructureConfig
	DBResolver       database.DBConnectionResolver
	MigratorProvider migration.MigratorProvider
	MigrationFS      fs.FS `name:"frameworkMigrationsFS"`
}

// NewJobRepositoryProvider creates the GormJobRepository on the configured metadata
// connection. With auto_migrate set, the schema is applied when the application starts.
func NewJobRepositoryProvider(p JobRepositoryParams) repository.JobRepository {
	repo := NewGormJobRepository(p.DBResolver, p.Infra.JobRepositoryDBRef)
	if p.Infra.AutoMigrate {
		p.Lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return repo.Migrate(ctx, p.MigrationFS, p.MigratorProvider)
			},
		})
	}
	return repo
}

// Module provides the SQL JobRepository. It expects a DBConnectionResolver and the
// migration module in the graph.
var Module = fx.Options(
	fx.Provide(NewJobRepositoryProvider),
)
