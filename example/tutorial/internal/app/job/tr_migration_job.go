package job

import (
	gormadapter "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/item/database"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/tasklet/migration"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	stepitem "github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/item"

	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/domain"
	appstep "github.com/tigerroll/surfin-tutorial/example/tutorial/internal/step"
)

const (
	TrMigrationJobName = "trMigrationJob"

	ordersPageSize = 5
	ordersChunk    = 5
)

// NewTrMigrationJob copies every order into the accounts table of the workload database.
// trSchemaStep applies the embedded schema first; accounts are upserted on id, so a rerun
// refreshes existing rows.
func NewTrMigrationJob(p Params) (port.Job, error) {
	dbRef := p.Config.Surfin.Infrastructure.WorkloadDBRef

	schema, err := migration.NewMigrationTasklet(p.DBResolver, p.MigratorProvider, WorkloadMigrationsFS(), map[string]interface{}{
		"dbRef": dbRef,
	})
	if err != nil {
		return nil, err
	}

	copyOrders := newScopedStep("trMigrationStep", p.Repository, func(model.JobParameters) (port.Step, error) {
		reader := database.NewRepositoryItemReader[domain.Order]("trOrdersReader", database.ReaderConfig{
			DBRef:    dbRef,
			PageSize: ordersPageSize,
			OrderBy:  "id asc",
		}, p.DBResolver)
		writer := database.NewRepositoryItemWriter[domain.Account]("trAccountsWriter", database.WriterConfig{
			Table:           domain.Account{}.TableName(),
			ConflictColumns: []string{"id"},
			UpdateColumns:   []string{"order_item", "price", "order_date", "account_date"},
		})
		return stepitem.NewChunkStep[domain.Order, domain.Account]("trMigrationStep",
			reader, appstep.NewAccountProcessor(nil), writer, ordersChunk,
			p.Repository, gormadapter.NewGormTransactionManager(p.DBResolver, dbRef), chunkOptions(p)...), nil
	})

	flow, err := runner.NewFlowBuilder(TrMigrationJobName).
		Start(newTaskletStep(p, "trSchemaStep", schema)).
		Next(copyOrders).
		Build()
	if err != nil {
		return nil, err
	}
	return newJob(p, flow, nil), nil
}
