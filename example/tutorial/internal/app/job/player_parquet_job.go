package job

import (
	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/item/parquet"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	stepitem "github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/item"

	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/domain"
	appstep "github.com/tigerroll/surfin-tutorial/example/tutorial/internal/step"
)

const (
	PlayerParquetJobName = "playerParquetJob"

	playerParquetDir = "players"
)

// NewPlayerParquetJob exports Players.csv as Parquet files partitioned by position.
func NewPlayerParquetJob(p Params) (port.Job, error) {
	export := newScopedStep("playerParquetStep", p.Repository, func(params model.JobParameters) (port.Step, error) {
		writer, err := parquet.NewParquetItemWriter[domain.PlayerRecord]("playerParquetWriter", parquet.WriterConfig{
			StorageRef:      p.Config.Surfin.Infrastructure.StorageRef,
			OutputBaseDir:   playerParquetDir,
			CompressionType: "SNAPPY",
		}, p.Storage, func(r domain.PlayerRecord) (string, error) {
			return "position=" + r.Position, nil
		})
		if err != nil {
			return nil, err
		}
		return stepitem.NewChunkStep[domain.Player, domain.PlayerRecord]("playerParquetStep",
			newPlayerReader(p, params), appstep.PlayerRecordProcessor{}, writer, playersChunkSize,
			p.Repository, tx.NewResourcelessTransactionManager(), chunkOptions(p)...), nil
	})

	flow, err := runner.NewFlowBuilder(PlayerParquetJobName).Start(export).Build()
	if err != nil {
		return nil, err
	}
	return newJob(p, flow, nil), nil
}
