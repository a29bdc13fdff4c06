package job

import (
	"path/filepath"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/component/item/flatfile"
	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	runner "github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/runner"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
	stepitem "github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/item"

	"github.com/tigerroll/surfin-tutorial/example/tutorial/internal/domain"
	appstep "github.com/tigerroll/surfin-tutorial/example/tutorial/internal/step"
)

const (
	FileReadWriteJobName = "fileReadWriteJob"

	// InputFileParam overrides the players CSV read by fileReadWriteJob and playerParquetJob.
	InputFileParam = "inputFile"
	// OutputFileParam overrides the object written by fileReadWriteJob.
	OutputFileParam = "outputFile"

	defaultPlayersFile = "Players.csv"
	defaultOutputFile  = "players_output.txt"
	playersChunkSize   = 5
)

// NewFileReadWriteJob reads Players.csv, adds the years of experience of each player and
// writes "ID,lastName,position,yearsExperience" lines to the output storage.
func NewFileReadWriteJob(p Params) (port.Job, error) {
	rw := newScopedStep("fileReadWriteStep", p.Repository, func(params model.JobParameters) (port.Step, error) {
		reader := newPlayerReader(p, params)
		writer := flatfile.NewFlatFileItemWriter[domain.PlayerYears]("playerItemWriter", flatfile.WriterConfig{
			StorageRef: p.Config.Surfin.Infrastructure.StorageRef,
			Resource:   stringParam(params, OutputFileParam, defaultOutputFile),
		}, flatfile.NewBeanFieldExtractor[domain.PlayerYears]("ID", "lastName", "position", "yearsExperience"), p.Storage)

		return stepitem.NewChunkStep[domain.Player, domain.PlayerYears]("fileReadWriteStep",
			reader, appstep.NewPlayerYearsProcessor(nil), writer, playersChunkSize,
			p.Repository, tx.NewResourcelessTransactionManager(), chunkOptions(p)...), nil
	})

	flow, err := runner.NewFlowBuilder(FileReadWriteJobName).Start(rw).Build()
	if err != nil {
		return nil, err
	}
	return newJob(p, flow, nil), nil
}

func newPlayerReader(p Params, params model.JobParameters) *flatfile.FlatFileItemReader[domain.Player] {
	input := stringParam(params, InputFileParam, filepath.Join(p.Config.Surfin.Batch.InputDir, defaultPlayersFile))
	return flatfile.NewFlatFileItemReader[domain.Player]("playerItemReader", flatfile.ReaderConfig{
		Resource:    input,
		LinesToSkip: 1,
	}, flatfile.NewBeanFieldSetMapper[domain.Player](), p.Storage)
}

func stringParam(params model.JobParameters, key, fallback string) string {
	if v, ok := params.GetString(key); ok && v != "" {
		return v
	}
	return fallback
}
