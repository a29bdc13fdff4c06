package job

import "go.uber.org/fx"

func asJob(constructor interface{}) fx.Option {
	return fx.Provide(fx.Annotate(constructor, fx.ResultTags(`group:"jobs"`)))
}

// Module registers every tutorial job with the JobRegistry.
var Module = fx.Options(
	asJob(NewHelloWorldJob),
	asJob(NewMultipleStepJob),
	asJob(NewConditionalStepJob),
	asJob(NewJobListenerJob),
	asJob(NewValidatedParamJob),
	asJob(NewFileReadWriteJob),
	asJob(NewPlayerParquetJob),
	asJob(NewTrMigrationJob),
)
