package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/repository"
)

// Module is an Fx module that provides InMemoryJobRepository as a repository.JobRepository interface.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryJobRepository,
			fx.As(new(repository.JobRepository)),
		),
	),
)
