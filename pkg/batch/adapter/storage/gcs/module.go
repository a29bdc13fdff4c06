package gcs

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/storage"
)

// Module registers the GCS provider in the "storage_providers" group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGCSProvider,
		fx.As(new(storageAdapter.StorageProvider)),
		fx.ResultTags(`group:"storage_providers"`),
	)),
)
