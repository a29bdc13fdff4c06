package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	coreAdapter "github.com/tigerroll/surfin-tutorial/pkg/batch/core/adapter"
)

// Module exports the connection resolver. Concrete DB providers are supplied by the
// sqlite, postgres and mysql subpackages.
var Module = fx.Options(
	fx.Provide(NewGormDBConnectionResolver),
	fx.Provide(func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r }),
	fx.Provide(func(r *GormDBConnectionResolver) coreAdapter.ResourceConnectionResolver { return r }),
	fx.Invoke(func(lc fx.Lifecycle, r *GormDBConnectionResolver) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return r.CloseAll()
			},
		})
	}),
)
