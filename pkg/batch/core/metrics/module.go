package metrics

import (
	"go.uber.org/fx"
)

// Module provides the no-op recorder and tracer. Applications that configure a backend
// replace them with fx.Decorate (see infrastructure/metrics.Module).
var Module = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
