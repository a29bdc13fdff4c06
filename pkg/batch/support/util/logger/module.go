package logger

import "go.uber.org/fx"

// Module replaces the default fx console logger with FxLoggerAdapter so container
// events follow the configured batch log level.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
