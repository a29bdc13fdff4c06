package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts and provides *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Surfin.System.Logging
}

// NewInfrastructureConfigProvider extracts and provides *InfrastructureConfig from *Config.
func NewInfrastructureConfigProvider(cfg *Config) *InfrastructureConfig {
	return &cfg.Surfin.Infrastructure
}

// Module provides the sections of a *Config supplied by the application.
var Module = fx.Options(
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewInfrastructureConfigProvider),
	fx.Provide(func() EnvironmentExpander {
		return NewOsEnvironmentExpander()
	}),
)

// LoaderModule loads the *Config inside the container instead. The application supplies
// EmbeddedConfig and, optionally, a named "envFilePath" string.
var LoaderModule = fx.Options(
	fx.Provide(NewConfigProvider),
	Module,
)
