// Package config provides structures and utilities for managing application configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelTrace  LogLevel = "TRACE"
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Job repository types accepted by InfrastructureConfig.JobRepositoryType.
const (
	RepositoryTypeInMemory = "inmemory"
	RepositoryTypeSQL      = "sql"
)

// ItemRetryConfig holds item-level retry configuration.
type ItemRetryConfig struct {
	MaxAttempts         int      `yaml:"max_attempts"`         // MaxAttempts is the maximum number of attempts for an item, 1 disables retry.
	InitialInterval     int      `yaml:"initial_interval"`     // InitialInterval is the backoff between attempts in milliseconds.
	RetryableExceptions []string `yaml:"retryable_exceptions"` // RetryableExceptions lists registered error names that may be retried.
}

// ItemSkipConfig holds item-level skip configuration.
type ItemSkipConfig struct {
	SkipLimit           int      `yaml:"skip_limit"`           // SkipLimit is the maximum number of items to skip per step.
	SkippableExceptions []string `yaml:"skippable_exceptions"` // SkippableExceptions lists registered error names that may be skipped.
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys is a list of keys in JobParameters whose values should be masked in logs.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// ScheduleConfig binds a cron expression to a job.
type ScheduleConfig struct {
	// Cron is a 6-field expression with seconds, or a descriptor such as "@every 1m".
	Cron string `yaml:"cron"`
	// JobName is the registered job to launch.
	JobName string `yaml:"job_name"`
	// Parameters are added to every launch.
	Parameters map[string]string `yaml:"parameters"`
}

// BatchConfig holds configuration specific to the batch processing engine.
type BatchConfig struct {
	// JobName is the default job name used when none is given on the command line.
	JobName string `yaml:"job_name"`
	// ChunkSize is the default chunk size for chunk-oriented steps.
	ChunkSize int `yaml:"chunk_size"`
	// IsolationLevel is the isolation of chunk transactions, e.g. "READ_COMMITTED". Empty uses
	// the driver default.
	IsolationLevel string `yaml:"isolation_level"`
	// ItemRetry is the item-level retry configuration.
	ItemRetry ItemRetryConfig `yaml:"item_retry"`
	// ItemSkip is the item-level skip configuration.
	ItemSkip ItemSkipConfig `yaml:"item_skip"`
	// Schedules are the cron triggers run by the scheduler.
	Schedules []ScheduleConfig `yaml:"schedules"`
	// MetricsAsyncBufferSize is the buffer size for asynchronous metric recording.
	MetricsAsyncBufferSize int `yaml:"metrics_async_buffer_size"`
	// InputDir is the directory tutorial jobs read their input files from.
	InputDir string `yaml:"input_dir"`
	// OutputDir is the directory tutorial jobs write their output files to.
	OutputDir string `yaml:"output_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG", "TRACE").
	Level string `yaml:"level"`
	// SQLLevel is the level of GORM statement logging.
	SQLLevel string `yaml:"sql_level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig holds logical dependency settings for infrastructure components.
type InfrastructureConfig struct {
	// JobRepositoryType selects the job repository: "inmemory" or "sql".
	JobRepositoryType string `yaml:"job_repository_type"`
	// JobRepositoryDBRef is the name of the database connection used by the job repository.
	JobRepositoryDBRef string `yaml:"job_repository_db_ref"`
	// WorkloadDBRef is the name of the database connection used by database item readers and writers.
	WorkloadDBRef string `yaml:"workload_db_ref"`
	// AutoMigrate applies the metadata schema on startup.
	AutoMigrate bool `yaml:"auto_migrate"`
	// StorageRef is the name of the storage connection used by file item writers.
	StorageRef string `yaml:"storage_ref"`
}

// MetricsConfig configures the metric recorder.
type MetricsConfig struct {
	// Exporter is "none", "prometheus", "otlp-grpc" or "otlp-http".
	Exporter string `yaml:"exporter"`
	// Addr is the listen address of the admin HTTP server serving /metrics and /healthz.
	Addr string `yaml:"addr"`
	// Endpoint is the OTLP collector endpoint.
	Endpoint string `yaml:"endpoint"`
	// Insecure disables TLS for OTLP exports.
	Insecure bool `yaml:"insecure"`
	// IntervalSeconds is the OTLP export interval.
	IntervalSeconds int `yaml:"interval_seconds"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	// Exporter is "none", "otlp-grpc" or "otlp-http".
	Exporter string `yaml:"exporter"`
	// Endpoint is the OTLP collector endpoint.
	Endpoint string `yaml:"endpoint"`
	// Insecure disables TLS for OTLP exports.
	Insecure bool `yaml:"insecure"`
	// SampleRatio is the fraction of traces sampled, between 0 and 1.
	SampleRatio float64 `yaml:"sample_ratio"`
}

// ObservabilityConfig groups metrics and tracing.
type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name"`
	Metrics     MetricsConfig `yaml:"metrics"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// SurfinConfig holds all configuration under the "surfin" top-level key.
type SurfinConfig struct {
	// Batch contains batch processing specific configurations.
	Batch BatchConfig `yaml:"batch"`
	// System contains system-wide configurations.
	System SystemConfig `yaml:"system"`
	// Infrastructure contains infrastructure-related configurations.
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	// Security contains security-related configurations.
	Security SecurityConfig `yaml:"security"`
	// Observability contains metrics and tracing configurations.
	Observability ObservabilityConfig `yaml:"observability"`
	// AdapterConfigs holds the named database connection settings, decoded by the database adapters.
	AdapterConfigs map[string]interface{} `yaml:"database"`
	// StorageConfigs holds the named storage connection settings, decoded by the storage adapters.
	StorageConfigs map[string]interface{} `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Surfin contains the top-level configuration.
	Surfin SurfinConfig `yaml:"surfin"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	cfg := &Config{
		Surfin: SurfinConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO", SQLLevel: "SILENT"},
			},
			Batch: BatchConfig{
				ChunkSize:              10,
				MetricsAsyncBufferSize: 100,
				InputDir:               ".",
				OutputDir:              ".",
				ItemRetry: ItemRetryConfig{
					MaxAttempts:     1,
					InitialInterval: 0,
				},
				ItemSkip: ItemSkipConfig{
					SkipLimit: 0,
				},
			},
			Infrastructure: InfrastructureConfig{
				JobRepositoryType:  RepositoryTypeInMemory,
				JobRepositoryDBRef: "metadata",
				WorkloadDBRef:      "workload",
				StorageRef:         "output",
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret"},
			},
			Observability: ObservabilityConfig{
				ServiceName: "surfin-tutorial",
				Metrics:     MetricsConfig{Exporter: "none", IntervalSeconds: 15},
				Tracing:     TracingConfig{Exporter: "none", SampleRatio: 1},
			},
		},
	}
	cfg.Surfin.AdapterConfigs = map[string]interface{}{}
	cfg.Surfin.StorageConfigs = map[string]interface{}{}
	return cfg
}
