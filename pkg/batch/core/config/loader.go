package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

const moduleName = "config"

// envPrefix is prepended to the yaml path of a field to build its environment variable name,
// e.g. SURFIN_BATCH_CHUNK_SIZE. The root yaml key already supplies "SURFIN".
const envPrefix = ""

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// loadConfig loads configuration from the embedded YAML, the .env file and the environment.
//
// Parameters:
//   envFilePath: The path to the .env file. Empty means ".env" in the working directory.
//   embeddedConfig: The embedded configuration bytes.
//   expander: Expands ${VAR} placeholders in the YAML. Nil uses the process environment.
// Returns:
//   A pointer to the loaded Config and an error if loading fails.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	// 1. Defaults.
	cfg := NewConfig()
	cfg.EmbeddedConfig = embeddedConfig

	// 2. Embedded YAML, after placeholder expansion.
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders", err, false, false)
	}
	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}
	mergeConfig(cfg, &yamlConfig)

	// 3. Environment overrides.
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), envPrefix); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It also applies the configured log level and masked parameter keys.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, params.Expander)
	if err != nil {
		return nil, err
	}
	if err := Apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig loads configuration from the embedded YAML, the .env file and environment variables.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, nil)
}

// Apply pushes process-wide settings of cfg into the logger and the parameter model, and
// validates the configured exception names.
func Apply(cfg *Config) error {
	logger.SetLogLevel(cfg.Surfin.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Surfin.System.Logging.Level)
	model.SetMaskedParameterKeys(cfg.Surfin.Security.MaskedParameterKeys)

	if err := validateExceptionClasses(cfg); err != nil {
		return exception.NewBatchError(moduleName, "failed to validate configured exception classes", err, false, false)
	}
	if t := cfg.Surfin.Infrastructure.JobRepositoryType; t != RepositoryTypeInMemory && t != RepositoryTypeSQL {
		return exception.NewBatchError(moduleName, fmt.Sprintf("unknown job repository type '%s'", t), nil, false, false)
	}
	return nil
}

// validateExceptionClasses validates that configured exception class names exist in the registry.
func validateExceptionClasses(cfg *Config) error {
	if err := checkExceptionClasses(cfg.Surfin.Batch.ItemRetry.RetryableExceptions, "ItemRetry"); err != nil {
		return err
	}
	return checkExceptionClasses(cfg.Surfin.Batch.ItemSkip.SkippableExceptions, "ItemSkip")
}

// checkExceptionClasses validates that all exception class names in the provided list
// are registered in the exception registry.
func checkExceptionClasses(classNames []string, configType string) error {
	for _, name := range classNames {
		if !exception.IsErrorTypeRegistered(name) {
			return fmt.Errorf("%s configuration references unknown exception class: '%s'", configType, name)
		}
	}
	return nil
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig overwrite the corresponding values in destConfig
// when they are not zero values for their type.
func mergeConfig(destConfig, sourceConfig *Config) {
	mergeSurfinConfig(&destConfig.Surfin, &sourceConfig.Surfin)
}

func mergeSurfinConfig(dest, source *SurfinConfig) {
	mergeBatchConfig(&dest.Batch, &source.Batch)
	mergeSystemConfig(&dest.System, &source.System)
	mergeInfrastructureConfig(&dest.Infrastructure, &source.Infrastructure)
	mergeObservabilityConfig(&dest.Observability, &source.Observability)

	if source.Security.MaskedParameterKeys != nil {
		dest.Security.MaskedParameterKeys = source.Security.MaskedParameterKeys
	}
	for key, value := range source.AdapterConfigs {
		dest.AdapterConfigs[key] = value
	}
	for key, value := range source.StorageConfigs {
		dest.StorageConfigs[key] = value
	}
}

func mergeBatchConfig(dest, source *BatchConfig) {
	if source.JobName != "" {
		dest.JobName = source.JobName
	}
	if source.ChunkSize != 0 {
		dest.ChunkSize = source.ChunkSize
	}
	if source.MetricsAsyncBufferSize != 0 {
		dest.MetricsAsyncBufferSize = source.MetricsAsyncBufferSize
	}
	if source.InputDir != "" {
		dest.InputDir = source.InputDir
	}
	if source.OutputDir != "" {
		dest.OutputDir = source.OutputDir
	}
	if source.Schedules != nil {
		dest.Schedules = source.Schedules
	}

	if source.ItemRetry.MaxAttempts != 0 {
		dest.ItemRetry.MaxAttempts = source.ItemRetry.MaxAttempts
	}
	if source.ItemRetry.InitialInterval != 0 {
		dest.ItemRetry.InitialInterval = source.ItemRetry.InitialInterval
	}
	if source.ItemRetry.RetryableExceptions != nil {
		dest.ItemRetry.RetryableExceptions = source.ItemRetry.RetryableExceptions
	}
	if source.ItemSkip.SkipLimit != 0 {
		dest.ItemSkip.SkipLimit = source.ItemSkip.SkipLimit
	}
	if source.ItemSkip.SkippableExceptions != nil {
		dest.ItemSkip.SkippableExceptions = source.ItemSkip.SkippableExceptions
	}
}

func mergeSystemConfig(dest, source *SystemConfig) {
	if source.Timezone != "" {
		dest.Timezone = source.Timezone
	}
	if source.Logging.Level != "" {
		dest.Logging.Level = source.Logging.Level
	}
	if source.Logging.SQLLevel != "" {
		dest.Logging.SQLLevel = source.Logging.SQLLevel
	}
}

func mergeInfrastructureConfig(dest, source *InfrastructureConfig) {
	if source.JobRepositoryType != "" {
		dest.JobRepositoryType = source.JobRepositoryType
	}
	if source.JobRepositoryDBRef != "" {
		dest.JobRepositoryDBRef = source.JobRepositoryDBRef
	}
	if source.WorkloadDBRef != "" {
		dest.WorkloadDBRef = source.WorkloadDBRef
	}
	if source.StorageRef != "" {
		dest.StorageRef = source.StorageRef
	}
	if source.AutoMigrate {
		dest.AutoMigrate = true
	}
}

func mergeObservabilityConfig(dest, source *ObservabilityConfig) {
	if source.ServiceName != "" {
		dest.ServiceName = source.ServiceName
	}
	if source.Metrics.Exporter != "" {
		dest.Metrics.Exporter = source.Metrics.Exporter
	}
	if source.Metrics.Addr != "" {
		dest.Metrics.Addr = source.Metrics.Addr
	}
	if source.Metrics.Endpoint != "" {
		dest.Metrics.Endpoint = source.Metrics.Endpoint
	}
	if source.Metrics.Insecure {
		dest.Metrics.Insecure = true
	}
	if source.Metrics.IntervalSeconds != 0 {
		dest.Metrics.IntervalSeconds = source.Metrics.IntervalSeconds
	}
	if source.Tracing.Exporter != "" {
		dest.Tracing.Exporter = source.Tracing.Exporter
	}
	if source.Tracing.Endpoint != "" {
		dest.Tracing.Endpoint = source.Tracing.Endpoint
	}
	if source.Tracing.Insecure {
		dest.Tracing.Insecure = true
	}
	if source.Tracing.SampleRatio != 0 {
		dest.Tracing.SampleRatio = source.Tracing.SampleRatio
	}
}

// loadStructFromEnv recursively loads configuration values into a struct from environment variables.
// It uses the "yaml" tag to determine the environment variable name.
//
// Parameters:
//   val: The reflect.Value of the struct to populate.
//   prefix: The prefix for environment variable names (e.g., "SURFIN_BATCH_").
// Returns: An error if any field cannot be set.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}
		if field.Kind() == reflect.Map && field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Interface {
			loadMapFromEnv(field, envVarName+"_")
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapFromEnv overrides entries of a map[string]interface{} section from environment variables.
//
// Example: SURFIN_DATABASE_METADATA_HOST=db sets the "host" key of the "metadata" entry.
// Values stay strings; the adapters decode them with weak typing.
func loadMapFromEnv(mapField reflect.Value, prefix string) {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := strings.SplitN(parts[0], "_", 2)
		if len(keyAndField) != 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndField[0])
		fieldName := strings.ToLower(keyAndField[1])

		entry := map[string]interface{}{}
		if existing := mapField.MapIndex(reflect.ValueOf(mapKey)); existing.IsValid() {
			if m, ok := existing.Interface().(map[string]interface{}); ok {
				entry = m
			}
		}
		entry[fieldName] = parts[1]
		mapField.SetMapIndex(reflect.ValueOf(mapKey), reflect.ValueOf(entry))
	}
}

// setField sets the value of a reflect.Value field based on its kind.
// It handles string, int, float, bool and string slice types.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			items := strings.Split(value, ",")
			for i := range items {
				items[i] = strings.TrimSpace(items[i])
			}
			field.Set(reflect.ValueOf(items))
		}
	}
	return nil
}
