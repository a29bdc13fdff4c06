package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	coreconfig "github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
)

const sampleYAML = `
surfin:
  batch:
    chunk_size: 5
    schedules:
      - cron: "0 */1 * * * *"
        job_name: helloWorldJob
  system:
    logging:
      level: ${TEST_SURFIN_LEVEL:-WARN}
  infrastructure:
    job_repository_type: sql
  database:
    metadata:
      type: sqlite
      database: ${TEST_SURFIN_DB}
`

// TestNewConfig_Defaults verifies that NewConfig initializes the expected default values.
func TestNewConfig_Defaults(t *testing.T) {
	cfg := coreconfig.NewConfig()

	assert.Equal(t, "UTC", cfg.Surfin.System.Timezone)
	assert.Equal(t, "INFO", cfg.Surfin.System.Logging.Level)
	assert.Equal(t, 10, cfg.Surfin.Batch.ChunkSize)
	assert.Equal(t, coreconfig.RepositoryTypeInMemory, cfg.Surfin.Infrastructure.JobRepositoryType)
	assert.Equal(t, "metadata", cfg.Surfin.Infrastructure.JobRepositoryDBRef)
	assert.NotEmpty(t, cfg.Surfin.Security.MaskedParameterKeys)
	assert.NotNil(t, cfg.Surfin.AdapterConfigs)
}

func TestLoadConfig_YAMLExpansionAndEnvOverride(t *testing.T) {
	t.Setenv("TEST_SURFIN_DB", "/tmp/meta.db")
	t.Setenv("SURFIN_BATCH_CHUNK_SIZE", "7")
	t.Setenv("SURFIN_DATABASE_METADATA_HOST", "db.internal")

	cfg, err := coreconfig.LoadConfig("does-not-exist.env", coreconfig.EmbeddedConfig(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Surfin.Batch.ChunkSize, "environment wins over YAML")
	assert.Equal(t, "WARN", cfg.Surfin.System.Logging.Level, "default of the placeholder")
	assert.Equal(t, coreconfig.RepositoryTypeSQL, cfg.Surfin.Infrastructure.JobRepositoryType)
	require.Len(t, cfg.Surfin.Batch.Schedules, 1)
	assert.Equal(t, "helloWorldJob", cfg.Surfin.Batch.Schedules[0].JobName)

	metadata, ok := cfg.Surfin.AdapterConfigs["metadata"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/tmp/meta.db", metadata["database"])
	assert.Equal(t, "db.internal", metadata["host"])
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	_, err := coreconfig.LoadConfig("", coreconfig.EmbeddedConfig("surfin: [unterminated"))
	assert.Error(t, err)
}

func TestApply_RejectsUnknownRepositoryTypeAndExceptionNames(t *testing.T) {
	cfg := coreconfig.NewConfig()
	cfg.Surfin.Infrastructure.JobRepositoryType = "redis"
	assert.Error(t, coreconfig.Apply(cfg))

	cfg = coreconfig.NewConfig()
	cfg.Surfin.Batch.ItemSkip.SkippableExceptions = []string{"NoSuchError"}
	assert.Error(t, coreconfig.Apply(cfg))

	cfg = coreconfig.NewConfig()
	cfg.Surfin.Batch.ItemRetry.RetryableExceptions = []string{"io.EOF"}
	assert.NoError(t, coreconfig.Apply(cfg))
}

func TestOsEnvironmentExpander(t *testing.T) {
	t.Setenv("TEST_SURFIN_NAME", "surfin")
	out, err := coreconfig.NewOsEnvironmentExpander().Expand([]byte("a=${TEST_SURFIN_NAME} b=${TEST_SURFIN_UNSET:-x} c=$HOME"))
	require.NoError(t, err)
	assert.Equal(t, "a=surfin b=x c=$HOME", string(out))
}

func TestLoaderModule_ProvidesConfigAndSections(t *testing.T) {
	t.Setenv("TEST_SURFIN_DB", "loader.db")

	var (
		cfg   *coreconfig.Config
		infra *coreconfig.InfrastructureConfig
	)
	app := fxtest.New(t,
		fx.Supply(coreconfig.EmbeddedConfig(sampleYAML)),
		fx.Supply(fx.Annotate("does-not-exist.env", fx.ResultTags(`name:"envFilePath"`))),
		coreconfig.LoaderModule,
		fx.Populate(&cfg, &infra),
	)
	defer app.RequireStart().RequireStop()

	require.NotNil(t, cfg)
	assert.Equal(t, 5, cfg.Surfin.Batch.ChunkSize)
	assert.Same(t, &cfg.Surfin.Infrastructure, infra)
	assert.Equal(t, coreconfig.RepositoryTypeSQL, infra.JobRepositoryType)
}
