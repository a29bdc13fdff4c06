package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
surfin:
  batch:
    input_dir: {{dir}}
  system:
    logging:
      level: WARN
  infrastructure:
    job_repository_type: {{repository}}
    auto_migrate: true
  observability:
    metrics:
      exporter: none
  database:
    metadata:
      type: sqlite
      database: {{dir}}/metadata.db
    workload:
      type: sqlite
      database: {{dir}}/workload.db
  storage:
    output:
      type: local
      base_dir: {{dir}}/output
`

func writeConfig(t *testing.T, repositoryType string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	content := strings.NewReplacer("{{dir}}", filepath.ToSlash(dir), "{{repository}}", repositoryType).Replace(testConfig)
	path := filepath.Join(dir, "application.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	players := "ID,lastName,firstName,position,birthYear,debutYear\nAbduKa00,Abdul-Jabbar,Karim,rb,1974,1996\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Players.csv"), []byte(players), 0o644))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand(embeddedConfig)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.Execute()
	return out.String(), err
}

func TestJobsCommand_ListsRegisteredJobs(t *testing.T) {
	path, _ := writeConfig(t, "inmemory")
	out, err := execute(t, "jobs", "--config", path)
	require.NoError(t, err)
	for _, name := range []string{"helloWorldJob", "conditionalStepJob", "fileReadWriteJob", "trMigrationJob"} {
		assert.Contains(t, out, name)
	}
}

func TestRunCommand_ExitStatusFollowsJobStatus(t *testing.T) {
	path, dir := writeConfig(t, "inmemory")

	_, err := execute(t, "run", "fileReadWriteJob", "--config", path)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "output", "players_output.txt"))
	assert.NoError(t, err)

	_, err = execute(t, "run", "validatedParamJob", "fileName=players.txt", "--config", path)
	assert.Error(t, err)

	_, err = execute(t, "run", "fileReadWriteJob", "inputFile="+filepath.Join(dir, "missing.csv"), "--config", path)
	assert.Error(t, err)

	_, err = execute(t, "run", "noSuchJob", "--config", path)
	assert.Error(t, err)

	_, err = execute(t, "run", "helloWorldJob", "broken", "--config", path)
	assert.Error(t, err)
}

func TestRunCommand_SQLRepository(t *testing.T) {
	path, dir := writeConfig(t, "sql")

	_, err := execute(t, "migrate", "--config", path)
	require.NoError(t, err)
	_, err = execute(t, "run", "trMigrationJob", "--config", path)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "metadata.db"))
	assert.NoError(t, err)
}
