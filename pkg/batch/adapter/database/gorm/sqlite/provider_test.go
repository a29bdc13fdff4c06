package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dbconfig "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/config"
)

func TestConnectionString(t *testing.T) {
	assert.Equal(t, "/tmp/batch.db?_busy_timeout=5000&_foreign_keys=on",
		ConnectionString(dbconfig.DatabaseConfig{Database: "/tmp/batch.db"}))
	assert.Equal(t, "file:batch.db?mode=rwc&_busy_timeout=100&_foreign_keys=on",
		ConnectionString(dbconfig.DatabaseConfig{Database: "file:batch.db?mode=rwc", Params: map[string]string{"_busy_timeout": "100"}}))
}
