package mysql

import (
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/config"
)

func TestConnectionString(t *testing.T) {
	dsn := ConnectionString(dbconfig.DatabaseConfig{
		Host: "db", Port: 3306, User: "batch", Password: "secret", Database: "surfin",
		Params: map[string]string{"sql_mode": "TRADITIONAL"},
	})
	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "batch", parsed.User)
	assert.Equal(t, "secret", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "surfin", parsed.DBName)
	assert.True(t, parsed.ParseTime)
	assert.Equal(t, "TRADITIONAL", parsed.Params["sql_mode"])
}
