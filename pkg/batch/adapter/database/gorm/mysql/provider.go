// Package mysql provides the GORM DBProvider for MySQL databases.
package mysql

import (
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
)

const dbType = "mysql"

func init() {
	gormadapter.RegisterDialector(dbType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return mysql.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString formats the go-sql-driver DSN. Times are parsed into time.Time in UTC.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	mc := gomysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, c.Port)
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	if len(c.Params) > 0 {
		mc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

// MySQLDBProvider implements database.DBProvider for MySQL connections.
type MySQLDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the MySQL provider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &MySQLDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, dbType)}
}
