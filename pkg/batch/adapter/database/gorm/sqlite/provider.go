// Package sqlite provides the GORM DBProvider for SQLite databases.
package sqlite

import (
	"errors"
	"net/url"
	"sort"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
)

const dbType = "sqlite"

func init() {
	gormadapter.RegisterDialector(dbType, func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		if cfg.Database == "" {
			return nil, errors.New("SQLite database path cannot be empty")
		}
		return sqlite.Open(ConnectionString(cfg)), nil
	})
}

// ConnectionString returns the SQLite DSN: the database path followed by Params as a
// query string. Foreign keys and a busy timeout are enabled unless set explicitly.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	params := map[string]string{
		"_foreign_keys": "on",
		"_busy_timeout": "5000",
	}
	for k, v := range c.Params {
		params[k] = v
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, 0, len(keys))
	for _, k := range keys {
		values = append(values, url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	sep := "?"
	if strings.Contains(c.Database, "?") {
		sep = "&"
	}
	return c.Database + sep + strings.Join(values, "&")
}

// SQLiteDBProvider implements database.DBProvider for SQLite connections.
type SQLiteDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the SQLite provider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &SQLiteDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, dbType)}
}
