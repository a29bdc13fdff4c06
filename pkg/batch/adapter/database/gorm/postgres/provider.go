// Package postgres provides the GORM DBProvider for PostgreSQL and Redshift databases.
package postgres

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/config"
)

func init() {
	factory := func(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.Open(ConnectionString(cfg)), nil
	}
	gormadapter.RegisterDialector("postgres", factory)
	gormadapter.RegisterDialector("redshift", factory)
}

// ConnectionString generates the key/value DSN expected by pgx.
func ConnectionString(c dbconfig.DatabaseConfig) string {
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts := []string{
		"host=" + quote(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"user=" + quote(c.User),
		"password=" + quote(c.Password),
		"dbname=" + quote(c.Database),
		"sslmode=" + sslmode,
	}
	if c.Schema != "" {
		parts = append(parts, "search_path="+quote(c.Schema))
	}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+quote(c.Params[k]))
	}
	return strings.Join(parts, " ")
}

// quote wraps values containing spaces or quotes as libpq requires.
func quote(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// PostgresDBProvider implements database.DBProvider for PostgreSQL and Redshift connections.
type PostgresDBProvider struct {
	*gormadapter.BaseProvider
}

// NewProvider creates the PostgreSQL provider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return &PostgresDBProvider{BaseProvider: gormadapter.NewBaseProvider(cfg, "postgres")}
}
