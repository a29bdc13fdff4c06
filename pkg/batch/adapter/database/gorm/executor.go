package gorm

import (
	"context"
	"fmt"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/adapter/database"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/tx"
)

// TableNamer represents a struct that has a TableName() string method.
type TableNamer interface {
	TableName() string
}

var tableNamerType = reflect.TypeOf((*TableNamer)(nil)).Elem()

// applyTableName applies the table name to the GORM DB session if the model implements the TableNamer interface.
func applyTableName(db *gorm.DB, model interface{}) *gorm.DB {
	if namer, ok := model.(TableNamer); ok {
		return db.Table(namer.TableName())
	}

	val := reflect.ValueOf(model)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() == reflect.Slice || val.Kind() == reflect.Array {
		elemType := val.Type().Elem()
		if elemType.Kind() == reflect.Ptr {
			elemType = elemType.Elem()
		}
		if reflect.PointerTo(elemType).Implements(tableNamerType) {
			if namer, ok := reflect.New(elemType).Interface().(TableNamer); ok {
				return db.Table(namer.TableName())
			}
		}
	}
	return db.Model(model)
}

// gormExecutor implements database.DBExecutor on a *gorm.DB, which is either a connection
// pool or an open transaction.
type gormExecutor struct {
	db *gorm.DB
}

var _ database.DBExecutor = gormExecutor{}

// ExecuteUpdate performs a CREATE, UPDATE or DELETE of model.
func (e gormExecutor) ExecuteUpdate(ctx context.Context, model interface{}, operation string, tableName string, query map[string]interface{}) (rowsAffected int64, err error) {
	db := e.db.WithContext(ctx).Session(&gorm.Session{SkipDefaultTransaction: true})
	if tableName != "" {
		db = db.Table(tableName)
	}

	var result *gorm.DB
	switch operation {
	case tx.OperationCreate:
		result = db.Create(model)
	case tx.OperationUpdate:
		// db.Model(model) adds the primary key of model to the WHERE clause.
		result = db.Model(model).Where(query).Select("*").Updates(model)
	case tx.OperationDelete:
		if query != nil {
			db = db.Where(query)
		}
		result = db.Delete(model)
	default:
		return 0, fmt.Errorf("unsupported update operation: %s", operation)
	}

	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteUpsert inserts model, updating updateColumns on a conflict on conflictColumns.
func (e gormExecutor) ExecuteUpsert(ctx context.Context, model interface{}, tableName string, conflictColumns []string, updateColumns []string) (rowsAffected int64, err error) {
	db := e.db.WithContext(ctx).Session(&gorm.Session{SkipDefaultTransaction: true})
	if tableName != "" {
		db = db.Table(tableName)
	}

	columns := make([]clause.Column, 0, len(conflictColumns))
	for _, col := range conflictColumns {
		columns = append(columns, clause.Column{Name: col})
	}
	onConflict := clause.OnConflict{Columns: columns}
	if len(updateColumns) > 0 {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	} else {
		onConflict.DoNothing = true
	}

	result := db.Clauses(onConflict).Create(model)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ExecuteQuery executes a read operation using GORM's Find method.
// Find does not return gorm.ErrRecordNotFound; callers check for an empty result.
func (e gormExecutor) ExecuteQuery(ctx context.Context, target interface{}, query map[string]interface{}) error {
	db := applyTableName(e.db.WithContext(ctx), target)
	return db.Where(query).Find(target).Error
}

// ExecuteQueryAdvanced executes a read operation with optional sorting and limiting.
func (e gormExecutor) ExecuteQueryAdvanced(ctx context.Context, target interface{}, query map[string]interface{}, orderBy string, limit int) error {
	return e.ExecuteQueryPage(ctx, target, database.Query{Conditions: query, OrderBy: orderBy, Limit: limit})
}

// ExecuteQueryPage executes q into target.
func (e gormExecutor) ExecuteQueryPage(ctx context.Context, target interface{}, q database.Query) error {
	db := applyTableName(e.db.WithContext(ctx), target)
	if len(q.Conditions) > 0 {
		db = db.Where(q.Conditions)
	}
	if q.Where != "" {
		db = db.Where(q.Where, q.Args...)
	}
	if q.OrderBy != "" {
		db = db.Order(q.OrderBy)
	}
	if q.Limit > 0 {
		db = db.Limit(q.Limit)
	}
	if q.Offset > 0 {
		db = db.Offset(q.Offset)
	}
	return db.Find(target).Error
}

// Count counts the number of records matching the query.
func (e gormExecutor) Count(ctx context.Context, model interface{}, query map[string]interface{}) (int64, error) {
	db := applyTableName(e.db.WithContext(ctx), model)
	if query != nil {
		db = db.Where(query)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Pluck retrieves the distinct values of column.
func (e gormExecutor) Pluck(ctx context.Context, model interface{}, column string, target interface{}, query map[string]interface{}) error {
	db := applyTableName(e.db.WithContext(ctx), model)
	if query != nil {
		db = db.Where(query)
	}
	return db.Distinct(column).Order(column).Pluck(column, target).Error
}
