package step_test

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/retry"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/engine/step/skip"
)

func TestParseIsolationLevel(t *testing.T) {
	cases := map[string]sql.IsolationLevel{
		"READ_UNCOMMITTED": sql.LevelReadUncommitted,
		"READ_COMMITTED":   sql.LevelReadCommitted,
		"WRITE_COMMITTED":  sql.LevelWriteCommitted,
		"REPEATABLE_READ":  sql.LevelRepeatableRead,
		"SERIALIZABLE":     sql.LevelSerializable,
		"":                 sql.LevelDefault,
		"CHAOS":            sql.LevelDefault,
	}
	for name, want := range cases {
		assert.Equal(t, want, step.ParseIsolationLevel(name), name)
	}
}

func TestNewOptions(t *testing.T) {
	o := step.NewOptions()
	assert.Nil(t, o.TxOptions)
	assert.True(t, retry.IsNever(o.RetryPolicy))
	assert.True(t, skip.IsNever(o.SkipPolicy))

	o = step.NewOptions(step.WithIsolation(sql.LevelSerializable), step.WithRetryPolicy(nil))
	require.NotNil(t, o.TxOptions)
	assert.Equal(t, sql.LevelSerializable, o.TxOptions.Isolation)
	assert.True(t, retry.IsNever(o.RetryPolicy), "a nil policy keeps the default")
}
