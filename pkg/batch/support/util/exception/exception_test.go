package exception_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

type CustomError struct {
	Msg string
}

func (e *CustomError) Error() string {
	return fmt.Sprintf("CustomError: %s", e.Msg)
}

func TestNewBatchError(t *testing.T) {
	originalErr := errors.New("db connection refused")
	be := exception.NewBatchError("db", "failed to connect", originalErr, false, true)

	assert.Equal(t, "db", be.Module)
	assert.Equal(t, "failed to connect", be.Message)
	assert.Equal(t, originalErr, be.Unwrap())
	assert.True(t, be.IsRetryable())
	assert.False(t, be.IsSkippable())
	assert.Equal(t, "[db] failed to connect: db connection refused", be.Error())
	assert.NotEmpty(t, be.StackTrace)
}

func TestNewBatchErrorf(t *testing.T) {
	be := exception.NewBatchErrorf("reader", "item %d not found", 10)
	assert.False(t, be.IsRetryable())
	assert.False(t, be.IsSkippable())
	assert.Nil(t, be.Unwrap())
	assert.Equal(t, "[reader] item 10 not found", be.Error())

	be = exception.NewBatchErrorf("net", "timeout occurred", true)
	assert.True(t, be.IsRetryable())
	assert.False(t, be.IsSkippable())

	be = exception.NewBatchErrorf("item", "data error in item %d", 5, true, false)
	assert.False(t, be.IsRetryable())
	assert.True(t, be.IsSkippable())
	assert.Equal(t, "data error in item 5", be.Message)

	cause := errors.New("data format error")
	be = exception.NewBatchErrorf("proc", "format error", true, true, cause)
	assert.True(t, be.IsRetryable())
	assert.True(t, be.IsSkippable())
	assert.ErrorIs(t, be, cause)
}

func TestOptimisticLockingFailure(t *testing.T) {
	be := exception.NewOptimisticLockingFailureException("repo", "version mismatch", errors.New("0 rows"))

	assert.True(t, exception.IsFatal(be))
	assert.True(t, exception.IsOptimisticLockingFailure(be))
	assert.True(t, exception.IsErrorOfType(be, exception.OptimisticLockingFailureException))
	assert.Contains(t, be.Error(), "version mismatch")
}

func TestIsTemporaryAndIsFatal(t *testing.T) {
	retryable := exception.NewBatchError("net", "timeout", nil, false, true)
	assert.True(t, exception.IsTemporary(retryable))
	assert.False(t, exception.IsFatal(retryable))

	fatal := exception.NewBatchError("data", "invalid format", nil, false, false)
	assert.False(t, exception.IsTemporary(fatal))
	assert.True(t, exception.IsFatal(fatal))

	skippable := exception.NewBatchError("item", "bad record", nil, true, false)
	assert.False(t, exception.IsTemporary(skippable))
	assert.False(t, exception.IsFatal(skippable))

	assert.True(t, exception.IsTemporary(fmt.Errorf("query: %w", context.DeadlineExceeded)))
	assert.True(t, exception.IsTemporary(errors.New("dial tcp: connection refused")))
	assert.False(t, exception.IsTemporary(errors.New("permission denied")))
	assert.False(t, exception.IsFatal(nil))
}

func TestIsErrorOfType(t *testing.T) {
	exception.RegisterErrorType("CustomErrorType", &CustomError{})
	assert.True(t, exception.IsErrorTypeRegistered("CustomErrorType"))

	wrapped := exception.NewBatchError("proc", "custom failure", &CustomError{Msg: "test"}, false, false)
	assert.True(t, exception.IsErrorOfType(wrapped, "*exception_test.CustomError"))
	assert.True(t, exception.IsErrorOfType(wrapped, "exception_test.CustomError"))
	assert.True(t, exception.IsErrorOfType(wrapped, "custom failure"))

	deep := fmt.Errorf("level 2: %w", wrapped)
	assert.True(t, exception.IsErrorOfType(deep, "*exception_test.CustomError"))
	assert.False(t, exception.IsErrorOfType(deep, exception.OptimisticLockingFailureException))
	assert.False(t, exception.IsErrorOfType(deep, "NonExistentError"))
	assert.False(t, exception.IsErrorOfType(nil, "any"))
}

func TestRegisterErrorTypePanicsOnInvalidInput(t *testing.T) {
	assert.Panics(t, func() { exception.RegisterErrorType("", errors.New("x")) })
	assert.Panics(t, func() { exception.RegisterErrorType("nil", nil) })
}

func TestTypedErrorsSupportErrorsAs(t *testing.T) {
	cause := errors.New("fileName must end with csv")
	var err error = fmt.Errorf("launch: %w", exception.NewValidationError("validatedParamJob", "This is not csv file", cause))

	var ve *exception.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "validatedParamJob", ve.JobName)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "This is not csv file", exception.ExtractErrorMessage(err))

	be, ok := exception.AsBatchError(err)
	require.True(t, ok)
	assert.Equal(t, "validator", be.Module)

	var dup *exception.DuplicateExecutionError
	err = exception.NewDuplicateExecutionError("helloWorldJob", "inst-1")
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "inst-1", dup.InstanceID)
	assert.True(t, exception.IsFatal(err))

	var running *exception.JobExecutionAlreadyRunningError
	err = exception.NewJobExecutionAlreadyRunningError("helloWorldJob", "exec-1")
	require.True(t, errors.As(err, &running))
	assert.Contains(t, err.Error(), "already running")

	var sf *exception.StepFailure
	err = exception.NewStepFailure("step1", "write", errors.New("disk full"))
	require.True(t, errors.As(err, &sf))
	assert.Equal(t, "write", sf.Stage)
	assert.Equal(t, "[step] step 'step1' failed during write: disk full", err.Error())

	err = exception.NewTransitionConfigError("job", "step '%s' has a cycle", "a")
	assert.Equal(t, "[flow] job 'job': step 'a' has a cycle", err.Error())

	var re *exception.RepositoryError
	err = exception.NewRepositoryError("UpdateJobExecution", "status regression", nil)
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "UpdateJobExecution", re.Operation)
}
