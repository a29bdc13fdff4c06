// Package exception provides the error types used by the batch engine.
// Errors carry the module they originate from and whether a retry or skip policy may
// handle them, and can be classified by registered names for policy configuration.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

var (
	errorRegistry = make(map[string]error)
	registryMutex sync.RWMutex
)

// RegisterErrorType registers a named error prototype so that configuration can refer to it
// by name (for example in retryable or skippable exception lists).
// It panics if name is empty or prototype is nil.
func RegisterErrorType(name string, prototype error) {
	if name == "" {
		panic("error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("cannot register nil prototype for name: %s", name))
	}
	registryMutex.Lock()
	defer registryMutex.Unlock()
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether name has been registered.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// BatchError is the base error of the engine.
type BatchError struct {
	// Module is the component that raised the error (e.g. "reader", "launcher", "repository").
	Module string
	// Message is a short description of the failure.
	Message string
	// OriginalErr is the wrapped cause, if any.
	OriginalErr error
	// StackTrace is captured at construction for debugging.
	StackTrace string

	isRetryable bool
	isSkippable bool
}

// NewBatchError creates a BatchError.
//
// Parameters:
//
//	module: The module where the error occurred.
//	message: The error message.
//	originalErr: The cause to wrap, may be nil.
//	isSkippable: Whether a skip policy may skip the failed item.
//	isRetryable: Whether a retry policy may retry the failed operation.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  captureStack(),
		isRetryable: isRetryable,
		isSkippable: isSkippable,
	}
}

// NewBatchErrorf creates a BatchError with a formatted message.
// Trailing arguments are inspected from the end in the order
// [originalErr error], [isRetryable bool], [isSkippable bool]; the rest feed fmt.Sprintf.
//
//	NewBatchErrorf("reader", "bad line %d", 7, true, false, err) // skippable, not retryable, wraps err
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	var isRetryable, isSkippable bool
	args := a

	if n := len(args); n > 0 {
		if err, ok := args[n-1].(error); ok {
			originalErr = err
			args = args[:n-1]
		}
	}
	if n := len(args); n > 0 {
		if b, ok := args[n-1].(bool); ok {
			isRetryable = b
			args = args[:n-1]
		}
	}
	if n := len(args); n > 0 {
		if b, ok := args[n-1].(bool); ok {
			isSkippable = b
			args = args[:n-1]
		}
	}

	be := NewBatchError(module, fmt.Sprintf(format, args...), originalErr, isSkippable, isRetryable)
	return be
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Is / errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// classified is implemented by BatchError and every error embedding it.
type classified interface {
	IsRetryable() bool
	IsSkippable() bool
}

// IsBatchError reports whether err or any error in its chain is a BatchError.
func IsBatchError(err error) bool {
	var c classified
	return errors.As(err, &c)
}

// IsTemporary reports whether err looks transient. A classified error decides through its
// retryable flag; otherwise network timeouts and deadline expiry count as temporary.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var c classified
	if errors.As(err, &c) {
		return c.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "connection refused")
}

// IsFatal reports whether err can be neither retried nor skipped.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var c classified
	if errors.As(err, &c) {
		return !c.IsRetryable() && !c.IsSkippable()
	}
	return false
}

// IsErrorOfType checks err against a configured type name. The name may be a registered
// name (compared with errors.Is), a Go type name such as "*net.OpError" or
// "exception.ValidationError", or a substring of an error message in the chain.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil || errorTypeName == "" {
		return false
	}

	registryMutex.RLock()
	target, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, target) {
		return true
	}

	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if typ := reflect.TypeOf(cur); typ != nil {
			if typ.String() == errorTypeName || (typ.Kind() == reflect.Ptr && typ.Elem().String() == errorTypeName) {
				return true
			}
		}
		if strings.Contains(cur.Error(), errorTypeName) {
			return true
		}
	}
	return false
}

// OptimisticLockingFailureException is the registered name of ErrOptimisticLockingFailure.
const OptimisticLockingFailureException = "OptimisticLockingFailureException"

// ErrOptimisticLockingFailure is returned when a record was modified concurrently.
var ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailureException)

// NewOptimisticLockingFailureException creates a non-retryable, non-skippable BatchError
// wrapping ErrOptimisticLockingFailure (joined with originalErr when given).
func NewOptimisticLockingFailureException(module, message string, originalErr error) *BatchError {
	cause := ErrOptimisticLockingFailure
	if originalErr != nil {
		cause = errors.Join(ErrOptimisticLockingFailure, originalErr)
	}
	return NewBatchError(module, message, cause, false, false)
}

// IsOptimisticLockingFailure reports whether err is caused by an optimistic locking failure.
func IsOptimisticLockingFailure(err error) bool {
	return errors.Is(err, ErrOptimisticLockingFailure)
}

// ExtractErrorMessage returns the Message of a BatchError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if be, ok := AsBatchError(err); ok {
		return be.Message
	}
	return err.Error()
}

// carrier is implemented by BatchError and promoted to every error type embedding it.
type carrier interface {
	batchError() *BatchError
}

func (e *BatchError) batchError() *BatchError { return e }

// AsBatchError finds the first BatchError in err's chain, including one embedded in a
// typed error such as ValidationError.
func AsBatchError(err error) (*BatchError, bool) {
	var c carrier
	if errors.As(err, &c) {
		return c.batchError(), true
	}
	return nil, false
}

func init() {
	RegisterErrorType(OptimisticLockingFailureException, ErrOptimisticLockingFailure)
	RegisterErrorType("io.EOF", io.EOF)
	RegisterErrorType("io.ErrUnexpectedEOF", io.ErrUnexpectedEOF)
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}
