package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxLoggerAdapter routes fx lifecycle events into the batch logger.
// Container plumbing is logged at DEBUG, failures at ERROR.
type FxLoggerAdapter struct{}

// NewFxLoggerAdapter creates a new instance of FxLoggerAdapter.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxLoggerAdapter{}
}

// LogEvent logs events from Fx.
func (l *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		Debugf("OnStart hook executing: %s", shortFuncName(e.FunctionName))
	case *fxevent.OnStartExecuted:
		if e.Err != nil {
			Errorf("OnStart hook failed: %s, error: %v", shortFuncName(e.FunctionName), e.Err)
			return
		}
		Debugf("OnStart hook executed: %s (%s)", shortFuncName(e.FunctionName), e.Runtime)
	case *fxevent.OnStopExecuting:
		Debugf("OnStop hook executing: %s", shortFuncName(e.FunctionName))
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			Errorf("OnStop hook failed: %s, error: %v", shortFuncName(e.FunctionName), e.Err)
			return
		}
		Debugf("OnStop hook executed: %s (%s)", shortFuncName(e.FunctionName), e.Runtime)
	case *fxevent.Supplied:
		if e.Err != nil {
			Errorf("Supply failed for %s: %v", e.TypeName, e.Err)
			return
		}
		Debugf("Supplied: %s", e.TypeName)
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("Provide failed for %s: %v", shortFuncName(e.ConstructorName), e.Err)
			return
		}
		for _, name := range e.OutputTypeNames {
			Debugf("Provided: %s <= %s", name, shortFuncName(e.ConstructorName))
		}
	case *fxevent.Decorated:
		if e.Err != nil {
			Errorf("Decorate failed for %s: %v", shortFuncName(e.DecoratorName), e.Err)
		}
	case *fxevent.Invoking:
		Debugf("Invoking: %s", shortFuncName(e.FunctionName))
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("Invoke failed: %s, error: %v", shortFuncName(e.FunctionName), e.Err)
		}
	case *fxevent.Stopping:
		Infof("Received signal %s, stopping application.", strings.ToUpper(e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			Errorf("Stop failed: %v", e.Err)
		}
	case *fxevent.RollingBack:
		Errorf("Start failed, rolling back: %v", e.StartErr)
	case *fxevent.RolledBack:
		if e.Err != nil {
			Errorf("Rollback failed: %v", e.Err)
		}
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("Start failed: %v", e.Err)
			return
		}
		Debugf("Application started.")
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("Logger initialization failed: %v", e.Err)
			return
		}
		Debugf("Fx logger initialized: %s", shortFuncName(e.ConstructorName))
	}
}

// shortFuncName strips the module path and anonymous-function suffixes from an fx function name,
// e.g. "github.com/x/y/pkg.NewThing.func1" becomes "pkg.NewThing".
func shortFuncName(funcName string) string {
	if idx := strings.Index(funcName, ".func"); idx != -1 {
		funcName = funcName[:idx]
	}
	if idx := strings.LastIndex(funcName, "/"); idx != -1 {
		funcName = funcName[idx+1:]
	}
	return funcName
}
