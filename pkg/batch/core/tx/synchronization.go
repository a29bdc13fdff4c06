package tx

import (
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Synchronizations collects the commit and rollback callbacks of one transaction.
// Transaction implementations embed it to satisfy Tx.BeforeCommit and Tx.AfterRollback.
type Synchronizations struct {
	mu            sync.Mutex
	beforeCommit  []func() error
	afterRollback []func()
}

// BeforeCommit registers fn to run before the commit.
func (s *Synchronizations) BeforeCommit(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCommit = append(s.beforeCommit, fn)
}

// AfterRollback registers fn to run after a rollback.
func (s *Synchronizations) AfterRollback(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.afterRollback = append(s.afterRollback, fn)
}

// TriggerBeforeCommit runs every before-commit callback in registration order. All
// callbacks run; a single error is returned as is, several are combined.
func (s *Synchronizations) TriggerBeforeCommit() error {
	s.mu.Lock()
	fns := s.beforeCommit
	s.beforeCommit = nil
	s.mu.Unlock()

	var errs []error
	for _, fn := range fns {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return multierror.Append(nil, errs...)
}

// TriggerAfterRollback runs the rollback callbacks and discards pending commit callbacks.
func (s *Synchronizations) TriggerAfterRollback() {
	s.mu.Lock()
	fns := s.afterRollback
	s.afterRollback = nil
	s.beforeCommit = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Clear drops all registered callbacks. Implementations call it after a successful commit.
func (s *Synchronizations) Clear() {
	s.mu.Lock()
	s.beforeCommit = nil
	s.afterRollback = nil
	s.mu.Unlock()
}
