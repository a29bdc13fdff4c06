// Package skip defines the item skip policy consulted by chunk-oriented steps.
package skip

import (
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

// Classifier reports whether err may be skipped.
type Classifier func(err error) bool

// ByName classifies errors by registered name, Go type name or message fragment.
// An error flagged skippable by its BatchError always matches.
func ByName(names ...string) Classifier {
	return func(err error) bool {
		if be, ok := exception.AsBatchError(err); ok && be.IsSkippable() {
			return true
		}
		for _, name := range names {
			if exception.IsErrorOfType(err, name) {
				return true
			}
		}
		return false
	}
}

// Policy decides whether a failed item is dropped instead of failing the step.
type Policy interface {
	// ShouldSkip reports whether err may be skipped given skipCount items already skipped
	// by the step.
	ShouldSkip(err error, skipCount int) bool
}

type neverSkip struct{}

func (neverSkip) ShouldSkip(error, int) bool { return false }

// NeverSkip is the default policy: every item failure fails the step.
var NeverSkip Policy = neverSkip{}

// IsNever reports whether p is NeverSkip.
func IsNever(p Policy) bool {
	_, ok := p.(neverSkip)
	return ok
}

// LimitPolicy skips classified errors while fewer than limit items were skipped.
type LimitPolicy struct {
	limit      int
	classifier Classifier
}

// NewLimitPolicy creates a LimitPolicy. A limit of 0 never skips; a nil classifier accepts
// errors flagged skippable.
func NewLimitPolicy(limit int, classifier Classifier) *LimitPolicy {
	if classifier == nil {
		classifier = ByName()
	}
	return &LimitPolicy{limit: limit, classifier: classifier}
}

func (p *LimitPolicy) ShouldSkip(err error, skipCount int) bool {
	if err == nil || skipCount >= p.limit {
		return false
	}
	return p.classifier(err)
}

// Limit returns the configured skip limit.
func (p *LimitPolicy) Limit() int {
	return p.limit
}

var _ Policy = (*LimitPolicy)(nil)
