// Package retry defines the item retry policy consulted by chunk-oriented steps.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

// Classifier reports whether err belongs to a class of errors a policy handles.
type Classifier func(err error) bool

// ByName classifies errors by registered name, Go type name or message fragment
// (see exception.IsErrorOfType). An error flagged retryable by its BatchError always matches.
func ByName(names ...string) Classifier {
	return func(err error) bool {
		if be, ok := exception.AsBatchError(err); ok && be.IsRetryable() {
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

// Policy decides whether a failed item operation is attempted again.
type Policy interface {
	// ShouldRetry reports whether err, raised by the attempt-th attempt (starting at 1),
	// may be retried.
	ShouldRetry(err error, attempt int) bool
	// Backoff returns the wait before the next attempt.
	Backoff(attempt int) time.Duration
}

type neverRetry struct{}

func (neverRetry) ShouldRetry(error, int) bool  { return false }
func (neverRetry) Backoff(int) time.Duration { return 0 }

// NeverRetry is the default policy: failures are final.
var NeverRetry Policy = neverRetry{}

// IsNever reports whether p is NeverRetry.
func IsNever(p Policy) bool {
	_, ok := p.(neverRetry)
	return ok
}

// SimplePolicy retries classified errors up to a maximum number of attempts.
type SimplePolicy struct {
	maxAttempts int
	classifier  Classifier
	backoff     *backoff.ExponentialBackOff
}

// Option configures a SimplePolicy.
type Option func(*SimplePolicy)

// WithExponentialBackoff waits initial before the first retry, multiplying the wait by
// multiplier up to max. Without it retries are immediate.
func WithExponentialBackoff(initial time.Duration, multiplier float64, max time.Duration) Option {
	return func(p *SimplePolicy) {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.Multiplier = multiplier
		b.MaxInterval = max
		b.RandomizationFactor = 0
		p.backoff = b
	}
}

// NewSimplePolicy creates a policy allowing maxAttempts attempts in total for errors
// accepted by classifier. A nil classifier accepts errors flagged retryable.
func NewSimplePolicy(maxAttempts int, classifier Classifier, opts ...Option) *SimplePolicy {
	if classifier == nil {
		classifier = ByName()
	}
	p := &SimplePolicy{maxAttempts: maxAttempts, classifier: classifier}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *SimplePolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil || attempt >= p.maxAttempts {
		return false
	}
	return p.classifier(err)
}

// Backoff returns the wait before attempt+1. The first retry resets the sequence.
func (p *SimplePolicy) Backoff(attempt int) time.Duration {
	if p.backoff == nil {
		return 0
	}
	if attempt <= 1 {
		p.backoff.Reset()
	}
	d := p.backoff.NextBackOff()
	if d == backoff.Stop {
		return p.backoff.MaxInterval
	}
	return d
}

// MaxAttempts returns the configured number of attempts.
func (p *SimplePolicy) MaxAttempts() int {
	return p.maxAttempts
}

var _ Policy = (*SimplePolicy)(nil)
