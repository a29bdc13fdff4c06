// Package validator provides job parameters validators.
package validator

import (
	"fmt"
	"sort"
	"strings"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

// CompositeValidator runs its validators in order and stops at the first rejection.
type CompositeValidator struct {
	validators []port.JobParametersValidator
}

// NewCompositeValidator creates a CompositeValidator.
func NewCompositeValidator(validators ...port.JobParametersValidator) *CompositeValidator {
	return &CompositeValidator{validators: validators}
}

// Validate implements port.JobParametersValidator.
func (c *CompositeValidator) Validate(params model.JobParameters) error {
	for _, v := range c.validators {
		if err := v.Validate(params); err != nil {
			return err
		}
	}
	return nil
}

// DefaultValidator checks the presence of required keys. When optional keys are declared,
// any key that is neither required nor optional is rejected.
type DefaultValidator struct {
	required []string
	optional []string
}

// NewDefaultValidator creates a DefaultValidator. A key listed in both sets counts as required.
func NewDefaultValidator(required, optional []string) *DefaultValidator {
	return &DefaultValidator{required: required, optional: optional}
}

// Validate implements port.JobParametersValidator.
func (d *DefaultValidator) Validate(params model.JobParameters) error {
	var missing []string
	for _, key := range d.required {
		if _, ok := params.Params[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return exception.NewValidationError("", fmt.Sprintf("missing required keys %v", missing), nil)
	}
	if len(d.optional) == 0 {
		return nil
	}

	known := make(map[string]bool, len(d.required)+len(d.optional))
	for _, key := range d.required {
		known[key] = true
	}
	for _, key := range d.optional {
		known[key] = true
	}
	var unknown []string
	for key := range params.Params {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return exception.NewValidationError("", fmt.Sprintf("unknown keys %v", unknown), nil)
	}
	return nil
}

// SuffixValidator requires the string parameter key to end with one of the suffixes,
// ignoring case.
type SuffixValidator struct {
	key      string
	suffixes []string
	message  string
}

// SuffixOption configures a SuffixValidator.
type SuffixOption func(*SuffixValidator)

// WithMessage replaces the rejection message.
func WithMessage(message string) SuffixOption {
	return func(s *SuffixValidator) { s.message = message }
}

// NewSuffixValidator creates a SuffixValidator.
func NewSuffixValidator(key string, suffixes []string, opts ...SuffixOption) *SuffixValidator {
	s := &SuffixValidator{key: key, suffixes: suffixes}
	for _, opt := range opts {
		opt(s)
	}
	if s.message == "" {
		s.message = fmt.Sprintf("parameter '%s' must end with one of %v", key, suffixes)
	}
	return s
}

// Validate implements port.JobParametersValidator. A missing or non-string value is rejected.
func (s *SuffixValidator) Validate(params model.JobParameters) error {
	value, ok := params.GetString(s.key)
	if ok {
		lower := strings.ToLower(value)
		for _, suffix := range s.suffixes {
			if strings.HasSuffix(lower, strings.ToLower(suffix)) {
				return nil
			}
		}
	}
	return exception.NewValidationError("", s.message, nil)
}

var (
	_ port.JobParametersValidator = (*CompositeValidator)(nil)
	_ port.JobParametersValidator = (*DefaultValidator)(nil)
	_ port.JobParametersValidator = (*SuffixValidator)(nil)
)
