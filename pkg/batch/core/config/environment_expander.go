package config

import (
	"os"
	"regexp"
)

// EnvironmentExpander provides functionality to expand environment variable placeholders
// within an input byte slice.
type EnvironmentExpander interface {
	// Expand takes a byte slice as input, expands any environment variable placeholders
	// (e.g., ${VAR} or $VAR) within it, and returns the expanded byte slice.
	//
	// Parameters:
	//   input: The byte slice containing data with potential environment variable placeholders.
	//
	// Returns:
	//   The byte slice with placeholders expanded, and an error if the expansion process fails.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander is an implementation of the EnvironmentExpander interface
// that uses Go's standard library `os.ExpandEnv` function to expand environment variables.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates and returns a new instance of OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand replaces ${VAR} placeholders with the value of the environment variable VAR.
// ${VAR:-default} uses default when VAR is unset or empty. A bare $ is left untouched so
// cron descriptors and passwords survive expansion.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return placeholder.ReplaceAllFunc(input, func(m []byte) []byte {
		groups := placeholder.FindSubmatch(m)
		name := string(groups[1])
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return []byte(v)
		}
		if len(groups[2]) > 0 {
			return groups[3]
		}
		return nil
	}), nil
}

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)
