package config

import (
	"os"
)

// EnvironmentExpander expands environment variable placeholders within raw
// configuration bytes before they are parsed.
type EnvironmentExpander interface {
	// Expand replaces ${VAR} or $VAR placeholders in the input with the value of
	// the corresponding environment variable.
	Expand(input []byte) ([]byte, error)
}

// OsEnvironmentExpander implements EnvironmentExpander using os.ExpandEnv.
type OsEnvironmentExpander struct{}

// NewOsEnvironmentExpander creates a new OsEnvironmentExpander.
func NewOsEnvironmentExpander() *OsEnvironmentExpander {
	return &OsEnvironmentExpander{}
}

// Expand uses os.ExpandEnv to expand placeholders. Unset variables expand to
// the empty string; the returned error is always nil.
func (e *OsEnvironmentExpander) Expand(input []byte) ([]byte, error) {
	return []byte(os.ExpandEnv(string(input))), nil
}

var _ EnvironmentExpander = (*OsEnvironmentExpander)(nil)
