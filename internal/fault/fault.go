// Package fault defines the error classes shared by the environment-switch
// machinery.
//
// A configuration error means the loaded module set is internally
// inconsistent or declares something the core cannot satisfy. It aborts the
// switch in progress. Callers detect it with errors.Is(err, ErrConfiguration).
package fault

import (
	"errors"
	"fmt"
)

// ErrConfiguration marks a fatal configuration error.
var ErrConfiguration = errors.New("configuration error")

// Configuration formats a fatal configuration error. The message is prefixed
// with ErrConfiguration and any %w verbs in format are preserved.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfiguration}, args...)...)
}

// IsConfiguration reports whether err is a fatal configuration error.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
