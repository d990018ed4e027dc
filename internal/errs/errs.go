// Package errs defines the error categories shared by the analytics
// packages. Callers classify failures with errors.Is against the four
// sentinels.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks invalid constructor arguments.
	ErrConfig = errors.New("configuration error")
	// ErrSchema marks a referenced column or value missing from the data.
	ErrSchema = errors.New("schema error")
	// ErrState marks an operation called on an unfitted estimator.
	ErrState = errors.New("state error")
	// ErrValue marks an invalid runtime argument or degenerate input.
	ErrValue = errors.New("value error")
)

func Config(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}

func Schema(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSchema, fmt.Sprintf(format, args...))
}

func State(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}

func Value(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValue, fmt.Sprintf(format, args...))
}
