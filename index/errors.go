package index

import (
	"errors"
	"fmt"
)

// ErrTimeout is the sentinel Error.Cause wraps when a request exceeds its
// connect/total timeout budget (spec.md §5).
var ErrTimeout = errors.New("index: request timed out")

// Error is IndexError from spec.md §7: a recoverable, per-package failure
// naming the package (when known), the version (when known) and the
// underlying cause.
type Error struct {
	Name    string
	Version string
	Cause   error
}

func (e *Error) Error() string {
	switch {
	case e.Name != "" && e.Version != "":
		return fmt.Sprintf("index: %s@%s: %v", e.Name, e.Version, e.Cause)
	case e.Name != "":
		return fmt.Sprintf("index: %s: %v", e.Name, e.Cause)
	default:
		return fmt.Sprintf("index: %v", e.Cause)
	}
}

func (e *Error) Unwrap() error { return e.Cause }

// Timeout reports whether the error was caused by a request timeout.
func (e *Error) Timeout() bool { return errors.Is(e.Cause, ErrTimeout) }
