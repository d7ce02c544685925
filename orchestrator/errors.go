package orchestrator

import "fmt"

// AlreadyPresentError is returned by Add when the named dependency is
// already declared in the manifest (spec.md §4.9: "reject if already
// present").
type AlreadyPresentError struct {
	Name string
}

func (e *AlreadyPresentError) Error() string {
	return fmt.Sprintf("orchestrator: %s is already a dependency", e.Name)
}

// NotPresentError is returned by Remove when the named dependency is not
// declared in the manifest.
type NotPresentError struct {
	Name string
}

func (e *NotPresentError) Error() string {
	return fmt.Sprintf("orchestrator: %s is not a dependency", e.Name)
}
