package syncer

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Failure is one per-package entry in a PartialError, naming the package,
// the operation that failed ("install" for the install pipeline, whose
// cause names the failing step such as download or extract; "sync" for a
// task that could not start; "prune") and the underlying cause.
type Failure struct {
	Package   string
	Operation string
	Cause     error
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s: %s", f.Package, f.Operation, f.Cause)
}

// PartialError is SyncError::Partial: sync completed every install task
// but one or more packages failed. The synchronizer always runs every
// task to completion before returning this, matching spec.md §4.7 step 3's
// "aggregated; surfaced ... after all tasks complete".
type PartialError struct {
	Failures []Failure
}

func (e *PartialError) Error() string {
	msg := fmt.Sprintf("sync: %d package(s) failed", len(e.Failures))
	for _, f := range e.Failures {
		msg += "\n  " + f.String()
	}
	return msg
}

// Unwrap exposes the underlying failures as a go-multierror.Error, so
// callers that want errors.Is/errors.As semantics over the individual
// causes (rather than the per-package Failure wrapper) can unwrap through
// it the same way the teacher's registry/storage code surfaces batched
// blob-deletion errors.
func (e *PartialError) Unwrap() error {
	merr := &multierror.Error{}
	for _, f := range e.Failures {
		merr = multierror.Append(merr, f)
	}
	return merr.ErrorOrNil()
}

// Error satisfies the error interface for Failure itself so it can be
// appended directly into a multierror.Error.
func (f Failure) Error() string {
	return f.String()
}

// NoCompatibleArtifactError is ArtifactError::NoCompatibleArtifact.
type NoCompatibleArtifactError struct {
	Package string
}

func (e *NoCompatibleArtifactError) Error() string {
	return fmt.Sprintf("%s: no compatible artifact for this platform", e.Package)
}

// DigestMismatchError is ArtifactError::DigestMismatch.
type DigestMismatchError struct {
	Package  string
	Expected string
	Actual   string
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("%s: digest mismatch: expected %s, got %s", e.Package, e.Expected, e.Actual)
}
