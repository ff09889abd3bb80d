package binder

import "fmt"

// AttachError means trace control over the target could not be taken.
// Fatal: no binding can happen without it.
type AttachError struct {
	Err error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("failed to attach to target: %v", e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// TraceLossError means trace control was lost mid-run. Fatal: contexts
// created from now on cannot be observed. Bindings applied so far are
// left in place and reported.
type TraceLossError struct {
	Err error
}

func (e *TraceLossError) Error() string {
	return fmt.Sprintf("trace control lost: %v", e.Err)
}

func (e *TraceLossError) Unwrap() error { return e.Err }

// AllocatorError means the shared ticket counter could not be used.
// Fatal: a wrong-but-silent offset would bind several cohort instances
// to the same resource with no symptom beyond bad performance.
type AllocatorError struct {
	Err error
}

func (e *AllocatorError) Error() string {
	return fmt.Sprintf("cohort index allocation failed: %v", e.Err)
}

func (e *AllocatorError) Unwrap() error { return e.Err }
