package binder

import (
	"fmt"

	"github.com/NicolasDenoyelle/starbind/internal/topology"
)

// ContextKind tells threads and processes apart in reports.
type ContextKind string

const (
	ThreadContext  ContextKind = "thread"
	ProcessContext ContextKind = "process"
)

// Context identifies one execution context of the target. The binder
// observes contexts and binds them once; it never owns their lifetime.
type Context struct {
	Kind ContextKind
	// ID is the OS thread or process id. -1 marks an anticipated
	// context whose id is not known yet (static hint planning).
	ID int
	// Rank is the zero-based creation order of the context within this
	// binder instance.
	Rank int
}

func (c Context) String() string {
	if c.ID < 0 {
		return fmt.Sprintf("%s[%d]", c.Kind, c.Rank)
	}
	return fmt.Sprintf("%s %d (rank %d)", c.Kind, c.ID, c.Rank)
}

// Assignment is a finalized (context, resource) pairing. Immutable once
// recorded.
type Assignment struct {
	Context  Context
	Resource topology.Resource
	// Vanished is set when the context exited before the mask was
	// applied. Counted as a successful bind followed by an exit.
	Vanished bool
	// Err records a bind rejected by the OS. The context stayed
	// unbound but the run continued.
	Err error
}

// Report is the outcome of one binder run: every assignment in creation
// order, plus the target's exit status.
type Report struct {
	Assignments []Assignment
	ExitStatus  int
}

func (r *Report) record(a Assignment) {
	r.Assignments = append(r.Assignments, a)
}

// Failed returns the assignments whose bind was rejected.
func (r *Report) Failed() []Assignment {
	var failed []Assignment
	for _, a := range r.Assignments {
		if a.Err != nil {
			failed = append(failed, a)
		}
	}
	return failed
}

// Partial reports whether at least one bind was rejected.
func (r *Report) Partial() bool {
	return len(r.Failed()) > 0
}
