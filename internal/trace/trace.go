// Package trace abstracts the OS debug/trace control used to observe
// thread and process creation in a target command. One implementation
// exists per supported OS; everything above this interface is
// OS-agnostic.
package trace

import "errors"

// ErrUnsupported is returned by Attach on platforms without a trace
// implementation.
var ErrUnsupported = errors.New("trace: not supported on this platform")

// EventType classifies trace events delivered by WaitEvent.
type EventType int

const (
	// EventSpawn reports a newly created thread or child process. The
	// new context is stopped at its creation point until resumed.
	EventSpawn EventType = iota
	// EventStop reports a signal-delivery or group stop of a traced
	// context. The context stays stopped until resumed.
	EventStop
	// EventExit reports that a traced context exited.
	EventExit
)

// ContextKind distinguishes threads from processes.
type ContextKind int

const (
	Thread ContextKind = iota
	Process
)

func (k ContextKind) String() string {
	if k == Thread {
		return "thread"
	}
	return "process"
}

// Event is one occurrence delivered by the trace subsystem. Delivery
// order is authoritative: it defines creation order for contexts whose
// relative order the kernel leaves undefined.
type Event struct {
	Type EventType
	// Pid is the context the event concerns.
	Pid int
	// NewPid and NewKind describe the created context for EventSpawn.
	NewPid  int
	NewKind ContextKind
	// Sig is the pending signal for EventStop, to be forwarded on
	// resume. Zero suppresses delivery.
	Sig int
	// FirstStop marks the initial stop of a context reported earlier by
	// an EventSpawn. The pending signal must be suppressed when
	// resuming, or the new context stays stopped.
	FirstStop bool
	// ExitStatus is the exit code for EventExit.
	ExitStatus int
}

// Tracer is the trace-control capability. All calls after Attach must
// be made from the goroutine that called Attach: trace requests are
// only honored by the kernel when issued from the tracing task.
type Tracer interface {
	// Attach starts argv under trace control, stopped before its first
	// instruction, and returns its pid.
	Attach(argv []string) (int, error)

	// WaitEvent blocks until the next trace event. There is no timeout;
	// the target's events are the only liveness signal.
	WaitEvent() (Event, error)

	// Resume lets a stopped context continue, delivering sig to it
	// (zero for none).
	Resume(pid int, sig int) error

	// Detach releases trace control of the whole target tree. Safe to
	// call after the target exited.
	Detach() error
}
