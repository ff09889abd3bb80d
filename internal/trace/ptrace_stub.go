//go:build !linux

package trace

type stubTracer struct{}

// New returns a tracer that fails on Attach. Live tracing needs
// ptrace(2) and is only available on Linux.
func New() Tracer {
	return stubTracer{}
}

func (stubTracer) Attach(argv []string) (int, error) { return 0, ErrUnsupported }
func (stubTracer) WaitEvent() (Event, error)         { return Event{}, ErrUnsupported }
func (stubTracer) Resume(pid int, sig int) error     { return ErrUnsupported }
func (stubTracer) Detach() error                     { return nil }
