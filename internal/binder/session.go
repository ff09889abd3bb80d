package binder

import (
	"context"
	"errors"
	"os"

	"github.com/NicolasDenoyelle/starbind/internal/affinity"
	"github.com/NicolasDenoyelle/starbind/internal/trace"

	"github.com/sirupsen/logrus"
)

// traceSession binds every context the target creates, in the order the
// trace subsystem delivers creation events, exactly once each. It is
// single-threaded: ordering comes from serializing on trace events, not
// from locks.
type traceSession struct {
	tracer trace.Tracer
	setter affinity.Setter
	seq    *Sequence
	// offset shifts every index into the sequence; non-zero only when
	// this instance is one rank of a cohort.
	offset int
	next   int
	report *Report
	logger logrus.FieldLogger
}

func (s *traceSession) run(ctx context.Context, argv []string) (*Report, error) {
	s.report = &Report{}

	pid, err := s.tracer.Attach(argv)
	if err != nil {
		return nil, &AttachError{Err: err}
	}
	defer s.tracer.Detach()

	// If the binder is told to stop, pass the signal on to the target:
	// once it exits the event loop unwinds and releases trace control.
	if ctx != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				if p, err := os.FindProcess(pid); err == nil {
					_ = p.Signal(os.Interrupt)
				}
			case <-stop:
			}
		}()
	}

	// The initial context consumes index 0 before the target executes
	// its first instruction.
	s.bind(Context{Kind: ProcessContext, ID: pid})
	if err := s.tracer.Resume(pid, 0); err != nil {
		return s.report, &TraceLossError{Err: err}
	}

	for {
		ev, err := s.tracer.WaitEvent()
		if err != nil {
			return s.report, &TraceLossError{Err: err}
		}

		switch ev.Type {
		case trace.EventSpawn:
			kind := ThreadContext
			if ev.NewKind == trace.Process {
				kind = ProcessContext
			}
			// Bind before the new context runs past its creation
			// point; it stays trace-stopped until resumed.
			s.bind(Context{Kind: kind, ID: ev.NewPid})
			if err := s.tracer.Resume(ev.Pid, 0); err != nil {
				return s.report, &TraceLossError{Err: err}
			}

		case trace.EventStop:
			sig := ev.Sig
			if ev.FirstStop {
				sig = 0
			}
			if err := s.tracer.Resume(ev.Pid, sig); err != nil {
				return s.report, &TraceLossError{Err: err}
			}

		case trace.EventExit:
			if ev.Pid == pid {
				s.report.ExitStatus = ev.ExitStatus
				return s.report, nil
			}
			// A bound context exiting is ordinary.
		}
	}
}

// bind assigns the next unused sequence index to ctx and applies the
// mask. A context that exited in the meantime counts as bound; an OS
// rejection is recorded and the run continues.
func (s *traceSession) bind(ctx Context) {
	ctx.Rank = s.next
	s.next++
	resource := s.seq.At(s.offset + ctx.Rank)

	assignment := Assignment{Context: ctx, Resource: resource}
	err := s.setter.Bind(ctx.ID, resource.CPUs)
	switch {
	case err == nil:
		s.logger.WithFields(logrus.Fields{
			"context":  ctx.String(),
			"resource": resource.String(),
		}).Debug("bound context")
	case errors.Is(err, affinity.ErrVanished):
		assignment.Vanished = true
		s.logger.WithField("context", ctx.String()).Info("context exited before binding")
	default:
		assignment.Err = err
		s.logger.WithField("context", ctx.String()).WithError(err).Warn("bind rejected, context left unbound")
	}
	s.report.record(assignment)
}
