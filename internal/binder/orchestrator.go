package binder

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/NicolasDenoyelle/starbind/internal/affinity"
	"github.com/NicolasDenoyelle/starbind/internal/cohort"
	"github.com/NicolasDenoyelle/starbind/internal/config"
	"github.com/NicolasDenoyelle/starbind/internal/logging"
	"github.com/NicolasDenoyelle/starbind/internal/trace"

	"github.com/sirupsen/logrus"
)

// Orchestrator selects a binding strategy from the declared application
// model, drives it to completion and returns the final assignments.
type Orchestrator struct {
	setter    affinity.Setter
	newTracer func() trace.Tracer
	ticket    *cohort.TicketCounter
	logger    logrus.FieldLogger
}

// New wires an orchestrator. counterFile is the shared ticket counter
// path used by cohort mode when no launcher rank is available.
func New(counterFile string) *Orchestrator {
	return &Orchestrator{
		setter:    affinity.NewSetter(),
		newTracer: trace.New,
		ticket:    &cohort.TicketCounter{Path: counterFile},
		logger:    logging.GetLogger(),
	}
}

// Run binds the threads and processes of argv according to method and
// the resource sequence. It returns the collected assignments; on a
// fatal mid-run error the report holds the bindings applied so far.
func (o *Orchestrator) Run(ctx context.Context, method config.Method, seq *Sequence, argv []string) (*Report, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("no target command")
	}

	method = o.resolve(method, argv)
	o.logger.WithFields(logrus.Fields{
		"method":    method,
		"resources": seq.Len(),
	}).Info("Selected binding method")

	switch method {
	case config.MethodOpenMP:
		return o.runCooperative(ctx, seq, argv)
	case config.MethodMPI:
		return o.runCohort(ctx, seq, argv)
	case config.MethodPtrace:
		return o.runTrace(ctx, seq, argv, 0)
	}
	return nil, fmt.Errorf("unknown binding method %q", method)
}

// resolve implements method auto-detection: a launcher-provided local
// rank wins, then an OpenMP runtime in the target binary, then ptrace.
func (o *Orchestrator) resolve(method config.Method, argv []string) config.Method {
	if method != config.MethodAuto {
		return method
	}
	if cohort.InLaunchedCohort() {
		return config.MethodMPI
	}
	if IsOpenMPApplication(argv[0]) {
		return config.MethodOpenMP
	}
	return config.MethodPtrace
}

// runCooperative starts the target with OMP_PLACES describing the
// sequence and lets the runtime place its own threads. The report lists
// the anticipated assignment per thread index.
func (o *Orchestrator) runCooperative(ctx context.Context, seq *Sequence, argv []string) (*Report, error) {
	places := OMPPlaces(seq)
	o.logger.WithField("omp_places", places).Info("Exporting placement hint")

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "OMP_PLACES="+places)

	if err := cmd.Start(); err != nil {
		return nil, &AttachError{Err: err}
	}
	report := PlannedReport(seq, seq.Len())
	if err := cmd.Wait(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return report, fmt.Errorf("target failed: %w", err)
		}
	}
	report.ExitStatus = cmd.ProcessState.ExitCode()
	return report, nil
}

// runCohort is one rank of N independent binder instances started by an
// external launcher. The instance first learns its own offset into the
// sequence, then traces its target like any other instance, shifting
// every index by the offset.
func (o *Orchestrator) runCohort(ctx context.Context, seq *Sequence, argv []string) (*Report, error) {
	offset, err := o.cohortOffset()
	if err != nil {
		return nil, err
	}
	o.logger.WithField("offset", offset).Info("Cohort offset acquired")
	return o.runTrace(ctx, seq, argv, offset)
}

func (o *Orchestrator) cohortOffset() (int, error) {
	if rank, ok := cohort.LocalRank(); ok {
		return rank, nil
	}
	ticket, err := o.ticket.Next()
	if err != nil {
		return 0, &AllocatorError{Err: err}
	}
	return ticket, nil
}

func (o *Orchestrator) runTrace(ctx context.Context, seq *Sequence, argv []string, offset int) (*Report, error) {
	session := &traceSession{
		tracer: o.newTracer(),
		setter: o.setter,
		seq:    seq,
		offset: offset,
		logger: o.logger,
	}
	return session.run(ctx, argv)
}
