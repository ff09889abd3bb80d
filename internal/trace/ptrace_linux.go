//go:build linux

package trace

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/NicolasDenoyelle/starbind/internal/logging"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// ptraceTracer drives a target through ptrace(2). Creation of threads
// and child processes is intercepted with PTRACE_O_TRACECLONE,
// PTRACE_O_TRACEFORK and PTRACE_O_TRACEVFORK; the options are inherited
// by every traced descendant, so the whole process tree is covered.
type ptraceTracer struct {
	cmd  *exec.Cmd
	root int
	// newborn tracks contexts announced by a spawn event whose initial
	// SIGSTOP has not been seen yet.
	newborn map[int]bool
}

// New returns the Linux trace implementation.
func New() Tracer {
	return &ptraceTracer{newborn: make(map[int]bool)}
}

func (t *ptraceTracer) Attach(argv []string) (int, error) {
	if len(argv) == 0 {
		return 0, fmt.Errorf("empty target command")
	}

	// Every later ptrace request must come from this thread.
	runtime.LockOSThread()

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start target: %w", err)
	}
	pid := cmd.Process.Pid

	// The target raises SIGTRAP when its exec completes and stays
	// stopped until we resume it.
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		_ = cmd.Process.Kill()
		return 0, fmt.Errorf("wait for exec stop of %d: %w", pid, err)
	}
	if !ws.Stopped() {
		return 0, fmt.Errorf("target %d exited before trace options could be set", pid)
	}

	opts := unix.PTRACE_O_TRACECLONE | unix.PTRACE_O_TRACEFORK | unix.PTRACE_O_TRACEVFORK
	if err := unix.PtraceSetOptions(pid, opts); err != nil {
		_ = cmd.Process.Kill()
		return 0, fmt.Errorf("ptrace set options on %d: %w", pid, err)
	}

	t.cmd = cmd
	t.root = pid
	return pid, nil
}

func (t *ptraceTracer) WaitEvent() (Event, error) {
	logger := logging.GetTraceLogger()
	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WALL, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return Event{}, fmt.Errorf("wait4: %w", err)
		}

		switch {
		case ws.Exited():
			return Event{Type: EventExit, Pid: pid, ExitStatus: ws.ExitStatus()}, nil
		case ws.Signaled():
			return Event{Type: EventExit, Pid: pid, ExitStatus: 128 + int(ws.Signal())}, nil
		case ws.Stopped():
			sig := int(ws.StopSignal())
			if ws.StopSignal() == unix.SIGTRAP {
				switch ws.TrapCause() {
				case unix.PTRACE_EVENT_CLONE:
					return t.spawnEvent(pid, Thread)
				case unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_VFORK:
					return t.spawnEvent(pid, Process)
				}
				// Trap without a creation event (e.g. an exec in a
				// child). Not a real signal, do not forward it.
				sig = 0
			}
			if t.newborn[pid] && ws.StopSignal() == unix.SIGSTOP {
				delete(t.newborn, pid)
				return Event{Type: EventStop, Pid: pid, FirstStop: true}, nil
			}
			logger.WithFields(logrus.Fields{
				"pid":    pid,
				"signal": sig,
			}).Debug("signal-delivery stop")
			return Event{Type: EventStop, Pid: pid, Sig: sig}, nil
		}
	}
}

func (t *ptraceTracer) spawnEvent(pid int, kind ContextKind) (Event, error) {
	msg, err := unix.PtraceGetEventMsg(pid)
	if err != nil {
		// Losing the new pid means losing the ability to bind it. The
		// caller decides whether to abort; report what we know.
		return Event{}, fmt.Errorf("ptrace event message from %d: %w", pid, err)
	}
	newPid := int(msg)
	t.newborn[newPid] = true
	logging.GetTraceLogger().WithFields(logrus.Fields{
		"parent":  pid,
		"new_pid": newPid,
		"kind":    kind.String(),
	}).Debug("creation event")
	return Event{Type: EventSpawn, Pid: pid, NewPid: newPid, NewKind: kind}, nil
}

func (t *ptraceTracer) Resume(pid int, sig int) error {
	if err := unix.PtraceCont(pid, sig); err != nil {
		// The context can exit between the event and the resume.
		if err == unix.ESRCH {
			return nil
		}
		return fmt.Errorf("ptrace cont %d: %w", pid, err)
	}
	return nil
}

func (t *ptraceTracer) Detach() error {
	if t.root == 0 {
		return nil
	}
	// Best effort: the target tree has usually exited already, and the
	// kernel drops trace control of anything left when we exit.
	_ = unix.PtraceDetach(t.root)
	t.root = 0
	return nil
}
