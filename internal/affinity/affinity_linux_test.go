//go:build linux

package affinity

import (
	"errors"
	"os/exec"
	"runtime"
	"testing"

	"golang.org/x/sys/unix"
	"k8s.io/utils/cpuset"
)

func currentMask(t *testing.T) unix.CPUSet {
	t.Helper()
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		t.Fatalf("sched_getaffinity: %v", err)
	}
	return set
}

func TestBindSelfIsIdempotent(t *testing.T) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	original := currentMask(t)
	defer unix.SchedSetaffinity(0, &original)

	// Pick one CPU we are allowed to run on.
	target := -1
	for cpu := 0; cpu < 1024; cpu++ {
		if original.IsSet(cpu) {
			target = cpu
			break
		}
	}
	if target < 0 {
		t.Fatal("no allowed CPU found")
	}

	setter := NewSetter()
	mask := cpuset.New(target)
	for i := 0; i < 2; i++ {
		if err := setter.BindSelf(mask); err != nil {
			t.Fatalf("BindSelf attempt %d: %v", i, err)
		}
		got := currentMask(t)
		if !got.IsSet(target) || got.Count() != 1 {
			t.Fatalf("attempt %d: affinity mask has %d cpus", i, got.Count())
		}
	}
}

func TestBindRejectsEmptyMask(t *testing.T) {
	setter := NewSetter()
	if err := setter.Bind(0, cpuset.New()); err == nil {
		t.Fatal("expected error for empty mask")
	}
}

func TestBindVanishedContext(t *testing.T) {
	// A reaped child is guaranteed dead; its pid is fresh enough that
	// recycling within the test is not a realistic concern.
	cmd := exec.Command("true")
	if err := cmd.Run(); err != nil {
		t.Fatalf("run true: %v", err)
	}
	pid := cmd.Process.Pid

	setter := NewSetter()
	err := setter.Bind(pid, cpuset.New(0))
	if !errors.Is(err, ErrVanished) {
		t.Fatalf("expected ErrVanished, got %v", err)
	}
}
