//go:build linux

package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
	"k8s.io/utils/cpuset"
)

type platformSetter struct{}

func (platformSetter) Bind(id int, cpus cpuset.CPUSet) error {
	set, err := unixCPUSet(cpus)
	if err != nil {
		return err
	}
	if err := unix.SchedSetaffinity(id, set); err != nil {
		if err == unix.ESRCH {
			return fmt.Errorf("context %d: %w", id, ErrVanished)
		}
		return fmt.Errorf("sched_setaffinity(%d, %s): %w", id, cpus.String(), err)
	}
	return nil
}

func (s platformSetter) BindSelf(cpus cpuset.CPUSet) error {
	// The mask applies to the current kernel task, so the goroutine must
	// stay on it.
	runtime.LockOSThread()
	return s.Bind(0, cpus)
}

func unixCPUSet(cpus cpuset.CPUSet) (*unix.CPUSet, error) {
	if cpus.IsEmpty() {
		return nil, fmt.Errorf("empty affinity mask")
	}
	var set unix.CPUSet
	for _, cpu := range cpus.List() {
		set.Set(cpu)
	}
	return &set, nil
}
