// Package affinity applies CPU affinity masks to live execution
// contexts (OS threads and processes). Platform-specific
// implementations live in separate files guarded by build tags.
package affinity

import (
	"errors"

	"k8s.io/utils/cpuset"
)

// ErrVanished reports that the target context exited before the mask
// could be applied. Callers treat this as a successful bind followed by
// an ordinary exit.
var ErrVanished = errors.New("execution context exited before binding")

// Setter changes the OS-level CPU affinity of execution contexts.
// Binding the same (context, mask) pair twice is equivalent to binding
// it once.
type Setter interface {
	// Bind sets the affinity of the thread or process identified by id
	// to exactly the given mask. An empty mask is a programming error.
	Bind(id int, cpus cpuset.CPUSet) error

	// BindSelf pins the calling OS thread to the given mask. The
	// calling goroutine is locked to its thread for the lifetime of
	// the process.
	BindSelf(cpus cpuset.CPUSet) error
}

// NewSetter returns the setter for the current platform.
func NewSetter() Setter {
	return platformSetter{}
}
