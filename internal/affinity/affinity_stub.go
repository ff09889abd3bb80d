//go:build !linux

package affinity

import (
	"errors"

	"k8s.io/utils/cpuset"
)

var errUnsupported = errors.New("affinity: not supported on this platform")

type platformSetter struct{}

func (platformSetter) Bind(id int, cpus cpuset.CPUSet) error {
	return errUnsupported
}

func (platformSetter) BindSelf(cpus cpuset.CPUSet) error {
	return errUnsupported
}
