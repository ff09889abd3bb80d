package topology

import (
	"fmt"
	"sort"
	"strings"

	"k8s.io/utils/cpuset"
)

// Kind is a class of hardware locality object.
type Kind string

const (
	PU       Kind = "pu"
	Core     Kind = "core"
	L3       Kind = "l3"
	Package  Kind = "package"
	NUMANode Kind = "numa"
)

// ParseKind maps user input to a Kind. Common aliases are accepted.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pu", "cpu", "thread":
		return PU, nil
	case "core":
		return Core, nil
	case "l3", "cache", "l3cache":
		return L3, nil
	case "package", "socket":
		return Package, nil
	case "numa", "node", "numanode":
		return NUMANode, nil
	}
	return "", fmt.Errorf("unknown topology kind %q", s)
}

// Resource is one locality object with its CPU affinity mask. Immutable
// once enumerated.
type Resource struct {
	Kind  Kind
	Index int           // position in the enumeration order of its kind
	CPUs  cpuset.CPUSet // logical CPUs covered by this object
}

func (r Resource) String() string {
	return fmt.Sprintf("%s:%d cpuset=%s", r.Kind, r.Index, r.CPUs.String())
}

// Topology holds every enumerated locality object of the node, grouped
// by kind, each group in a stable index order.
type Topology struct {
	resources map[Kind][]Resource
}

// Resources returns all objects of the given kind in enumeration order.
// The returned slice must not be modified.
func (t *Topology) Resources(kind Kind) []Resource {
	return t.resources[kind]
}

// Kinds returns the kinds present on this node.
func (t *Topology) Kinds() []Kind {
	kinds := make([]Kind, 0, len(t.resources))
	for k := range t.resources {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// build assembles resources from per-object cpusets keyed by the raw IDs
// reported by lscpu. Indices are reassigned in sorted key order so the
// enumeration is stable across runs.
func build(groups map[Kind]map[groupKey]cpuset.CPUSet) *Topology {
	t := &Topology{resources: make(map[Kind][]Resource)}
	for kind, sets := range groups {
		keys := make([]groupKey, 0, len(sets))
		for k := range sets {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].major != keys[j].major {
				return keys[i].major < keys[j].major
			}
			return keys[i].minor < keys[j].minor
		})
		rs := make([]Resource, 0, len(keys))
		for i, k := range keys {
			rs = append(rs, Resource{Kind: kind, Index: i, CPUs: sets[k]})
		}
		t.resources[kind] = rs
	}
	return t
}

// groupKey identifies one lscpu object. Core IDs are only unique within
// a socket on some machines, hence the two-level key.
type groupKey struct {
	major int
	minor int
}
