package topology

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"k8s.io/utils/cpuset"
)

// Discover enumerates the locality objects of the local node using
// lscpu. Offline CPUs are excluded.
func Discover() (*Topology, error) {
	out, err := exec.Command("lscpu", "-p=socket,node,core,cpu,cache", "--online").Output()
	if err != nil {
		return nil, fmt.Errorf("lscpu failed: %w", err)
	}
	return FromLSCPUOutput(out)
}

// FromLSCPUOutput parses the machine-readable output of
// `lscpu -p=socket,node,core,cpu,cache`. The cache column is optional;
// without it no L3 resources are reported.
func FromLSCPUOutput(output []byte) (*Topology, error) {
	groups := map[Kind]map[groupKey]cpuset.CPUSet{
		PU:       make(map[groupKey]cpuset.CPUSet),
		Core:     make(map[groupKey]cpuset.CPUSet),
		L3:       make(map[groupKey]cpuset.CPUSet),
		Package:  make(map[groupKey]cpuset.CPUSet),
		NUMANode: make(map[groupKey]cpuset.CPUSet),
	}

	seen := 0
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 4 {
			continue
		}
		socketID, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse socket ID: %v", err)
		}
		nodeID, err := strconv.Atoi(fields[1])
		if err != nil {
			// Machines without NUMA report an empty node column.
			nodeID = 0
		}
		coreID, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("failed to parse core ID: %v", err)
		}
		cpuID, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("failed to parse cpu ID: %v", err)
		}

		add(groups[PU], groupKey{cpuID, 0}, cpuID)
		add(groups[Core], groupKey{socketID, coreID}, cpuID)
		add(groups[Package], groupKey{socketID, 0}, cpuID)
		add(groups[NUMANode], groupKey{nodeID, 0}, cpuID)
		if len(fields) >= 5 {
			if l3ID, ok := parseL3ID(fields[4]); ok {
				add(groups[L3], groupKey{l3ID, 0}, cpuID)
			}
		}
		seen++
	}

	if seen == 0 {
		return nil, fmt.Errorf("no online CPUs found in lscpu output")
	}
	return build(groups), nil
}

func add(sets map[groupKey]cpuset.CPUSet, key groupKey, cpuID int) {
	sets[key] = sets[key].Union(cpuset.New(cpuID))
}

// parseL3ID extracts the L3 cache ID from an lscpu cache column, which
// lists per-level cache IDs separated by colons with the last level last
// (for example "0:0:0:1").
func parseL3ID(field string) (int, bool) {
	levels := strings.Split(strings.TrimSpace(field), ":")
	id, err := strconv.Atoi(levels[len(levels)-1])
	if err != nil {
		return 0, false
	}
	return id, true
}
