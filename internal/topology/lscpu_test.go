package topology

import (
	"testing"

	"k8s.io/utils/cpuset"
)

// Two sockets, two cores each, two hyperthreads per core, one NUMA node
// per socket. Hyperthread siblings are offset by 4 like on most intel
// parts.
const sampleLSCPU = `# The following is the parsable format, which can be fed to other
# programs. Each different item in every column has an unique ID
# starting usually from zero.
# Socket,Node,Core,CPU
0,0,0,0
0,0,0,4
0,0,1,1
0,0,1,5
1,1,2,2
1,1,2,6
1,1,3,3
1,1,3,7
`

func TestFromLSCPUOutputKinds(t *testing.T) {
	topo, err := FromLSCPUOutput([]byte(sampleLSCPU))
	if err != nil {
		t.Fatalf("FromLSCPUOutput: %v", err)
	}

	cases := []struct {
		kind  Kind
		count int
	}{
		{PU, 8},
		{Core, 4},
		{Package, 2},
		{NUMANode, 2},
	}
	for _, tc := range cases {
		if got := len(topo.Resources(tc.kind)); got != tc.count {
			t.Errorf("%s: %d resources, want %d", tc.kind, got, tc.count)
		}
	}
}

func TestFromLSCPUOutputMasks(t *testing.T) {
	topo, err := FromLSCPUOutput([]byte(sampleLSCPU))
	if err != nil {
		t.Fatalf("FromLSCPUOutput: %v", err)
	}

	cores := topo.Resources(Core)
	wantCores := []cpuset.CPUSet{
		cpuset.New(0, 4),
		cpuset.New(1, 5),
		cpuset.New(2, 6),
		cpuset.New(3, 7),
	}
	for i, want := range wantCores {
		if !cores[i].CPUs.Equals(want) {
			t.Errorf("core %d mask %s, want %s", i, cores[i].CPUs.String(), want.String())
		}
		if cores[i].Index != i {
			t.Errorf("core %d has index %d", i, cores[i].Index)
		}
	}

	packages := topo.Resources(Package)
	if !packages[0].CPUs.Equals(cpuset.New(0, 1, 4, 5)) {
		t.Errorf("package 0 mask %s", packages[0].CPUs.String())
	}
	if !packages[1].CPUs.Equals(cpuset.New(2, 3, 6, 7)) {
		t.Errorf("package 1 mask %s", packages[1].CPUs.String())
	}

	pus := topo.Resources(PU)
	for i, pu := range pus {
		if pu.CPUs.Size() != 1 {
			t.Errorf("pu %d mask %s not a single cpu", i, pu.CPUs.String())
		}
	}
	// PUs are ordered by cpu id.
	if !pus[0].CPUs.Equals(cpuset.New(0)) || !pus[7].CPUs.Equals(cpuset.New(7)) {
		t.Error("pus not in cpu id order")
	}
}

func TestFromLSCPUOutputL3Column(t *testing.T) {
	// Same machine with the cache column requested. One L3 per socket;
	// the column lists per-level cache IDs with the last level last.
	out := `# Socket,Node,Core,CPU,L1d:L1i:L2:L3
0,0,0,0,0:0:0:0
0,0,0,4,0:0:0:0
0,0,1,1,1:1:1:0
0,0,1,5,1:1:1:0
1,1,2,2,2:2:2:1
1,1,2,6,2:2:2:1
1,1,3,3,3:3:3:1
1,1,3,7,3:3:3:1
`
	topo, err := FromLSCPUOutput([]byte(out))
	if err != nil {
		t.Fatalf("FromLSCPUOutput: %v", err)
	}

	l3s := topo.Resources(L3)
	if len(l3s) != 2 {
		t.Fatalf("%d l3 caches, want 2", len(l3s))
	}
	if !l3s[0].CPUs.Equals(cpuset.New(0, 1, 4, 5)) {
		t.Errorf("l3 0 mask %s", l3s[0].CPUs.String())
	}
	if !l3s[1].CPUs.Equals(cpuset.New(2, 3, 6, 7)) {
		t.Errorf("l3 1 mask %s", l3s[1].CPUs.String())
	}

	// The extra column must not disturb the other kinds.
	if got := len(topo.Resources(Core)); got != 4 {
		t.Errorf("%d cores, want 4", got)
	}
}

func TestFromLSCPUOutputWithoutCacheColumn(t *testing.T) {
	topo, err := FromLSCPUOutput([]byte(sampleLSCPU))
	if err != nil {
		t.Fatalf("FromLSCPUOutput: %v", err)
	}
	if got := len(topo.Resources(L3)); got != 0 {
		t.Errorf("%d l3 caches without a cache column, want 0", got)
	}
}

func TestFromLSCPUOutputMissingNodeColumn(t *testing.T) {
	// Machines without NUMA leave the node column empty.
	out := "0,,0,0\n0,,0,1\n"
	topo, err := FromLSCPUOutput([]byte(out))
	if err != nil {
		t.Fatalf("FromLSCPUOutput: %v", err)
	}
	nodes := topo.Resources(NUMANode)
	if len(nodes) != 1 {
		t.Fatalf("%d numa nodes, want 1", len(nodes))
	}
	if !nodes[0].CPUs.Equals(cpuset.New(0, 1)) {
		t.Errorf("node mask %s", nodes[0].CPUs.String())
	}
}

func TestFromLSCPUOutputEmpty(t *testing.T) {
	if _, err := FromLSCPUOutput([]byte("# only comments\n")); err == nil {
		t.Fatal("expected error for output without CPUs")
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"pu":     PU,
		"CPU":    PU,
		"core":   Core,
		"l3":     L3,
		"cache":  L3,
		"socket": Package,
		"numa":   NUMANode,
		"node":   NUMANode,
	}
	for input, want := range cases {
		got, err := ParseKind(input)
		if err != nil || got != want {
			t.Errorf("ParseKind(%q) = %v, %v; want %v", input, got, err, want)
		}
	}
	if _, err := ParseKind("gpu"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
