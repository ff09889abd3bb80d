package binder

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/NicolasDenoyelle/starbind/internal/affinity"

	"k8s.io/utils/cpuset"
)

// PlanPlaces computes one affinity mask per anticipated thread index,
// 0..count-1, by indexing the sequence modulo its length. Nothing is
// bound; the masks are handed to a runtime hint (OMP_PLACES) or applied
// cooperatively by each worker through SelfBind.
func PlanPlaces(seq *Sequence, count int) []cpuset.CPUSet {
	places := make([]cpuset.CPUSet, count)
	for i := 0; i < count; i++ {
		places[i] = seq.At(i).CPUs
	}
	return places
}

// PlannedReport lists the anticipated assignment for each thread index.
// Context IDs are unknown before the runtime spawns its workers.
func PlannedReport(seq *Sequence, count int) *Report {
	report := &Report{}
	for i := 0; i < count; i++ {
		report.record(Assignment{
			Context:  Context{Kind: ThreadContext, ID: -1, Rank: i},
			Resource: seq.At(i),
		})
	}
	return report
}

// OMPPlaces formats the OMP_PLACES value describing the sequence: one
// place per resource, each listing the logical CPUs of its mask.
func OMPPlaces(seq *Sequence) string {
	places := make([]string, 0, seq.Len())
	for _, r := range seq.Resources() {
		cpus := make([]string, 0, r.CPUs.Size())
		for _, cpu := range r.CPUs.List() {
			cpus = append(cpus, fmt.Sprintf("%d", cpu))
		}
		places = append(places, "{"+strings.Join(cpus, ",")+"}")
	}
	return strings.Join(places, ",")
}

// SelfBind pins the calling worker to its planned place. Runtimes
// without a placement hint call this once per worker after start, each
// worker binding itself.
func SelfBind(setter affinity.Setter, seq *Sequence, index int) error {
	return setter.BindSelf(seq.At(index).CPUs)
}

var ompLibPattern = regexp.MustCompile(`(^lib[^/]*omp[^/]*$)|(openmp)`)

// IsOpenMPApplication reports whether the binary at path links an
// OpenMP runtime, judged from the library names ldd prints.
func IsOpenMPApplication(path string) bool {
	out, err := exec.Command("ldd", path).Output()
	if err != nil {
		return false
	}
	return linksOpenMP(out)
}

func linksOpenMP(lddOutput []byte) bool {
	for _, line := range strings.Split(string(lddOutput), "\n") {
		name, _, found := strings.Cut(strings.TrimSpace(line), ".so")
		if !found {
			continue
		}
		if ompLibPattern.MatchString(strings.ToLower(name)) {
			return true
		}
	}
	return false
}
