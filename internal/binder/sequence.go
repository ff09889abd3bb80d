package binder

import (
	"fmt"
	"strings"

	"github.com/NicolasDenoyelle/starbind/internal/topology"
)

// Sequence is the ordered, immutable list of locality resources that
// contexts are bound to. Ordering and duplication are entirely the
// caller's (i.e. the permutation's) business.
type Sequence struct {
	resources []topology.Resource
}

// NewSequence copies resources into a Sequence. An empty list is
// rejected: there would be nothing to bind to.
func NewSequence(resources []topology.Resource) (*Sequence, error) {
	if len(resources) == 0 {
		return nil, fmt.Errorf("resource sequence is empty")
	}
	return &Sequence{resources: append([]topology.Resource(nil), resources...)}, nil
}

func (s *Sequence) Len() int {
	return len(s.resources)
}

// At returns the resource for creation index i. Indices beyond the
// sequence length wrap around; running out of resources is policy, not
// an error.
func (s *Sequence) At(i int) topology.Resource {
	return s.resources[i%len(s.resources)]
}

// Resources returns the underlying list in order. Callers must not
// modify it.
func (s *Sequence) Resources() []topology.Resource {
	return s.resources
}

func (s *Sequence) String() string {
	parts := make([]string, len(s.resources))
	for i, r := range s.resources {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
