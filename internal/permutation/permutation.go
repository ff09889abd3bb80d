// Package permutation reorders enumerated topology resources according
// to a caller-supplied pattern. It is the only authority on ordering and
// duplication of the resource list handed to the binder.
package permutation

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/NicolasDenoyelle/starbind/internal/topology"
)

// Apply returns a new resource list reordered per pattern. Supported
// patterns:
//
//	"" or "identity"  keep enumeration order
//	"reverse"         last resource first
//	"stride:N"        every Nth resource, wrapping until all are used
//	"range:A-B"       resources A through B inclusive
//	"shuffle[:seed]"  deterministic shuffle (seed defaults to 0)
func Apply(resources []topology.Resource, pattern string) ([]topology.Resource, error) {
	if len(resources) == 0 {
		return nil, fmt.Errorf("empty resource list")
	}

	name, arg := splitPattern(pattern)
	switch name {
	case "", "identity":
		return append([]topology.Resource(nil), resources...), nil
	case "reverse":
		out := make([]topology.Resource, len(resources))
		for i, r := range resources {
			out[len(resources)-1-i] = r
		}
		return out, nil
	case "stride":
		return stride(resources, arg)
	case "range":
		return subrange(resources, arg)
	case "shuffle":
		return shuffle(resources, arg)
	}
	return nil, fmt.Errorf("unknown permutation pattern %q", pattern)
}

func splitPattern(pattern string) (string, string) {
	name, arg, _ := strings.Cut(strings.TrimSpace(pattern), ":")
	return strings.ToLower(name), arg
}

// stride visits index 0, N, 2N, ... modulo len, shifting the start by
// one each time a full cycle completes, so every resource appears
// exactly once when N and len are not coprime.
func stride(resources []topology.Resource, arg string) ([]topology.Resource, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("stride requires a positive integer, got %q", arg)
	}
	l := len(resources)
	out := make([]topology.Resource, 0, l)
	taken := make([]bool, l)
	idx := 0
	for len(out) < l {
		if taken[idx] {
			idx = (idx + 1) % l
			continue
		}
		out = append(out, resources[idx])
		taken[idx] = true
		idx = (idx + n) % l
	}
	return out, nil
}

func subrange(resources []topology.Resource, arg string) ([]topology.Resource, error) {
	lo, hi, found := strings.Cut(arg, "-")
	if !found {
		return nil, fmt.Errorf("range requires A-B, got %q", arg)
	}
	a, errA := strconv.Atoi(strings.TrimSpace(lo))
	b, errB := strconv.Atoi(strings.TrimSpace(hi))
	if errA != nil || errB != nil || a < 0 || b < a || b >= len(resources) {
		return nil, fmt.Errorf("invalid range %q for %d resources", arg, len(resources))
	}
	return append([]topology.Resource(nil), resources[a:b+1]...), nil
}

func shuffle(resources []topology.Resource, arg string) ([]topology.Resource, error) {
	var seed int64
	if arg != "" {
		s, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("shuffle seed must be an integer, got %q", arg)
		}
		seed = s
	}
	out := append([]topology.Resource(nil), resources...)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}
