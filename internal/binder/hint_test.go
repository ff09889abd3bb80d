package binder

import (
	"testing"
)

func TestPlanPlacesWrapsModuloSequenceLength(t *testing.T) {
	seq := mustSequence(t, []int{0, 4}, []int{1, 5}, []int{2, 6})

	for _, count := range []int{0, 1, 3, 7} {
		places := PlanPlaces(seq, count)
		if len(places) != count {
			t.Fatalf("count %d: got %d places", count, len(places))
		}
		for i, cpus := range places {
			want := seq.At(i % seq.Len()).CPUs
			if !cpus.Equals(want) {
				t.Errorf("count %d index %d: got %s, want %s", count, i, cpus.String(), want.String())
			}
		}
	}
}

func TestOMPPlacesFormat(t *testing.T) {
	seq := mustSequence(t, []int{0, 4}, []int{1, 5})
	if got, want := OMPPlaces(seq), "{0,4},{1,5}"; got != want {
		t.Errorf("OMPPlaces = %q, want %q", got, want)
	}

	single := mustSequence(t, []int{2})
	if got, want := OMPPlaces(single), "{2}"; got != want {
		t.Errorf("OMPPlaces = %q, want %q", got, want)
	}
}

func TestPlannedReportRanks(t *testing.T) {
	seq := mustSequence(t, []int{0}, []int{1})
	report := PlannedReport(seq, 3)
	if len(report.Assignments) != 3 {
		t.Fatalf("expected 3 planned assignments, got %d", len(report.Assignments))
	}
	for i, a := range report.Assignments {
		if a.Context.ID != -1 {
			t.Errorf("planned context %d has concrete id %d", i, a.Context.ID)
		}
		if a.Context.Rank != i {
			t.Errorf("planned context %d has rank %d", i, a.Context.Rank)
		}
		if a.Resource.Index != i%2 {
			t.Errorf("planned context %d on resource %d", i, a.Resource.Index)
		}
	}
}

func TestSelfBindUsesPlannedPlace(t *testing.T) {
	seq := mustSequence(t, []int{0}, []int{1})
	setter := &fakeSetter{}
	if err := SelfBind(setter, seq, 3); err != nil {
		t.Fatalf("SelfBind: %v", err)
	}
	if len(setter.calls) != 1 {
		t.Fatalf("expected one bind call, got %d", len(setter.calls))
	}
	if want := seq.At(1).CPUs; !setter.calls[0].cpus.Equals(want) {
		t.Errorf("self-bound to %s, want %s", setter.calls[0].cpus.String(), want.String())
	}
}

func TestLinksOpenMP(t *testing.T) {
	cases := []struct {
		name string
		ldd  string
		want bool
	}{
		{
			name: "gomp",
			ldd: "\tlinux-vdso.so.1 (0x00007ffd0e5f2000)\n" +
				"\tlibgomp.so.1 => /usr/lib/x86_64-linux-gnu/libgomp.so.1 (0x00007f2a1c000000)\n" +
				"\tlibc.so.6 => /lib/x86_64-linux-gnu/libc.so.6 (0x00007f2a1be00000)\n",
			want: true,
		},
		{
			name: "llvm omp",
			ldd:  "\tlibomp.so.5 => /usr/lib/llvm-14/lib/libomp.so.5 (0x00007f0000000000)\n",
			want: true,
		},
		{
			name: "plain binary",
			ldd: "\tlinux-vdso.so.1 (0x00007ffd0e5f2000)\n" +
				"\tlibpthread.so.0 => /lib/x86_64-linux-gnu/libpthread.so.0 (0x00007f2a1be00000)\n" +
				"\t/lib64/ld-linux-x86-64.so.2 (0x00007f2a1c2f4000)\n",
			want: false,
		},
		{
			name: "static binary",
			ldd:  "\tnot a dynamic executable\n",
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := linksOpenMP([]byte(tc.ldd)); got != tc.want {
				t.Errorf("linksOpenMP = %v, want %v", got, tc.want)
			}
		})
	}
}
