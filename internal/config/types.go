package config

// Method selects how threads and processes of the target are bound.
type Method string

const (
	// MethodAuto picks a method at run time: MPI if a local-rank
	// environment variable is present, OpenMP if the target links an
	// OpenMP runtime, ptrace otherwise.
	MethodAuto Method = "auto"
	// MethodMPI binds the local process using its MPI local rank (or a
	// ticket from the shared counter file) as the index into the
	// resource sequence.
	MethodMPI Method = "mpi"
	// MethodOpenMP exports OMP_PLACES reflecting the resource sequence
	// before starting the target.
	MethodOpenMP Method = "openmp"
	// MethodPtrace traces the target and binds every thread and child
	// process as it is created.
	MethodPtrace Method = "ptrace"
)

// BindConfig is the full configuration of one binder instance.
type BindConfig struct {
	Binding BindingInfo `yaml:"binding"`
}

type BindingInfo struct {
	// Method is one of auto, mpi, openmp, ptrace.
	Method Method `yaml:"method"`
	// ResourceKind is the topology object type threads are bound to
	// (pu, core, package, numa).
	ResourceKind string `yaml:"resource_kind"`
	// Permutation reorders the enumerated resources before binding
	// (identity, reverse, stride:N, range:A-B, shuffle[:seed]).
	Permutation string `yaml:"permutation"`
	// CounterFile is the shared ticket counter used by cohort mode when
	// no MPI local-rank variable is set.
	CounterFile string `yaml:"counter_file"`
	LogLevel    string `yaml:"log_level"`
	TraceLog    string `yaml:"trace_log_level"`
	Verbose     bool   `yaml:"verbose"`
	// Command is the target command line. Flags may override it.
	Command string `yaml:"command"`
}

// DefaultConfig returns the configuration used when no file and no flags
// are given.
func DefaultConfig() *BindConfig {
	return &BindConfig{
		Binding: BindingInfo{
			Method:       MethodAuto,
			ResourceKind: "core",
			Permutation:  "",
			CounterFile:  defaultCounterFile,
			LogLevel:     "info",
		},
	}
}

const defaultCounterFile = "/tmp/starbind.ticket"

var validMethods = map[Method]bool{
	MethodAuto:   true,
	MethodMPI:    true,
	MethodOpenMP: true,
	MethodPtrace: true,
}
