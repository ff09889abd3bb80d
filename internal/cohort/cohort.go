// Package cohort coordinates N independent binder instances launched by
// an external multi-process launcher on the same node. Instances share
// nothing but the filesystem; each one learns its unique zero-based
// offset either from its launcher's local-rank environment variable or
// by taking a ticket from a shared counter file.
package cohort

import (
	"os"
	"strconv"
)

// localRankEnvVars are set by common MPI launchers (and slurm) for each
// local process.
var localRankEnvVars = []string{
	"MPI_LOCALRANKID",
	"OMPI_COMM_WORLD_LOCAL_RANK",
	"MV2_COMM_WORLD_LOCAL_RANK",
	"SLURM_LOCALID",
}

// LocalRank returns the local rank declared by the launching
// environment, if any.
func LocalRank() (int, bool) {
	for _, name := range localRankEnvVars {
		value, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		rank, err := strconv.Atoi(value)
		if err != nil || rank < 0 {
			continue
		}
		return rank, true
	}
	return 0, false
}

// InLaunchedCohort reports whether a local-rank environment variable is
// present, i.e. the process was started by a rank-aware launcher.
func InLaunchedCohort() bool {
	_, ok := LocalRank()
	return ok
}
