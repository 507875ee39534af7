// Package batch implements backend.Adapter for the SLURM/PBS/SGE/LSF batch
// scheduler family behind one adapter, selected per-call by
// models.ClusterTarget.Kind: a shared preamble builder emits per-dialect
// directive blocks, and a per-dialect regex recovers the scheduler's own
// job id from submission stdout.
package batch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stlpine/clustergo/pkg/models"
)

// dialect captures everything that differs between SLURM, PBS, SGE, and
// LSF: the submission command, the directive syntax, how to recover the
// job id from submission stdout, and the live-queue and accounting-history
// probe commands.
type dialect struct {
	name string

	submitCmd string

	// directive formats one #<tag> <flag> line; args already carry any
	// required "=" or space per the scheduler's own syntax.
	directiveTag string
	directives   func(spec models.JobSpec) []string

	// submitIDPattern extracts the backend job id from submission stdout.
	submitIDPattern *regexp.Regexp

	// queueStateCmd returns a command whose stdout, when it contains
	// jobID, indicates the job is still live; empty stdout (job not
	// found) means it has left the queue.
	queueStateCmd func(jobID string) string

	// historyCmd queries the scheduler's accounting subsystem once a job
	// has left the live queue, returning "COMPLETED"/"FAILED"-ish text
	// historyParse understands.
	historyCmd   func(jobID string) string
	historyParse func(stdout string) (models.JobState, bool)

	cancelCmd func(jobID string) string
}

func dialectFor(kind models.ClusterKind) (dialect, error) {
	switch kind {
	case models.KindSlurm:
		return slurmDialect, nil
	case models.KindPBS:
		return pbsDialect, nil
	case models.KindSGE:
		return sgeDialect, nil
	case models.KindLSF:
		return lsfDialect, nil
	default:
		return dialect{}, fmt.Errorf("batch: unsupported cluster kind %q", kind)
	}
}

func directiveBlock(d dialect, spec models.JobSpec) string {
	var b strings.Builder
	for _, line := range d.directives(spec) {
		b.WriteString(d.directiveTag)
		b.WriteByte(' ')
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

var slurmDialect = dialect{
	name:         "slurm",
	submitCmd:    "sbatch",
	directiveTag: "#SBATCH",
	directives: func(spec models.JobSpec) []string {
		var lines []string
		if spec.Resources.Partition != "" {
			lines = append(lines, "--partition="+spec.Resources.Partition)
		}
		if spec.Resources.Nodes > 0 {
			lines = append(lines, fmt.Sprintf("--nodes=%d", spec.Resources.Nodes))
		}
		if spec.Resources.Cores > 0 {
			lines = append(lines, fmt.Sprintf("--cpus-per-task=%d", spec.Resources.Cores))
		}
		if spec.Resources.Memory > 0 {
			lines = append(lines, fmt.Sprintf("--mem=%dM", spec.Resources.Memory/(1<<20)))
		}
		if spec.Resources.WallTime > 0 {
			lines = append(lines, "--time="+formatWallTime(spec.Resources.WallTime))
		}
		if spec.Resources.GPUs > 0 {
			if spec.Resources.GPUType != "" {
				lines = append(lines, fmt.Sprintf("--gres=gpu:%s:%d", spec.Resources.GPUType, spec.Resources.GPUs))
			} else {
				lines = append(lines, fmt.Sprintf("--gres=gpu:%d", spec.Resources.GPUs))
			}
		}
		return lines
	},
	submitIDPattern: regexp.MustCompile(`Submitted batch job (\d+)`),
	queueStateCmd:   func(jobID string) string { return "squeue -h -j " + jobID },
	historyCmd:      func(jobID string) string { return "sacct -n -j " + jobID + " -o State --parsable2" },
	historyParse:    parseSacctState,
	cancelCmd:       func(jobID string) string { return "scancel " + jobID },
}

var pbsDialect = dialect{
	name:         "pbs",
	submitCmd:    "qsub",
	directiveTag: "#PBS",
	directives: func(spec models.JobSpec) []string {
		var lines []string
		if spec.Resources.Queue != "" {
			lines = append(lines, "-q "+spec.Resources.Queue)
		}
		nodes := spec.Resources.Nodes
		if nodes < 1 {
			nodes = 1
		}
		lines = append(lines, fmt.Sprintf("-l nodes=%d:ppn=%d", nodes, max1(spec.Resources.Cores)))
		if spec.Resources.Memory > 0 {
			lines = append(lines, fmt.Sprintf("-l mem=%dmb", spec.Resources.Memory/(1<<20)))
		}
		if spec.Resources.WallTime > 0 {
			lines = append(lines, "-l walltime="+formatWallTime(spec.Resources.WallTime))
		}
		return lines
	},
	submitIDPattern: regexp.MustCompile(`^(\S+)`),
	queueStateCmd:   func(jobID string) string { return "qstat " + jobID },
	historyCmd:      func(jobID string) string { return "qstat -x -f " + jobID },
	historyParse:    parseQstatXState,
	cancelCmd:       func(jobID string) string { return "qdel " + jobID },
}

var sgeDialect = dialect{
	name:         "sge",
	submitCmd:    "qsub",
	directiveTag: "#$",
	directives: func(spec models.JobSpec) []string {
		var lines []string
		if spec.Resources.Queue != "" {
			lines = append(lines, "-q "+spec.Resources.Queue)
		}
		if spec.Resources.Cores > 0 {
			lines = append(lines, fmt.Sprintf("-pe smp %d", spec.Resources.Cores))
		}
		if spec.Resources.Memory > 0 {
			lines = append(lines, fmt.Sprintf("-l h_vmem=%dM", spec.Resources.Memory/(1<<20)))
		}
		if spec.Resources.WallTime > 0 {
			lines = append(lines, "-l h_rt="+formatWallTime(spec.Resources.WallTime))
		}
		return lines
	},
	submitIDPattern: regexp.MustCompile(`Your job (\d+)`),
	queueStateCmd:   func(jobID string) string { return "qstat -j " + jobID },
	historyCmd:      func(jobID string) string { return "qacct -j " + jobID },
	historyParse:    parseQacctState,
	cancelCmd:       func(jobID string) string { return "qdel " + jobID },
}

var lsfDialect = dialect{
	name:         "lsf",
	submitCmd:    "bsub",
	directiveTag: "#BSUB",
	directives: func(spec models.JobSpec) []string {
		var lines []string
		if spec.Resources.Queue != "" {
			lines = append(lines, "-q "+spec.Resources.Queue)
		}
		if spec.Resources.Cores > 0 {
			lines = append(lines, fmt.Sprintf("-n %d", spec.Resources.Cores))
		}
		if spec.Resources.Memory > 0 {
			lines = append(lines, fmt.Sprintf("-M %d", spec.Resources.Memory/(1<<20)))
		}
		if spec.Resources.WallTime > 0 {
			lines = append(lines, "-W "+formatWallTimeMinutes(spec.Resources.WallTime))
		}
		return lines
	},
	submitIDPattern: regexp.MustCompile(`Job <(\d+)>`),
	queueStateCmd:   func(jobID string) string { return "bjobs " + jobID },
	historyCmd:      func(jobID string) string { return "bhist -n 0 " + jobID },
	historyParse:    parseBhistState,
	cancelCmd:       func(jobID string) string { return "bkill " + jobID },
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
