package batch

import (
	"strings"

	"github.com/stlpine/clustergo/pkg/models"
)

// parseSacctState reads `sacct -o State --parsable2` output: one state per
// line (the job step lines repeat the same state, so the first line
// suffices).
func parseSacctState(stdout string) (models.JobState, bool) {
	line := firstNonEmptyLine(stdout)
	if line == "" {
		return "", false
	}
	switch {
	case strings.HasPrefix(line, "COMPLETED"):
		return models.StateCompleted, true
	case strings.HasPrefix(line, "CANCELLED"):
		return models.StateCancelled, true
	case strings.HasPrefix(line, "TIMEOUT"):
		return models.StateTimeout, true
	case strings.HasPrefix(line, "FAILED"), strings.HasPrefix(line, "NODE_FAIL"), strings.HasPrefix(line, "OUT_OF_MEMORY"):
		return models.StateFailed, true
	default:
		return "", false
	}
}

// parseQstatXState reads `qstat -x -f` output for PBS's job_state and
// Exit_status fields.
func parseQstatXState(stdout string) (models.JobState, bool) {
	if !strings.Contains(stdout, "job_state = F") {
		return "", false
	}
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Exit_status") {
			if strings.Contains(line, "= 0") {
				return models.StateCompleted, true
			}
			return models.StateFailed, true
		}
	}
	return models.StateFailed, true
}

// parseQacctState reads `qacct -j` output for SGE's exit_status field.
func parseQacctState(stdout string) (models.JobState, bool) {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "exit_status") {
			fields := strings.Fields(line)
			if len(fields) == 2 && fields[1] == "0" {
				return models.StateCompleted, true
			}
			return models.StateFailed, true
		}
	}
	return "", false
}

// parseBhistState reads `bhist -n 0` summary output for LSF's terminal
// status line.
func parseBhistState(stdout string) (models.JobState, bool) {
	switch {
	case strings.Contains(stdout, "Done successfully"):
		return models.StateCompleted, true
	case strings.Contains(stdout, "Exited"):
		return models.StateFailed, true
	default:
		return "", false
	}
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}
