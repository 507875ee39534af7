package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stlpine/clustergo/pkg/models"
)

func TestLaunchScript_IncludesPreambleAndLaunchBody(t *testing.T) {
	spec := models.JobSpec{
		Target: models.ClusterTarget{
			Kind:        models.KindSlurm,
			ModuleLoads: []string{"gcc/13"},
		},
		Resources: models.ResourceRequest{Cores: 2},
	}
	script := launchScript(slurmDialect, spec, "/scratch/clustergo/abc")

	assert.Contains(t, script, "#!/bin/bash")
	assert.Contains(t, script, "#SBATCH --cpus-per-task=2")
	assert.Contains(t, script, "module load gcc/13")
	assert.Contains(t, script, "export ORIGINAL_CWD=$PWD")
	assert.Contains(t, script, "cd '/scratch/clustergo/abc'")
	assert.Contains(t, script, "cd bootstrap && go run .")
}

func TestRemoteDirFor_DefaultsWhenTargetHasNoWorkDir(t *testing.T) {
	target := models.ClusterTarget{}
	bundle := models.BundleRef{ID: "bundle-1"}
	assert.Equal(t, "/tmp/clustergo/bundle-1", remoteDirFor(target, bundle))
}
