// Package ensure implements the dependency-readiness collaborator named in
// spec §6: "ensure(cluster_kind, provider_tag, quiet) → bool; the core may
// call this before first use of a backend and must continue on false with
// a diagnostic." Grounded on original_source/clustrix/auto_install.py,
// which shells out to pip at call time to install a cloud provider's SDK
// on demand. Go has no runtime package-manager equivalent of that step, so
// this port checks for the external command-line tooling each backend
// family actually shells out to (kubectl, ssh, the scheduler's own submit
// binary) rather than installing anything; a missing binary degrades the
// caller to a diagnostic exactly the way a missing pip package did in the
// original.
package ensure

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/stlpine/clustergo/pkg/models"
)

// requiredBinaries maps a ClusterKind to the external commands its backend
// family needs on PATH, mirroring auto_install.py's CLOUD_PROVIDER_DEPS
// per-provider dependency lists. Kinds absent from this map need nothing
// beyond the Go binary itself.
var requiredBinaries = map[models.ClusterKind][]string{
	models.KindKubernetes:     {"kubectl"},
	models.KindSSH:            {"ssh"},
	models.KindProvisionedVM:  {"ssh"},
	models.KindSlurm:          {"sbatch", "squeue"},
	models.KindPBS:            {"qsub", "qstat"},
	models.KindSGE:            {"qsub", "qstat"},
	models.KindLSF:            {"bsub", "bjobs"},
	models.KindLocalSandboxed: {"docker"},
}

var lookPath = exec.LookPath

// Ensure reports whether clusterKind's backend family has its external
// tooling available on PATH. It never errors on a missing binary — that is
// the expected "not ready" outcome callers degrade on — only on an
// unrecognized clusterKind, which signals a caller bug rather than an
// environment gap. providerTag is carried through to the diagnostic only;
// it does not change which binaries are checked.
func Ensure(clusterKind models.ClusterKind, providerTag string, quiet bool, logger *zap.Logger) (bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !clusterKind.Valid() {
		return false, fmt.Errorf("ensure: unrecognized cluster kind %q", clusterKind)
	}

	bins, needsTooling := requiredBinaries[clusterKind]
	if !needsTooling {
		return true, nil
	}

	var missing []string
	for _, bin := range bins {
		if _, err := lookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) == 0 {
		return true, nil
	}

	if !quiet {
		logger.Warn("ensure: missing external tooling for backend",
			zap.String("cluster_kind", string(clusterKind)),
			zap.String("provider_tag", providerTag),
			zap.Strings("missing_binaries", missing),
		)
	}
	return false, nil
}
