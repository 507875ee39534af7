package models

// ClusterKind identifies the family of execution backend a ClusterTarget
// addresses.
type ClusterKind string

const (
	KindSlurm         ClusterKind = "slurm"
	KindPBS           ClusterKind = "pbs"
	KindSGE           ClusterKind = "sge"
	KindLSF           ClusterKind = "lsf"
	KindKubernetes    ClusterKind = "kubernetes"
	KindSSH           ClusterKind = "ssh"
	KindLocal         ClusterKind = "local"
	KindProvisionedVM ClusterKind = "provisioned-vm"

	// KindLocalSandboxed runs the bundle on the same host as KindLocal, but
	// inside a container instead of pkg/dispatch's in-process fast path, so
	// it goes through the Executor Core like any remote target (polling,
	// cancellation, persistence) while staying off a real cluster.
	KindLocalSandboxed ClusterKind = "local-sandboxed"
)

// Valid reports whether k is one of the recognized cluster kinds.
func (k ClusterKind) Valid() bool {
	switch k {
	case KindSlurm, KindPBS, KindSGE, KindLSF, KindKubernetes, KindSSH, KindLocal, KindProvisionedVM, KindLocalSandboxed:
		return true
	default:
		return false
	}
}

// IsBatchScheduler reports whether k is one of the SLURM/PBS/SGE/LSF family,
// which share a single launch-script-based adapter.
func (k ClusterKind) IsBatchScheduler() bool {
	switch k {
	case KindSlurm, KindPBS, KindSGE, KindLSF:
		return true
	default:
		return false
	}
}

// ClusterTarget is the addressable execution destination for a dispatch.
// It is immutable within one dispatch: a JobSpec carries the snapshot that
// was current when the call was made.
type ClusterTarget struct {
	Kind ClusterKind `json:"kind"`

	// Host/Port/Username address a remote endpoint. Empty for Kind == local.
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username,omitempty"`

	// RemoteWorkDir is the path on the remote shared filesystem under which
	// bundles are staged and results are written.
	RemoteWorkDir string `json:"remote_work_dir"`

	DefaultPartition      string `json:"default_partition,omitempty"`
	DefaultContainerImage string `json:"default_container_image,omitempty"`

	// ModuleLoads is an ordered list of environment-module names loaded in
	// the batch-scheduler launch script preamble (e.g. "module load gcc/13").
	ModuleLoads []string `json:"module_loads,omitempty"`

	// EnvironmentOverrides are exported into the job's environment before
	// the bootstrap runs.
	EnvironmentOverrides map[string]string `json:"environment_overrides,omitempty"`

	// Namespace is consulted only by Kind == kubernetes.
	Namespace string `json:"namespace,omitempty"`

	// AllowInteractiveCredentials declares that the calling context is
	// attended, enabling the credential resolver's interactive-prompt
	// source (spec §4.1 source 5).
	AllowInteractiveCredentials bool `json:"allow_interactive_credentials,omitempty"`
}

// Identity returns the subset of fields that distinguish this target for
// connection pooling and bundle-id hashing: (host, port, username).
func (t ClusterTarget) Identity() (host string, port int, username string) {
	return t.Host, t.Port, t.Username
}

// Validate enforces the invariant that at least one of {host, in-process}
// is defined consistent with Kind.
func (t ClusterTarget) Validate() error {
	if !t.Kind.Valid() {
		return &InvalidTargetError{Reason: "unknown cluster kind: " + string(t.Kind)}
	}
	if t.Kind == KindLocal || t.Kind == KindLocalSandboxed {
		return nil
	}
	if t.Host == "" {
		return &InvalidTargetError{Reason: "host is required for non-local targets"}
	}
	return nil
}

// InvalidTargetError reports a ClusterTarget that failed validation.
type InvalidTargetError struct {
	Reason string
}

func (e *InvalidTargetError) Error() string {
	return "invalid cluster target: " + e.Reason
}
