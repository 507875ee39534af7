package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/stlpine/clustergo/internal/backend"
	batchbackend "github.com/stlpine/clustergo/internal/backend/batch"
	k8sbackend "github.com/stlpine/clustergo/internal/backend/kubernetes"
	localbackend "github.com/stlpine/clustergo/internal/backend/local"
	sshbackend "github.com/stlpine/clustergo/internal/backend/ssh"
	"github.com/stlpine/clustergo/internal/bundle"
	"github.com/stlpine/clustergo/internal/config"
	"github.com/stlpine/clustergo/internal/credentials"
	"github.com/stlpine/clustergo/internal/ensure"
	"github.com/stlpine/clustergo/internal/executor"
	"github.com/stlpine/clustergo/internal/harvester"
	"github.com/stlpine/clustergo/internal/transport"
	"github.com/stlpine/clustergo/pkg/dispatch"
	"github.com/stlpine/clustergo/pkg/models"
)

// sumInput is the argument type for the function this command dispatches.
// It lives at package scope, not inside runRun, because depanalysis.Capture
// locates a function by its own declaration in a parseable source file: a
// closure or a function literal built at call time has no such declaration.
type sumInput struct {
	A int `json:"a"`
	B int `json:"b"`
}

// sumDemo is the function clustergo-example ships: it runs unchanged
// in-process for a local target, or gets packaged and submitted for every
// other target kind. Swap it out to dispatch a real workload instead.
func sumDemo(_ context.Context, in sumInput) (int, error) {
	return in.A + in.B, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Dispatch the demo function against a cluster target",
	Long: `Dispatch a small demonstration function through pkg/dispatch.

With no --target flag (or --target local) the function runs in the current
process. Any other target packages the function, submits it through the
executor core, and waits for the result or the remote failure.`,
	RunE: runRun,
}

var (
	runA int
	runB int

	runTargetKind    string
	runHost          string
	runPort          int
	runUsername      string
	runRemoteWorkDir string
	runPartition     string
	runNamespace     string
	runImage         string

	runCores    int
	runNodes    int
	runMemory   string
	runGPUs     int
	runGPUType  string
	runWallTime time.Duration

	runPollInterval time.Duration
	runTimeout      time.Duration

	runSecretStoreCLI       string
	runCredentialFile       string
	runAllowInteractiveAuth bool

	runSkipToolingCheck bool

	runBundleCacheDir string
	runSandboxDir     string

	runPreset     string
	runPresetFile string

	// presetModuleLoads/presetEnvOverrides carry fields a preset can set
	// that have no corresponding CLI flag of their own.
	presetModuleLoads  []string
	presetEnvOverrides map[string]string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runA, "a", 2, "first operand")
	runCmd.Flags().IntVar(&runB, "b", 3, "second operand")

	runCmd.Flags().StringVar(&runTargetKind, "target", "local", "cluster kind: local, local-sandboxed, ssh, slurm, pbs, sge, lsf, kubernetes")
	runCmd.Flags().StringVar(&runHost, "host", "", "remote host (ssh and batch-scheduler targets)")
	runCmd.Flags().IntVar(&runPort, "port", 22, "remote SSH port")
	runCmd.Flags().StringVar(&runUsername, "username", "", "remote username")
	runCmd.Flags().StringVar(&runRemoteWorkDir, "remote-work-dir", "", "remote shared-filesystem directory for staged bundles")
	runCmd.Flags().StringVar(&runPartition, "partition", "", "default batch-scheduler partition or queue")
	runCmd.Flags().StringVar(&runNamespace, "namespace", "default", "Kubernetes namespace")
	runCmd.Flags().StringVar(&runImage, "image", "", "default container image (Kubernetes and local-sandboxed targets)")

	runCmd.Flags().IntVar(&runCores, "cores", 1, "requested CPU cores")
	runCmd.Flags().IntVar(&runNodes, "nodes", 1, "requested node count")
	runCmd.Flags().StringVar(&runMemory, "memory", "1Gi", "requested memory (e.g. 512Mi, 2Gi)")
	runCmd.Flags().IntVar(&runGPUs, "gpus", 0, "requested GPU count")
	runCmd.Flags().StringVar(&runGPUType, "gpu-type", "", "GPU SKU hint (e.g. a100)")
	runCmd.Flags().DurationVar(&runWallTime, "wall-time", 10*time.Minute, "requested wall-clock budget")

	runCmd.Flags().DurationVar(&runPollInterval, "poll-interval", 2*time.Second, "base interval between state probes")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Result wait timeout (0 waits indefinitely, bounded by ctx)")

	runCmd.Flags().StringVar(&runSecretStoreCLI, "secret-store-cli", "", "external CLI invoked for credential lookup")
	runCmd.Flags().StringVar(&runCredentialFile, "credential-file", "", "JSON credential file path")
	runCmd.Flags().BoolVar(&runAllowInteractiveAuth, "allow-interactive-auth", false, "allow an interactive terminal credential prompt")

	runCmd.Flags().BoolVar(&runSkipToolingCheck, "skip-tooling-check", false, "skip the external-tooling readiness check before submitting")

	runCmd.Flags().StringVar(&runBundleCacheDir, "bundle-cache-dir", "", "directory for packaged bundle archives (default: a temp dir)")
	runCmd.Flags().StringVar(&runSandboxDir, "sandbox-dir", "", "host staging directory for --target local-sandboxed (default: a temp dir)")

	runCmd.Flags().StringVar(&runPreset, "preset", "", "named target preset from --preset-file to use as a base, overridden by any flag set explicitly")
	runCmd.Flags().StringVar(&runPresetFile, "preset-file", "", "YAML file of named target presets (default: configs/targets.yaml if present)")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runPreset != "" {
		if err := applyPreset(cmd); err != nil {
			printError("preset: %v", err)
			return err
		}
	}

	kind := models.ClusterKind(runTargetKind)
	if !kind.Valid() {
		printError("unrecognized target kind %q", runTargetKind)
		return fmt.Errorf("unrecognized target kind %q", runTargetKind)
	}

	target := models.ClusterTarget{
		Kind:                  kind,
		Host:                  runHost,
		Port:                  runPort,
		Username:              runUsername,
		RemoteWorkDir:         runRemoteWorkDir,
		Namespace:             runNamespace,
		DefaultPartition:      runPartition,
		DefaultContainerImage: runImage,
		ModuleLoads:           presetModuleLoads,
		EnvironmentOverrides:  presetEnvOverrides,
	}
	if err := target.Validate(); err != nil {
		printError("invalid target: %v", err)
		return err
	}

	mem, err := models.ParseMemory(runMemory)
	if err != nil {
		printError("invalid --memory: %v", err)
		return err
	}
	resources := models.ResourceRequest{
		Cores:     runCores,
		Nodes:     runNodes,
		Memory:    mem.Bytes,
		GPUs:      runGPUs,
		GPUType:   runGPUType,
		Partition: runPartition,
		WallTime:  runWallTime,
	}
	if err := resources.Validate(kind); err != nil {
		printError("invalid resource request: %v", err)
		return err
	}

	rt, err := buildRuntime(cmd, kind)
	if err != nil {
		printError("failed to build runtime: %v", err)
		return err
	}
	if rt.Executor != nil {
		defer rt.Executor.Stop()
	}

	if kind != models.KindLocal && !runSkipToolingCheck {
		logger := newLogger(cmd)
		ok, err := ensure.Ensure(kind, "", isQuiet(cmd), logger)
		if err != nil {
			printError("tooling check: %v", err)
			return err
		}
		if !ok {
			printVerbose(cmd, "continuing despite missing external tooling for %s", kind)
		}
	}

	d := dispatch.Wrap(sumDemo, rt,
		dispatch.WithTarget(target),
		dispatch.WithResources(resources),
		dispatch.WithPollInterval(runPollInterval),
	)

	printInfo(cmd, "Dispatching sum(%d, %d) against target kind %q...", runA, runB, kind)
	start := time.Now()

	handle, err := d.Submit(cmd.Context(), sumInput{A: runA, B: runB})
	if err != nil {
		printError("submit failed: %v", err)
		return err
	}

	out, err := handle.Result(cmd.Context(), runTimeout)
	if err != nil {
		printError("result: %v", err)
		return err
	}

	printVerbose(cmd, "completed in %v", time.Since(start))
	printInfo(cmd, "Result: %d", out)
	return nil
}

// applyPreset fills any run* flag variable the caller didn't set explicitly
// from the named preset in --preset-file, so a preset acts as a default
// rather than overriding a flag the caller did set.
func applyPreset(cmd *cobra.Command) error {
	path := runPresetFile
	if path == "" {
		path = config.DefaultPath()
	}
	presets, err := config.Load(path)
	if err != nil {
		return err
	}
	preset, err := presets.Lookup(runPreset)
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	if !changed("target") {
		runTargetKind = string(preset.Kind)
	}
	if !changed("host") {
		runHost = preset.Host
	}
	if !changed("port") && preset.Port != 0 {
		runPort = preset.Port
	}
	if !changed("username") {
		runUsername = preset.Username
	}
	if !changed("remote-work-dir") {
		runRemoteWorkDir = preset.RemoteWorkDir
	}
	if !changed("partition") {
		runPartition = preset.DefaultPartition
	}
	if !changed("namespace") && preset.Namespace != "" {
		runNamespace = preset.Namespace
	}
	if !changed("image") {
		runImage = preset.DefaultContainerImage
	}
	if !changed("cores") && preset.Cores != 0 {
		runCores = preset.Cores
	}
	if !changed("nodes") && preset.Nodes != 0 {
		runNodes = preset.Nodes
	}
	if !changed("memory") && preset.Memory != "" {
		runMemory = preset.Memory
	}
	if !changed("gpus") && preset.GPUs != 0 {
		runGPUs = preset.GPUs
	}
	if !changed("gpu-type") {
		runGPUType = preset.GPUType
	}
	if !changed("wall-time") && preset.WallTime != 0 {
		runWallTime = preset.WallTime
	}
	presetModuleLoads = preset.ModuleLoads
	presetEnvOverrides = preset.EnvironmentOverrides
	return nil
}

// buildRuntime wires the executor/packager/adapter collaborators the
// non-local targets need. A purely local run never calls this path's
// adapters: dispatch.Dispatched.Call/Submit short-circuit before touching
// Runtime at all, so the zero Runtime{} is fine for --target local.
func buildRuntime(cmd *cobra.Command, kind models.ClusterKind) (dispatch.Runtime, error) {
	if kind == models.KindLocal {
		return dispatch.Runtime{}, nil
	}

	cacheDir := runBundleCacheDir
	if cacheDir == "" {
		var err error
		cacheDir, err = os.MkdirTemp("", "clustergo-example-bundles-")
		if err != nil {
			return dispatch.Runtime{}, fmt.Errorf("create bundle cache dir: %w", err)
		}
	}
	packager, err := bundle.NewPackager(cacheDir)
	if err != nil {
		return dispatch.Runtime{}, fmt.Errorf("create packager: %w", err)
	}

	logger := newLogger(cmd)
	tag := backendTagFor(kind)

	adapters := make(map[models.BackendTag]backend.Adapter)
	switch tag {
	case models.BackendKubernetes:
		clientset, err := newKubernetesClientset()
		if err != nil {
			return dispatch.Runtime{}, fmt.Errorf("create kubernetes client: %w", err)
		}
		adapters[tag] = k8sbackend.New(clientset)
	case models.BackendSSH:
		adapters[tag] = sshbackend.New(newTransport(), newCredentialResolver())
	case models.BackendBatch:
		adapters[tag] = batchbackend.New(newTransport(), newCredentialResolver())
	case models.BackendLocal:
		if kind != models.KindLocalSandboxed {
			return dispatch.Runtime{}, fmt.Errorf("cmd/clustergo-example does not wire a backend for %q", kind)
		}
		dockerCli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return dispatch.Runtime{}, fmt.Errorf("create docker client: %w", err)
		}
		sandboxDir := runSandboxDir
		if sandboxDir == "" {
			sandboxDir, err = os.MkdirTemp("", "clustergo-example-sandbox-")
			if err != nil {
				return dispatch.Runtime{}, fmt.Errorf("create sandbox dir: %w", err)
			}
		}
		adapters[tag] = localbackend.New(dockerCli, sandboxDir)
	default:
		return dispatch.Runtime{}, fmt.Errorf("cmd/clustergo-example does not wire a backend for %q", kind)
	}

	hvCfg := harvester.DefaultConfig()
	hvCfg.Logger = logger
	hv := harvester.New(hvCfg)

	execCfg := executor.DefaultConfig()
	execCfg.Logger = logger
	exec := executor.New(execCfg, adapters, hv)

	workDir, err := os.MkdirTemp("", "clustergo-example-work-")
	if err != nil {
		return dispatch.Runtime{}, fmt.Errorf("create working dir: %w", err)
	}

	return dispatch.Runtime{Executor: exec, Packager: packager, WorkingDir: workDir}, nil
}

// backendTagFor mirrors the executor's own internal tag resolution: this
// command needs to know up front which adapter to build, before it has a
// JobSpec to hand the executor.
func backendTagFor(kind models.ClusterKind) models.BackendTag {
	switch {
	case kind.IsBatchScheduler():
		return models.BackendBatch
	case kind == models.KindKubernetes:
		return models.BackendKubernetes
	case kind == models.KindSSH:
		return models.BackendSSH
	default:
		return models.BackendLocal
	}
}

func newTransport() *transport.Transport {
	return transport.NewTransport(
		transport.PoolOptions{Policy: transport.HostKeyAcceptAndPin},
		transport.DefaultBackoffPolicy(),
	)
}

// newCredentialResolver builds the resolver over the ordered chain
// resolver.NewResolver documents; clustergo-example has no process-scoped
// credential source of its own, so configSource is nil.
func newCredentialResolver() *credentials.Resolver {
	return credentials.NewResolver(nil, runSecretStoreCLI, runCredentialFile, runAllowInteractiveAuth)
}

// newKubernetesClientset prefers in-cluster config (this binary running as
// a pod) and falls back to the local kubeconfig, the two configurations a
// CLI invoked both inside and outside a cluster needs to support.
func newKubernetesClientset() (*kubernetes.Clientset, error) {
	if cfg, err := rest.InClusterConfig(); err == nil {
		return kubernetes.NewForConfig(cfg)
	}

	kubeconfig := os.Getenv("KUBECONFIG")
	if kubeconfig == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate kubeconfig: %w", err)
		}
		kubeconfig = filepath.Join(home, ".kube", "config")
	}

	cfg, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig %s: %w", kubeconfig, err)
	}
	return kubernetes.NewForConfig(cfg)
}

func newLogger(cmd *cobra.Command) *zap.Logger {
	if isVerbose(cmd) {
		logger, err := zap.NewDevelopment()
		if err == nil {
			return logger
		}
	}
	return zap.NewNop()
}
