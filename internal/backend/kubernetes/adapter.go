// Package kubernetes implements backend.Adapter by running a bundle's
// bootstrap as a Kubernetes Job, generalizing the teacher's
// single-purpose compilation runtime to an arbitrary bundle launch.
package kubernetes

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/pkg/models"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	// MaxOutputSize bounds how much of the end of a job's pod log is kept
	// for diagnostics and sentinel-marker scanning.
	MaxOutputSize = 1 * 1024 * 1024

	// DefaultJobTTLSeconds is how long a finished Job lingers before
	// Kubernetes garbage-collects it if Cleanup is never called.
	DefaultJobTTLSeconds = 300
)

// Adapter submits bundles as Kubernetes Jobs. backend_id is the Job's
// name; the per-job namespace is recovered from an internal tracker since
// the Adapter interface's later calls carry only backend_id.
type Adapter struct {
	clientset kubernetes.Interface
	tracker   *backend.SubmissionTracker
}

// New accepts kubernetes.Interface rather than the concrete *Clientset so
// tests can substitute k8s.io/client-go/kubernetes/fake.
func New(clientset kubernetes.Interface) *Adapter {
	return &Adapter{clientset: clientset, tracker: backend.NewSubmissionTracker()}
}

var _ backend.Adapter = (*Adapter)(nil)

func (a *Adapter) Submit(ctx context.Context, bundle models.BundleRef, spec models.JobSpec) (string, string, error) {
	namespace := spec.Target.Namespace
	if namespace == "" {
		namespace = "default"
	}
	jobName := "clustergo-" + bundle.ID

	archive, err := archiveBytes(bundle.ArchivePath)
	if err != nil {
		return "", "", fmt.Errorf("kubernetes: read bundle archive: %w", err)
	}

	if err := a.createSourceConfigMap(ctx, namespace, jobName, archive); err != nil {
		return "", "", fmt.Errorf("kubernetes: create source configmap: %w", err)
	}

	if _, err := a.createBundleJob(ctx, namespace, jobName, spec); err != nil {
		cleanupCtx := context.WithoutCancel(ctx)
		a.deleteResources(cleanupCtx, namespace, jobName)
		return "", "", fmt.Errorf("kubernetes: create job: %w", err)
	}

	a.tracker.Put(jobName, backend.TrackedSubmission{
		Target:       spec.Target,
		RemoteDir:    jobName,
		FunctionName: bundle.FunctionName,
	})
	return jobName, jobName, nil
}

// createSourceConfigMap stores the whole bundle archive under BinaryData
// (base64 on the wire, handled by the client), mirroring the teacher's
// source-as-ConfigMap delivery mechanism but carrying an opaque archive
// instead of one rendered source file.
func (a *Adapter) createSourceConfigMap(ctx context.Context, namespace, jobName string, archive []byte) error {
	configMap := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "source-" + jobName,
			Namespace: namespace,
			Labels:    jobLabels(jobName),
		},
		BinaryData: map[string][]byte{
			"bundle.tar.zst": archive,
		},
	}
	_, err := a.clientset.CoreV1().ConfigMaps(namespace).Create(ctx, configMap, metav1.CreateOptions{})
	return err
}

func (a *Adapter) createBundleJob(ctx context.Context, namespace, jobName string, spec models.JobSpec) (*batchv1.Job, error) {
	backoffLimit := int32(0)
	ttlSeconds := int32(DefaultJobTTLSeconds)

	cores := spec.Resources.Cores
	if cores < 1 {
		cores = 1
	}
	cpuQty := resource.MustParse(fmt.Sprintf("%d", cores))
	if spec.Resources.FractionalCores > 0 {
		cpuQty = resource.MustParse(fmt.Sprintf("%gm", spec.Resources.FractionalCores*1000))
	}
	memQty := resource.MustParse(fmt.Sprintf("%dMi", 256))
	if spec.Resources.Memory > 0 {
		memQty = resource.MustParse(fmt.Sprintf("%dMi", spec.Resources.Memory/(1<<20)))
	}

	resourceList := corev1.ResourceList{
		corev1.ResourceCPU:    cpuQty,
		corev1.ResourceMemory: memQty,
	}
	if spec.Resources.GPUs > 0 {
		resourceList["nvidia.com/gpu"] = resource.MustParse(fmt.Sprintf("%d", spec.Resources.GPUs))
	}

	launchCmd := "mkdir -p /workspace/run && cd /workspace/run && " +
		"cp /bundle/bundle.tar.zst . && tar --zstd -xf bundle.tar.zst && " +
		"export ORIGINAL_CWD=$PWD && cd bootstrap && go run ."

	image := spec.Target.DefaultContainerImage
	if image == "" {
		image = "golang:1.25"
	}

	job := &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: namespace,
			Labels:    jobLabels(jobName),
		},
		Spec: batchv1.JobSpec{
			TTLSecondsAfterFinished: ptr(ttlSeconds),
			BackoffLimit:            ptr(backoffLimit),
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{Labels: jobLabels(jobName)},
				Spec: corev1.PodSpec{
					RestartPolicy: corev1.RestartPolicyNever,
					NodeSelector:  gpuNodeSelector(spec.Resources),
					Containers: []corev1.Container{
						{
							Name:    "bootstrap",
							Image:   image,
							Command: []string{"/bin/sh", "-c", launchCmd},
							Env:     convertEnv(spec.Target.EnvironmentOverrides),
							Resources: corev1.ResourceRequirements{
								Limits:   resourceList,
								Requests: resourceList,
							},
							VolumeMounts: []corev1.VolumeMount{
								{Name: "bundle", MountPath: "/bundle", ReadOnly: true},
							},
						},
					},
					Volumes: []corev1.Volume{
						{
							Name: "bundle",
							VolumeSource: corev1.VolumeSource{
								ConfigMap: &corev1.ConfigMapVolumeSource{
									LocalObjectReference: corev1.LocalObjectReference{Name: "source-" + jobName},
								},
							},
						},
					},
				},
			},
		},
	}

	return a.clientset.BatchV1().Jobs(namespace).Create(ctx, job, metav1.CreateOptions{})
}

// Probe reads the Job's current status with a single non-blocking get,
// unlike the teacher's blocking watch-until-timeout loop: the executor's
// own poller already owns the retry cadence (spec §4.6), so the adapter
// only needs to report what it observes right now.
func (a *Adapter) Probe(ctx context.Context, backendID string) (models.JobState, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return models.StateUnknown, fmt.Errorf("kubernetes: unknown backend id %q", backendID)
	}
	namespace := namespaceFor(rec.Target)

	job, err := a.clientset.BatchV1().Jobs(namespace).Get(ctx, backendID, metav1.GetOptions{})
	if err != nil {
		return models.StateUnknown, fmt.Errorf("kubernetes: get job: %w", err)
	}

	switch {
	case job.Status.Succeeded > 0:
		return models.StateCompleted, nil
	case job.Status.Failed > 0:
		return models.StateFailed, nil
	case job.Status.Active > 0:
		return models.StateRunning, nil
	default:
		return models.StateUnknown, nil
	}
}

func (a *Adapter) Cancel(ctx context.Context, backendID string) error {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return fmt.Errorf("kubernetes: unknown backend id %q", backendID)
	}
	namespace := namespaceFor(rec.Target)
	propagation := metav1.DeletePropagationForeground
	return a.clientset.BatchV1().Jobs(namespace).Delete(ctx, backendID, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
}

// StreamErrorContext reads the bootstrap container's log tail, which is
// where the RESULT_JSON:/ERROR_JSON:/CLUSTRIX_END sentinel lines live for
// this backend (spec §6's embedded bootstrap entry contract); the
// harvester scans this text when ResultLocations reports no filesystem
// path.
func (a *Adapter) StreamErrorContext(ctx context.Context, backendID string) (backend.StreamTail, error) {
	rec, ok := a.tracker.Get(backendID)
	if !ok {
		return backend.StreamTail{}, fmt.Errorf("kubernetes: unknown backend id %q", backendID)
	}
	namespace := namespaceFor(rec.Target)

	pods, err := a.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{
		LabelSelector: "job-name=" + backendID,
	})
	if err != nil || len(pods.Items) == 0 {
		return backend.StreamTail{}, fmt.Errorf("kubernetes: list job pods: %w", err)
	}
	pod := pods.Items[0]

	req := a.clientset.CoreV1().Pods(namespace).GetLogs(pod.Name, &corev1.PodLogOptions{Container: "bootstrap"})
	logStream, err := req.Stream(ctx)
	if err != nil {
		return backend.StreamTail{}, fmt.Errorf("kubernetes: stream pod logs: %w", err)
	}
	defer logStream.Close()

	data, _ := io.ReadAll(logStream)
	if len(data) > MaxOutputSize {
		data = data[len(data)-MaxOutputSize:]
	}
	return backend.StreamTail{Stdout: string(data)}, nil
}

// ResultLocations returns empty paths: Kubernetes has no shared
// filesystem between the submitter and the pod, so results only ever
// arrive via the log sentinel StreamErrorContext exposes.
func (a *Adapter) ResultLocations(context.Context, string, string) (backend.ResultLocations, error) {
	return backend.ResultLocations{}, nil
}

// FetchResultFile always errors: Kubernetes has no filesystem shared with
// the submitter, so ResultLocations never names a path worth fetching.
func (a *Adapter) FetchResultFile(context.Context, string, string) ([]byte, error) {
	return nil, fmt.Errorf("kubernetes: no shared filesystem, use StreamErrorContext instead")
}

func (a *Adapter) Cleanup(ctx context.Context, remoteDir string) error {
	rec, ok := a.tracker.GetByRemoteDir(remoteDir)
	if !ok {
		return fmt.Errorf("kubernetes: cleanup: no tracked submission for remote dir %q", remoteDir)
	}
	namespace := namespaceFor(rec.Target)
	a.deleteResources(ctx, namespace, remoteDir)
	a.tracker.Delete(rec.BackendID)
	return nil
}

func (a *Adapter) deleteResources(ctx context.Context, namespace, jobName string) {
	propagation := metav1.DeletePropagationForeground
	_ = a.clientset.BatchV1().Jobs(namespace).Delete(ctx, jobName, metav1.DeleteOptions{PropagationPolicy: &propagation})
	_ = a.clientset.CoreV1().ConfigMaps(namespace).Delete(ctx, "source-"+jobName, metav1.DeleteOptions{})
}

func (a *Adapter) PreferredPollInterval() (interval time.Duration, ok bool) {
	return 5 * time.Second, true
}

func namespaceFor(target models.ClusterTarget) string {
	if target.Namespace == "" {
		return "default"
	}
	return target.Namespace
}

func jobLabels(jobName string) map[string]string {
	return map[string]string{
		"app":        "clustergo",
		"component":  "bootstrap",
		"job-name":   jobName,
		"managed-by": "clustergo",
	}
}

// gpuNodeSelector steers scheduling toward a particular GPU SKU when the
// caller named one; nil when no GPU (or no type hint) was requested, which
// k8s treats as no constraint.
func gpuNodeSelector(r models.ResourceRequest) map[string]string {
	if r.GPUs <= 0 || r.GPUType == "" {
		return nil
	}
	return map[string]string{"gpu.nvidia.com/class": r.GPUType}
}

func convertEnv(overrides map[string]string) []corev1.EnvVar {
	result := make([]corev1.EnvVar, 0, len(overrides))
	for k, v := range overrides {
		result = append(result, corev1.EnvVar{Name: k, Value: v})
	}
	return result
}

func archiveBytes(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func ptr[T any](v T) *T { return &v }
