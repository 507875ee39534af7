package kubernetes

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"github.com/stlpine/clustergo/pkg/models"
)

func TestNamespaceFor_DefaultsWhenTargetHasNoNamespace(t *testing.T) {
	assert.Equal(t, "default", namespaceFor(models.ClusterTarget{}))
	assert.Equal(t, "batch-jobs", namespaceFor(models.ClusterTarget{Namespace: "batch-jobs"}))
}

func TestJobLabels_IncludesJobName(t *testing.T) {
	labels := jobLabels("clustergo-abc")
	assert.Equal(t, "clustergo-abc", labels["job-name"])
	assert.Equal(t, "clustergo", labels["managed-by"])
}

func TestConvertEnv_MapsAllOverrides(t *testing.T) {
	env := convertEnv(map[string]string{"FOO": "bar"})
	require.Len(t, env, 1)
	assert.Equal(t, "FOO", env[0].Name)
	assert.Equal(t, "bar", env[0].Value)
}

func TestSubmit_CreatesConfigMapAndJobAndTracksSubmission(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	a := New(clientset)

	archivePath := writeTempArchive(t, "fake-archive-bytes")
	bundle := models.BundleRef{ID: "bundle-1", ArchivePath: archivePath, FunctionName: "Handler"}
	spec := models.JobSpec{Target: models.ClusterTarget{Namespace: "jobs"}}

	backendID, remoteDir, err := a.Submit(context.Background(), bundle, spec)
	require.NoError(t, err)
	assert.Equal(t, "clustergo-bundle-1", backendID)
	assert.Equal(t, backendID, remoteDir)

	_, err = clientset.CoreV1().ConfigMaps("jobs").Get(context.Background(), "source-clustergo-bundle-1", metav1.GetOptions{})
	assert.NoError(t, err)

	_, err = clientset.BatchV1().Jobs("jobs").Get(context.Background(), "clustergo-bundle-1", metav1.GetOptions{})
	assert.NoError(t, err)
}

func TestProbe_ReadsJobStatusFromTracker(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	a := New(clientset)

	archivePath := writeTempArchive(t, "fake-archive-bytes")
	bundle := models.BundleRef{ID: "bundle-2", ArchivePath: archivePath, FunctionName: "Handler"}
	spec := models.JobSpec{Target: models.ClusterTarget{Namespace: "jobs"}}
	backendID, _, err := a.Submit(context.Background(), bundle, spec)
	require.NoError(t, err)

	job, err := clientset.BatchV1().Jobs("jobs").Get(context.Background(), backendID, metav1.GetOptions{})
	require.NoError(t, err)
	job.Status.Succeeded = 1
	_, err = clientset.BatchV1().Jobs("jobs").UpdateStatus(context.Background(), job, metav1.UpdateOptions{})
	require.NoError(t, err)

	state, err := a.Probe(context.Background(), backendID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, state)
}

func TestProbe_UnknownBackendIDErrors(t *testing.T) {
	a := New(fake.NewSimpleClientset())
	_, err := a.Probe(context.Background(), "never-submitted")
	assert.Error(t, err)
}

func TestResultLocations_AlwaysEmpty(t *testing.T) {
	a := New(fake.NewSimpleClientset())
	locs, err := a.ResultLocations(context.Background(), "any", "any")
	require.NoError(t, err)
	assert.Empty(t, locs.SuccessPath)
	assert.Empty(t, locs.FailurePath)
}

func TestCleanup_DeletesJobAndConfigMap(t *testing.T) {
	clientset := fake.NewSimpleClientset()
	a := New(clientset)

	archivePath := writeTempArchive(t, "fake-archive-bytes")
	bundle := models.BundleRef{ID: "bundle-3", ArchivePath: archivePath, FunctionName: "Handler"}
	spec := models.JobSpec{Target: models.ClusterTarget{Namespace: "jobs"}}
	backendID, remoteDir, err := a.Submit(context.Background(), bundle, spec)
	require.NoError(t, err)

	require.NoError(t, a.Cleanup(context.Background(), remoteDir))

	_, err = clientset.BatchV1().Jobs("jobs").Get(context.Background(), backendID, metav1.GetOptions{})
	assert.Error(t, err)
	_, err = clientset.CoreV1().ConfigMaps("jobs").Get(context.Background(), "source-"+backendID, metav1.GetOptions{})
	assert.Error(t, err)
}

func TestCleanup_UnknownRemoteDirErrors(t *testing.T) {
	a := New(fake.NewSimpleClientset())
	assert.Error(t, a.Cleanup(context.Background(), "never-submitted"))
}

func writeTempArchive(t *testing.T, contents string) string {
	t.Helper()
	path := t.TempDir() + "/bundle.tar.zst"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}
