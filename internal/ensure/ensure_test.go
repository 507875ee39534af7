package ensure

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/stlpine/clustergo/pkg/models"
)

func withLookPath(t *testing.T, fn func(string) (string, error)) {
	t.Helper()
	prev := lookPath
	lookPath = fn
	t.Cleanup(func() { lookPath = prev })
}

func TestEnsure_UnrecognizedClusterKindErrors(t *testing.T) {
	_, err := Ensure(models.ClusterKind("bogus"), "", true, nil)
	require.Error(t, err)
}

func TestEnsure_KindWithNoToolingRequirementPassesWithoutTouchingPath(t *testing.T) {
	withLookPath(t, func(string) (string, error) {
		t.Fatal("lookPath should not be called for a kind with no required binaries")
		return "", nil
	})

	ok, err := Ensure(models.KindLocal, "", true, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsure_AllBinariesPresentReturnsTrue(t *testing.T) {
	withLookPath(t, func(string) (string, error) { return "/usr/bin/stub", nil })

	ok, err := Ensure(models.KindKubernetes, "", true, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnsure_MissingBinaryReturnsFalseWithoutError(t *testing.T) {
	withLookPath(t, func(name string) (string, error) {
		if name == "ssh" {
			return "", exec.ErrNotFound
		}
		return "/usr/bin/stub", nil
	})

	ok, err := Ensure(models.KindSSH, "aws", false, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsure_QuietSuppressesDiagnosticButStillReportsFalse(t *testing.T) {
	withLookPath(t, func(string) (string, error) { return "", exec.ErrNotFound })

	ok, err := Ensure(models.KindSlurm, "", true, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsure_NilLoggerDefaultsToNop(t *testing.T) {
	withLookPath(t, func(string) (string, error) { return "", exec.ErrNotFound })

	assert.NotPanics(t, func() {
		_, err := Ensure(models.KindPBS, "", false, nil)
		require.NoError(t, err)
	})
}

func TestEnsure_ChecksAllBinariesForMultiBinaryDialects(t *testing.T) {
	var checked []string
	withLookPath(t, func(name string) (string, error) {
		checked = append(checked, name)
		return "/usr/bin/stub", nil
	})

	_, err := Ensure(models.KindLSF, "", true, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bsub", "bjobs"}, checked)
}
