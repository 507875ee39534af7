package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/internal/depanalysis"
	"github.com/stlpine/clustergo/pkg/models"
)

func captureSumFixture(t *testing.T) (*depanalysis.CapturedFunction, models.DependencyReport) {
	t.Helper()
	cf, err := depanalysis.Capture(sumFixture)
	require.NoError(t, err)

	analyzer, err := depanalysis.NewAnalyzer(cf)
	require.NoError(t, err)

	return cf, analyzer.Analyze(cf)
}

func localTarget(t *testing.T) models.ClusterTarget {
	t.Helper()
	return models.ClusterTarget{Kind: models.KindLocal, RemoteWorkDir: "/tmp/work"}
}

func TestPackage_ProducesCachedArchive(t *testing.T) {
	cf, report := captureSumFixture(t)
	cacheDir := t.TempDir()

	packager, err := NewPackager(cacheDir)
	require.NoError(t, err)

	argsPayload, err := EncodeArgsPayload(SumInput{A: 2, B: 3})
	require.NoError(t, err)

	ref, err := packager.Package(PackageInput{
		Captured:    cf,
		Report:      report,
		Target:      localTarget(t),
		ArgsPayload: argsPayload,
		WorkingDir:  t.TempDir(),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, ref.ID)
	assert.Equal(t, "sumFixture", ref.FunctionName)
	assert.FileExists(t, ref.ArchivePath)
}

func TestPackage_IdenticalInputsProduceIdenticalID(t *testing.T) {
	cf, report := captureSumFixture(t)
	cacheDir := t.TempDir()
	packager, err := NewPackager(cacheDir)
	require.NoError(t, err)

	argsPayload, err := EncodeArgsPayload(SumInput{A: 2, B: 3})
	require.NoError(t, err)

	workDir := t.TempDir()
	in := PackageInput{Captured: cf, Report: report, Target: localTarget(t), ArgsPayload: argsPayload, WorkingDir: workDir}

	first, err := packager.Package(in)
	require.NoError(t, err)
	second, err := packager.Package(in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ArchivePath, second.ArchivePath)
}

func TestPackage_DifferentTargetProducesDifferentID(t *testing.T) {
	cf, report := captureSumFixture(t)
	cacheDir := t.TempDir()
	packager, err := NewPackager(cacheDir)
	require.NoError(t, err)

	argsPayload, err := EncodeArgsPayload(SumInput{A: 2, B: 3})
	require.NoError(t, err)
	workDir := t.TempDir()

	localRef, err := packager.Package(PackageInput{Captured: cf, Report: report, Target: localTarget(t), ArgsPayload: argsPayload, WorkingDir: workDir})
	require.NoError(t, err)

	sshTarget := models.ClusterTarget{Kind: models.KindSSH, Host: "cluster.example.com", Port: 22, Username: "alice", RemoteWorkDir: "/home/alice/work"}
	sshRef, err := packager.Package(PackageInput{Captured: cf, Report: report, Target: sshTarget, ArgsPayload: argsPayload, WorkingDir: workDir})
	require.NoError(t, err)

	assert.NotEqual(t, localRef.ID, sshRef.ID)
}

func TestPackage_ReportsLocalCallee(t *testing.T) {
	_, report := captureSumFixture(t)
	require.Len(t, report.LocalCallees, 1)
	assert.Equal(t, "sumHelper", report.LocalCallees[0].Name)
}

func TestDetectExternalPackages_ExcludesStdlibAndLocalModule(t *testing.T) {
	report := models.DependencyReport{
		Imports: []models.ImportRecord{
			{Path: "context"},
			{Path: "encoding/json"},
			{Path: "github.com/stlpine/clustergo/internal/fsabstraction"},
			{Path: "github.com/klauspost/compress/zstd"},
			{Path: "gopkg.in/yaml.v3"},
		},
	}

	external := DetectExternalPackages(report)
	assert.Equal(t, []string{"github.com/klauspost/compress/zstd", "gopkg.in/yaml.v3"}, external)
}

func TestArgsPayload_RoundTrips(t *testing.T) {
	encoded, err := EncodeArgsPayload(SumInput{A: 4, B: 5})
	require.NoError(t, err)

	var out SumInput
	require.NoError(t, DecodeArgsPayload(encoded, &out))
	assert.Equal(t, SumInput{A: 4, B: 5}, out)
}
