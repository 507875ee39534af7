package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stlpine/clustergo/pkg/models"
)

func TestCollectDataFiles_RelativeRefPreservesPath(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "configs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workDir, "configs", "run.yaml"), []byte("k: v"), 0o644))

	report := models.DependencyReport{DataRefs: []models.DataRef{{Path: "configs/run.yaml", Weak: true}}}
	files, records, err := collectDataFiles(report, workDir)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "data/configs/run.yaml", files[0].archivePath)
	assert.Equal(t, "data/configs/run.yaml", records[0].RelPath)
	assert.EqualValues(t, len("k: v"), records[0].Size)
}

func TestCollectDataFiles_AbsoluteRefFlattensToBasename(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "weights.npy")
	require.NoError(t, os.WriteFile(abs, []byte("data"), 0o644))

	report := models.DependencyReport{DataRefs: []models.DataRef{{Path: abs, Weak: true}}}
	files, _, err := collectDataFiles(report, t.TempDir())
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "data/weights.npy", files[0].archivePath)
}

func TestCollectDataFiles_MissingRefIsSkippedNotFailed(t *testing.T) {
	report := models.DependencyReport{DataRefs: []models.DataRef{{Path: "does/not/exist.csv", Weak: true}}}
	files, records, err := collectDataFiles(report, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, records)
}
