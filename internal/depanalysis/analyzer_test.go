package depanalysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture_ResolvesOwnDeclaration(t *testing.T) {
	cf, err := Capture(sampleCallable)
	require.NoError(t, err)
	assert.Equal(t, "sampleCallable", cf.Name)
	assert.Contains(t, cf.SourceFile, "testdata_fixtures.go")
}

func TestAnalyze_ReportsLocalCalleeDataRefAndFSCall(t *testing.T) {
	cf, err := Capture(sampleCallable)
	require.NoError(t, err)

	analyzer, err := NewAnalyzer(cf)
	require.NoError(t, err)

	report := analyzer.Analyze(cf)

	require.Len(t, report.LocalCallees, 1)
	assert.Equal(t, "helperForFixture", report.LocalCallees[0].Name)

	require.Len(t, report.DataRefs, 1)
	assert.Equal(t, "configs/run.yaml", report.DataRefs[0].Path)
	assert.True(t, report.DataRefs[0].Weak)

	require.Len(t, report.FSCalls, 1)
	assert.Equal(t, "List", report.FSCalls[0].APIName)
	assert.True(t, report.RequiresRemoteFS)

	var sawFmt bool
	for _, imp := range report.Imports {
		if imp.Path == "fmt" {
			sawFmt = true
		}
	}
	assert.True(t, sawFmt, "file-level fmt import should be reported")
}

func TestCanonicalSource_StripsIndentationAndLineEndings(t *testing.T) {
	cf, err := Capture(helperForFixture)
	require.NoError(t, err)

	src, err := cf.CanonicalSource()
	require.NoError(t, err)
	assert.Contains(t, src, "func helperForFixture")
	assert.NotContains(t, src, "\r\n")
}
