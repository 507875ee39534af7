package bundle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stlpine/clustergo/pkg/models"
)

func TestComputeBundleID_DeterministicForIdenticalInputs(t *testing.T) {
	sources := []models.SourceFile{{RelPath: "sources/a.go", ContentHash: "aaa"}}
	data := []models.DataFile{{ContentHash: "bbb"}}
	target := models.ClusterTarget{Kind: models.KindSSH, Host: "h", Port: 22, Username: "u"}

	id1 := computeBundleID("func F() {}", sources, data, "go1.25.0", target)
	id2 := computeBundleID("func F() {}", sources, data, "go1.25.0", target)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 32) // 16 bytes, hex-encoded
}

func TestComputeBundleID_SourceOrderDoesNotMatter(t *testing.T) {
	a := []models.SourceFile{{RelPath: "sources/a.go", ContentHash: "aaa"}, {RelPath: "sources/b.go", ContentHash: "bbb"}}
	b := []models.SourceFile{{RelPath: "sources/b.go", ContentHash: "bbb"}, {RelPath: "sources/a.go", ContentHash: "aaa"}}
	target := models.ClusterTarget{Kind: models.KindLocal}

	id1 := computeBundleID("func F() {}", a, nil, "go1.25.0", target)
	id2 := computeBundleID("func F() {}", b, nil, "go1.25.0", target)

	assert.Equal(t, id1, id2)
}

func TestComputeBundleID_DifferentSourceProducesDifferentID(t *testing.T) {
	target := models.ClusterTarget{Kind: models.KindLocal}
	id1 := computeBundleID("func F() { return 1 }", nil, nil, "go1.25.0", target)
	id2 := computeBundleID("func F() { return 2 }", nil, nil, "go1.25.0", target)

	assert.NotEqual(t, id1, id2)
}

func TestComputeBundleID_DifferentInterpreterVersionProducesDifferentID(t *testing.T) {
	target := models.ClusterTarget{Kind: models.KindLocal}
	id1 := computeBundleID("func F() {}", nil, nil, "go1.24.0", target)
	id2 := computeBundleID("func F() {}", nil, nil, "go1.25.0", target)

	assert.NotEqual(t, id1, id2)
}
