package depanalysis

import (
	"context"
	"fmt"

	"github.com/stlpine/clustergo/internal/fsabstraction"
)

// helperForFixture is called by sampleCallable below, so analysis of
// sampleCallable should report it as a local callee.
func helperForFixture(x int) int {
	return x * 2
}

// sampleCallable is the fixture analyzed by analyzer_test.go: it imports
// fmt (file-level import, already reported via the file), calls a local
// sibling function, references a data file literal, and calls through the
// filesystem abstraction.
func sampleCallable(ctx context.Context) (int, error) {
	doubled := helperForFixture(21)

	configPath := "configs/run.yaml"
	_ = configPath

	entries, err := fsabstraction.List(ctx, "/data/inputs")
	if err != nil {
		return 0, fmt.Errorf("list failed: %w", err)
	}

	return doubled + len(entries), nil
}
