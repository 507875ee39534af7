package fsabstraction

import "context"

// defaultFS is the process-wide filesystem shim used by the package-level
// convenience functions below. User code captured by a dispatch call
// references these directly (fsabstraction.List, .Stat, ...); the bundle
// shim resets defaultFS to a Local or Remote instance appropriate to where
// the call actually runs, so the same source compiles and behaves
// identically on either side (spec §4.5's "same shim embedded into
// bundles").
var defaultFS FS = NewLocal()

// SetDefault installs fs as the target of the package-level convenience
// functions. Called once by the bundle bootstrap before the captured
// function runs.
func SetDefault(fs FS) { defaultFS = fs }

func List(ctx context.Context, path string) ([]Entry, error) { return defaultFS.List(ctx, path) }

func Find(ctx context.Context, path, pattern string) ([]Entry, error) {
	return defaultFS.Find(ctx, path, pattern)
}

func Glob(ctx context.Context, path, pattern string) ([]Entry, error) {
	return defaultFS.Glob(ctx, path, pattern)
}

func Stat(ctx context.Context, path string) (StatResult, error) { return defaultFS.Stat(ctx, path) }

func Exists(ctx context.Context, path string) (bool, error) { return defaultFS.Exists(ctx, path) }

func IsDir(ctx context.Context, path string) (bool, error) { return defaultFS.IsDir(ctx, path) }

func IsFile(ctx context.Context, path string) (bool, error) { return defaultFS.IsFile(ctx, path) }

func TreeSize(ctx context.Context, path string) (int64, error) { return defaultFS.TreeSize(ctx, path) }

func Count(ctx context.Context, path, pattern string) (int, error) {
	return defaultFS.Count(ctx, path, pattern)
}

// Refresh invalidates any cached result under path on the default FS.
func Refresh(path string) { defaultFS.Refresh(path) }
