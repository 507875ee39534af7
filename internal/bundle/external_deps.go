package bundle

import (
	"sort"
	"strings"

	"github.com/stlpine/clustergo/pkg/models"
)

// localModulePrefix identifies imports belonging to this module, mirroring
// the original's "skip local modules (already detected)" rule; Go's fully
// qualified import paths make that check exact rather than a basename
// guess.
const localModulePrefix = "github.com/stlpine/clustergo"

// DetectExternalPackages walks a dependency report's imports and returns
// the sorted, deduplicated set of import paths that are neither standard
// library nor part of this module, per spec §4.4 step 5 ("consulting the
// dependency report's imports minus an enumerated standard-library
// allowlist and minus names resolvable to local modules").
//
// Unlike the Python original, which maps an import name to a pip package
// name because the import identifier and the installable unit differ, a
// Go import path already *is* the installable unit (`go get <path>`), so
// no alias table is needed.
func DetectExternalPackages(report models.DependencyReport) []string {
	seen := make(map[string]bool)
	var out []string

	for _, imp := range report.Imports {
		if isStdlibImport(imp.Path) {
			continue
		}
		if strings.HasPrefix(imp.Path, localModulePrefix) {
			continue
		}
		if seen[imp.Path] {
			continue
		}
		seen[imp.Path] = true
		out = append(out, imp.Path)
	}

	sort.Strings(out)
	return out
}

// isStdlibImport reports whether path looks like a standard-library import
// path: its first path segment contains no dot. Every third-party Go
// import path is rooted at a domain (github.com, golang.org, gopkg.in, ...)
// and therefore contains a dot in its first segment; the standard library
// never does. This is the Go-native analogue of the original's fixed
// stdlib module-name set.
func isStdlibImport(path string) bool {
	first := path
	if i := strings.IndexByte(path, '/'); i >= 0 {
		first = path[:i]
	}
	return !strings.Contains(first, ".")
}
