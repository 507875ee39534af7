package bundle

import (
	"fmt"
	"sort"

	"github.com/stlpine/clustergo/internal/fsabstraction"
)

type importSpec struct {
	path  string
	alias string
}

// importSet dedupes import specs by path while preserving the first alias
// seen for each, used when flattening several source files' import blocks
// into the bootstrap's single import block.
type importSet struct {
	order []string
	alias map[string]string
}

func newImportSet() *importSet {
	return &importSet{alias: make(map[string]string)}
}

func (s *importSet) add(path, alias string) {
	if _, ok := s.alias[path]; ok {
		return
	}
	s.alias[path] = alias
	s.order = append(s.order, path)
}

func (s *importSet) list() []importSpec {
	out := make([]importSpec, len(s.order))
	for i, path := range s.order {
		out[i] = importSpec{path: path, alias: s.alias[path]}
	}
	return out
}

// render formats the set as the body of a parenthesized import block,
// sorted by path for deterministic output.
func (s *importSet) render() string {
	paths := make([]string, len(s.order))
	copy(paths, s.order)
	sort.Strings(paths)

	out := ""
	for _, path := range paths {
		alias := s.alias[path]
		if alias == "" || alias == "_" {
			out += fmt.Sprintf("\t%q\n", path)
		} else {
			out += fmt.Sprintf("\t%s %q\n", alias, path)
		}
	}
	return out
}

// shimSourceFiles reads the embedded filesystem-abstraction shim's local
// subset (api.go, local.go, default.go) in a fixed order so
// renderBootstrap's output is deterministic.
func shimSourceFiles() ([][]byte, error) {
	names := []string{"api.go", "local.go", "default.go"}
	out := make([][]byte, 0, len(names))
	for _, name := range names {
		data, err := fsabstraction.ShimSource.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("bundle: read embedded shim %s: %w", name, err)
		}
		out = append(out, data)
	}
	return out, nil
}
