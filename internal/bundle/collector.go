package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/stlpine/clustergo/internal/depanalysis"
	"github.com/stlpine/clustergo/pkg/models"
)

// collectedFile is a file pulled into the archive, content already read
// into memory; bundles are small (single-function packages), so there is
// no need to stream.
type collectedFile struct {
	archivePath   string
	content       []byte
	isLocalCallee bool
}

// collectSourceFiles gathers the captured function's own defining file plus
// the defining file of each local callee, deduplicated by content hash, and
// laid out under sources/ per spec §4.4 step 3. Whole files are collected,
// not just the function span, so any sibling type declarations a captured
// function's parameter types depend on travel with it (the bootstrap
// concatenates these same files, see bootstrap.go).
func collectSourceFiles(cf *depanalysis.CapturedFunction, report models.DependencyReport) ([]collectedFile, []models.SourceFile, error) {
	type candidate struct {
		path          string
		isLocalCallee bool
	}

	order := []candidate{{path: cf.SourceFile, isLocalCallee: false}}
	added := map[string]bool{cf.SourceFile: true}
	for _, callee := range report.LocalCallees {
		if added[callee.SourceFile] {
			continue
		}
		added[callee.SourceFile] = true
		order = append(order, candidate{path: callee.SourceFile, isLocalCallee: true})
	}

	seenHash := make(map[string]bool)
	var files []collectedFile
	var records []models.SourceFile

	for _, c := range order {
		data, err := os.ReadFile(c.path)
		if err != nil {
			return nil, nil, &PackagingError{Kind: ErrorKindMissingSource, Path: c.path, Err: err}
		}
		hash := contentHash(data)
		if seenHash[hash] {
			continue
		}
		seenHash[hash] = true

		archivePath := "sources/" + filepath.Base(c.path)
		files = append(files, collectedFile{archivePath: archivePath, content: data, isLocalCallee: c.isLocalCallee})
		records = append(records, models.SourceFile{
			RelPath:       archivePath,
			ContentHash:   hash,
			IsLocalCallee: c.isLocalCallee,
		})
	}

	return files, records, nil
}

// collectDataFiles resolves each weak data_ref that exists on the local
// filesystem (absolute, or relative to workingDir) into an archive entry
// under data/, per spec §4.4 step 2 and step 3's "absolute paths flattened
// to basenames". Refs that don't resolve to an existing file are dropped
// silently: a weak reference is a heuristic guess, not a declared
// dependency, so a miss is not a packaging failure.
func collectDataFiles(report models.DependencyReport, workingDir string) ([]collectedFile, []models.DataFile, error) {
	seen := make(map[string]bool)
	var files []collectedFile
	var records []models.DataFile

	for _, ref := range report.DataRefs {
		full := ref.Path
		if !filepath.IsAbs(full) {
			full = filepath.Join(workingDir, ref.Path)
		}
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}

		var archivePath string
		if filepath.IsAbs(ref.Path) {
			archivePath = "data/" + filepath.Base(ref.Path)
		} else {
			archivePath = "data/" + filepath.ToSlash(ref.Path)
		}
		if seen[archivePath] {
			continue
		}
		seen[archivePath] = true

		data, err := os.ReadFile(full)
		if err != nil {
			return nil, nil, &PackagingError{Kind: ErrorKindUnreadableData, Path: full, Err: err}
		}
		hash := contentHash(data)
		files = append(files, collectedFile{archivePath: archivePath, content: data})
		records = append(records, models.DataFile{
			RelPath:     archivePath,
			SourcePath:  full,
			ContentHash: hash,
			Size:        info.Size(),
		})
	}

	return files, records, nil
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
