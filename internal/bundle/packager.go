package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/stlpine/clustergo/internal/depanalysis"
	"github.com/stlpine/clustergo/pkg/models"
)

// Packager turns a captured, analyzed callable plus its dispatch arguments
// into a cached, content-addressed Bundle (spec §4.4).
type Packager struct {
	// CacheRoot is the directory bundle archives are written under, as
	// {cache_root}/bundle-{id}.zst.
	CacheRoot string
}

// NewPackager constructs a Packager rooted at cacheRoot, creating the
// directory if it does not already exist.
func NewPackager(cacheRoot string) (*Packager, error) {
	if cacheRoot == "" {
		return nil, errNoCacheRoot
	}
	if err := os.MkdirAll(cacheRoot, 0o755); err != nil {
		return nil, fmt.Errorf("bundle: create cache root: %w", err)
	}
	return &Packager{CacheRoot: cacheRoot}, nil
}

// PackageInput collects everything the packager needs from its callers
// (the dependency analyzer and pkg/dispatch) to build one bundle.
type PackageInput struct {
	Captured    *depanalysis.CapturedFunction
	Report      models.DependencyReport
	Target      models.ClusterTarget
	ArgsPayload []byte
	WorkingDir  string
}

// Package runs the packaging pipeline described in spec §4.4: collect
// source and data files, compute the bundle id, and write (or reuse) the
// archive at {cache_root}/bundle-{id}.zst.
func (p *Packager) Package(in PackageInput) (models.BundleRef, error) {
	sourceFiles, sourceRecords, err := collectSourceFiles(in.Captured, in.Report)
	if err != nil {
		return models.BundleRef{}, err
	}
	dataFiles, dataRecords, err := collectDataFiles(in.Report, in.WorkingDir)
	if err != nil {
		return models.BundleRef{}, err
	}

	canonicalSource, err := in.Captured.CanonicalSource()
	if err != nil {
		return models.BundleRef{}, &PackagingError{Kind: ErrorKindMissingSource, Path: in.Captured.SourceFile, Err: err}
	}

	interpreterVersion := runtime.Version()
	id := computeBundleID(canonicalSource, sourceRecords, dataRecords, interpreterVersion, in.Target)
	archivePath := filepath.Join(p.CacheRoot, fmt.Sprintf("bundle-%s.zst", id))

	ref := models.BundleRef{ID: id, ArchivePath: archivePath, FunctionName: in.Captured.Name}

	if _, err := os.Stat(archivePath); err == nil {
		return ref, nil // spec §4.4 step 4: re-creating an existing id is a no-op
	}

	inputType, err := deriveInputTypeExpr(in.Captured)
	if err != nil {
		return models.BundleRef{}, &PackagingError{Kind: ErrorKindArchiveWrite, Err: err}
	}

	bootstrapSrc, err := renderBootstrap(sourceFiles, in.Captured.Name, in.Captured.Name, inputType, in.Report.RequiresRemoteFS)
	if err != nil {
		return models.BundleRef{}, err
	}

	externalPackages := DetectExternalPackages(in.Report)

	manifest := models.Manifest{
		FunctionName:       in.Captured.Name,
		ArgumentFormatTag:  argsPayloadFormat,
		InterpreterVersion: interpreterVersion,
		Dependencies:       in.Report,
		ExternalPackages:   externalPackages,
		TargetIdentityHash: targetIdentityDigest(in.Target),
		CreatedAt:          time.Now().UTC().Format(time.RFC3339),
		SourceFiles:        sourceRecords,
		DataFiles:          dataRecords,
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return models.BundleRef{}, &PackagingError{Kind: ErrorKindArchiveWrite, Err: err}
	}

	targetJSON, err := json.MarshalIndent(in.Target, "", "  ")
	if err != nil {
		return models.BundleRef{}, &PackagingError{Kind: ErrorKindArchiveWrite, Err: err}
	}

	var entries []archiveEntry
	entries = append(entries,
		archiveEntry{path: "manifest.json", content: manifestJSON},
		archiveEntry{path: "target.json", content: targetJSON},
		archiveEntry{path: "bootstrap/main.go", content: bootstrapSrc},
		archiveEntry{path: "bootstrap/go.mod", content: bootstrapGoMod(in.Report.RequiresRemoteFS)},
		archiveEntry{path: "args.payload", content: in.ArgsPayload},
	)
	for _, f := range sourceFiles {
		entries = append(entries, archiveEntry{path: f.archivePath, content: f.content})
	}
	for _, f := range dataFiles {
		entries = append(entries, archiveEntry{path: f.archivePath, content: f.content})
	}
	if in.Report.RequiresRemoteFS {
		shimFiles, err := shimSourceFiles()
		if err != nil {
			return models.BundleRef{}, &PackagingError{Kind: ErrorKindArchiveWrite, Err: err}
		}
		shimNames := []string{"api.go", "local.go", "default.go"}
		for i, content := range shimFiles {
			entries = append(entries, archiveEntry{path: "fs_shim/" + shimNames[i], content: content})
		}
		entries = append(entries, archiveEntry{path: "fs_shim/go.mod", content: []byte(fsShimGoMod())})
	}

	archiveData, err := buildArchive(entries)
	if err != nil {
		return models.BundleRef{}, err
	}

	if err := writeAtomic(archivePath, archiveData); err != nil {
		return models.BundleRef{}, &PackagingError{Kind: ErrorKindArchiveWrite, Path: archivePath, Err: err}
	}

	return ref, nil
}

// writeAtomic writes data to a temp file in filepath.Dir(path) and renames
// it into place, so a concurrent reader of path never observes a partial
// write (spec §5's "writers content-address their output file and rename
// atomically on completion").
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".bundle-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// deriveInputTypeExpr renders the source text of the captured function's
// second parameter type (the first is assumed to be context.Context, per
// pkg/dispatch's Wrap[In, Out] contract) so the generated bootstrap can
// declare a correctly-typed local variable to decode args.payload into
// without reflection.
func deriveInputTypeExpr(cf *depanalysis.CapturedFunction) (string, error) {
	sig := cf.FuncType()
	if sig.Params == nil || len(sig.Params.List) != 2 {
		return "", fmt.Errorf("depanalysis: %s must take exactly (context.Context, In) to be dispatched", cf.Name)
	}
	if sig.Results == nil || len(sig.Results.List) != 2 {
		return "", fmt.Errorf("depanalysis: %s must return exactly (Out, error) to be dispatched", cf.Name)
	}

	inParam := sig.Params.List[1].Type
	var buf bytes.Buffer
	if err := format.Node(&buf, cf.FileSet(), inParam); err != nil {
		return "", err
	}
	return buf.String(), nil
}
