package models

// BundleRef is the handle a Bundle Packager hands back to its caller: a
// content-addressed id plus the path to the archive on the local cache.
type BundleRef struct {
	ID           string `json:"id"`
	ArchivePath  string `json:"archive_path"`
	FunctionName string `json:"function_name"`
}

// SourceFile is a single contributing source file collected into a bundle's
// /sources or /modules tree, deduplicated by content hash.
type SourceFile struct {
	// RelPath is the path inside the archive (relative to /sources or
	// /modules).
	RelPath string `json:"rel_path"`

	ContentHash string `json:"content_hash"`

	// IsLocalCallee is true when this file was pulled in because it defines
	// a local_callee rather than being the captured function's own file.
	IsLocalCallee bool `json:"is_local_callee"`
}

// DataFile is a referenced data file copied into a bundle's /data tree.
type DataFile struct {
	// RelPath is the path inside /data. Absolute source paths are
	// flattened to their basename per spec §4.4 step 3.
	RelPath     string `json:"rel_path"`
	SourcePath  string `json:"source_path"`
	ContentHash string `json:"content_hash"`
	Size        int64  `json:"size"`
}

// Manifest is the content of a bundle's /manifest.json.
type Manifest struct {
	FunctionName       string            `json:"function_name"`
	ArgumentFormatTag  string            `json:"argument_format_tag"`
	InterpreterVersion string            `json:"interpreter_version"`
	Dependencies       DependencyReport  `json:"dependencies"`
	ExternalPackages   []string          `json:"external_packages"`
	TargetIdentityHash string            `json:"target_identity_hash"`
	CreatedAt          string            `json:"created_at"`
	SourceFiles        []SourceFile      `json:"source_files"`
	DataFiles          []DataFile        `json:"data_files"`
	ExtraMetadata      map[string]string `json:"extra_metadata,omitempty"`
}
