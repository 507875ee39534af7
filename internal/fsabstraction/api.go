// Package fsabstraction provides a small, enumerated read-only filesystem
// API (spec §4.5) that dispatches to native syscalls for a local target and
// to internal/transport shell one-liners for a remote one, so user code and
// the result harvester see identical semantics on either side.
package fsabstraction

import (
	"context"
	"errors"
	"time"
)

// Entry is a single result row: List/Find/Glob entries, lexicographically
// ordered, relative to the query root unless an absolute root was supplied.
type Entry struct {
	Path  string
	IsDir bool
}

// StatResult is the structured return of Stat.
type StatResult struct {
	Size    int64
	ModTime time.Time
	IsDir   bool
	IsFile  bool
	Mode    string
}

// ErrorKind classifies an FsError.
type ErrorKind string

const (
	ErrorKindNotFound         ErrorKind = "not_found"
	ErrorKindPermissionDenied ErrorKind = "permission_denied"
	ErrorKindTransportError   ErrorKind = "transport_error"
)

// FsError is the error shape spec §4.5 specifies:
// FsError{NotFound|PermissionDenied|TransportError(...)}.
type FsError struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *FsError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Path + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Path
}

func (e *FsError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is an FsError with ErrorKindNotFound.
func IsNotFound(err error) bool {
	var fe *FsError
	return errors.As(err, &fe) && fe.Kind == ErrorKindNotFound
}

// FS is the enumerated filesystem API (spec §4.5): list, find, glob, stat,
// exists, is_dir, is_file, tree_size, count.
type FS interface {
	List(ctx context.Context, path string) ([]Entry, error)
	Find(ctx context.Context, path, pattern string) ([]Entry, error)
	Glob(ctx context.Context, path, pattern string) ([]Entry, error)
	Stat(ctx context.Context, path string) (StatResult, error)
	Exists(ctx context.Context, path string) (bool, error)
	IsDir(ctx context.Context, path string) (bool, error)
	IsFile(ctx context.Context, path string) (bool, error)
	TreeSize(ctx context.Context, path string) (int64, error)
	Count(ctx context.Context, path, pattern string) (int, error)

	// Refresh invalidates any cached result for path (and its descendants),
	// forcing the next call to re-query.
	Refresh(path string)
}
