package fsabstraction

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Local implements FS directly against the machine's own filesystem via
// os/io/fs/path/filepath, used whenever ClusterTarget.Kind == local.
type Local struct{}

func NewLocal() *Local { return &Local{} }

func (l *Local) List(_ context.Context, path string) ([]Entry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, wrapLocalErr(path, err)
	}
	var out []Entry
	for _, e := range entries {
		out = append(out, Entry{Path: filepath.Join(path, e.Name()), IsDir: e.IsDir()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (l *Local) Find(_ context.Context, root, pattern string) ([]Entry, error) {
	var out []Entry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		matched, mErr := filepath.Match(pattern, filepath.Base(p))
		if mErr != nil {
			return mErr
		}
		if matched {
			out = append(out, Entry{Path: p, IsDir: d.IsDir()})
		}
		return nil
	})
	if err != nil {
		return nil, wrapLocalErr(root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (l *Local) Glob(_ context.Context, root, pattern string) ([]Entry, error) {
	matches, err := filepath.Glob(filepath.Join(root, pattern))
	if err != nil {
		return nil, wrapLocalErr(root, err)
	}
	var out []Entry
	for _, m := range matches {
		info, statErr := os.Stat(m)
		isDir := statErr == nil && info.IsDir()
		out = append(out, Entry{Path: m, IsDir: isDir})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (l *Local) Stat(_ context.Context, path string) (StatResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return StatResult{}, wrapLocalErr(path, err)
	}
	return StatResult{
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
		IsFile:  !info.IsDir(),
		Mode:    info.Mode().String(),
	}, nil
}

func (l *Local) Exists(ctx context.Context, path string) (bool, error) {
	_, err := l.Stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (l *Local) IsDir(ctx context.Context, path string) (bool, error) {
	s, err := l.Stat(ctx, path)
	if err != nil {
		return false, err
	}
	return s.IsDir, nil
}

func (l *Local) IsFile(ctx context.Context, path string) (bool, error) {
	s, err := l.Stat(ctx, path)
	if err != nil {
		return false, err
	}
	return s.IsFile, nil
}

func (l *Local) TreeSize(_ context.Context, root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, wrapLocalErr(root, err)
	}
	return total, nil
}

func (l *Local) Count(_ context.Context, root, pattern string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root || d.IsDir() {
			return nil
		}
		matched, mErr := filepath.Match(pattern, filepath.Base(p))
		if mErr != nil {
			return mErr
		}
		if matched {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, wrapLocalErr(root, err)
	}
	return count, nil
}

// Refresh is a no-op for Local: there is no cache to invalidate at this
// layer (the cache wraps whichever FS it decorates).
func (l *Local) Refresh(string) {}

func wrapLocalErr(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return &FsError{Kind: ErrorKindNotFound, Path: path, Err: err}
	case os.IsPermission(err):
		return &FsError{Kind: ErrorKindPermissionDenied, Path: path, Err: err}
	default:
		return &FsError{Kind: ErrorKindTransportError, Path: path, Err: err}
	}
}
