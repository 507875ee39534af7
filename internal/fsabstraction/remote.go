package fsabstraction

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/stlpine/clustergo/internal/transport"
	"github.com/stlpine/clustergo/pkg/models"
)

// execer is the subset of *transport.Transport remote filesystem calls need;
// narrowed to ease testing with a fake.
type execer interface {
	Exec(ctx context.Context, target models.ClusterTarget, cred models.CredentialBundle, cmd string) (transport.ExecResult, error)
}

// Remote implements FS by running small POSIX shell one-liners over
// internal/transport.Exec, parsing their output into the same result shape
// Local returns — so the same bundle-embedded shim behaves identically
// whether "remote" resolves over the network or, inside a pod, to the
// node's own filesystem.
type Remote struct {
	exec   execer
	target models.ClusterTarget
	cred   models.CredentialBundle
}

func NewRemote(exec execer, target models.ClusterTarget, cred models.CredentialBundle) *Remote {
	return &Remote{exec: exec, target: target, cred: cred}
}

func (r *Remote) run(ctx context.Context, cmd string) (transport.ExecResult, error) {
	return r.exec.Exec(ctx, r.target, r.cred, cmd)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (r *Remote) List(ctx context.Context, path string) ([]Entry, error) {
	res, err := r.run(ctx, fmt.Sprintf("ls -1p %s 2>&1", shellQuote(path)))
	if err != nil {
		return nil, remoteErr(path, err)
	}
	if res.ExitCode != 0 {
		return nil, classifyRemoteFailure(path, res)
	}

	var out []Entry
	for _, line := range splitNonEmptyLines(res.Stdout) {
		isDir := strings.HasSuffix(line, "/")
		name := strings.TrimSuffix(line, "/")
		out = append(out, Entry{Path: joinRemote(path, name), IsDir: isDir})
	}
	return out, nil
}

func (r *Remote) Find(ctx context.Context, path, pattern string) ([]Entry, error) {
	cmd := fmt.Sprintf("find %s -mindepth 1 -name %s 2>&1 | sort", shellQuote(path), shellQuote(pattern))
	res, err := r.run(ctx, cmd)
	if err != nil {
		return nil, remoteErr(path, err)
	}
	if res.ExitCode != 0 {
		return nil, classifyRemoteFailure(path, res)
	}
	return r.statEachLine(ctx, res.Stdout)
}

func (r *Remote) Glob(ctx context.Context, path, pattern string) ([]Entry, error) {
	cmd := fmt.Sprintf("cd %s 2>&1 && for f in %s; do [ -e \"$f\" ] && echo \"$f\"; done | sort", shellQuote(path), pattern)
	res, err := r.run(ctx, cmd)
	if err != nil {
		return nil, remoteErr(path, err)
	}
	if res.ExitCode != 0 {
		return nil, classifyRemoteFailure(path, res)
	}
	return r.statEachLine(ctx, prefixLines(res.Stdout, path))
}

func (r *Remote) statEachLine(ctx context.Context, output string) ([]Entry, error) {
	var out []Entry
	for _, line := range splitNonEmptyLines(output) {
		s, err := r.Stat(ctx, line)
		if err != nil {
			continue
		}
		out = append(out, Entry{Path: line, IsDir: s.IsDir})
	}
	return out, nil
}

func (r *Remote) Stat(ctx context.Context, path string) (StatResult, error) {
	cmd := fmt.Sprintf("stat -c '%%s|%%Y|%%F' %s 2>&1", shellQuote(path))
	res, err := r.run(ctx, cmd)
	if err != nil {
		return StatResult{}, remoteErr(path, err)
	}
	if res.ExitCode != 0 {
		return StatResult{}, classifyRemoteFailure(path, res)
	}

	fields := strings.SplitN(strings.TrimSpace(res.Stdout), "|", 3)
	if len(fields) != 3 {
		return StatResult{}, &FsError{Kind: ErrorKindTransportError, Path: path, Err: fmt.Errorf("unparseable stat output: %q", res.Stdout)}
	}

	size, _ := strconv.ParseInt(fields[0], 10, 64)
	epoch, _ := strconv.ParseInt(fields[1], 10, 64)
	isDir := strings.Contains(fields[2], "directory")

	return StatResult{
		Size:    size,
		ModTime: time.Unix(epoch, 0).UTC(),
		IsDir:   isDir,
		IsFile:  !isDir,
		Mode:    fields[2],
	}, nil
}

func (r *Remote) Exists(ctx context.Context, path string) (bool, error) {
	_, err := r.Stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (r *Remote) IsDir(ctx context.Context, path string) (bool, error) {
	s, err := r.Stat(ctx, path)
	if err != nil {
		return false, err
	}
	return s.IsDir, nil
}

func (r *Remote) IsFile(ctx context.Context, path string) (bool, error) {
	s, err := r.Stat(ctx, path)
	if err != nil {
		return false, err
	}
	return s.IsFile, nil
}

func (r *Remote) TreeSize(ctx context.Context, path string) (int64, error) {
	cmd := fmt.Sprintf("du -sb %s 2>&1 | cut -f1", shellQuote(path))
	res, err := r.run(ctx, cmd)
	if err != nil {
		return 0, remoteErr(path, err)
	}
	if res.ExitCode != 0 {
		return 0, classifyRemoteFailure(path, res)
	}
	size, parseErr := strconv.ParseInt(strings.TrimSpace(res.Stdout), 10, 64)
	if parseErr != nil {
		return 0, &FsError{Kind: ErrorKindTransportError, Path: path, Err: parseErr}
	}
	return size, nil
}

func (r *Remote) Count(ctx context.Context, path, pattern string) (int, error) {
	cmd := fmt.Sprintf("find %s -mindepth 1 -name %s 2>&1 | wc -l", shellQuote(path), shellQuote(pattern))
	res, err := r.run(ctx, cmd)
	if err != nil {
		return 0, remoteErr(path, err)
	}
	if res.ExitCode != 0 {
		return 0, classifyRemoteFailure(path, res)
	}
	n, parseErr := strconv.Atoi(strings.TrimSpace(res.Stdout))
	if parseErr != nil {
		return 0, &FsError{Kind: ErrorKindTransportError, Path: path, Err: parseErr}
	}
	return n, nil
}

// Refresh is a no-op on Remote itself; caching lives in the Cached wrapper.
func (r *Remote) Refresh(string) {}

func remoteErr(path string, err error) error {
	return &FsError{Kind: ErrorKindTransportError, Path: path, Err: err}
}

func classifyRemoteFailure(path string, res transport.ExecResult) error {
	combined := strings.ToLower(res.Stdout + res.Stderr)
	switch {
	case strings.Contains(combined, "no such file"):
		return &FsError{Kind: ErrorKindNotFound, Path: path, Err: fmt.Errorf("%s", strings.TrimSpace(res.Stderr+res.Stdout))}
	case strings.Contains(combined, "permission denied"):
		return &FsError{Kind: ErrorKindPermissionDenied, Path: path, Err: fmt.Errorf("%s", strings.TrimSpace(res.Stderr+res.Stdout))}
	default:
		return &FsError{Kind: ErrorKindTransportError, Path: path, Err: fmt.Errorf("exit %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr+res.Stdout))}
	}
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func prefixLines(s, prefix string) string {
	var b strings.Builder
	for _, line := range splitNonEmptyLines(s) {
		b.WriteString(joinRemote(prefix, line))
		b.WriteByte('\n')
	}
	return b.String()
}

func joinRemote(base, name string) string {
	if strings.HasSuffix(base, "/") {
		return base + name
	}
	return base + "/" + name
}
