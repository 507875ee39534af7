package bundle

import (
	"archive/tar"
	"bytes"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
)

// archiveEntry is one file destined for the tar stream.
type archiveEntry struct {
	path    string
	content []byte
}

// buildArchive writes entries as a deterministic tar stream (sorted by
// path, fixed mtime and ownership so two packaging runs over identical
// inputs produce byte-identical output) compressed with zstd at a fixed
// encoder level, per spec.md invariant 1 and SPEC_FULL's C4 notes on
// archive determinism.
func buildArchive(entries []archiveEntry) ([]byte, error) {
	sorted := make([]archiveEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].path < sorted[j].path })

	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for _, e := range sorted {
		hdr := &tar.Header{
			Name:     e.path,
			Size:     int64(len(e.content)),
			Mode:     0o644,
			Uid:      0,
			Gid:      0,
			Uname:    "",
			Gname:    "",
			ModTime:  time.Unix(0, 0).UTC(),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, &PackagingError{Kind: ErrorKindArchiveWrite, Path: e.path, Err: err}
		}
		if _, err := tw.Write(e.content); err != nil {
			return nil, &PackagingError{Kind: ErrorKindArchiveWrite, Path: e.path, Err: err}
		}
	}
	if err := tw.Close(); err != nil {
		return nil, &PackagingError{Kind: ErrorKindArchiveWrite, Err: err}
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderCRC(false),
	)
	if err != nil {
		return nil, &PackagingError{Kind: ErrorKindArchiveWrite, Err: err}
	}
	compressed := enc.EncodeAll(tarBuf.Bytes(), nil)
	if err := enc.Close(); err != nil {
		return nil, &PackagingError{Kind: ErrorKindArchiveWrite, Err: err}
	}

	return compressed, nil
}
