package transport

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/sftp"

	"github.com/stlpine/clustergo/pkg/models"
)

// Upload copies localPath to remotePath on target over SFTP, creating
// remotePath's parent directory tree if missing.
func (t *Transport) Upload(ctx context.Context, target models.ClusterTarget, cred models.CredentialBundle, localPath, remotePath string) error {
	sc, err := t.sftpClient(ctx, target, cred)
	if err != nil {
		return err
	}
	defer sc.Close()
	defer t.pool.Release(target)

	if err := sc.MkdirAll(parentDir(remotePath)); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ErrTransferFailed, parentDir(remotePath), err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrTransferFailed, localPath, err)
	}
	defer src.Close()

	dst, err := sc.Create(remotePath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrTransferFailed, remotePath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: copy to %s: %v", ErrTransferFailed, remotePath, err)
	}
	return nil
}

// Download copies remotePath on target to localPath.
func (t *Transport) Download(ctx context.Context, target models.ClusterTarget, cred models.CredentialBundle, remotePath, localPath string) error {
	sc, err := t.sftpClient(ctx, target, cred)
	if err != nil {
		return err
	}
	defer sc.Close()
	defer t.pool.Release(target)

	src, err := sc.Open(remotePath)
	if err != nil {
		return fmt.Errorf("%w: open remote %s: %v", ErrTransferFailed, remotePath, err)
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrTransferFailed, localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: copy from %s: %v", ErrTransferFailed, remotePath, err)
	}
	return nil
}

// Stat returns remotePath's size and existence on target. A non-existent
// path reports (0, false, nil) rather than an error.
func (t *Transport) Stat(ctx context.Context, target models.ClusterTarget, cred models.CredentialBundle, remotePath string) (size int64, exists bool, err error) {
	sc, err := t.sftpClient(ctx, target, cred)
	if err != nil {
		return 0, false, err
	}
	defer sc.Close()
	defer t.pool.Release(target)

	info, statErr := sc.Stat(remotePath)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: stat %s: %v", ErrTransferFailed, remotePath, statErr)
	}
	return info.Size(), true, nil
}

// ReadFile reads the entire contents of remotePath, used by the harvester
// to pull small result/error artifacts without a two-step download.
func (t *Transport) ReadFile(ctx context.Context, target models.ClusterTarget, cred models.CredentialBundle, remotePath string) ([]byte, error) {
	sc, err := t.sftpClient(ctx, target, cred)
	if err != nil {
		return nil, err
	}
	defer sc.Close()
	defer t.pool.Release(target)

	f, err := sc.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrTransferFailed, remotePath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrTransferFailed, remotePath, err)
	}
	return data, nil
}

func (t *Transport) sftpClient(ctx context.Context, target models.ClusterTarget, cred models.CredentialBundle) (*sftp.Client, error) {
	client, err := t.connectWithBackoff(ctx, target, cred)
	if err != nil {
		return nil, err
	}
	sc, err := sftp.NewClient(client)
	if err != nil {
		t.pool.Invalidate(target)
		return nil, fmt.Errorf("%w: new sftp client: %v", ErrTransferFailed, err)
	}
	return sc, nil
}

func parentDir(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			if i == 0 {
				return "/"
			}
			return path[:i]
		}
	}
	return "."
}
