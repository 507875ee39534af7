package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/stlpine/clustergo/pkg/models"
)

// credentialFileEntry is one target's record within the credential file, per
// spec §6's "Credential file format".
type credentialFileEntry struct {
	ClusterType string `json:"cluster_type"`
	ClusterHost string `json:"cluster_host"`
	Username    string `json:"username"`
	AuthMethod  string `json:"auth_method"` // password | key | token
	Password    string `json:"password,omitempty"`
	KeyPath     string `json:"key_path,omitempty"`
	Token       string `json:"token,omitempty"`
}

// FileSource implements spec §4.1 source 4: a JSON-shaped credential file
// under a user config directory, keyed by target identifier, readable only
// by its owner.
type FileSource struct {
	path string
}

// NewFileSource builds a source reading from path. An empty path disables
// the source (Resolve returns an empty bundle without error).
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Name() string { return "credential-file" }

func (s *FileSource) Resolve(_ context.Context, target models.ClusterTarget) (models.CredentialBundle, error) {
	if s.path == "" {
		return models.CredentialBundle{}, nil
	}

	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return models.CredentialBundle{}, nil
	}
	if err != nil {
		return models.CredentialBundle{}, fmt.Errorf("stat credential file: %w", err)
	}

	if runtime.GOOS != "windows" {
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return models.CredentialBundle{}, fmt.Errorf("%w: %s has mode %04o, want 0600 or tighter", ErrPermissionsTooOpen, s.path, mode)
		}
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return models.CredentialBundle{}, fmt.Errorf("read credential file: %w", err)
	}

	var entries map[string]credentialFileEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return models.CredentialBundle{}, fmt.Errorf("parse credential file: %w", err)
	}

	entry, ok := entries[target.Host]
	if !ok {
		return models.CredentialBundle{}, nil
	}

	bundle := models.CredentialBundle{}
	switch entry.AuthMethod {
	case "password":
		bundle.Password = entry.Password
	case "token":
		bundle.BearerToken = entry.Token
	case "key":
		if entry.KeyPath != "" {
			data, err := os.ReadFile(entry.KeyPath)
			if err != nil {
				return models.CredentialBundle{}, fmt.Errorf("read private key %s: %w", entry.KeyPath, err)
			}
			bundle.PrivateKeyBytes = data
		}
	default:
		return models.CredentialBundle{}, fmt.Errorf("credential file: unrecognized auth_method %q for %s", entry.AuthMethod, target.Host)
	}

	return bundle, nil
}

// DefaultCredentialFilePath returns the conventional location of the
// credential file under the user's config directory.
func DefaultCredentialFilePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return dir + "/clustergo/credentials.json"
}
