package credentials

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/stlpine/clustergo/pkg/models"
)

// StaticSource wraps a pre-resolved CredentialBundle supplied by the
// caller's process configuration (spec §4.1 source 1); it always wins if
// non-empty, since it is first in the chain.
type StaticSource struct {
	bundle models.CredentialBundle
}

// NewStaticSource builds a process-config source. Pass the zero value when
// the caller has no programmatic credentials to offer.
func NewStaticSource(bundle models.CredentialBundle) *StaticSource {
	return &StaticSource{bundle: bundle}
}

func (s *StaticSource) Name() string { return "process-config" }

func (s *StaticSource) Resolve(_ context.Context, _ models.ClusterTarget) (models.CredentialBundle, error) {
	return s.bundle, nil
}

var prefixSanitizer = regexp.MustCompile(`[^A-Z0-9]+`)

// targetPrefix derives the environment-variable prefix for a target: its
// host, uppercased, with non-alphanumeric runs collapsed to a single
// underscore (e.g. "tensor01.dartmouth.edu" -> "TENSOR01_DARTMOUTH_EDU").
func targetPrefix(target models.ClusterTarget) string {
	h := strings.ToUpper(target.Host)
	h = prefixSanitizer.ReplaceAllString(h, "_")
	return strings.Trim(h, "_")
}

// EnvSource implements spec §4.1 source 2: per-target prefixed environment
// variables, falling back to a generic CLUSTRIX_PASSWORD.
type EnvSource struct{}

func NewEnvSource() *EnvSource { return &EnvSource{} }

func (s *EnvSource) Name() string { return "environment" }

func (s *EnvSource) Resolve(_ context.Context, target models.ClusterTarget) (models.CredentialBundle, error) {
	prefix := targetPrefix(target)

	lookup := func(suffix string) string {
		if prefix != "" {
			if v := os.Getenv(prefix + "_" + suffix); v != "" {
				return v
			}
		}
		return ""
	}

	bundle := models.CredentialBundle{
		Password:    lookup("PASSWORD"),
		BearerToken: lookup("TOKEN"),
	}
	if keyPath := lookup("KEY_PATH"); keyPath != "" {
		if data, err := os.ReadFile(keyPath); err == nil {
			bundle.PrivateKeyBytes = data
		}
	}

	if bundle.Empty() {
		if v := os.Getenv("CLUSTRIX_PASSWORD"); v != "" {
			bundle.Password = v
		}
	}

	return bundle, nil
}

// SecretStoreSource implements spec §4.1 source 3: an external secret-store
// CLI invoked as a subprocess, e.g. a 1Password-style `op read` command. The
// subprocess is responsible for its own authentication; this source only
// shells out and captures stdout.
//
// Grounded on the credential_manager.py fallback chain's use of an external
// secret manager binary before falling back to environment variables.
type SecretStoreSource struct {
	cliPath string
	runner  func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewSecretStoreSource builds a source that shells out to cliPath (e.g. the
// path to an `op`-compatible binary). cliPath empty disables the source
// entirely (handled by NewResolver, which omits it in that case).
func NewSecretStoreSource(cliPath string) *SecretStoreSource {
	return &SecretStoreSource{
		cliPath: cliPath,
		runner: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
	}
}

func (s *SecretStoreSource) Name() string { return "secret-store-cli" }

func (s *SecretStoreSource) Resolve(ctx context.Context, target models.ClusterTarget) (models.CredentialBundle, error) {
	if s.cliPath == "" {
		return models.CredentialBundle{}, nil
	}

	item := "clustergo-" + strings.ToLower(targetPrefix(target))
	out, err := s.runner(ctx, s.cliPath, "read", item)
	if err != nil {
		// The item simply doesn't exist in the store; that is "empty", not
		// an error, so the chain continues to the next source.
		return models.CredentialBundle{}, nil
	}

	password := strings.TrimSpace(string(out))
	if password == "" {
		return models.CredentialBundle{}, nil
	}
	return models.CredentialBundle{Password: password}, nil
}
