package models

// CredentialBundle holds the secret material resolved by the credential
// chain for a single ClusterTarget. It is assembled in memory only, never
// written to disk, and must be zeroed as soon as the transport that
// consumed it has completed (spec §6).
type CredentialBundle struct {
	Password             string
	PrivateKeyBytes      []byte
	PrivateKeyPassphrase string
	BearerToken          string

	// Source records which link in the resolution chain produced this
	// bundle (process config, env, secret-store CLI, credential file,
	// interactive prompt), for diagnostics only.
	Source string
}

// Zero overwrites every secret field in place so the bundle cannot be
// recovered from a lingering reference after use.
func (c *CredentialBundle) Zero() {
	if c == nil {
		return
	}
	c.Password = ""
	c.PrivateKeyPassphrase = ""
	c.BearerToken = ""
	for i := range c.PrivateKeyBytes {
		c.PrivateKeyBytes[i] = 0
	}
	c.PrivateKeyBytes = nil
}

// Empty reports whether no credential material was resolved at all, which
// is valid for targets that authenticate out-of-band (e.g. local).
func (c CredentialBundle) Empty() bool {
	return c.Password == "" && len(c.PrivateKeyBytes) == 0 && c.BearerToken == ""
}
