package credentials

import "errors"

// Sentinel errors for the resolution chain (spec §4.1, §7).
var (
	// ErrCredentialMissing is returned when every source in the chain came
	// back empty and the target's kind requires authentication.
	ErrCredentialMissing = errors.New("credentials: no source produced a credential")

	// ErrCredentialInvalid is returned when a source produced a value but
	// the subsequent authentication attempt (left to the transport layer)
	// rejected it.
	ErrCredentialInvalid = errors.New("credentials: resolved credential was rejected")

	// ErrPermissionsTooOpen is returned by the credential-file source when
	// the file's mode grants access beyond the owner.
	ErrPermissionsTooOpen = errors.New("credentials: credential file permissions too open")
)
