package models

import "errors"

// Sentinel errors for the data model's own validation. The broader error
// taxonomy in spec §7 (TransportError, PackagingError, SubmissionRejected,
// Lost, Timeout, ArtifactMissing, RemoteException, Cancelled,
// CredentialMissing/Invalid, PermissionsTooOpen) lives closer to the
// component that raises it; these two are shared by any caller that builds
// a ResourceRequest or parses a memory string directly.
var (
	ErrInvalidResourceRequest = errors.New("invalid resource request")
	ErrInvalidMemoryString    = errors.New("invalid memory string")
)

// ErrorResponse is a wire-shape for surfacing a structured failure over the
// ambient status server; it is not the error taxonomy itself.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
