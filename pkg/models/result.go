package models

// ResultArtifact is the tagged union a harvester resolves a terminal job
// into: exactly one of Success or Failure is populated, mirroring the two
// retrieval paths (sentinel marker vs. result file) spec §9's Open Question
// 1 asks us to reconcile. Sentinel is authoritative; the result file is
// read only when no complete sentinel is found.
type ResultArtifact struct {
	Success *SuccessResult `json:"success,omitempty"`
	Failure *FailureResult `json:"failure,omitempty"`
}

// Ok reports whether the artifact represents a successful completion.
func (r ResultArtifact) Ok() bool {
	return r.Success != nil
}

// SuccessResult carries the serialized return value of a completed callable.
type SuccessResult struct {
	// Value is the opaque, format-tagged return payload (spec §4.5's
	// argument/return envelope).
	Value []byte `json:"value"`

	// FormatTag identifies the encoding used for Value, echoing the bundle
	// manifest's argument_format_tag so a caller can decode without
	// re-deriving it.
	FormatTag string `json:"format_tag"`
}

// ErrorKind classifies a FailureResult for programmatic handling; it is
// deliberately coarser than the full TransportError/PackagingError/etc.
// taxonomy in spec §7, which lives at the component boundary where it is
// raised rather than on the wire.
type ErrorKind string

const (
	ErrorKindRemoteException    ErrorKind = "remote_exception"
	ErrorKindLost               ErrorKind = "lost"
	ErrorKindTimeout            ErrorKind = "timeout"
	ErrorKindArtifactMissing    ErrorKind = "artifact_missing"
	ErrorKindCancelled          ErrorKind = "cancelled"
	ErrorKindSubmissionRejected ErrorKind = "submission_rejected"
)

// FailureResult carries everything needed to present a remote failure to a
// caller without a second round trip to the cluster.
type FailureResult struct {
	ErrorKind ErrorKind `json:"error_kind"`
	Message   string    `json:"message"`

	// RemoteTraceback is the captured stack/traceback text from the remote
	// side, when the adapter or sentinel protocol was able to recover one.
	RemoteTraceback string `json:"remote_traceback,omitempty"`

	CapturedStdout string `json:"captured_stdout,omitempty"`
	CapturedStderr string `json:"captured_stderr,omitempty"`
}
