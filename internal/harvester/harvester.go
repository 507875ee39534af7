// Package harvester resolves a terminal job into a models.ResultArtifact
// (spec §4.8), reconciling the two retrieval paths a bootstrap can leave
// behind: a log-sentinel pair (RESULT_JSON:/ERROR_JSON: followed by
// CLUSTRIX_END) and a written result/error file. The sentinel is
// authoritative when present; the file is a fallback for backends whose
// log tail may have already rotated past it.
package harvester

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stlpine/clustergo/internal/backend"
	"github.com/stlpine/clustergo/internal/executor"
	"github.com/stlpine/clustergo/pkg/models"
)

// ResultFormatTag identifies the encoding of SuccessResult.Value, echoed
// back so a caller can decode without re-deriving it. The bootstrap's
// result payload is always plain encoding/json, same as the args
// envelope's own json-v1 tag.
const ResultFormatTag = "json-v1"

// Config holds the harvester's retry policy (spec §4.8, values given
// directly rather than derived).
type Config struct {
	// RetryLadder is the sequence of waits between artifact-resolution
	// attempts. The last entry repeats for any remaining time in
	// ResultGrace.
	RetryLadder []time.Duration

	// ResultGrace bounds the total time spent waiting for an artifact to
	// appear before the job is reported artifact_missing.
	ResultGrace time.Duration

	Logger *zap.Logger
}

// DefaultConfig returns the documented retry ladder and grace budget.
func DefaultConfig() Config {
	return Config{
		RetryLadder: []time.Duration{
			1 * time.Second, 2 * time.Second, 4 * time.Second,
			8 * time.Second, 15 * time.Second, 30 * time.Second,
		},
		ResultGrace: 90 * time.Second,
	}
}

// Harvester implements the executor.Harvester contract.
type Harvester struct {
	cfg Config
}

var _ executor.Harvester = (*Harvester)(nil)

func New(cfg Config) *Harvester {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if len(cfg.RetryLadder) == 0 {
		cfg.RetryLadder = DefaultConfig().RetryLadder
	}
	if cfg.ResultGrace <= 0 {
		cfg.ResultGrace = DefaultConfig().ResultGrace
	}
	return &Harvester{cfg: cfg}
}

// bootstrapPayload mirrors internal/bundle/bootstrap.go's bootstrapResult
// wire shape, with Result left as a raw message so it can be re-wrapped
// into a SuccessResult without a decode/re-encode round trip through an
// untyped interface{}.
type bootstrapPayload struct {
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	ErrorType string          `json:"error_type,omitempty"`
}

// Harvest resolves job (already terminal per the executor's state machine)
// into a ResultArtifact. Cancelled and timed-out jobs never had a chance to
// write anything, so those two states short-circuit straight to a
// FailureResult, as does a failed job that still carries a non-zero
// UnknownStreak (the executor forced it to failed after its state stayed
// unknown past UnknownGrace, reported as ErrorKindLost); other
// completed/failed jobs go through sentinel-then-file resolution under the
// retry ladder.
func (h *Harvester) Harvest(ctx context.Context, job models.Job, adapter backend.Adapter) (models.ResultArtifact, error) {
	switch job.State {
	case models.StateCancelled:
		return models.ResultArtifact{Failure: &models.FailureResult{
			ErrorKind: models.ErrorKindCancelled,
			Message:   "job was cancelled before completion",
		}}, nil
	case models.StateTimeout:
		return models.ResultArtifact{Failure: &models.FailureResult{
			ErrorKind: models.ErrorKindTimeout,
			Message:   "job exceeded its wall clock limit",
		}}, nil
	case models.StateFailed:
		if job.UnknownStreak > 0 {
			return models.ResultArtifact{Failure: &models.FailureResult{
				ErrorKind: models.ErrorKindLost,
				Message:   "job state stayed unknown past its unknown grace",
			}}, nil
		}
	}

	locs, err := adapter.ResultLocations(ctx, job.BackendHandle, job.RemoteDir)
	if err != nil {
		h.cfg.Logger.Warn("harvester: result locations unavailable",
			zap.String("job_id", job.ID), zap.Error(err))
	}

	deadline := time.Now().Add(h.cfg.ResultGrace)
	var lastTail backend.StreamTail

	for attempt := 0; ; attempt++ {
		tail, tailErr := adapter.StreamErrorContext(ctx, job.BackendHandle)
		if tailErr == nil {
			lastTail = tail
		} else {
			h.cfg.Logger.Debug("harvester: stream_error_context failed",
				zap.String("job_id", job.ID), zap.Error(tailErr))
		}

		if artifact, ok := parseSentinel(tail.Stdout); ok {
			return artifact, nil
		}
		if artifact, ok := h.tryFiles(ctx, adapter, job.BackendHandle, locs); ok {
			return artifact, nil
		}

		if !time.Now().Before(deadline) {
			break
		}

		wait := rungFor(h.cfg.RetryLadder, attempt)
		if remaining := time.Until(deadline); wait > remaining {
			wait = remaining
		}
		if wait <= 0 {
			break
		}

		select {
		case <-ctx.Done():
			return models.ResultArtifact{}, ctx.Err()
		case <-time.After(wait):
		}
	}

	return models.ResultArtifact{Failure: &models.FailureResult{
		ErrorKind:      models.ErrorKindArtifactMissing,
		Message:        fmt.Sprintf("no result artifact recovered within %s", h.cfg.ResultGrace),
		CapturedStdout: lastTail.Stdout,
		CapturedStderr: lastTail.Stderr,
	}}, nil
}

// rungFor returns the ladder's attempt'th wait, repeating the last rung for
// any attempt beyond the ladder's length.
func rungFor(ladder []time.Duration, attempt int) time.Duration {
	if attempt < len(ladder) {
		return ladder[attempt]
	}
	return ladder[len(ladder)-1]
}

// tryFiles reads locs' success/failure paths back through the adapter.
// FetchResultFile errors silently here (empty paths, backend has no
// filesystem, file not written yet) since that is the expected steady
// state between ladder attempts, not a harvest failure on its own.
func (h *Harvester) tryFiles(ctx context.Context, adapter backend.Adapter, backendID string, locs backend.ResultLocations) (models.ResultArtifact, bool) {
	if locs.SuccessPath != "" {
		if data, err := adapter.FetchResultFile(ctx, backendID, locs.SuccessPath); err == nil && len(data) > 0 {
			if artifact, ok := decodeBootstrapPayload(data); ok {
				return artifact, true
			}
		}
	}
	if locs.FailurePath != "" {
		if data, err := adapter.FetchResultFile(ctx, backendID, locs.FailurePath); err == nil && len(data) > 0 {
			if artifact, ok := decodeBootstrapPayload(data); ok {
				return artifact, true
			}
		}
	}
	return models.ResultArtifact{}, false
}

// parseSentinel scans a log tail for a RESULT_JSON:/ERROR_JSON: line
// followed by CLUSTRIX_END, the bootstrap's own write-completion marker
// (spec §6). A RESULT_JSON/ERROR_JSON line with no following CLUSTRIX_END
// in the captured tail is treated as not-yet-complete rather than guessed
// at, since the tail is bounded and may have been read mid-write.
func parseSentinel(stdout string) (models.ResultArtifact, bool) {
	lines := strings.Split(stdout, "\n")
	endIdx := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "CLUSTRIX_END" {
			endIdx = i
		}
	}
	if endIdx == -1 {
		return models.ResultArtifact{}, false
	}
	for i := endIdx - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if payload, ok := strings.CutPrefix(line, "RESULT_JSON:"); ok {
			if artifact, ok := decodeBootstrapPayload([]byte(payload)); ok {
				return artifact, true
			}
		}
		if payload, ok := strings.CutPrefix(line, "ERROR_JSON:"); ok {
			if artifact, ok := decodeBootstrapPayload([]byte(payload)); ok {
				return artifact, true
			}
		}
	}
	return models.ResultArtifact{}, false
}

func decodeBootstrapPayload(data []byte) (models.ResultArtifact, bool) {
	var p bootstrapPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.ResultArtifact{}, false
	}
	switch p.Status {
	case "SUCCESS":
		return models.ResultArtifact{Success: &models.SuccessResult{
			Value:     p.Result,
			FormatTag: ResultFormatTag,
		}}, true
	case "ERROR":
		return models.ResultArtifact{Failure: &models.FailureResult{
			ErrorKind:       models.ErrorKindRemoteException,
			Message:         p.Error,
			RemoteTraceback: p.ErrorType,
		}}, true
	default:
		return models.ResultArtifact{}, false
	}
}
