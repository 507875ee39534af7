package models

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ResourceRequest describes the compute resources a job asks a backend for.
type ResourceRequest struct {
	Cores int `json:"cores"`

	// Memory is bytes, normalized by ParseMemory from human-readable input.
	Memory int64 `json:"memory"`

	WallTime time.Duration `json:"wall_time"`

	Partition string `json:"partition,omitempty"`
	Queue     string `json:"queue,omitempty"`

	Nodes int `json:"nodes"`
	GPUs  int `json:"gpus"`

	// GPUType is an advisory hint (e.g. "a100") threaded through to the
	// batch-scheduler --gres directive and the Kubernetes nvidia.com/gpu
	// resource name. It does not change GPU auto-transformation behavior,
	// which remains out of scope.
	GPUType string `json:"gpu_type,omitempty"`

	// FractionalCores holds a rational core count for Kubernetes, which is
	// the only backend that accepts cores < 1 (e.g. "500m" => 0.5).
	FractionalCores float64 `json:"fractional_cores,omitempty"`
}

// Validate enforces ResourceRequest invariants: cores >= 1 unless the
// target permits fractional cores (Kubernetes only).
func (r ResourceRequest) Validate(kind ClusterKind) error {
	if kind == KindKubernetes {
		if r.Cores < 1 && r.FractionalCores <= 0 {
			return fmt.Errorf("%w: kubernetes requires cores >= 1 or a positive fractional_cores", ErrInvalidResourceRequest)
		}
		return nil
	}
	if r.Cores < 1 {
		return fmt.Errorf("%w: cores must be >= 1 for backend %q", ErrInvalidResourceRequest, kind)
	}
	if r.Nodes < 1 {
		return fmt.Errorf("%w: nodes must be >= 1", ErrInvalidResourceRequest)
	}
	return nil
}

var memoryPattern = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)\s*([A-Za-z]*)\s*$`)

// MemoryParseResult carries the canonical byte count plus a diagnostic note
// describing any rounding that was applied, per spec §8's boundary
// behaviors ("otherwise rounds per a documented rule and records the
// rounding in diagnostics").
type MemoryParseResult struct {
	Bytes    int64
	Exact    bool
	Rounding string
}

// ParseMemory parses human memory strings ("1GB", "1024MB", "1Gi", "1.5GB",
// "1536MB", plain byte counts, ...) into a canonical byte count.
//
// Decimal-looking unit names (KB, MB, GB, TB) are interpreted as binary
// multiples (1024-based), matching the convention most batch schedulers use
// for --mem: this is what makes "1GB", "1024MB" and "1Gi" converge on the
// same canonical byte count, as spec §8 requires.
func ParseMemory(s string) (MemoryParseResult, error) {
	m := memoryPattern.FindStringSubmatch(s)
	if m == nil {
		return MemoryParseResult{}, fmt.Errorf("%w: %q", ErrInvalidMemoryString, s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return MemoryParseResult{}, fmt.Errorf("%w: %q", ErrInvalidMemoryString, s)
	}

	unit := strings.ToUpper(strings.TrimSuffix(m[2], "B"))
	unit = strings.TrimSuffix(unit, "I")

	var multiplier float64
	switch unit {
	case "", "BYTE", "BYTES":
		multiplier = 1
	case "K":
		multiplier = 1 << 10
	case "M":
		multiplier = 1 << 20
	case "G":
		multiplier = 1 << 30
	case "T":
		multiplier = 1 << 40
	default:
		return MemoryParseResult{}, fmt.Errorf("%w: unrecognized unit in %q", ErrInvalidMemoryString, s)
	}

	exact := value * multiplier
	rounded := math.Round(exact)

	result := MemoryParseResult{Bytes: int64(rounded), Exact: rounded == exact}
	if !result.Exact {
		result.Rounding = fmt.Sprintf("rounded %.4f bytes to nearest whole byte", exact)
	}
	return result, nil
}

// MustParseMemory is ParseMemory but panics on error; intended for tests
// and compile-time resource constants, never for user input.
func MustParseMemory(s string) int64 {
	r, err := ParseMemory(s)
	if err != nil {
		panic(err)
	}
	return r.Bytes
}
