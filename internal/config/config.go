// Package config loads named cluster-target presets from a YAML file, so a
// caller can keep host/queue/image details out of the command line and
// refer to a target by name instead (e.g. "gpu-node" or "campus-slurm").
// Adapted from the teacher's internal/compiler/config.go, which loaded named
// compiler environments out of environments.yaml with the same
// load-then-validate shape; here the YAML describes ClusterTarget/
// ResourceRequest pairs instead of language/compiler/standard triples.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stlpine/clustergo/pkg/models"
)

// Presets is the parsed contents of a presets YAML file.
type Presets struct {
	Targets map[string]TargetPreset `yaml:"targets"`
}

// TargetPreset bundles a ClusterTarget with the default ResourceRequest a
// caller dispatching against it should start from; either half may be
// overridden by the caller's own flags after loading.
type TargetPreset struct {
	Kind                  models.ClusterKind `yaml:"kind"`
	Host                  string             `yaml:"host"`
	Port                  int                `yaml:"port"`
	Username              string             `yaml:"username"`
	RemoteWorkDir         string             `yaml:"remote_work_dir"`
	DefaultPartition      string             `yaml:"default_partition"`
	DefaultContainerImage string             `yaml:"default_container_image"`
	Namespace             string             `yaml:"namespace"`
	ModuleLoads           []string           `yaml:"module_loads"`
	EnvironmentOverrides  map[string]string  `yaml:"environment_overrides"`

	Cores    int           `yaml:"cores"`
	Nodes    int           `yaml:"nodes"`
	Memory   string        `yaml:"memory"`
	GPUs     int           `yaml:"gpus"`
	GPUType  string        `yaml:"gpu_type"`
	WallTime time.Duration `yaml:"wall_time"`
}

// Target converts the preset to a models.ClusterTarget.
func (p TargetPreset) Target() models.ClusterTarget {
	return models.ClusterTarget{
		Kind:                  p.Kind,
		Host:                  p.Host,
		Port:                  p.Port,
		Username:              p.Username,
		RemoteWorkDir:         p.RemoteWorkDir,
		DefaultPartition:      p.DefaultPartition,
		DefaultContainerImage: p.DefaultContainerImage,
		Namespace:             p.Namespace,
		ModuleLoads:           p.ModuleLoads,
		EnvironmentOverrides:  p.EnvironmentOverrides,
	}
}

// Resources converts the preset's resource fields to a models.ResourceRequest.
// Memory is parsed with models.ParseMemory, so "2Gi"/"512Mi"-style values
// from the teacher's compiler config carry over unchanged.
func (p TargetPreset) Resources() (models.ResourceRequest, error) {
	req := models.ResourceRequest{
		Cores:     p.Cores,
		Nodes:     p.Nodes,
		GPUs:      p.GPUs,
		GPUType:   p.GPUType,
		Partition: p.DefaultPartition,
		WallTime:  p.WallTime,
	}
	if p.Memory != "" {
		mem, err := models.ParseMemory(p.Memory)
		if err != nil {
			return models.ResourceRequest{}, fmt.Errorf("parse memory: %w", err)
		}
		req.Memory = mem.Bytes
	}
	return req, nil
}

// Load reads and validates a presets file.
func Load(path string) (*Presets, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}

	var presets Presets
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("parse presets file: %w", err)
	}
	if err := presets.Validate(); err != nil {
		return nil, fmt.Errorf("invalid presets file: %w", err)
	}
	return &presets, nil
}

// Validate checks that every named preset describes a usable target.
func (p *Presets) Validate() error {
	for name, preset := range p.Targets {
		if !preset.Kind.Valid() {
			return fmt.Errorf("target[%s]: unknown cluster kind %q", name, preset.Kind)
		}
		if err := preset.Target().Validate(); err != nil {
			return fmt.Errorf("target[%s]: %w", name, err)
		}
		if _, err := preset.Resources(); err != nil {
			return fmt.Errorf("target[%s]: %w", name, err)
		}
	}
	return nil
}

// Lookup returns the named preset, or an error listing the names that do
// exist so a typo in --preset fails with something actionable.
func (p *Presets) Lookup(name string) (TargetPreset, error) {
	preset, ok := p.Targets[name]
	if !ok {
		return TargetPreset{}, fmt.Errorf("no preset named %q (have: %s)", name, p.names())
	}
	return preset, nil
}

func (p *Presets) names() string {
	names := make([]string, 0, len(p.Targets))
	for name := range p.Targets {
		names = append(names, name)
	}
	if len(names) == 0 {
		return "(none defined)"
	}
	out := names[0]
	for _, n := range names[1:] {
		out += ", " + n
	}
	return out
}

// DefaultPath mirrors the teacher's GetDefaultConfigPath, trying the
// locations a presets file would sit at relative to wherever the binary
// happens to be invoked from.
func DefaultPath() string {
	candidates := []string{
		"configs/targets.yaml",
		"../configs/targets.yaml",
		"../../configs/targets.yaml",
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			abs, err := filepath.Abs(candidate)
			if err == nil {
				return abs
			}
			return candidate
		}
	}
	return "configs/targets.yaml"
}
