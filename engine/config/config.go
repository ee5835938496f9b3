// Package config loads renderer configuration from TOML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned (wrapped) when a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid renderer config")

// RendererConfig holds the tunables consumed by the renderer and its device backend.
// Zero values are never used directly; Default fills every field and files override it.
type RendererConfig struct {
	// Backend selects the GPU device implementation: "wgpu" or "null".
	Backend string `toml:"backend"`

	// PresentMode controls surface presentation: "vsync" or "uncapped".
	PresentMode string `toml:"present_mode"`

	// MSAASamples is the sample count of the main render pass (1, 4, 8 or 16).
	MSAASamples int `toml:"msaa_samples"`

	// ClusteredLighting enables the clustered light path and the shared shadow atlas for local lights.
	ClusteredLighting bool `toml:"clustered_lighting"`

	// ShadowAtlasResolution is the edge length in texels of the clustered shadow atlas.
	ShadowAtlasResolution int `toml:"shadow_atlas_resolution"`

	// ShadowAtlasSplit is the number of atlas slots per row (slots = split * split).
	ShadowAtlasSplit int `toml:"shadow_atlas_split"`

	// MaxClusterLights caps the number of light indices stored per cluster cell.
	MaxClusterLights int `toml:"max_cluster_lights"`

	// ClusterCells is the cell count of the light cluster grid along x, y and z.
	ClusterCells [3]int `toml:"cluster_cells"`

	// DefaultShadowResolution is the shadow map size given to lights that don't set one.
	DefaultShadowResolution int `toml:"default_shadow_resolution"`

	// ShadowCascadesMax clamps the cascade count of directional lights (1..4).
	ShadowCascadesMax int `toml:"shadow_cascades_max"`

	// SkinWorkers is the worker count used for CPU skin matrix updates. 0 updates inline.
	SkinWorkers int `toml:"skin_workers"`

	// SkinParallelThreshold is the minimum number of skin instances before work is fanned out.
	SkinParallelThreshold int `toml:"skin_parallel_threshold"`

	// DebugAssertions enables logging of violated preconditions.
	DebugAssertions bool `toml:"debug_assertions"`
}

// Default returns the configuration used when no file is supplied.
func Default() RendererConfig {
	return RendererConfig{
		Backend:                 "wgpu",
		PresentMode:             "vsync",
		MSAASamples:             4,
		ClusteredLighting:       false,
		ShadowAtlasResolution:   2048,
		ShadowAtlasSplit:        4,
		MaxClusterLights:        8,
		ClusterCells:            [3]int{10, 3, 10},
		DefaultShadowResolution: 1024,
		ShadowCascadesMax:       4,
		SkinWorkers:             0,
		SkinParallelThreshold:   32,
		DebugAssertions:         true,
	}
}

// Load reads and validates a TOML configuration file. Missing keys keep their default values.
//
// Parameters:
//   - path: the file to read
//
// Returns:
//   - RendererConfig: the loaded configuration
//   - error: error if the file cannot be read, parsed or validated
func Load(path string) (RendererConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RendererConfig{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML bytes over the defaults and validates the result.
// Unknown keys are rejected so typos surface instead of silently keeping defaults.
func Parse(data []byte) (RendererConfig, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return RendererConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return RendererConfig{}, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as TOML.
func (c RendererConfig) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// Validate reports the first out-of-range value, wrapped in ErrInvalidConfig.
func (c RendererConfig) Validate() error {
	switch c.Backend {
	case "wgpu", "null":
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}
	switch c.PresentMode {
	case "vsync", "uncapped":
	default:
		return fmt.Errorf("%w: unknown present mode %q", ErrInvalidConfig, c.PresentMode)
	}
	switch c.MSAASamples {
	case 1, 4, 8, 16:
	default:
		return fmt.Errorf("%w: msaa_samples must be 1, 4, 8 or 16, got %d", ErrInvalidConfig, c.MSAASamples)
	}
	if !isPow2(c.ShadowAtlasResolution) {
		return fmt.Errorf("%w: shadow_atlas_resolution must be a power of two, got %d", ErrInvalidConfig, c.ShadowAtlasResolution)
	}
	if c.ShadowAtlasSplit < 1 || c.ShadowAtlasSplit > 8 {
		return fmt.Errorf("%w: shadow_atlas_split must be in 1..8, got %d", ErrInvalidConfig, c.ShadowAtlasSplit)
	}
	if !isPow2(c.DefaultShadowResolution) {
		return fmt.Errorf("%w: default_shadow_resolution must be a power of two, got %d", ErrInvalidConfig, c.DefaultShadowResolution)
	}
	if c.ShadowCascadesMax < 1 || c.ShadowCascadesMax > 4 {
		return fmt.Errorf("%w: shadow_cascades_max must be in 1..4, got %d", ErrInvalidConfig, c.ShadowCascadesMax)
	}
	if c.MaxClusterLights < 1 {
		return fmt.Errorf("%w: max_cluster_lights must be positive", ErrInvalidConfig)
	}
	for i, n := range c.ClusterCells {
		if n < 1 {
			return fmt.Errorf("%w: cluster_cells[%d] must be positive", ErrInvalidConfig, i)
		}
	}
	if c.SkinWorkers < 0 || c.SkinParallelThreshold < 0 {
		return fmt.Errorf("%w: skin worker settings must not be negative", ErrInvalidConfig)
	}
	return nil
}

func isPow2(v int) bool {
	return v > 0 && v&(v-1) == 0
}
