package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/config"
	"github.com/Carmen-Shannon/oxy-render/engine/graph"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithConfig sets the renderer configuration. Options applied after it override single fields.
//
// Parameters:
//   - cfg: the configuration, usually loaded with config.Load
//
// Returns:
//   - RendererBuilderOption: a function that applies the config option to a renderer
func WithConfig(cfg config.RendererConfig) RendererBuilderOption {
	return func(r *renderer) {
		r.cfg = cfg
	}
}

// WithSceneRoot sets the root node whose hierarchy is synced at the start of every Update.
// Without a root the caller syncs transforms itself.
//
// Parameters:
//   - root: the scene root node
//
// Returns:
//   - RendererBuilderOption: a function that applies the scene root option to a renderer
func WithSceneRoot(root graph.GraphNode) RendererBuilderOption {
	return func(r *renderer) {
		r.sceneRoot = root
	}
}

// WithClusteredLighting selects clustered lighting for omni and spot lights, overriding the
// configuration.
func WithClusteredLighting(enabled bool) RendererBuilderOption {
	return func(r *renderer) {
		r.clusteredOption = &enabled
	}
}

// WithSkinWorkerPool sets the number of pooled goroutines updating skin matrices. Zero updates
// skins on the calling goroutine.
//
// Parameters:
//   - workers: the maximum number of workers
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker option to a renderer
func WithSkinWorkerPool(workers int) RendererBuilderOption {
	return func(r *renderer) {
		r.skinWorkers = max(workers, 0)
	}
}

// WithBlueNoiseSeed seeds the blue noise jitter sequence.
func WithBlueNoiseSeed(seed uint64) RendererBuilderOption {
	return func(r *renderer) {
		r.blueNoiseSeed = seed
	}
}
