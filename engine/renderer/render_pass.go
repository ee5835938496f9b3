package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/light"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
)

// RenderPass is one step of a frame with optional setup and teardown around its work.
type RenderPass interface {
	// Name returns the debug name of the pass.
	Name() string

	// Before runs ahead of Execute.
	Before()

	// Execute records the pass.
	Execute()

	// After runs once Execute returns.
	After()
}

// RenderPassBase implements the optional hooks of RenderPass as no-ops.
type RenderPassBase struct {
	name   string
	device gpu.Device
}

func (p *RenderPassBase) Name() string { return p.name }
func (p *RenderPassBase) Before()      {}
func (p *RenderPassBase) After()       {}

// RenderPassShadowLocalClustered renders the shadows of clustered local lights into the shadow
// atlas. The atlas is cleared as a whole only on its first use; afterwards each face re-rendered
// clears just its own viewport, so lights that are not updated keep their shadow.
type RenderPassShadowLocalClustered struct {
	RenderPassBase
	r       *renderer
	atlas   *LightTextureAtlas
	shadows *ShadowRenderer
	lights  []*light.Light
}

var _ RenderPass = &RenderPassShadowLocalClustered{}

// newRenderPassShadowLocalClustered creates the atlas shadow pass.
func newRenderPassShadowLocalClustered(r *renderer, atlas *LightTextureAtlas) *RenderPassShadowLocalClustered {
	return &RenderPassShadowLocalClustered{
		RenderPassBase: RenderPassBase{name: "ShadowLocalClustered", device: r.device},
		r:              r,
		atlas:          atlas,
		shadows:        r.shadowRenderer,
	}
}

// Execute renders every face of every atlas light due for a shadow update.
func (p *RenderPassShadowLocalClustered) Execute() {
	p.lights = p.lights[:0]
	for _, l := range p.r.localLights {
		if l.AtlasViewportAllocated() && p.shadows.NeedsShadowRendering(l) {
			p.lights = append(p.lights, l)
		}
	}
	clearAll := p.atlas.takeClear()
	if len(p.lights) == 0 && !clearAll {
		return
	}

	target := p.atlas.RenderTarget()
	opts := gpu.ClearOptions{Depth: 1}
	if clearAll {
		opts.Flags = gpu.ClearDepth
	}
	p.device.SetRenderTarget(target)
	p.device.StartRenderPass(gpu.RenderPassOptions{Name: p.name, Target: target, Clear: opts})
	for _, l := range p.lights {
		for face := 0; face < l.NumShadowFaces(); face++ {
			if p.shadows.PrepareFace(l, nil, face) == nil {
				break
			}
			p.shadows.RenderFace(l, nil, face, true)
		}
	}
	p.device.EndRenderPass()
}

// RenderPassUpdateClustered renders the atlas shadows, then rebuilds the light clusters. The
// clusters pack each spot light's shadow matrix, so they update after the shadows are placed.
type RenderPassUpdateClustered struct {
	RenderPassBase
	r          *renderer
	clusters   *WorldClusters
	shadowPass *RenderPassShadowLocalClustered
}

var _ RenderPass = &RenderPassUpdateClustered{}

// newRenderPassUpdateClustered creates the clustered update pass and its shadow pass.
//
// Parameters:
//   - r: the renderer whose local lights are processed
//   - atlas: the shadow atlas
//   - clusters: the light clusters
//
// Returns:
//   - *RenderPassUpdateClustered: the pass
func newRenderPassUpdateClustered(r *renderer, atlas *LightTextureAtlas, clusters *WorldClusters) *RenderPassUpdateClustered {
	return &RenderPassUpdateClustered{
		RenderPassBase: RenderPassBase{name: "UpdateClustered", device: r.device},
		r:              r,
		clusters:       clusters,
		shadowPass:     newRenderPassShadowLocalClustered(r, atlas),
	}
}

// ShadowPass returns the atlas shadow pass run by Execute.
func (p *RenderPassUpdateClustered) ShadowPass() *RenderPassShadowLocalClustered { return p.shadowPass }

func (p *RenderPassUpdateClustered) Before() { p.shadowPass.Before() }
func (p *RenderPassUpdateClustered) After()  { p.shadowPass.After() }

// Execute runs the shadow pass, then uploads and publishes the clusters.
func (p *RenderPassUpdateClustered) Execute() {
	p.shadowPass.Execute()
	p.clusters.Update(p.r.localLights)
	p.clusters.Activate()
	p.r.stats.ClusteredLights = len(p.clusters.Lights())
	logger.Logger().Debug("clusters updated",
		"lights", len(p.clusters.Lights()),
		"boundsMin", p.clusters.BoundsMin(),
		"boundsMax", p.clusters.BoundsMax(),
	)
}
